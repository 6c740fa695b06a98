package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirillkom/prototype-classifier/internal/core/domain"
)

type CategoryRepository struct {
	db *sql.DB
}

func NewCategoryRepository(db *sql.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) SaveCategorySet(ctx context.Context, active domain.ActiveCategories) error {
	raw, err := json.Marshal(active.Categories)
	if err != nil {
		return fmt.Errorf("marshal categories: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
INSERT INTO category_sets (version, categories, created_at) VALUES (?,?,?)
ON CONFLICT (version) DO NOTHING
`, active.Version, string(raw), formatTime(active.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert category set v%d: %w", active.Version, err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert category set v%d: %w", active.Version, err)
	}
	if inserted == 0 {
		return fmt.Errorf("insert category set v%d: %w", active.Version, domain.ErrVersionConflict)
	}
	return nil
}

func (r *CategoryRepository) LatestCategorySet(ctx context.Context) (*domain.ActiveCategories, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT version, categories, created_at FROM category_sets ORDER BY version DESC LIMIT 1
`)

	var active domain.ActiveCategories
	var raw, createdAt string
	if err := row.Scan(&active.Version, &raw, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan category set: %w", err)
	}

	var err error
	if active.UpdatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(raw), &active.Categories); err != nil {
		return nil, fmt.Errorf("unmarshal categories: %w", err)
	}
	if err := active.Categories.Validate(); err != nil {
		return nil, fmt.Errorf("stored category set v%d: %w", active.Version, err)
	}
	return &active, nil
}
