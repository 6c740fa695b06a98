package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirillkom/prototype-classifier/internal/core/domain"
)

// CategoryRepository keeps every accepted category set. Versions are unique,
// so two writers racing for the same version fail instead of diverging.
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
INSERT INTO category_sets (version, categories, created_at)
VALUES ($1,$2,$3)
ON CONFLICT (version) DO NOTHING
`, active.Version, raw, active.UpdatedAt)
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

// LatestCategorySet returns nil without error when nothing was stored yet.
func (r *CategoryRepository) LatestCategorySet(ctx context.Context) (*domain.ActiveCategories, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT version, categories, created_at
FROM category_sets
ORDER BY version DESC
LIMIT 1
`)

	var active domain.ActiveCategories
	var raw []byte
	if err := row.Scan(&active.Version, &raw, &active.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan category set: %w", err)
	}
	if err := json.Unmarshal(raw, &active.Categories); err != nil {
		return nil, fmt.Errorf("unmarshal categories: %w", err)
	}
	if err := active.Categories.Validate(); err != nil {
		return nil, fmt.Errorf("stored category set v%d: %w", active.Version, err)
	}
	return &active, nil
}
