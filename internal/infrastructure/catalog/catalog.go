// Package catalog reads the category catalog file: seven labelled prototype
// descriptions and an optional propagation table override.
//
//	categories:
//	  - label: Technical
//	    prototype: Source code, APIs and debugging.
//	  ...
//	propagation:
//	  - ["-0", "+3", "-2", "+5", "-4", "-7", "+6"]
//	  ...
//
// Table entries are a sign followed by the target symbol.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/prototype-classifier/internal/core/domain"
)

type Catalog struct {
	Categories domain.CategorySet
	// Table is nil when the file does not override the default table.
	Table *domain.PropagationTable
}

type fileFormat struct {
	Categories  []domain.Category `yaml:"categories"`
	Propagation [][]string        `yaml:"propagation,omitempty"`
}

func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	cat, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return cat, nil
}

func Parse(raw []byte) (*Catalog, error) {
	var file fileFormat
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, domain.WrapError(domain.ErrConfiguration, "parse catalog", err)
	}

	labels := make([]string, len(file.Categories))
	prototypes := make([]string, len(file.Categories))
	for i, c := range file.Categories {
		labels[i] = c.Label
		prototypes[i] = c.Prototype
	}
	set, err := domain.NewCategorySet(labels, prototypes)
	if err != nil {
		return nil, err
	}

	cat := &Catalog{Categories: set}
	if len(file.Propagation) > 0 {
		table, err := parseTable(file.Propagation)
		if err != nil {
			return nil, err
		}
		if err := table.Validate(); err != nil {
			return nil, err
		}
		cat.Table = &table
	}
	return cat, nil
}

func parseTable(rows [][]string) (domain.PropagationTable, error) {
	var table domain.PropagationTable
	if len(rows) != domain.CategoryCount {
		return table, domain.WrapError(domain.ErrConfiguration, "parse propagation table", fmt.Errorf("expected %d rows, got %d", domain.CategoryCount, len(rows)))
	}
	for i, row := range rows {
		if len(row) != domain.CategoryCount {
			return table, domain.WrapError(domain.ErrConfiguration, "parse propagation table", fmt.Errorf("row %d has %d entries", i+1, len(row)))
		}
		for j, cell := range row {
			entry, err := ParseEntry(cell)
			if err != nil {
				return table, domain.WrapError(domain.ErrConfiguration, "parse propagation table", fmt.Errorf("T[%d][%d]: %w", i+1, j+1, err))
			}
			table[i][j] = entry
		}
	}
	return table, nil
}

// ParseEntry reads a signed entry such as "+3" or "-0".
func ParseEntry(s string) (domain.TableEntry, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || (s[0] != '+' && s[0] != '-') {
		return domain.TableEntry{}, fmt.Errorf("entry %q must be a sign followed by a symbol", s)
	}
	target, err := strconv.Atoi(s[1:])
	if err != nil {
		return domain.TableEntry{}, fmt.Errorf("entry %q: %w", s, err)
	}
	sign := 1
	if s[0] == '-' {
		sign = -1
	}
	return domain.TableEntry{Sign: sign, Target: target}, nil
}

func FormatEntry(e domain.TableEntry) string {
	if e.Sign < 0 {
		return "-" + strconv.Itoa(e.Target)
	}
	return "+" + strconv.Itoa(e.Target)
}

// Encode writes a catalog file that Load accepts.
func Encode(w io.Writer, set domain.CategorySet, table *domain.PropagationTable) error {
	file := fileFormat{Categories: set[:]}
	if table != nil {
		file.Propagation = make([][]string, domain.CategoryCount)
		for i := range table {
			row := make([]string, domain.CategoryCount)
			for j, e := range table[i] {
				row[j] = FormatEntry(e)
			}
			file.Propagation[i] = row
		}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(file); err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	return enc.Close()
}

func (c *Catalog) Config() domain.CategoryConfig {
	return domain.CategoryConfig{
		Labels:                c.Categories.Labels(),
		PrototypeDescriptions: c.Categories.Prototypes(),
	}
}
