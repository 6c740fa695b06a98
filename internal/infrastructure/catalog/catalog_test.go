package catalog

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kirillkom/prototype-classifier/internal/core/domain"
)

const sevenCategories = `categories:
  - label: Code
    prototype: Programs and compilers.
  - label: Mood
    prototype: Feelings and moods.
  - label: Ideas
    prototype: Meaning and ethics.
  - label: Story
    prototype: Characters and plot.
  - label: Numbers
    prototype: Statistics and measurement.
  - label: Art
    prototype: Poems and paintings.
  - label: Chores
    prototype: Errands and checklists.
`

func writeCatalog(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "categories.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	return path
}

func TestLoadCategoriesOnly(t *testing.T) {
	path := writeCatalog(t, t.TempDir(), sevenCategories)

	cat, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cat.Table != nil {
		t.Fatalf("expected no table override")
	}
	want := []string{"Code", "Mood", "Ideas", "Story", "Numbers", "Art", "Chores"}
	if diff := cmp.Diff(want, cat.Config().Labels); diff != "" {
		t.Fatalf("labels mismatch (-want +got):\n%s", diff)
	}
	if cat.Categories[4].Prototype != "Statistics and measurement." {
		t.Fatalf("unexpected prototype: %q", cat.Categories[4].Prototype)
	}
}

func TestParseRejectsWrongCategoryCount(t *testing.T) {
	body := "categories:\n  - label: Only\n    prototype: One.\n"
	if _, err := Parse([]byte(body)); !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	body := sevenCategories + "colour: blue\n"
	if _, err := Parse([]byte(body)); !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestEncodeRoundTripsTableOverride(t *testing.T) {
	table := domain.DefaultPropagationTable()

	var buf bytes.Buffer
	if err := Encode(&buf, domain.DefaultCategorySet(), &table); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if !strings.Contains(buf.String(), `- "-0"`) && !strings.Contains(buf.String(), "- -0") {
		t.Fatalf("expected signed entries in output:\n%s", buf.String())
	}

	cat, err := Parse(buf.Bytes())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cat.Table == nil || *cat.Table != table {
		t.Fatalf("table did not survive encoding")
	}
	if cat.Categories != domain.DefaultCategorySet() {
		t.Fatalf("categories did not survive encoding")
	}
}

func TestParseRejectsCorruptTable(t *testing.T) {
	table := domain.DefaultPropagationTable()
	table[0][0] = domain.TableEntry{Sign: 1, Target: 0}

	var buf bytes.Buffer
	if err := Encode(&buf, domain.DefaultCategorySet(), &table); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if _, err := Parse(buf.Bytes()); !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestParseEntry(t *testing.T) {
	tests := []struct {
		in      string
		want    domain.TableEntry
		wantErr bool
	}{
		{in: "+3", want: domain.TableEntry{Sign: 1, Target: 3}},
		{in: " -0 ", want: domain.TableEntry{Sign: -1, Target: 0}},
		{in: "3", wantErr: true},
		{in: "+", wantErr: true},
		{in: "-x", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseEntry(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseEntry(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("ParseEntry(%q) = %+v, %v; want %+v", tt.in, got, err, tt.want)
		}
	}
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeCatalog(t, dir, sevenCategories)

	changes := make(chan *Catalog, 4)
	w := NewWatcher(path, func(_ context.Context, cat *Catalog) error {
		changes <- cat
		return nil
	})
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	// An invalid write is skipped and must not reach the callback.
	writeCatalog(t, dir, "categories: []\n")
	time.Sleep(100 * time.Millisecond)
	writeCatalog(t, dir, strings.Replace(sevenCategories, "label: Art", "label: Craft", 1))

	select {
	case cat := <-changes:
		if cat.Categories.Label(6) != "Craft" {
			t.Fatalf("expected reloaded label, got %q", cat.Categories.Label(6))
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("watcher did not report the change")
	}
}

func TestWatcherStopsOnCancel(t *testing.T) {
	path := writeCatalog(t, t.TempDir(), sevenCategories)
	w := NewWatcher(path, func(context.Context, *Catalog) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}
