package xlsx

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/prototype-classifier/internal/core/domain"
)

type storageFake struct {
	body []byte
}

func (f *storageFake) Save(context.Context, string, io.Reader) error { return nil }

func (f *storageFake) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.body)), nil
}

func buildWorkbook(t *testing.T) []byte {
	t.Helper()
	book := excelize.NewFile()
	defer book.Close()

	if err := book.SetSheetRow("Sheet1", "A1", &[]any{"Quarter", "Revenue", "Growth"}); err != nil {
		t.Fatalf("SetSheetRow() error = %v", err)
	}
	if err := book.SetSheetRow("Sheet1", "A2", &[]any{"Q1", 120, "4%"}); err != nil {
		t.Fatalf("SetSheetRow() error = %v", err)
	}
	if _, err := book.NewSheet("Notes"); err != nil {
		t.Fatalf("NewSheet() error = %v", err)
	}
	if err := book.SetCellValue("Notes", "B3", "Numbers are unaudited!"); err != nil {
		t.Fatalf("SetCellValue() error = %v", err)
	}

	buf, err := book.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer() error = %v", err)
	}
	return buf.Bytes()
}

func TestExtractFlattensSheetsIntoSentences(t *testing.T) {
	e := NewExtractor(&storageFake{body: buildWorkbook(t)})
	text, err := e.Extract(context.Background(), &domain.Document{Filename: "report.xlsx", StoragePath: "k"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	want := "Quarter Revenue Growth.\nQ1 120 4%.\nNumbers are unaudited!"
	if text != want {
		t.Fatalf("Extract() = %q, want %q", text, want)
	}
}

func TestExtractRejectsNonWorkbook(t *testing.T) {
	e := NewExtractor(&storageFake{body: []byte("not a zip")})
	_, err := e.Extract(context.Background(), &domain.Document{Filename: "broken.xlsx", StoragePath: "k"})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
