// Package multi routes documents to a format-specific extractor by MIME
// type, falling back to the filename extension.
package multi

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/kirillkom/prototype-classifier/internal/core/domain"
	"github.com/kirillkom/prototype-classifier/internal/core/ports"
)

const (
	FormatText = "text"
	FormatPDF  = "pdf"
	FormatXLSX = "xlsx"
)

type Extractor struct {
	byFormat map[string]ports.TextExtractor
	fallback string
}

// New registers extractors by format. Unknown formats use fallback, which
// must also be registered.
func New(byFormat map[string]ports.TextExtractor, fallback string) (*Extractor, error) {
	if _, ok := byFormat[fallback]; !ok {
		return nil, fmt.Errorf("fallback extractor %q is not registered", fallback)
	}
	return &Extractor{byFormat: byFormat, fallback: fallback}, nil
}

func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	format := DetectFormat(doc.MimeType, doc.Filename)
	extractor, ok := e.byFormat[format]
	if !ok {
		extractor = e.byFormat[e.fallback]
	}
	return extractor.Extract(ctx, doc)
}

func DetectFormat(mimeType, filename string) string {
	if mediaType, _, err := mime.ParseMediaType(mimeType); err == nil {
		switch mediaType {
		case "application/pdf":
			return FormatPDF
		case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
			return FormatXLSX
		}
		if strings.HasPrefix(mediaType, "text/") {
			return FormatText
		}
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return FormatPDF
	case ".xlsx", ".xlsm":
		return FormatXLSX
	default:
		return FormatText
	}
}
