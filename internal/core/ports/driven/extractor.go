package driven

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// PDFExtractor reads the text layer of a PDF.
type PDFExtractor interface {
	// ExtractPages returns one document per page, with 0-indexed pages and
	// Source set to the file's base name.
	ExtractPages(ctx context.Context, path string) ([]domain.Document, error)
}

// OCRExtractor recognises text in an image.
type OCRExtractor interface {
	// ExtractText returns the recognised text, possibly empty.
	ExtractText(ctx context.Context, path string) (string, error)
}
