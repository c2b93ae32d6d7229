// Package normalisers groups the extractors that turn uploaded files into
// domain.Documents: pdf reads text layers page by page, ocr recognises text
// in images. The ingestion pipeline picks one by file extension.
package normalisers

import (
	"path/filepath"
	"strings"
)

// Kind is the extractor family responsible for a file.
type Kind int

const (
	// KindUnsupported files are skipped without error.
	KindUnsupported Kind = iota
	// KindPDF files are read page by page.
	KindPDF
	// KindImage files are passed through OCR.
	KindImage
)

// imageExtensions are the image formats accepted for OCR.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
}

// KindOf classifies a path by its lower-cased extension.
func KindOf(path string) Kind {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".pdf":
		return KindPDF
	case imageExtensions[ext]:
		return KindImage
	default:
		return KindUnsupported
	}
}

// Supported reports whether the path has an extension some extractor handles.
func Supported(path string) bool {
	return KindOf(path) != KindUnsupported
}

// SupportedExtensions lists the accepted extensions, PDF first.
func SupportedExtensions() []string {
	return []string{".pdf", ".jpg", ".jpeg", ".png", ".bmp"}
}
