// Package pdf extracts the text layer of PDF files, one document per page.
//
// Pages are read with the pure Go github.com/ledongthuc/pdf reader. Files it
// cannot parse are retried with poppler's pdftotext when that tool is
// installed.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Ensure Extractor implements the interface.
var _ driven.PDFExtractor = (*Extractor)(nil)

// ErrPDFToolNotFound indicates pdftotext is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found: install poppler-utils for the PDF fallback reader")

// pageBreak separates pages in pdftotext output.
const pageBreak = "\f"

// CommandRunner runs external commands. Tests replace it.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// Extractor reads PDF pages.
type Extractor struct {
	runner   CommandRunner
	lookPath func(string) (string, error)
}

// New creates an extractor that falls back to the system pdftotext.
func New() *Extractor {
	return &Extractor{runner: execRunner{}, lookPath: exec.LookPath}
}

// NewWithRunner creates an extractor with a custom fallback runner.
func NewWithRunner(runner CommandRunner) *Extractor {
	return &Extractor{
		runner:   runner,
		lookPath: func(string) (string, error) { return "pdftotext", nil },
	}
}

// ExtractPages returns one document per page that has text.
// Page numbers are 0-indexed and Source is the file's base name.
func (e *Extractor) ExtractPages(ctx context.Context, path string) ([]domain.Document, error) {
	source := filepath.Base(path)

	pages, err := readPages(path)
	if err != nil {
		logger.Debug("pdf reader failed on %s: %v", source, err)
		fallback, ferr := e.readWithTool(ctx, path)
		if ferr != nil {
			if errors.Is(ferr, ErrPDFToolNotFound) {
				return nil, fmt.Errorf("read %s: %w", source, err)
			}
			return nil, fmt.Errorf("read %s: %w", source, errors.Join(err, ferr))
		}
		pages = fallback
	}

	docs := make([]domain.Document, 0, len(pages))
	for i, text := range pages {
		if strings.TrimSpace(text) == "" {
			continue
		}
		docs = append(docs, domain.Document{
			Content: text,
			Source:  source,
			Page:    domain.PageRef(i),
		})
	}
	logger.Debug("extracted %d/%d pages from %s", len(docs), len(pages), source)
	return docs, nil
}

// readPages extracts plain text per page with the pure Go reader.
// The reader panics on some malformed files; that is reported as an error.
func readPages(path string) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	n := r.NumPage()
	pages = make([]string, n)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages[i-1] = text
	}
	return pages, nil
}

// readWithTool extracts text with pdftotext, splitting pages on form feeds.
func (e *Extractor) readWithTool(ctx context.Context, path string) ([]string, error) {
	if _, err := e.lookPath("pdftotext"); err != nil {
		return nil, ErrPDFToolNotFound
	}

	out, err := e.runner.Run(ctx, "pdftotext", "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		return nil, err
	}

	pages := strings.Split(string(out), pageBreak)
	// pdftotext terminates the last page with a form feed too.
	if len(pages) > 0 && strings.TrimSpace(pages[len(pages)-1]) == "" {
		pages = pages[:len(pages)-1]
	}
	return pages, nil
}

// CheckAvailable returns nil if pdftotext is installed.
func CheckAvailable() error {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}

// InstallInstructions returns how to install the fallback reader.
func InstallInstructions() string {
	return `pdftotext is optional and only used for PDFs the built-in reader cannot parse.

  macOS:          brew install poppler
  Debian/Ubuntu:  apt install poppler-utils
  Fedora:         dnf install poppler-utils`
}
