// Package ocr recognises text in scanned images with the tesseract CLI.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Ensure Extractor implements the interface.
var _ driven.OCRExtractor = (*Extractor)(nil)

// ErrTesseractNotFound indicates tesseract is not installed.
var ErrTesseractNotFound = errors.New("tesseract not found: install it to ingest images")

// DefaultPageSegMode treats the image as a fully automatic page layout.
const DefaultPageSegMode = "3"

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

// Extractor runs tesseract on image files.
type Extractor struct {
	runner   CommandRunner
	lookPath func(string) (string, error)
	language string
}

// Option configures the extractor.
type Option func(*Extractor)

// WithLanguage selects the tesseract language pack, e.g. "eng+deu".
func WithLanguage(lang string) Option {
	return func(e *Extractor) {
		e.language = lang
	}
}

// New creates an extractor using the system tesseract.
func New(opts ...Option) *Extractor {
	e := &Extractor{runner: execRunner{}, lookPath: exec.LookPath}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewWithRunner creates an extractor with a custom command runner.
func NewWithRunner(runner CommandRunner, opts ...Option) *Extractor {
	e := &Extractor{
		runner:   runner,
		lookPath: func(string) (string, error) { return "tesseract", nil },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractText returns the recognised text with surrounding whitespace trimmed.
// An image without text yields an empty string and no error.
func (e *Extractor) ExtractText(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	if _, err := e.lookPath("tesseract"); err != nil {
		return "", ErrTesseractNotFound
	}

	args := []string{path, "stdout", "--psm", DefaultPageSegMode}
	if e.language != "" {
		args = append(args, "-l", e.language)
	}

	out, err := e.runner.Run(ctx, "tesseract", args...)
	if err != nil {
		return "", fmt.Errorf("ocr %s: %w", filepath.Base(path), err)
	}

	text := strings.TrimSpace(string(out))
	logger.Debug("ocr recognised %d characters in %s", len(text), filepath.Base(path))
	return text, nil
}

// CheckAvailable returns nil if tesseract is installed.
func CheckAvailable() error {
	if _, err := exec.LookPath("tesseract"); err != nil {
		return ErrTesseractNotFound
	}
	return nil
}

// InstallInstructions returns how to install tesseract.
func InstallInstructions() string {
	return `tesseract is required to ingest images (.jpg, .jpeg, .png, .bmp).

  macOS:          brew install tesseract
  Debian/Ubuntu:  apt install tesseract-ocr
  Fedora:         dnf install tesseract`
}
