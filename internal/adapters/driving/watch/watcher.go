// Package watch appends files dropped into a directory to a session's index.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/logger"
	"github.com/custodia-labs/docqa/internal/normalisers"
)

// DefaultDebounce is how long the watcher waits after the last event before
// ingesting. Editors and copies emit several events per file.
const DefaultDebounce = 500 * time.Millisecond

// Config holds watcher configuration.
type Config struct {
	// Dir is the directory to watch. Subdirectories are not watched.
	Dir string

	// SessionID is the session whose index receives the files.
	SessionID string

	// Debounce is the quiet period before a batch is ingested.
	Debounce time.Duration

	// Initial ingests the supported files already in Dir before watching.
	Initial bool
}

// ResultFunc receives the outcome of every ingested batch.
type ResultFunc func(paths []string, result *domain.IngestResult, err error)

// Watcher batches file events into append-mode ingestions.
type Watcher struct {
	ingest driving.IngestService
	cfg    Config
}

// New creates a new watcher.
func New(ingest driving.IngestService, cfg Config) (*Watcher, error) {
	if ingest == nil {
		return nil, errors.New("ingest service is required")
	}
	if cfg.SessionID == "" {
		return nil, domain.ErrMissingSession
	}
	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("watch directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, cfg.Dir)
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	return &Watcher{ingest: ingest, cfg: cfg}, nil
}

// Run watches the directory until ctx is cancelled. Pending files are
// ingested before returning.
func (w *Watcher) Run(ctx context.Context, onResult ResultFunc) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.cfg.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.cfg.Dir, err)
	}
	logger.Info("Watching %s for session %s", w.cfg.Dir, w.cfg.SessionID)

	if w.cfg.Initial {
		existing, err := w.existingFiles()
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			w.flush(ctx, existing, onResult)
		}
	}

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.cfg.Debounce)
	timer.Stop()

	flushPending := func(ctx context.Context) {
		if len(pending) == 0 {
			return
		}
		paths := make([]string, 0, len(pending))
		for p := range pending {
			paths = append(paths, p)
		}
		slices.Sort(paths)
		clear(pending)
		w.flush(ctx, paths, onResult)
	}

	for {
		select {
		case <-ctx.Done():
			flushPending(context.WithoutCancel(ctx))
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				flushPending(ctx)
				return nil
			}
			if path := w.handleFsEvent(event); path != "" {
				pending[path] = struct{}{}
				timer.Reset(w.cfg.Debounce)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				flushPending(ctx)
				return nil
			}
			logger.Warn("Watcher error: %v", err)

		case <-timer.C:
			flushPending(ctx)
		}
	}
}

// handleFsEvent returns the path to ingest for an event, or "" when the
// event does not add content: removals, renames away, chmods, directories,
// hidden and unsupported files.
func (w *Watcher) handleFsEvent(event fsnotify.Event) string {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return ""
	}
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return ""
	}
	if !normalisers.Supported(event.Name) {
		return ""
	}
	info, err := os.Stat(event.Name)
	if err != nil || info.IsDir() {
		return ""
	}
	return event.Name
}

// existingFiles lists the supported files already in the directory.
func (w *Watcher) existingFiles() ([]string, error) {
	entries, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", w.cfg.Dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !normalisers.Supported(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(w.cfg.Dir, e.Name()))
	}
	return paths, nil
}

func (w *Watcher) flush(ctx context.Context, paths []string, onResult ResultFunc) {
	logger.Debug("Ingesting %d changed files", len(paths))
	result, err := w.ingest.Ingest(ctx, paths, w.cfg.SessionID, false)
	if err != nil {
		logger.Warn("Ingesting %d files failed: %v", len(paths), err)
	}
	if onResult != nil {
		onResult(paths, result, err)
	}
}
