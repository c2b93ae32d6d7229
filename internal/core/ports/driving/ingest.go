package driving

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// IngestService builds and maintains per-session vector indices.
type IngestService interface {
	// Ingest extracts, splits and embeds the given files into the session's index.
	// With reset the existing index is discarded first; otherwise new chunks are
	// appended. Expected failures (missing session id, no text extracted) are
	// reported in the result with a nil error.
	Ingest(ctx context.Context, paths []string, sessionID string, reset bool) (*domain.IngestResult, error)

	// Clear removes the session's index. Returns false if there was none.
	Clear(ctx context.Context, sessionID string) (bool, error)

	// IndexPath returns where the session's index lives, whether or not it exists.
	IndexPath(sessionID string) string

	// Status reports whether the session has an index.
	Status(sessionID string) bool
}
