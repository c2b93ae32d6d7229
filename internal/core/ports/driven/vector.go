package driven

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// VectorIndex is an in-memory similarity index over a session's chunks.
type VectorIndex interface {
	// Add appends embedded chunks. Every embedding must match Dimensions.
	Add(chunks []domain.Chunk) error

	// Search returns the k chunks most similar to the query, best first.
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)

	// Chunks returns the indexed chunks in insertion order.
	Chunks() []domain.Chunk

	// Len returns the number of indexed chunks.
	Len() int

	// Dimensions returns the vector size, 0 for an empty new index.
	Dimensions() int

	// Clone returns an independent copy that can be modified safely.
	Clone() VectorIndex
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// Chunk is the matched chunk.
	Chunk domain.Chunk

	// Similarity is the cosine similarity score.
	Similarity float64
}

// VectorStore persists one VectorIndex per session.
// A session's index location either does not exist or holds a complete,
// loadable index: Save publishes atomically.
type VectorStore interface {
	// Path returns where the session's index lives.
	Path(sessionID string) string

	// Exists reports whether a persisted index exists.
	Exists(sessionID string) bool

	// New returns an empty index.
	New() VectorIndex

	// Load reads a persisted index.
	// Returns domain.ErrIndexNotFound or domain.ErrIndexCorrupt.
	Load(ctx context.Context, sessionID string) (VectorIndex, error)

	// Save atomically replaces the session's persisted index.
	Save(ctx context.Context, sessionID string, index VectorIndex) error

	// Remove deletes the persisted index. Returns false if none existed.
	Remove(ctx context.Context, sessionID string) (bool, error)
}
