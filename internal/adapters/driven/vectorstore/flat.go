package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure FlatIndex implements the interface.
var _ driven.VectorIndex = (*FlatIndex)(nil)

// FlatIndex is an exact cosine-similarity index.
// It is not safe for concurrent mutation; callers clone before modifying
// an index that may be shared.
type FlatIndex struct {
	dims   int
	chunks []domain.Chunk
	norms  []float64
}

// NewFlatIndex creates an empty index. The first Add fixes the dimensions.
func NewFlatIndex() *FlatIndex {
	return &FlatIndex{}
}

// NewFlatIndexWithDimensions creates an empty index that only accepts
// vectors of the given size.
func NewFlatIndexWithDimensions(dims int) *FlatIndex {
	return &FlatIndex{dims: dims}
}

// Add appends embedded chunks.
func (f *FlatIndex) Add(chunks []domain.Chunk) error {
	dims := f.dims
	for i := range chunks {
		n := len(chunks[i].Embedding)
		if n == 0 {
			return fmt.Errorf("chunk %s: %w: missing embedding", chunks[i].ID, domain.ErrDimensionMismatch)
		}
		if dims == 0 {
			dims = n
		}
		if n != dims {
			return fmt.Errorf("chunk %s: %w: got %d, want %d", chunks[i].ID, domain.ErrDimensionMismatch, n, dims)
		}
	}

	f.dims = dims
	for i := range chunks {
		f.chunks = append(f.chunks, chunks[i])
		f.norms = append(f.norms, norm(chunks[i].Embedding))
	}
	return nil
}

// Search returns the k most similar chunks, best first.
// Ties keep insertion order.
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if k <= 0 || len(f.chunks) == 0 {
		return nil, nil
	}
	if len(query) != f.dims {
		return nil, fmt.Errorf("query: %w: got %d, want %d", domain.ErrDimensionMismatch, len(query), f.dims)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	qn := norm(query)
	hits := make([]driven.VectorHit, len(f.chunks))
	for i := range f.chunks {
		hits[i] = driven.VectorHit{
			Chunk:      f.chunks[i],
			Similarity: cosine(query, qn, f.chunks[i].Embedding, f.norms[i]),
		}
	}

	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Similarity > hits[b].Similarity
	})

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// Chunks returns the indexed chunks in insertion order.
func (f *FlatIndex) Chunks() []domain.Chunk {
	out := make([]domain.Chunk, len(f.chunks))
	copy(out, f.chunks)
	return out
}

// Len returns the number of indexed chunks.
func (f *FlatIndex) Len() int {
	return len(f.chunks)
}

// Dimensions returns the vector size.
func (f *FlatIndex) Dimensions() int {
	return f.dims
}

// Clone returns an independent copy.
// Embedding slices are shared; they are never written after Add.
func (f *FlatIndex) Clone() driven.VectorIndex {
	c := &FlatIndex{
		dims:   f.dims,
		chunks: make([]domain.Chunk, len(f.chunks)),
		norms:  make([]float64, len(f.norms)),
	}
	copy(c.chunks, f.chunks)
	copy(c.norms, f.norms)
	return c
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a []float32, an float64, b []float32, bn float64) float64 {
	if an == 0 || bn == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (an * bn)
}
