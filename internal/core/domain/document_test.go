package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSourceLabel tests citation rendering for paged and unpaged sources
func TestSourceLabel(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		page     *int
		expected string
	}{
		{"first page is displayed as page 1", "report.pdf", PageRef(0), "report.pdf (Page 1)"},
		{"later page", "report.pdf", PageRef(4), "report.pdf (Page 5)"},
		{"image has no page", "scan.png", nil, "scan.png"},
		{"missing source", "", nil, "Unknown"},
		{"missing source with page", "", PageRef(2), "Unknown (Page 3)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SourceLabel(tt.source, tt.page))
		})
	}
}

// TestChunk_Label tests that a chunk labels itself from its metadata
func TestChunk_Label(t *testing.T) {
	c := Chunk{Content: "text", Source: "a.pdf", Page: PageRef(1)}
	assert.Equal(t, "a.pdf (Page 2)", c.Label())
}

// TestSourceLabels_Dedup tests first-seen order and exact-label dedup
func TestSourceLabels_Dedup(t *testing.T) {
	chunks := []Chunk{
		{Source: "a.pdf", Page: PageRef(0)},
		{Source: "a.pdf", Page: PageRef(0)},
		{Source: "scan.png"},
		{Source: "a.pdf", Page: PageRef(1)},
		{Source: "scan.png"},
	}

	labels := SourceLabels(chunks)

	assert.Equal(t, []string{"a.pdf (Page 1)", "scan.png", "a.pdf (Page 2)"}, labels)
}

// TestSourceLabels_Empty tests that no chunks yield an empty, non-nil list
func TestSourceLabels_Empty(t *testing.T) {
	labels := SourceLabels(nil)
	require.NotNil(t, labels)
	assert.Empty(t, labels)
}

// TestPageRef tests that each call returns an independent pointer
func TestPageRef(t *testing.T) {
	a := PageRef(1)
	b := PageRef(1)
	require.NotNil(t, a)
	assert.Equal(t, *a, *b)
	assert.NotSame(t, a, b)
}
