package domain

import "fmt"

// Document is the text extracted from a single unit of an uploaded file.
// PDFs produce one Document per page; images produce at most one.
type Document struct {
	// Content is the extracted text.
	Content string

	// Source is the base filename the text came from.
	Source string

	// Page is the 0-indexed page number, nil for sources without pages.
	Page *int
}

// Chunk is a contiguous span of a Document used as the retrieval unit.
type Chunk struct {
	// ID is derived from the chunk's source, page, position and content,
	// so splitting the same text twice yields the same IDs.
	ID string

	// Content is the text content of this chunk.
	Content string

	// Source is the filename of the parent Document.
	Source string

	// Page is the 0-indexed page of the parent Document, if any.
	Page *int

	// Position is the ordinal position within the parent Document.
	Position int

	// Embedding is the vector representation for similarity search.
	Embedding []float32
}

// Label returns the display citation for the chunk.
func (c Chunk) Label() string {
	return SourceLabel(c.Source, c.Page)
}

// SourceLabel renders a citation label from chunk metadata.
// Stored pages are 0-indexed; displayed pages are 1-indexed.
func SourceLabel(source string, page *int) string {
	if source == "" {
		source = "Unknown"
	}
	if page == nil {
		return source
	}
	return fmt.Sprintf("%s (Page %d)", source, *page+1)
}

// SourceLabels returns the deduplicated labels of chunks in first-seen order.
func SourceLabels(chunks []Chunk) []string {
	labels := make([]string, 0, len(chunks))
	seen := make(map[string]struct{}, len(chunks))
	for i := range chunks {
		label := chunks[i].Label()
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		labels = append(labels, label)
	}
	return labels
}

// PageRef returns a pointer to p, for building Documents and Chunks.
func PageRef(p int) *int {
	return &p
}
