package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SourcesMarker introduces the citation payload on the wire.
const SourcesMarker = "__SOURCES__:"

// sourcesPrefix is everything written before the JSON payload.
const sourcesPrefix = "\n\n" + SourcesMarker

// NoDocumentsMessage is the single fragment streamed for a session without an index.
const NoDocumentsMessage = "No documents found for this chat. Please upload files to start."

// FragmentKind distinguishes prose from the citation event.
type FragmentKind int

const (
	// FragmentText carries generated text.
	FragmentText FragmentKind = iota

	// FragmentSources carries the deduplicated citation labels.
	// It is always the last fragment of a stream when present.
	FragmentSources
)

// Fragment is one event of a streamed answer.
type Fragment struct {
	Kind    FragmentKind
	Text    string
	Sources []string
}

// TextFragment wraps generated text.
func TextFragment(text string) Fragment {
	return Fragment{Kind: FragmentText, Text: text}
}

// SourcesFragment wraps citation labels.
func SourcesFragment(labels []string) Fragment {
	if labels == nil {
		labels = []string{}
	}
	return Fragment{Kind: FragmentSources, Sources: labels}
}

// Wire renders the fragment in the plain-text streaming format.
func (f Fragment) Wire() string {
	if f.Kind != FragmentSources {
		return f.Text
	}
	sources := f.Sources
	if sources == nil {
		sources = []string{}
	}
	//nolint:errchkjson // a []string always marshals.
	data, _ := json.Marshal(sources)
	return sourcesPrefix + string(data)
}

// ParseSources decodes a citation payload.
func ParseSources(payload string) ([]string, error) {
	var sources []string
	if err := json.Unmarshal([]byte(strings.TrimSpace(payload)), &sources); err != nil {
		return nil, fmt.Errorf("parse sources: %w", err)
	}
	return sources, nil
}

// SentinelScanner splits a raw wire stream into prose and citations.
// The marker may arrive split across pieces; text that could be the start
// of the marker is held back until it can be decided.
type SentinelScanner struct {
	pending string
	payload strings.Builder
	prose   strings.Builder
	found   bool
}

// Write consumes the next piece of the stream and returns the prose that is
// safe to display now.
func (s *SentinelScanner) Write(piece string) string {
	if s.found {
		s.payload.WriteString(piece)
		return ""
	}

	data := s.pending + piece
	s.pending = ""

	if i := strings.Index(data, SourcesMarker); i >= 0 {
		s.found = true
		s.payload.WriteString(data[i+len(SourcesMarker):])
		text := strings.TrimSuffix(data[:i], "\n\n")
		s.prose.WriteString(text)
		return text
	}

	keep := partialPrefixLen(data, sourcesPrefix)
	text := data[:len(data)-keep]
	s.pending = data[len(data)-keep:]
	s.prose.WriteString(text)
	return text
}

// Close flushes held-back text and decodes the payload, if any.
// A malformed payload returns an error alongside the remaining text.
func (s *SentinelScanner) Close() (string, []string, error) {
	if !s.found {
		rest := s.pending
		s.pending = ""
		s.prose.WriteString(rest)
		return rest, nil, nil
	}
	sources, err := ParseSources(s.payload.String())
	return "", sources, err
}

// Found reports whether the marker has been seen.
func (s *SentinelScanner) Found() bool {
	return s.found
}

// Prose returns all text emitted so far.
func (s *SentinelScanner) Prose() string {
	return s.prose.String()
}

// partialPrefixLen returns the length of the longest suffix of data that is
// a proper prefix of marker.
func partialPrefixLen(data, marker string) int {
	limit := len(marker) - 1
	if limit > len(data) {
		limit = len(data)
	}
	for n := limit; n > 0; n-- {
		if strings.HasPrefix(marker, data[len(data)-n:]) {
			return n
		}
	}
	return 0
}

// FragmentWriter receives the fragments of an answer as they are produced.
type FragmentWriter interface {
	WriteFragment(f Fragment) error
}

// FragmentWriterFunc adapts a function to FragmentWriter.
type FragmentWriterFunc func(f Fragment) error

// WriteFragment calls fn(f).
func (fn FragmentWriterFunc) WriteFragment(f Fragment) error {
	return fn(f)
}

// AskResult summarises a completed or interrupted answer.
type AskResult struct {
	// Answer is the concatenated prose of all text fragments.
	Answer string

	// Sources are the citation labels, nil when no sources fragment arrived.
	Sources []string

	// Complete is true when the stream ended without error.
	Complete bool

	// Persisted is true when a bot turn was written to history.
	Persisted bool
}
