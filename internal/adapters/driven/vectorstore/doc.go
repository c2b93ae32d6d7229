// Package vectorstore provides the in-memory similarity index used by every
// session, and a caching decorator for VectorStore implementations.
//
// Search is exact: every query is scored against every chunk with cosine
// similarity. Per-session corpora are small, so an approximate index would
// add build cost without a measurable gain.
package vectorstore
