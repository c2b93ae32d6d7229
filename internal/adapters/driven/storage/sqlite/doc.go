// Package sqlite provides the SQLite-backed VectorStore.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation.
//
// # Layout
//
// Each session owns a directory under the store root holding a single
// index.db file. The file records the embedding dimensions and model in a
// meta table and every chunk, with its vector, in a chunks table.
//
// # Schema
//
// The schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Publishing
//
// Index files are never modified in place. Save writes a complete file next to
// the target and renames it over the old one; a session's first index is built
// in a temporary directory that is renamed into place. Readers therefore see
// either the previous index or the new one.
package sqlite
