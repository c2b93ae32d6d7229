// Package domain defines the core business entities for docqa.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Session: A conversation with its own knowledge base
//   - Turn: A single user or bot message in a session
//   - Document: Text extracted from one PDF page or one image
//   - Chunk: A retrievable, embedded span of a Document
//   - Fragment: One event of a streamed answer (text or sources)
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
