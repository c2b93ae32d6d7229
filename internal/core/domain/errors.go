package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown provider or file type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// Answer generation is disabled without it.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Neither ingestion nor retrieval can run without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// Ingestion Errors.

	// ErrMissingSession indicates an operation was called without a session id.
	ErrMissingSession = errors.New("missing session id")

	// ErrNoTextExtracted indicates a batch of files produced no documents.
	ErrNoTextExtracted = errors.New("no text extracted")

	// ErrExtractionFailed indicates a single file could not be read.
	// The ingestion batch recovers from this and continues.
	ErrExtractionFailed = errors.New("extraction failed")

	// Index Errors.

	// ErrIndexNotFound indicates a session has no persisted vector index.
	ErrIndexNotFound = errors.New("index not found")

	// ErrIndexCorrupt indicates a persisted vector index could not be read.
	// It is surfaced to the caller and never repaired automatically.
	ErrIndexCorrupt = errors.New("index corrupt")

	// ErrDimensionMismatch indicates a vector does not match the index dimensions.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// Generation Errors.

	// ErrModelStream indicates the model stream failed mid-generation.
	ErrModelStream = errors.New("model stream failed")
)
