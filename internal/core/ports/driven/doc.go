// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - EmbeddingService: Turns chunks and questions into vectors
//   - VectorStore: Per-session index persistence (SQLite)
//   - PDFExtractor, OCRExtractor: Read text out of uploaded files
//   - PostProcessorPipeline: Splits documents into chunks
//   - HistoryStore: Per-session conversation history (file or Redis)
//   - ConfigStore: Application configuration
//   - PromptStore: Answer prompt templates
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - LLMService: Answer generation. Without it, ingestion still works but Ask fails
//     with ErrLLMUnavailable.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
