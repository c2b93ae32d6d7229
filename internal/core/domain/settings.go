package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"

	// AIProviderLocal is the built-in feature-hashing embedder.
	// It needs no server and is deterministic, but has no semantic understanding.
	AIProviderLocal AIProvider = "local"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic, AIProviderLocal:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// SupportsEmbeddings reports whether the provider exposes an embeddings API.
func (p AIProvider) SupportsEmbeddings() bool {
	return p.IsValid() && p != AIProviderAnthropic
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama || p == AIProviderLocal
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	case AIProviderLocal:
		return "Built-in hashing embedder"
	default:
		return unknownDescription
	}
}

// AllEmbeddingProviders returns the providers that can embed text.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{AIProviderOllama, AIProviderOpenAI, AIProviderLocal}
}

// AllLLMProviders returns the providers that can generate answers.
func AllLLMProviders() []AIProvider {
	return []AIProvider{AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// RequestsPerSecond throttles calls to remote providers. Zero disables throttling.
	RequestsPerSecond float64
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.SupportsEmbeddings() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string

	// KeepAlive is how long Ollama keeps the model loaded between requests.
	KeepAlive string
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() || l.Provider == AIProviderLocal {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// RAGSettings holds retrieval and generation parameters.
type RAGSettings struct {
	// ChunkSize is the target chunk length in characters.
	ChunkSize int

	// ChunkOverlap is the number of characters shared by consecutive chunks.
	ChunkOverlap int

	// RetrieverK is the number of chunks retrieved per question.
	RetrieverK int

	// HistoryWindow is the number of recent turns rendered into the prompt.
	HistoryWindow int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64

	// NumCtx is the model context window requested from local providers.
	NumCtx int

	// Separators overrides the splitter's separator hierarchy when set.
	Separators []string
}

// StorageSettings holds on-disk locations.
type StorageSettings struct {
	// IndexDir holds one vector index directory per session.
	IndexDir string

	// HistoryDir holds one JSON history file per session (file backend).
	HistoryDir string

	// UploadDir holds uploaded files until they are ingested.
	UploadDir string
}

// HistoryBackend selects the history store implementation.
type HistoryBackend string

// Available history backends.
const (
	HistoryBackendFile  HistoryBackend = "file"
	HistoryBackendRedis HistoryBackend = "redis"
)

// IsValid returns true if the backend is recognised.
func (b HistoryBackend) IsValid() bool {
	return b == HistoryBackendFile || b == HistoryBackendRedis
}

// PartialPolicy decides what happens to an answer that did not complete.
type PartialPolicy string

// Available partial policies.
const (
	// PartialDiscard persists no bot turn for an aborted or failed answer.
	PartialDiscard PartialPolicy = "discard"

	// PartialKeep persists whatever text was generated, without sources.
	PartialKeep PartialPolicy = "keep"
)

// IsValid returns true if the policy is recognised.
func (p PartialPolicy) IsValid() bool {
	return p == PartialDiscard || p == PartialKeep
}

// HistorySettings holds conversation history configuration.
type HistorySettings struct {
	Backend       HistoryBackend
	RedisAddr     string
	PartialPolicy PartialPolicy
}

// CacheSettings configures the loaded-index cache.
type CacheSettings struct {
	// Enabled keeps recently loaded indices in memory.
	// When disabled every question reloads its index from disk.
	Enabled bool

	// Size is the maximum number of cached session indices.
	Size int
}

// ServerSettings holds HTTP server configuration.
type ServerSettings struct {
	Addr            string
	MaxUploadBytes  int64
	ShutdownTimeout time.Duration
}

// AppSettings holds all application settings.
type AppSettings struct {
	Embedding EmbeddingSettings
	LLM       LLMSettings
	RAG       RAGSettings
	Storage   StorageSettings
	History   HistorySettings
	Cache     CacheSettings
	Server    ServerSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// Storage directories are relative to the data directory chosen at startup.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{
			Provider: AIProviderOllama,
			Model:    DefaultEmbeddingModels()[AIProviderOllama],
		},
		LLM: LLMSettings{
			Provider:  AIProviderOllama,
			Model:     DefaultLLMModels()[AIProviderOllama],
			KeepAlive: "10m",
		},
		RAG: RAGSettings{
			ChunkSize:     500,
			ChunkOverlap:  50,
			RetrieverK:    3,
			HistoryWindow: 8,
			Temperature:   0.1,
			NumCtx:        4096,
		},
		Storage: StorageSettings{
			IndexDir:   "storage",
			HistoryDir: "history",
			UploadDir:  "uploads",
		},
		History: HistorySettings{
			Backend:       HistoryBackendFile,
			PartialPolicy: PartialDiscard,
		},
		Cache: CacheSettings{
			Enabled: false,
			Size:    16,
		},
		Server: ServerSettings{
			Addr:            ":8000",
			MaxUploadBytes:  64 << 20,
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
		AIProviderLocal:  "hash-384",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2:3b",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
		// Built-in
		"hash-384": 384,
	}
}
