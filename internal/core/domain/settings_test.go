package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestAIProvider_IsValid tests all valid and invalid providers
func TestAIProvider_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		provider AIProvider
		expected bool
	}{
		{"ollama is valid", AIProviderOllama, true},
		{"openai is valid", AIProviderOpenAI, true},
		{"anthropic is valid", AIProviderAnthropic, true},
		{"local is valid", AIProviderLocal, true},
		{"empty is invalid", AIProvider(""), false},
		{"unknown is invalid", AIProvider("cohere"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.provider.IsValid())
		})
	}
}

// TestAIProvider_Traits tests API key and locality traits
func TestAIProvider_Traits(t *testing.T) {
	assert.True(t, AIProviderOpenAI.RequiresAPIKey())
	assert.True(t, AIProviderAnthropic.RequiresAPIKey())
	assert.False(t, AIProviderOllama.RequiresAPIKey())
	assert.False(t, AIProviderLocal.RequiresAPIKey())

	assert.True(t, AIProviderOllama.IsLocal())
	assert.True(t, AIProviderLocal.IsLocal())
	assert.False(t, AIProviderOpenAI.IsLocal())

	assert.True(t, AIProviderOllama.SupportsEmbeddings())
	assert.True(t, AIProviderLocal.SupportsEmbeddings())
	assert.True(t, AIProviderOpenAI.SupportsEmbeddings())
	assert.False(t, AIProviderAnthropic.SupportsEmbeddings())
	assert.False(t, AIProvider("x").SupportsEmbeddings())

	assert.Equal(t, "Unknown", AIProvider("x").Description())
	assert.Equal(t, "ollama", AIProviderOllama.String())
}

// TestEmbeddingSettings_IsConfigured tests provider/key combinations
func TestEmbeddingSettings_IsConfigured(t *testing.T) {
	assert.True(t, EmbeddingSettings{Provider: AIProviderOllama}.IsConfigured())
	assert.True(t, EmbeddingSettings{Provider: AIProviderLocal}.IsConfigured())
	assert.False(t, EmbeddingSettings{Provider: AIProviderOpenAI}.IsConfigured())
	assert.True(t, EmbeddingSettings{Provider: AIProviderOpenAI, APIKey: "sk"}.IsConfigured())
	assert.False(t, EmbeddingSettings{Provider: AIProviderAnthropic, APIKey: "sk"}.IsConfigured())
	assert.False(t, EmbeddingSettings{}.IsConfigured())
}

// TestLLMSettings_IsConfigured tests provider/key combinations
func TestLLMSettings_IsConfigured(t *testing.T) {
	assert.True(t, LLMSettings{Provider: AIProviderOllama}.IsConfigured())
	assert.False(t, LLMSettings{Provider: AIProviderLocal}.IsConfigured())
	assert.False(t, LLMSettings{Provider: AIProviderAnthropic}.IsConfigured())
	assert.True(t, LLMSettings{Provider: AIProviderAnthropic, APIKey: "k"}.IsConfigured())
}

// TestPolicies_IsValid tests the history enums
func TestPolicies_IsValid(t *testing.T) {
	assert.True(t, PartialDiscard.IsValid())
	assert.True(t, PartialKeep.IsValid())
	assert.False(t, PartialPolicy("maybe").IsValid())

	assert.True(t, HistoryBackendFile.IsValid())
	assert.True(t, HistoryBackendRedis.IsValid())
	assert.False(t, HistoryBackend("s3").IsValid())
}

// TestDefaultAppSettings tests the documented defaults
func TestDefaultAppSettings(t *testing.T) {
	s := DefaultAppSettings()

	assert.Equal(t, 500, s.RAG.ChunkSize)
	assert.Equal(t, 50, s.RAG.ChunkOverlap)
	assert.Equal(t, 3, s.RAG.RetrieverK)
	assert.Equal(t, 8, s.RAG.HistoryWindow)
	assert.InDelta(t, 0.1, s.RAG.Temperature, 1e-9)
	assert.Equal(t, 4096, s.RAG.NumCtx)
	assert.Equal(t, "llama3.2:3b", s.LLM.Model)
	assert.Equal(t, "10m", s.LLM.KeepAlive)
	assert.Equal(t, ":8000", s.Server.Addr)
	assert.Equal(t, HistoryBackendFile, s.History.Backend)
	assert.Equal(t, PartialDiscard, s.History.PartialPolicy)
	assert.False(t, s.Cache.Enabled)
}

// TestEmbeddingDimensions tests that every default model has known dimensions
func TestEmbeddingDimensions(t *testing.T) {
	dims := EmbeddingDimensions()
	for provider, model := range DefaultEmbeddingModels() {
		_, ok := dims[model]
		assert.True(t, ok, "missing dimensions for %s model %s", provider, model)
	}
}
