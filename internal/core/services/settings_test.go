package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/docqa/internal/core/domain"
)

// noEnv disables environment fallbacks in tests.
func noEnv(string) string { return "" }

func newTestSettingsService(validator *mockAIValidator) (*SettingsService, *memory.ConfigStore) {
	store := memory.NewConfigStore()
	var service *SettingsService
	if validator != nil {
		service = NewSettingsService(store, validator)
	} else {
		service = NewSettingsService(store, nil)
	}
	service.SetEnvLookup(noEnv)
	return service, store
}

// mockAIValidator records validation calls.
type mockAIValidator struct {
	embedErr error
	llmErr   error
	embedded *domain.EmbeddingSettings
	llm      *domain.LLMSettings
}

func (m *mockAIValidator) ValidateEmbedding(cfg *domain.EmbeddingSettings) error {
	m.embedded = cfg
	return m.embedErr
}

func (m *mockAIValidator) ValidateLLM(cfg *domain.LLMSettings) error {
	m.llm = cfg
	return m.llmErr
}

func TestSettingsService_Get_ReturnsDefaults(t *testing.T) {
	service, _ := newTestSettingsService(nil)

	settings, err := service.Get()
	require.NoError(t, err)

	assert.Equal(t, domain.DefaultAppSettings(), *settings)
}

func TestSettingsService_Get_ReturnsStoredValues(t *testing.T) {
	service, store := newTestSettingsService(nil)
	_ = store.Set("embedding.provider", "openai")
	_ = store.Set("embedding.model", "text-embedding-3-large")
	_ = store.Set("rag.chunk_size", 800)
	_ = store.Set("rag.chunk_overlap", 0)
	_ = store.Set("rag.temperature", 0.0)
	_ = store.Set("history.backend", "redis")
	_ = store.Set("history.partial_policy", "keep")
	_ = store.Set("cache.enabled", true)
	_ = store.Set("server.shutdown_timeout", "30s")

	settings, err := service.Get()
	require.NoError(t, err)

	assert.Equal(t, domain.AIProviderOpenAI, settings.Embedding.Provider)
	assert.Equal(t, "text-embedding-3-large", settings.Embedding.Model)
	assert.Equal(t, 800, settings.RAG.ChunkSize)
	assert.Equal(t, 0, settings.RAG.ChunkOverlap)
	assert.Equal(t, 0.0, settings.RAG.Temperature)
	assert.Equal(t, domain.HistoryBackendRedis, settings.History.Backend)
	assert.Equal(t, domain.PartialKeep, settings.History.PartialPolicy)
	assert.True(t, settings.Cache.Enabled)
	assert.Equal(t, 30*time.Second, settings.Server.ShutdownTimeout)
}

func TestSettingsService_Get_ModelFollowsProvider(t *testing.T) {
	service, store := newTestSettingsService(nil)
	_ = store.Set("llm.provider", "anthropic")

	settings, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultLLMModels()[domain.AIProviderAnthropic], settings.LLM.Model)
}

func TestSettingsService_Get_InvalidValuesReturnDefaults(t *testing.T) {
	service, store := newTestSettingsService(nil)
	_ = store.Set("embedding.provider", "invalid_provider")
	_ = store.Set("history.backend", "postgres")
	_ = store.Set("history.partial_policy", "maybe")
	_ = store.Set("server.shutdown_timeout", "soon")

	settings, err := service.Get()
	require.NoError(t, err)

	defaults := domain.DefaultAppSettings()
	assert.Equal(t, defaults.Embedding.Provider, settings.Embedding.Provider)
	assert.Equal(t, defaults.History.Backend, settings.History.Backend)
	assert.Equal(t, defaults.History.PartialPolicy, settings.History.PartialPolicy)
	assert.Equal(t, defaults.Server.ShutdownTimeout, settings.Server.ShutdownTimeout)
}

func TestSettingsService_Get_EnvironmentFallbacks(t *testing.T) {
	service, store := newTestSettingsService(nil)
	env := map[string]string{
		EnvOpenAIKey:  "sk-env",
		EnvOllamaHost: "http://gpu-box:11434",
		EnvRedisAddr:  "redis:6379",
	}
	service.SetEnvLookup(func(k string) string { return env[k] })
	_ = store.Set("embedding.provider", "openai")

	settings, err := service.Get()
	require.NoError(t, err)

	assert.Equal(t, "sk-env", settings.Embedding.APIKey)
	assert.Equal(t, "http://gpu-box:11434", settings.LLM.BaseURL)
	assert.Equal(t, "redis:6379", settings.History.RedisAddr)

	// A key in the config file wins over the environment.
	_ = store.Set("embedding.api_key", "sk-file")
	settings, err = service.Get()
	require.NoError(t, err)
	assert.Equal(t, "sk-file", settings.Embedding.APIKey)
}

func TestSettingsService_Save(t *testing.T) {
	service, _ := newTestSettingsService(nil)

	settings := domain.DefaultAppSettings()
	settings.Embedding = domain.EmbeddingSettings{
		Provider: domain.AIProviderOpenAI,
		Model:    "text-embedding-3-small",
		APIKey:   "sk-test-key",
	}
	settings.LLM = domain.LLMSettings{
		Provider:  domain.AIProviderAnthropic,
		Model:     "claude-3-5-sonnet-latest",
		APIKey:    "sk-ant-test",
		KeepAlive: "5m",
	}
	settings.RAG.RetrieverK = 5
	settings.Cache = domain.CacheSettings{Enabled: true, Size: 4}

	require.NoError(t, service.Save(&settings))

	retrieved, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, settings, *retrieved)
}

func TestSettingsService_SaveSkipsEnvironmentKeys(t *testing.T) {
	service, store := newTestSettingsService(nil)
	service.SetEnvLookup(func(k string) string {
		if k == EnvOpenAIKey {
			return "sk-env"
		}
		return ""
	})
	_ = store.Set("llm.provider", "openai")

	settings, err := service.Get()
	require.NoError(t, err)
	require.NoError(t, service.Save(settings))

	_, exists := store.Get("llm.api_key")
	assert.False(t, exists)
}

func TestSettingsService_SetEmbeddingProvider(t *testing.T) {
	service, _ := newTestSettingsService(nil)

	require.NoError(t, service.SetEmbeddingProvider(domain.AIProviderOpenAI, "", "sk-test"))

	settings, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOpenAI, settings.Embedding.Provider)
	assert.Equal(t, "text-embedding-3-small", settings.Embedding.Model)
	assert.Equal(t, "sk-test", settings.Embedding.APIKey)
	assert.Empty(t, settings.Embedding.BaseURL)

	require.NoError(t, service.SetEmbeddingProvider(domain.AIProviderOllama, "all-minilm", ""))
	settings, err = service.Get()
	require.NoError(t, err)
	assert.Equal(t, "all-minilm", settings.Embedding.Model)
	assert.Equal(t, "http://localhost:11434", settings.Embedding.BaseURL)
}

func TestSettingsService_SetEmbeddingProvider_Errors(t *testing.T) {
	service, _ := newTestSettingsService(nil)

	assert.Error(t, service.SetEmbeddingProvider("bogus", "", ""))
	assert.Error(t, service.SetEmbeddingProvider(domain.AIProviderAnthropic, "", "key"))
	assert.Error(t, service.SetEmbeddingProvider(domain.AIProviderOpenAI, "", ""))
}

func TestSettingsService_SetLLMProvider(t *testing.T) {
	service, _ := newTestSettingsService(nil)

	require.NoError(t, service.SetLLMProvider(domain.AIProviderAnthropic, "", "sk-ant"))

	settings, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderAnthropic, settings.LLM.Provider)
	assert.Equal(t, "claude-3-5-sonnet-latest", settings.LLM.Model)
	assert.Equal(t, "sk-ant", settings.LLM.APIKey)

	assert.Error(t, service.SetLLMProvider(domain.AIProviderLocal, "", ""))
	assert.Error(t, service.SetLLMProvider(domain.AIProviderOpenAI, "", ""))
}

func TestSettingsService_Validate(t *testing.T) {
	service, store := newTestSettingsService(nil)
	assert.NoError(t, service.Validate())

	_ = store.Set("llm.provider", "openai")
	_ = store.Set("rag.chunk_overlap", 600)
	_ = store.Set("history.backend", "redis")

	err := service.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, err.Error(), "chunk_overlap")
	assert.Contains(t, err.Error(), "redis_addr")
}

func TestSettingsService_ValidateProviders(t *testing.T) {
	validator := &mockAIValidator{llmErr: errors.New("unreachable")}
	service, _ := newTestSettingsService(validator)

	assert.NoError(t, service.ValidateEmbeddingConfig())
	require.NotNil(t, validator.embedded)
	assert.Equal(t, domain.AIProviderOllama, validator.embedded.Provider)

	assert.Error(t, service.ValidateLLMConfig())
}

func TestSettingsService_ValidateProvidersWithoutValidator(t *testing.T) {
	service, _ := newTestSettingsService(nil)

	assert.NoError(t, service.ValidateEmbeddingConfig())
	assert.NoError(t, service.ValidateLLMConfig())
}

func TestSettingsService_GetDefaults(t *testing.T) {
	service, _ := newTestSettingsService(nil)
	assert.Equal(t, domain.DefaultAppSettings(), service.GetDefaults())
}

func TestSettingsService_Separators(t *testing.T) {
	service, store := newTestSettingsService(nil)
	_ = store.Set("rag.separators", []any{"\n\n", "\n", " "})

	settings, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, []string{"\n\n", "\n", " "}, settings.RAG.Separators)

	settings.RAG.Separators = []string{"\n"}
	require.NoError(t, service.Save(settings))

	retrieved, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, []string{"\n"}, retrieved.RAG.Separators)
}
