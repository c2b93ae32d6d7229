package services

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyIndexDir        = "storage.index_dir"
	keyHistoryDir      = "storage.history_dir"
	keyUploadDir       = "storage.upload_dir"
	keyChunkSize       = "rag.chunk_size"
	keyChunkOverlap    = "rag.chunk_overlap"
	keyRetrieverK      = "rag.retriever_k"
	keyHistoryWindow   = "rag.history_window"
	keyTemperature     = "rag.temperature"
	keyNumCtx          = "rag.num_ctx"
	keySeparators      = "rag.separators"
	keyEmbedProvider   = "embedding.provider"
	keyEmbedModel      = "embedding.model"
	keyEmbedBaseURL    = "embedding.base_url"
	keyEmbedAPIKey     = "embedding.api_key"
	keyEmbedRPS        = "embedding.requests_per_second"
	keyLLMProvider     = "llm.provider"
	keyLLMModel        = "llm.model"
	keyLLMBaseURL      = "llm.base_url"
	keyLLMAPIKey       = "llm.api_key"
	keyLLMKeepAlive    = "llm.keep_alive"
	keyHistoryBackend  = "history.backend"
	keyRedisAddr       = "history.redis_addr"
	keyPartialPolicy   = "history.partial_policy"
	keyCacheEnabled    = "cache.enabled"
	keyCacheSize       = "cache.size"
	keyServerAddr      = "server.addr"
	keyMaxUploadBytes  = "server.max_upload_bytes"
	keyShutdownTimeout = "server.shutdown_timeout"
)

// Environment variables that fill settings left empty in the config file.
//
//nolint:gosec // G101: These are variable names, not actual credentials.
const (
	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvAnthropicKey = "ANTHROPIC_API_KEY"
	EnvOllamaHost   = "OLLAMA_HOST"
	EnvRedisAddr    = "DOCQA_REDIS_ADDR"
)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	getenv      func(string) string
}

// NewSettingsService creates a new settings service.
// The aiValidator parameter is optional (can be nil).
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		getenv:      os.Getenv,
	}
}

// SetEnvLookup replaces the environment lookup used for fallbacks.
func (s *SettingsService) SetEnvLookup(getenv func(string) string) {
	s.getenv = getenv
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider:          s.getProvider(keyEmbedProvider, defaults.Embedding.Provider),
			Model:             s.configStore.GetString(keyEmbedModel),
			BaseURL:           s.configStore.GetString(keyEmbedBaseURL), // No default - empty is valid for cloud providers
			APIKey:            s.configStore.GetString(keyEmbedAPIKey),
			RequestsPerSecond: s.getFloat(keyEmbedRPS, defaults.Embedding.RequestsPerSecond),
		},
		LLM: domain.LLMSettings{
			Provider:  s.getProvider(keyLLMProvider, defaults.LLM.Provider),
			Model:     s.configStore.GetString(keyLLMModel),
			BaseURL:   s.configStore.GetString(keyLLMBaseURL),
			APIKey:    s.configStore.GetString(keyLLMAPIKey),
			KeepAlive: s.getString(keyLLMKeepAlive, defaults.LLM.KeepAlive),
		},
		RAG: domain.RAGSettings{
			ChunkSize:     s.getInt(keyChunkSize, defaults.RAG.ChunkSize),
			ChunkOverlap:  s.getInt(keyChunkOverlap, defaults.RAG.ChunkOverlap),
			RetrieverK:    s.getInt(keyRetrieverK, defaults.RAG.RetrieverK),
			HistoryWindow: s.getInt(keyHistoryWindow, defaults.RAG.HistoryWindow),
			Temperature:   s.getFloat(keyTemperature, defaults.RAG.Temperature),
			NumCtx:        s.getInt(keyNumCtx, defaults.RAG.NumCtx),
			Separators:    s.configStore.GetStringSlice(keySeparators),
		},
		Storage: domain.StorageSettings{
			IndexDir:   s.getString(keyIndexDir, defaults.Storage.IndexDir),
			HistoryDir: s.getString(keyHistoryDir, defaults.Storage.HistoryDir),
			UploadDir:  s.getString(keyUploadDir, defaults.Storage.UploadDir),
		},
		History: domain.HistorySettings{
			Backend:       s.getHistoryBackend(defaults.History.Backend),
			RedisAddr:     s.configStore.GetString(keyRedisAddr),
			PartialPolicy: s.getPartialPolicy(defaults.History.PartialPolicy),
		},
		Cache: domain.CacheSettings{
			Enabled: s.getBool(keyCacheEnabled, defaults.Cache.Enabled),
			Size:    s.getInt(keyCacheSize, defaults.Cache.Size),
		},
		Server: domain.ServerSettings{
			Addr:            s.getString(keyServerAddr, defaults.Server.Addr),
			MaxUploadBytes:  int64(s.getInt(keyMaxUploadBytes, int(defaults.Server.MaxUploadBytes))),
			ShutdownTimeout: s.getDuration(keyShutdownTimeout, defaults.Server.ShutdownTimeout),
		},
	}

	// Models default per provider, so switching provider never keeps a foreign model.
	if settings.Embedding.Model == "" {
		settings.Embedding.Model = domain.DefaultEmbeddingModels()[settings.Embedding.Provider]
	}
	if settings.LLM.Model == "" {
		settings.LLM.Model = domain.DefaultLLMModels()[settings.LLM.Provider]
	}

	s.applyEnv(settings)
	return settings, nil
}

// applyEnv fills empty credentials and endpoints from the environment.
func (s *SettingsService) applyEnv(settings *domain.AppSettings) {
	if s.getenv == nil {
		return
	}
	keyFor := func(p domain.AIProvider) string {
		switch p {
		case domain.AIProviderOpenAI:
			return s.getenv(EnvOpenAIKey)
		case domain.AIProviderAnthropic:
			return s.getenv(EnvAnthropicKey)
		default:
			return ""
		}
	}
	hostFor := func(p domain.AIProvider) string {
		if p == domain.AIProviderOllama {
			return s.getenv(EnvOllamaHost)
		}
		return ""
	}

	if settings.Embedding.APIKey == "" {
		settings.Embedding.APIKey = keyFor(settings.Embedding.Provider)
	}
	if settings.Embedding.BaseURL == "" {
		settings.Embedding.BaseURL = hostFor(settings.Embedding.Provider)
	}
	if settings.LLM.APIKey == "" {
		settings.LLM.APIKey = keyFor(settings.LLM.Provider)
	}
	if settings.LLM.BaseURL == "" {
		settings.LLM.BaseURL = hostFor(settings.LLM.Provider)
	}
	if settings.History.RedisAddr == "" {
		settings.History.RedisAddr = s.getenv(EnvRedisAddr)
	}
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyIndexDir, settings.Storage.IndexDir},
		{keyHistoryDir, settings.Storage.HistoryDir},
		{keyUploadDir, settings.Storage.UploadDir},
		{keyChunkSize, settings.RAG.ChunkSize},
		{keyChunkOverlap, settings.RAG.ChunkOverlap},
		{keyRetrieverK, settings.RAG.RetrieverK},
		{keyHistoryWindow, settings.RAG.HistoryWindow},
		{keyTemperature, settings.RAG.Temperature},
		{keyNumCtx, settings.RAG.NumCtx},
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedRPS, settings.Embedding.RequestsPerSecond},
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyLLMKeepAlive, settings.LLM.KeepAlive},
		{keyHistoryBackend, string(settings.History.Backend)},
		{keyRedisAddr, settings.History.RedisAddr},
		{keyPartialPolicy, string(settings.History.PartialPolicy)},
		{keyCacheEnabled, settings.Cache.Enabled},
		{keyCacheSize, settings.Cache.Size},
		{keyServerAddr, settings.Server.Addr},
		{keyMaxUploadBytes, int(settings.Server.MaxUploadBytes)},
		{keyShutdownTimeout, settings.Server.ShutdownTimeout.String()},
	}
	if len(settings.RAG.Separators) > 0 {
		values = append(values, struct {
			key   string
			value any
		}{keySeparators, settings.RAG.Separators})
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	// API keys are only written when set, so environment-provided keys stay out of the file.
	if settings.Embedding.APIKey != "" && settings.Embedding.APIKey != s.envKey(settings.Embedding.Provider) {
		if err := s.configStore.Set(keyEmbedAPIKey, settings.Embedding.APIKey); err != nil {
			return fmt.Errorf("save embedding api_key: %w", err)
		}
	}
	if settings.LLM.APIKey != "" && settings.LLM.APIKey != s.envKey(settings.LLM.Provider) {
		if err := s.configStore.Set(keyLLMAPIKey, settings.LLM.APIKey); err != nil {
			return fmt.Errorf("save llm api_key: %w", err)
		}
	}

	return nil
}

func (s *SettingsService) envKey(p domain.AIProvider) string {
	if s.getenv == nil {
		return ""
	}
	switch p {
	case domain.AIProviderOpenAI:
		return s.getenv(EnvOpenAIKey)
	case domain.AIProviderAnthropic:
		return s.getenv(EnvAnthropicKey)
	default:
		return ""
	}
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid embedding provider: %s", provider)
	}
	if provider == domain.AIProviderAnthropic {
		return fmt.Errorf("provider %s does not support embeddings", provider)
	}

	// Validate API key if required
	if provider.RequiresAPIKey() && apiKey == "" && s.envKey(provider) == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.Embedding.Model = model
	} else {
		settings.Embedding.Model = domain.DefaultEmbeddingModels()[provider]
	}

	// Set base URL based on provider type
	if provider == domain.AIProviderOllama {
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = "http://localhost:11434"
		}
	} else {
		// Cloud providers and the built-in embedder don't need a custom base URL
		settings.Embedding.BaseURL = ""
	}

	settings.Embedding.APIKey = apiKey

	return s.Save(settings)
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() || provider == domain.AIProviderLocal {
		return fmt.Errorf("invalid LLM provider: %s", provider)
	}

	// Validate API key if required
	if provider.RequiresAPIKey() && apiKey == "" && s.envKey(provider) == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.LLM.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.LLM.Model = model
	} else {
		settings.LLM.Model = domain.DefaultLLMModels()[provider]
	}

	// Set base URL based on provider type
	if provider.IsLocal() {
		if settings.LLM.BaseURL == "" {
			settings.LLM.BaseURL = "http://localhost:11434"
		}
	} else {
		settings.LLM.BaseURL = ""
	}

	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// Validate checks that the current settings can run ingestion and answering.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	var errs []error
	if !settings.Embedding.IsConfigured() {
		errs = append(errs, fmt.Errorf("%w: provider %q is not configured",
			domain.ErrEmbeddingUnavailable, settings.Embedding.Provider))
	}
	if !settings.LLM.IsConfigured() {
		errs = append(errs, fmt.Errorf("%w: provider %q is not configured",
			domain.ErrLLMUnavailable, settings.LLM.Provider))
	}

	rag := settings.RAG
	if rag.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: rag.chunk_size must be positive", domain.ErrInvalidInput))
	}
	if rag.ChunkOverlap < 0 || rag.ChunkOverlap >= rag.ChunkSize {
		errs = append(errs, fmt.Errorf("%w: rag.chunk_overlap must be in [0, chunk_size)", domain.ErrInvalidInput))
	}
	if rag.RetrieverK <= 0 {
		errs = append(errs, fmt.Errorf("%w: rag.retriever_k must be positive", domain.ErrInvalidInput))
	}

	if settings.History.Backend == domain.HistoryBackendRedis && settings.History.RedisAddr == "" {
		errs = append(errs, fmt.Errorf("%w: history.redis_addr is required for the redis backend",
			domain.ErrInvalidInput))
	}

	return errors.Join(errs...)
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// Helper methods for reading config with defaults.
// Numeric and boolean keys fall back only when absent, since zero is meaningful.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getHistoryBackend(defaultVal domain.HistoryBackend) domain.HistoryBackend {
	backend := domain.HistoryBackend(s.configStore.GetString(keyHistoryBackend))
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}

func (s *SettingsService) getPartialPolicy(defaultVal domain.PartialPolicy) domain.PartialPolicy {
	policy := domain.PartialPolicy(s.configStore.GetString(keyPartialPolicy))
	if !policy.IsValid() {
		return defaultVal
	}
	return policy
}
