package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/docqa/internal/adapters/driven/ai"
	"github.com/custodia-labs/docqa/internal/adapters/driven/config/file"
	filestore "github.com/custodia-labs/docqa/internal/adapters/driven/storage/file"
	"github.com/custodia-labs/docqa/internal/adapters/driven/storage/memory"
	redisstore "github.com/custodia-labs/docqa/internal/adapters/driven/storage/redis"
	"github.com/custodia-labs/docqa/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/docqa/internal/adapters/driven/vectorstore"
	"github.com/custodia-labs/docqa/internal/adapters/driving/cli"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/core/services"
	"github.com/custodia-labs/docqa/internal/logger"
	"github.com/custodia-labs/docqa/internal/normalisers/ocr"
	"github.com/custodia-labs/docqa/internal/normalisers/pdf"
	"github.com/custodia-labs/docqa/internal/postprocessors"
	"github.com/custodia-labs/docqa/internal/postprocessors/chunker"
)

// dataDirName is the directory under the user's home holding all state.
const dataDirName = ".docqa"

// bootstrap builds every service for one invocation.
func bootstrap(opts cli.Options) (*cli.Services, func(), error) {
	var cleanups []func()
	release := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	fail := func(err error) (*cli.Services, func(), error) {
		release()
		return nil, nil, err
	}

	dataDir, err := resolveDataDir(opts.Ephemeral)
	if err != nil {
		return fail(err)
	}
	if opts.Ephemeral {
		cleanups = append(cleanups, func() { _ = os.RemoveAll(dataDir) })
	}
	logger.Debug("data directory: %s", dataDir)

	var configStore driven.ConfigStore
	if opts.Ephemeral {
		configStore = memory.NewConfigStore()
	} else {
		configStore, err = file.NewConfigStore(dataDir)
		if err != nil {
			return fail(fmt.Errorf("open config: %w", err))
		}
	}
	prompts, err := file.NewPromptStore(filepath.Join(dataDir, "prompts"))
	if err != nil {
		return fail(fmt.Errorf("open prompts: %w", err))
	}

	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())
	settings, err := settingsService.Get()
	if err != nil {
		return fail(fmt.Errorf("load settings: %w", err))
	}
	resolveStorage(&settings.Storage, dataDir)

	aiServices := ai.Init(settings, false)
	cleanups = append(cleanups, aiServices.Close)
	for _, w := range aiServices.Warnings {
		logger.Warn("%s", w)
	}

	var store driven.VectorStore
	store, err = sqlite.NewVectorStore(settings.Storage.IndexDir, sqlite.WithModel(settings.Embedding.Model))
	if err != nil {
		return fail(fmt.Errorf("open index storage: %w", err))
	}
	if settings.Cache.Enabled {
		store = vectorstore.NewCachedStore(store, settings.Cache.Size)
	}

	history, closeHistory, err := openHistory(settings, opts.Ephemeral)
	if err != nil {
		return fail(err)
	}
	if closeHistory != nil {
		cleanups = append(cleanups, closeHistory)
	}

	if err := os.MkdirAll(settings.Storage.UploadDir, 0o700); err != nil {
		return fail(fmt.Errorf("create upload directory: %w", err))
	}

	pipeline := postprocessors.NewPipeline(chunker.New(
		chunker.WithChunkSize(settings.RAG.ChunkSize),
		chunker.WithOverlap(settings.RAG.ChunkOverlap),
		chunker.WithSeparators(settings.RAG.Separators...),
	))

	locks := services.NewSessionLocks()
	ingest := services.NewIngestService(store, aiServices.EmbeddingService, pipeline, pdf.New(), ocr.New(), locks)
	answers := services.NewAnswerService(store, aiServices.EmbeddingService, aiServices.LLMService, prompts, locks,
		services.AnswerConfig{
			RetrieverK:  settings.RAG.RetrieverK,
			Temperature: settings.RAG.Temperature,
			NumCtx:      settings.RAG.NumCtx,
		})
	chat := services.NewChatService(answers, history, settings.RAG.HistoryWindow, settings.History.PartialPolicy)
	sessions := services.NewSessionService(history, store, locks)

	return &cli.Services{
		Ingest:   ingest,
		Chat:     chat,
		Sessions: sessions,
		Settings: settingsService,
		Config:   settings,
	}, release, nil
}

// resolveDataDir returns ~/.docqa, or a fresh temporary directory.
func resolveDataDir(ephemeral bool) (string, error) {
	if ephemeral {
		dir, err := os.MkdirTemp("", "docqa-")
		if err != nil {
			return "", fmt.Errorf("create temporary data directory: %w", err)
		}
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	dir := filepath.Join(home, dataDirName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	return dir, nil
}

// resolveStorage anchors relative storage directories at the data directory.
func resolveStorage(s *domain.StorageSettings, dataDir string) {
	for _, dir := range []*string{&s.IndexDir, &s.HistoryDir, &s.UploadDir} {
		switch {
		case *dir == "":
			continue
		case filepath.IsAbs(*dir):
			*dir = filepath.Clean(*dir)
		default:
			*dir = filepath.Join(dataDir, *dir)
		}
	}
	defaults := domain.DefaultAppSettings().Storage
	if s.IndexDir == "" {
		s.IndexDir = filepath.Join(dataDir, defaults.IndexDir)
	}
	if s.HistoryDir == "" {
		s.HistoryDir = filepath.Join(dataDir, defaults.HistoryDir)
	}
	if s.UploadDir == "" {
		s.UploadDir = filepath.Join(dataDir, defaults.UploadDir)
	}
}

// openHistory selects the history backend. Ephemeral runs keep history in
// memory unless Redis is configured explicitly.
func openHistory(settings *domain.AppSettings, ephemeral bool) (driven.HistoryStore, func(), error) {
	switch {
	case settings.History.Backend == domain.HistoryBackendRedis:
		store, err := redisstore.NewHistoryStore(context.Background(), redisstore.Config{
			Addr: settings.History.RedisAddr,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open history: %w", err)
		}
		return store, func() { _ = store.Close() }, nil

	case ephemeral:
		return memory.NewHistoryStore(), nil, nil

	default:
		store, err := filestore.NewHistoryStore(settings.Storage.HistoryDir)
		if err != nil {
			return nil, nil, fmt.Errorf("open history: %w", err)
		}
		return store, nil, nil
	}
}
