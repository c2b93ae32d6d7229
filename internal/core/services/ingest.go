package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/logger"
	"github.com/custodia-labs/docqa/internal/normalisers"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// Messages reported in ingestion results.
const (
	msgMissingSession  = "missing session id"
	msgNoTextExtracted = "No text extracted."
)

// IngestService turns uploaded files into a session's vector index.
type IngestService struct {
	store    driven.VectorStore
	embedder driven.EmbeddingService
	pipeline driven.PostProcessorPipeline
	pdf      driven.PDFExtractor
	ocr      driven.OCRExtractor
	locks    *SessionLocks
}

// NewIngestService creates a new ingestion service.
// The ocr extractor is optional; without it images fail extraction and are skipped.
func NewIngestService(
	store driven.VectorStore,
	embedder driven.EmbeddingService,
	pipeline driven.PostProcessorPipeline,
	pdf driven.PDFExtractor,
	ocr driven.OCRExtractor,
	locks *SessionLocks,
) *IngestService {
	if locks == nil {
		locks = NewSessionLocks()
	}
	return &IngestService{
		store:    store,
		embedder: embedder,
		pipeline: pipeline,
		pdf:      pdf,
		ocr:      ocr,
		locks:    locks,
	}
}

// Ingest extracts, splits and embeds files into the session's index.
func (s *IngestService) Ingest(
	ctx context.Context, paths []string, sessionID string, reset bool,
) (*domain.IngestResult, error) {
	logger.Section("Ingestion")
	defer logger.Timed("ingest")()

	if err := domain.ValidateSessionID(sessionID); err != nil {
		if errors.Is(err, domain.ErrMissingSession) {
			return domain.IngestFailure(err, msgMissingSession), nil
		}
		return nil, err
	}
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	action := domain.IngestActionAppend
	if reset {
		action = domain.IngestActionReset
		removed, err := s.store.Remove(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("reset index: %w", err)
		}
		logger.Debug("Reset session %s (index existed: %t)", sessionID, removed)
	}

	docs := s.extractAll(ctx, paths)
	if len(docs) == 0 {
		return domain.IngestFailure(domain.ErrNoTextExtracted, msgNoTextExtracted), nil
	}

	chunks, err := s.pipeline.ProcessAll(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("split documents: %w", err)
	}
	if len(chunks) == 0 {
		return domain.IngestFailure(domain.ErrNoTextExtracted, msgNoTextExtracted), nil
	}
	logger.Debug("Split %d documents into %d chunks", len(docs), len(chunks))

	if err := s.embed(ctx, chunks); err != nil {
		return nil, err
	}

	index, err := s.store.Load(ctx, sessionID)
	switch {
	case errors.Is(err, domain.ErrIndexNotFound):
		index = s.store.New()
	case err != nil:
		return nil, fmt.Errorf("load index: %w", err)
	}

	if err := index.Add(chunks); err != nil {
		return nil, fmt.Errorf("add chunks: %w", err)
	}
	if err := s.store.Save(ctx, sessionID, index); err != nil {
		return nil, fmt.Errorf("save index: %w", err)
	}

	logger.Info("Indexed %d chunks from %d files into session %s (%s)",
		len(chunks), len(paths), sessionID, action)

	return &domain.IngestResult{
		Status:    domain.IngestStatusSuccess,
		Chunks:    len(chunks),
		Files:     len(paths),
		SessionID: sessionID,
		Action:    action,
	}, nil
}

// Clear removes the session's index.
func (s *IngestService) Clear(ctx context.Context, sessionID string) (bool, error) {
	if err := domain.ValidateSessionID(sessionID); err != nil {
		return false, err
	}

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	removed, err := s.store.Remove(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("clear index: %w", err)
	}
	return removed, nil
}

// IndexPath returns where the session's index lives.
func (s *IngestService) IndexPath(sessionID string) string {
	return s.store.Path(sessionID)
}

// Status reports whether the session has an index.
func (s *IngestService) Status(sessionID string) bool {
	if domain.ValidateSessionID(sessionID) != nil {
		return false
	}
	return s.store.Exists(sessionID)
}

// extractAll reads every supported file. Files that fail are logged and skipped.
func (s *IngestService) extractAll(ctx context.Context, paths []string) []domain.Document {
	var docs []domain.Document
	for _, path := range paths {
		extracted, err := s.extract(ctx, path)
		if err != nil {
			logger.Warn("Skipping %s: %v", filepath.Base(path), err)
			continue
		}
		docs = append(docs, extracted...)
	}
	return docs
}

// extract dispatches a file to the extractor for its extension.
func (s *IngestService) extract(ctx context.Context, path string) ([]domain.Document, error) {
	source := filepath.Base(path)

	switch normalisers.KindOf(path) {
	case normalisers.KindPDF:
		if s.pdf == nil {
			return nil, fmt.Errorf("%w: no pdf extractor", domain.ErrExtractionFailed)
		}
		docs, err := s.pdf.ExtractPages(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrExtractionFailed, err)
		}
		return docs, nil

	case normalisers.KindImage:
		if s.ocr == nil {
			return nil, fmt.Errorf("%w: no ocr extractor", domain.ErrExtractionFailed)
		}
		text, err := s.ocr.ExtractText(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrExtractionFailed, err)
		}
		if text == "" {
			return nil, nil
		}
		return []domain.Document{{Content: text, Source: source}}, nil

	default:
		logger.Debug("Ignoring unsupported file %s", source)
		return nil, nil
	}
}

// embed fills in the embedding of every chunk with one batch call.
func (s *IngestService) embed(ctx context.Context, chunks []domain.Chunk) error {
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Content
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}
	return nil
}
