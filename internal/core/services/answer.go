package services

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Ensure AnswerService implements the interface.
var _ driving.AnswerService = (*AnswerService)(nil)

// DefaultRetrieverK is the number of chunks retrieved per question.
const DefaultRetrieverK = 3

// AnswerConfig holds retrieval and generation parameters.
type AnswerConfig struct {
	// RetrieverK is the number of chunks retrieved per question.
	RetrieverK int

	// Temperature is passed to the model.
	Temperature float64

	// NumCtx is the context window requested from the model.
	NumCtx int
}

// AnswerService answers questions from a session's index.
type AnswerService struct {
	store    driven.VectorStore
	embedder driven.EmbeddingService
	llm      driven.LLMService
	prompts  driven.PromptStore
	locks    *SessionLocks
	cfg      AnswerConfig
}

// NewAnswerService creates a new answer service.
// The llm parameter is optional; without it questions against an index fail
// with domain.ErrLLMUnavailable.
func NewAnswerService(
	store driven.VectorStore,
	embedder driven.EmbeddingService,
	llm driven.LLMService,
	prompts driven.PromptStore,
	locks *SessionLocks,
	cfg AnswerConfig,
) *AnswerService {
	if locks == nil {
		locks = NewSessionLocks()
	}
	if cfg.RetrieverK <= 0 {
		cfg.RetrieverK = DefaultRetrieverK
	}
	return &AnswerService{
		store:    store,
		embedder: embedder,
		llm:      llm,
		prompts:  prompts,
		locks:    locks,
		cfg:      cfg,
	}
}

// Answer streams the model's answer followed by the sources fragment.
func (s *AnswerService) Answer(
	ctx context.Context, question, sessionID string, history []domain.Turn,
) iter.Seq2[domain.Fragment, error] {
	return func(yield func(domain.Fragment, error) bool) {
		logger.Section("Answer")
		logger.Debug("Session %s, question %q, %d history turns", sessionID, question, len(history))

		index, err := s.loadIndex(ctx, sessionID)
		if errors.Is(err, domain.ErrIndexNotFound) {
			yield(domain.TextFragment(domain.NoDocumentsMessage), nil)
			return
		}
		if err != nil {
			yield(domain.Fragment{}, err)
			return
		}

		chunks, err := s.retrieve(ctx, index, question)
		if err != nil {
			yield(domain.Fragment{}, err)
			return
		}

		prompt, err := s.buildPrompt(chunks, history, question)
		if err != nil {
			yield(domain.Fragment{}, err)
			return
		}

		if s.llm == nil {
			yield(domain.Fragment{}, domain.ErrLLMUnavailable)
			return
		}

		opts := driven.GenerateOptions{
			Temperature: s.cfg.Temperature,
			NumCtx:      s.cfg.NumCtx,
		}
		for piece, err := range s.llm.Stream(ctx, prompt, opts) {
			if err != nil {
				yield(domain.Fragment{}, fmt.Errorf("%w: %w", domain.ErrModelStream, err))
				return
			}
			if piece == "" {
				continue
			}
			if !yield(domain.TextFragment(piece), nil) {
				return
			}
		}

		yield(domain.SourcesFragment(domain.SourceLabels(chunks)), nil)
	}
}

// loadIndex reads the session's index under its read lock.
func (s *AnswerService) loadIndex(ctx context.Context, sessionID string) (driven.VectorIndex, error) {
	if sessionID == "" {
		return nil, domain.ErrIndexNotFound
	}
	if err := domain.ValidateSessionID(sessionID); err != nil {
		return nil, err
	}

	unlock := s.locks.RLock(sessionID)
	defer unlock()

	index, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	return index, nil
}

// retrieve returns the chunks nearest to the question, best first.
func (s *AnswerService) retrieve(
	ctx context.Context, index driven.VectorIndex, question string,
) ([]domain.Chunk, error) {
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	query, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	hits, err := index.Search(ctx, query, s.cfg.RetrieverK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	chunks := make([]domain.Chunk, len(hits))
	for i, hit := range hits {
		chunks[i] = hit.Chunk
		logger.Debug("  hit %d: %s (%.3f)", i+1, hit.Chunk.Label(), hit.Similarity)
	}
	return chunks, nil
}

// buildPrompt fills the answer template. The first question of a session
// uses the template without a history section.
func (s *AnswerService) buildPrompt(chunks []domain.Chunk, history []domain.Turn, question string) (string, error) {
	name := driven.PromptRAGAnswer
	if len(history) == 0 {
		name = driven.PromptRAGAnswerNoHistory
	}

	template, err := s.prompts.Load(name)
	if err != nil {
		return "", fmt.Errorf("load prompt %s: %w", name, err)
	}
	return renderPrompt(template, formatContext(chunks), formatHistory(history), question), nil
}
