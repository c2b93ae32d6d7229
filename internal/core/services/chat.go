package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
	"time"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Ensure ChatService implements the interface.
var _ driving.ChatService = (*ChatService)(nil)

// DefaultHistoryWindow is the number of recent turns given to the model.
const DefaultHistoryWindow = 8

// ChatService wraps the answer stream with history bookkeeping.
type ChatService struct {
	answers driving.AnswerService
	history driven.HistoryStore
	window  int
	policy  domain.PartialPolicy
	now     func() time.Time
}

// NewChatService creates a new chat service.
func NewChatService(
	answers driving.AnswerService,
	history driven.HistoryStore,
	window int,
	policy domain.PartialPolicy,
) *ChatService {
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	if !policy.IsValid() {
		policy = domain.PartialDiscard
	}
	return &ChatService{
		answers: answers,
		history: history,
		window:  window,
		policy:  policy,
		now:     time.Now,
	}
}

// Ask answers a question, forwarding fragments to w and recording both turns.
//
// The history window is read before the question is recorded, so the model
// never sees the current question twice. A stream that ends with an error
// or a cancelled context is persisted according to the partial policy.
func (s *ChatService) Ask(
	ctx context.Context, question, sessionID string, w domain.FragmentWriter,
) (*domain.AskResult, error) {
	result := &domain.AskResult{}

	var recent []domain.Turn
	if sessionID != "" {
		if err := domain.ValidateSessionID(sessionID); err != nil {
			return result, err
		}
		var err error
		recent, err = s.recent(ctx, sessionID)
		if err != nil {
			return result, err
		}
		if err := s.history.Append(ctx, sessionID, domain.Turn{
			Role:      domain.RoleUser,
			Content:   question,
			Timestamp: s.now().UTC(),
		}); err != nil {
			return result, fmt.Errorf("record question: %w", err)
		}
	}

	answer, streamErr := s.forward(ctx, s.answers.Answer(ctx, question, sessionID, recent), w, result)
	result.Answer = answer
	result.Complete = streamErr == nil

	if sessionID == "" || !s.shouldPersist(result) {
		return result, streamErr
	}

	turn := domain.Turn{
		Role:      domain.RoleBot,
		Content:   result.Answer,
		Timestamp: s.now().UTC(),
	}
	if result.Complete {
		turn.Sources = result.Sources
		if turn.Sources == nil {
			turn.Sources = []string{}
		}
	}

	// The answer is recorded even when the caller has gone away.
	if err := s.history.Append(context.WithoutCancel(ctx), sessionID, turn); err != nil {
		if streamErr != nil {
			return result, errors.Join(streamErr, fmt.Errorf("record answer: %w", err))
		}
		return result, fmt.Errorf("record answer: %w", err)
	}
	result.Persisted = true

	return result, streamErr
}

// forward copies fragments to w, accumulating text and capturing sources.
func (s *ChatService) forward(
	ctx context.Context,
	stream iter.Seq2[domain.Fragment, error],
	w domain.FragmentWriter,
	result *domain.AskResult,
) (string, error) {
	var text strings.Builder
	var streamErr error

	for frag, err := range stream {
		if err != nil {
			streamErr = err
			break
		}
		if frag.Kind == domain.FragmentSources {
			result.Sources = frag.Sources
		} else {
			text.WriteString(frag.Text)
		}
		if err := w.WriteFragment(frag); err != nil {
			streamErr = fmt.Errorf("write fragment: %w", err)
			break
		}
	}

	if streamErr == nil {
		streamErr = ctx.Err()
	}
	if streamErr != nil {
		logger.Warn("Answer stream ended early: %v", streamErr)
	}
	return text.String(), streamErr
}

func (s *ChatService) shouldPersist(result *domain.AskResult) bool {
	if result.Complete {
		return true
	}
	return s.policy == domain.PartialKeep && result.Answer != ""
}

// recent loads the last turns of a session. A missing session has none.
func (s *ChatService) recent(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	session, err := s.history.Load(ctx, sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return session.Recent(s.window), nil
}

// WireWriter renders fragments in the plain-text streaming format.
// Writers with a Flush method are flushed after every fragment.
func WireWriter(w io.Writer) domain.FragmentWriter {
	return domain.FragmentWriterFunc(func(f domain.Fragment) error {
		if _, err := io.WriteString(w, f.Wire()); err != nil {
			return err
		}
		switch fl := w.(type) {
		case interface{ Flush() error }:
			return fl.Flush()
		case interface{ Flush() }:
			fl.Flush()
		}
		return nil
	})
}
