package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Ensure SessionService implements the interface.
var _ driving.SessionService = (*SessionService)(nil)

// SessionService manages sessions across the history store and the index store.
type SessionService struct {
	history driven.HistoryStore
	store   driven.VectorStore
	locks   *SessionLocks
	now     func() time.Time
}

// NewSessionService creates a new session service.
func NewSessionService(history driven.HistoryStore, store driven.VectorStore, locks *SessionLocks) *SessionService {
	if locks == nil {
		locks = NewSessionLocks()
	}
	return &SessionService{
		history: history,
		store:   store,
		locks:   locks,
		now:     time.Now,
	}
}

// Create starts a new empty session with a random id.
func (s *SessionService) Create(ctx context.Context, title string) (*domain.Session, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = domain.DefaultSessionTitle
	}

	session := &domain.Session{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: s.now().UTC(),
		Messages:  []domain.Turn{},
	}
	if err := s.history.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	logger.Debug("Created session %s", session.ID)
	return session, nil
}

// Get returns a session with its full history.
func (s *SessionService) Get(ctx context.Context, id string) (*domain.Session, error) {
	if err := domain.ValidateSessionID(id); err != nil {
		return nil, err
	}
	return s.history.Load(ctx, id)
}

// List returns all sessions, most recent first.
func (s *SessionService) List(ctx context.Context) ([]domain.SessionSummary, error) {
	return s.history.List(ctx)
}

// Delete removes the session's history and index under its write lock.
func (s *SessionService) Delete(ctx context.Context, id string) error {
	if err := domain.ValidateSessionID(id); err != nil {
		return err
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	if err := s.history.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	if _, err := s.store.Remove(ctx, id); err != nil {
		return fmt.Errorf("delete index: %w", err)
	}

	logger.Debug("Deleted session %s", id)
	return nil
}

// Recent returns the last n turns of a session, oldest first.
func (s *SessionService) Recent(ctx context.Context, id string, n int) ([]domain.Turn, error) {
	if err := domain.ValidateSessionID(id); err != nil {
		return nil, err
	}
	session, err := s.history.Load(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return session.Recent(n), nil
}
