package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure HistoryStore implements the interface.
var _ driven.HistoryStore = (*HistoryStore)(nil)

// HistoryStore is an in-memory implementation of driven.HistoryStore.
type HistoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	now      func() time.Time
}

// NewHistoryStore creates a new in-memory history store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{
		sessions: make(map[string]*domain.Session),
		now:      time.Now,
	}
}

// Create stores a new session.
func (s *HistoryStore) Create(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = copySession(session)
	return nil
}

// Load retrieves a session by ID.
func (s *HistoryStore) Load(_ context.Context, sessionID string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copySession(session), nil
}

// Append adds a turn, creating the session on first use.
func (s *HistoryStore) Append(_ context.Context, sessionID string, turn domain.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		session = &domain.Session{
			ID:        sessionID,
			Title:     domain.DefaultSessionTitle,
			CreatedAt: s.now(),
		}
		s.sessions[sessionID] = session
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = s.now()
	}
	session.AppendTurn(turn)
	return nil
}

// List returns all sessions, most recent first.
func (s *HistoryStore) List(_ context.Context) ([]domain.SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.SessionSummary, 0, len(s.sessions))
	for _, session := range s.sessions {
		result = append(result, session.Summary())
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// Delete removes a session.
func (s *HistoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

func copySession(session *domain.Session) *domain.Session {
	c := *session
	c.Messages = make([]domain.Turn, len(session.Messages))
	copy(c.Messages, session.Messages)
	return &c
}
