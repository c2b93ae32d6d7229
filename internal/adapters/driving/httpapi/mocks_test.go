package httpapi

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

type mockIngestService struct {
	mu          sync.Mutex
	result      *domain.IngestResult
	err         error
	indexed     map[string]bool
	gotPaths    []string
	gotNames    []string
	gotContents []string
	gotSession  string
	gotReset    bool
	clearErr    error
	cleared     []string
}

func newMockIngestService() *mockIngestService {
	return &mockIngestService{indexed: make(map[string]bool)}
}

func (m *mockIngestService) Ingest(_ context.Context, paths []string, sessionID string, reset bool) (*domain.IngestResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gotPaths = paths
	m.gotSession = sessionID
	m.gotReset = reset
	for _, p := range paths {
		m.gotNames = append(m.gotNames, filepath.Base(p))
		data, _ := os.ReadFile(p)
		m.gotContents = append(m.gotContents, string(data))
	}
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	m.indexed[sessionID] = true
	action := domain.IngestActionAppend
	if reset {
		action = domain.IngestActionReset
	}
	return &domain.IngestResult{
		Status:    domain.IngestStatusSuccess,
		Chunks:    len(paths),
		Files:     len(paths),
		SessionID: sessionID,
		Action:    action,
	}, nil
}

func (m *mockIngestService) Clear(_ context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sessionID == "" {
		return false, domain.ErrMissingSession
	}
	if m.clearErr != nil {
		return false, m.clearErr
	}
	m.cleared = append(m.cleared, sessionID)
	existed := m.indexed[sessionID]
	delete(m.indexed, sessionID)
	return existed, nil
}

func (m *mockIngestService) IndexPath(sessionID string) string {
	return filepath.Join("storage", sessionID, "index.db")
}

func (m *mockIngestService) Status(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.indexed[sessionID]
}

type mockChatService struct {
	fragments []domain.Fragment
	err       error
	question  string
	sessionID string
}

func (m *mockChatService) Ask(
	_ context.Context, question, sessionID string, w domain.FragmentWriter,
) (*domain.AskResult, error) {
	m.question = question
	m.sessionID = sessionID
	result := &domain.AskResult{}
	for _, f := range m.fragments {
		if err := w.WriteFragment(f); err != nil {
			return result, err
		}
		if f.Kind == domain.FragmentText {
			result.Answer += f.Text
		} else {
			result.Sources = f.Sources
		}
	}
	if m.err != nil {
		return result, m.err
	}
	result.Complete = true
	return result, nil
}

type mockSessionService struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	order    []string
	listErr  error
}

func newMockSessionService() *mockSessionService {
	return &mockSessionService{sessions: make(map[string]*domain.Session)}
}

func (m *mockSessionService) Create(_ context.Context, title string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if title == "" {
		title = domain.DefaultSessionTitle
	}
	id := "session-" + string(rune('a'+len(m.order)))
	s := &domain.Session{ID: id, Title: title, Messages: []domain.Turn{}}
	m.sessions[id] = s
	m.order = append(m.order, id)
	return s, nil
}

func (m *mockSessionService) Get(_ context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

func (m *mockSessionService) List(_ context.Context) ([]domain.SessionSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.SessionSummary
	for i := len(m.order) - 1; i >= 0; i-- {
		out = append(out, m.sessions[m.order[i]].Summary())
	}
	return out, nil
}

func (m *mockSessionService) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *mockSessionService) Recent(_ context.Context, id string, n int) ([]domain.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return s.Recent(n), nil
}
