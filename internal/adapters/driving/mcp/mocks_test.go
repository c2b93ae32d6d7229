package mcp

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// mockChatService is a mock implementation of driving.ChatService.
type mockChatService struct {
	fragments []domain.Fragment
	err       error
	question  string
	sessionID string
}

func (m *mockChatService) Ask(
	_ context.Context,
	question, sessionID string,
	w domain.FragmentWriter,
) (*domain.AskResult, error) {
	m.question = question
	m.sessionID = sessionID
	result := &domain.AskResult{}
	for _, f := range m.fragments {
		if err := w.WriteFragment(f); err != nil {
			return result, err
		}
		if f.Kind == domain.FragmentSources {
			result.Sources = f.Sources
		} else {
			result.Answer += f.Text
		}
	}
	if m.err != nil {
		return result, m.err
	}
	result.Complete = true
	return result, nil
}

// mockIngestService is a mock implementation of driving.IngestService.
type mockIngestService struct {
	result  *domain.IngestResult
	err     error
	indexed map[string]bool
	paths   []string
	reset   bool
}

func (m *mockIngestService) Ingest(
	_ context.Context,
	paths []string,
	sessionID string,
	reset bool,
) (*domain.IngestResult, error) {
	m.paths = paths
	m.reset = reset
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &domain.IngestResult{
		Status:    domain.IngestStatusSuccess,
		Chunks:    4,
		Files:     len(paths),
		SessionID: sessionID,
		Action:    domain.IngestActionAppend,
	}, nil
}

func (m *mockIngestService) Clear(_ context.Context, sessionID string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	existed := m.indexed[sessionID]
	delete(m.indexed, sessionID)
	return existed, nil
}

func (m *mockIngestService) IndexPath(sessionID string) string {
	return "/data/storage/" + sessionID
}

func (m *mockIngestService) Status(sessionID string) bool {
	return m.indexed[sessionID]
}

// mockSessionService is a mock implementation of driving.SessionService.
type mockSessionService struct {
	sessions []domain.SessionSummary
	session  *domain.Session
	err      error
}

func (m *mockSessionService) Create(_ context.Context, title string) (*domain.Session, error) {
	return &domain.Session{ID: "new", Title: title}, m.err
}

func (m *mockSessionService) Get(_ context.Context, _ string) (*domain.Session, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.session == nil {
		return nil, domain.ErrNotFound
	}
	return m.session, nil
}

func (m *mockSessionService) List(_ context.Context) ([]domain.SessionSummary, error) {
	return m.sessions, m.err
}

func (m *mockSessionService) Delete(_ context.Context, _ string) error {
	return m.err
}

func (m *mockSessionService) Recent(_ context.Context, _ string, _ int) ([]domain.Turn, error) {
	return nil, m.err
}

func newTestPorts() *Ports {
	return &Ports{
		Chat:     &mockChatService{},
		Ingest:   &mockIngestService{indexed: map[string]bool{}},
		Sessions: &mockSessionService{},
	}
}
