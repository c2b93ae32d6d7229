package cli

import (
	"bytes"
	"context"
	"time"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// mockChatService implements driving.ChatService for testing.
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

// mockIngestService implements driving.IngestService for testing.
type mockIngestService struct {
	result    *domain.IngestResult
	err       error
	indexed   map[string]bool
	paths     []string
	sessionID string
	reset     bool
}

func (m *mockIngestService) Ingest(
	_ context.Context,
	paths []string,
	sessionID string,
	reset bool,
) (*domain.IngestResult, error) {
	m.paths = paths
	m.sessionID = sessionID
	m.reset = reset
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	action := domain.IngestActionAppend
	if reset {
		action = domain.IngestActionReset
	}
	return &domain.IngestResult{
		Status:    domain.IngestStatusSuccess,
		Chunks:    7,
		Files:     len(paths),
		SessionID: sessionID,
		Action:    action,
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

// mockSessionService implements driving.SessionService for testing.
type mockSessionService struct {
	sessions []domain.SessionSummary
	session  *domain.Session
	err      error
	created  []string
	deleted  []string
}

func (m *mockSessionService) Create(_ context.Context, title string) (*domain.Session, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.created = append(m.created, title)
	if title == "" {
		title = domain.DefaultSessionTitle
	}
	return &domain.Session{ID: "sess-new", Title: title, CreatedAt: time.Now()}, nil
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

func (m *mockSessionService) Delete(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return m.err
}

func (m *mockSessionService) Recent(_ context.Context, _ string, _ int) ([]domain.Turn, error) {
	return nil, m.err
}

// testServices holds the mocks installed by setupTestServices.
type testServices struct {
	chat     *mockChatService
	ingest   *mockIngestService
	sessions *mockSessionService
}

// setupTestServices installs fresh mocks and clears command flags.
func setupTestServices() *testServices {
	ts := &testServices{
		chat:     &mockChatService{},
		ingest:   &mockIngestService{indexed: map[string]bool{}},
		sessions: &mockSessionService{},
	}
	SetServices(&Services{
		Ingest:   ts.ingest,
		Chat:     ts.chat,
		Sessions: ts.sessions,
	})
	SetBootstrap(nil)

	askSession, askServer = "", ""
	ingestSession, ingestReset, ingestJSON = "", false, false
	indexSession = ""
	sessionsJSON = false
	return ts
}

// runCommand executes the root command with args and returns its output.
func runCommand(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}
