package services

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/adapters/driven/embedding/local"
	"github.com/custodia-labs/docqa/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/docqa/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/postprocessors"
	"github.com/custodia-labs/docqa/internal/postprocessors/chunker"
)

// scenario wires the services over a real on-disk index and the hashing embedder.
type scenario struct {
	store    *sqlite.VectorStore
	history  *memory.HistoryStore
	llm      *mockLLMService
	pdf      *mockPDFExtractor
	ingest   *IngestService
	sessions *SessionService
	chat     *ChatService
}

func newScenario(t *testing.T) *scenario {
	t.Helper()
	store, err := sqlite.NewVectorStore(t.TempDir())
	require.NoError(t, err)

	locks := NewSessionLocks()
	embedder := local.NewEmbeddingService(0)
	history := memory.NewHistoryStore()
	llm := &mockLLMService{pieces: []string{"The invoice ", "total is 42 euros."}}
	pdf := &mockPDFExtractor{
		pages: map[string][]string{
			"report.pdf": {
				"Quarterly report. Revenue grew in every region.",
				"The invoice total is 42 euros, payable within thirty days.",
				"Appendix: the office cat sleeps most of the afternoon.",
			},
		},
		errs: map[string]error{},
	}

	answers := NewAnswerService(store, embedder, llm, newMockPrompts(), locks, AnswerConfig{RetrieverK: 2})
	return &scenario{
		store:    store,
		history:  history,
		llm:      llm,
		pdf:      pdf,
		ingest:   NewIngestService(store, embedder, postprocessors.NewPipeline(chunker.New()), pdf, nil, locks),
		sessions: NewSessionService(history, store, locks),
		chat:     NewChatService(answers, history, DefaultHistoryWindow, domain.PartialDiscard),
	}
}

func TestScenario_UploadThenAsk(t *testing.T) {
	s := newScenario(t)
	ctx := context.Background()

	session, err := s.sessions.Create(ctx, "")
	require.NoError(t, err)

	result, err := s.ingest.Ingest(ctx, []string{"/uploads/report.pdf"}, session.ID, true)
	require.NoError(t, err)
	require.True(t, result.OK())
	assert.Equal(t, 3, result.Chunks)
	assert.Equal(t, domain.IngestActionReset, result.Action)
	assert.True(t, s.ingest.Status(session.ID))
	assert.DirExists(t, s.ingest.IndexPath(session.ID))
	assert.FileExists(t, filepath.Join(s.ingest.IndexPath(session.ID), sqlite.IndexFileName))

	var out bytes.Buffer
	ask, err := s.chat.Ask(ctx, "What is the invoice total?", session.ID, WireWriter(&out))
	require.NoError(t, err)

	assert.True(t, ask.Complete)
	assert.Equal(t, "The invoice total is 42 euros.", ask.Answer)
	require.NotEmpty(t, ask.Sources)
	assert.Equal(t, "report.pdf (Page 2)", ask.Sources[0])
	assert.True(t, strings.HasPrefix(out.String(), "The invoice total is 42 euros.\n\n"+domain.SourcesMarker))
	assert.Contains(t, s.llm.prompt(), "payable within thirty days")

	stored, err := s.sessions.Get(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, stored.Messages, 2)
	assert.Equal(t, domain.RoleUser, stored.Messages[0].Role)
	assert.Equal(t, domain.RoleBot, stored.Messages[1].Role)
	assert.Equal(t, ask.Sources, stored.Messages[1].Sources)

	// A follow-up sees the first exchange in its prompt.
	_, err = s.chat.Ask(ctx, "And when is it due?", session.ID, WireWriter(&bytes.Buffer{}))
	require.NoError(t, err)
	assert.Contains(t, s.llm.prompt(), "User: What is the invoice total?")
	assert.Contains(t, s.llm.prompt(), "AI: The invoice total is 42 euros.")
}

func TestScenario_AskWithoutIndex(t *testing.T) {
	s := newScenario(t)
	ctx := context.Background()

	session, err := s.sessions.Create(ctx, "")
	require.NoError(t, err)

	var out bytes.Buffer
	ask, err := s.chat.Ask(ctx, "Anything?", session.ID, WireWriter(&out))
	require.NoError(t, err)

	assert.Equal(t, domain.NoDocumentsMessage, out.String())
	assert.Equal(t, domain.NoDocumentsMessage, ask.Answer)
	assert.Zero(t, s.llm.calls)

	stored, err := s.sessions.Get(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, stored.Messages, 2)
	assert.Equal(t, []string{}, stored.Messages[1].Sources)
}

func TestScenario_ClearAndDelete(t *testing.T) {
	s := newScenario(t)
	ctx := context.Background()

	session, err := s.sessions.Create(ctx, "")
	require.NoError(t, err)
	_, err = s.ingest.Ingest(ctx, []string{"/uploads/report.pdf"}, session.ID, false)
	require.NoError(t, err)

	cleared, err := s.ingest.Clear(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, cleared)
	assert.False(t, s.ingest.Status(session.ID))

	_, err = s.ingest.Ingest(ctx, []string{"/uploads/report.pdf"}, session.ID, false)
	require.NoError(t, err)
	require.NoError(t, s.sessions.Delete(ctx, session.ID))

	assert.False(t, s.store.Exists(session.ID))
	_, err = s.sessions.Get(ctx, session.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestScenario_SessionIDsCannotEscapeStorage(t *testing.T) {
	ctx := context.Background()
	dataDir := t.TempDir()
	store, err := sqlite.NewVectorStore(filepath.Join(dataDir, "storage"))
	require.NoError(t, err)
	config := filepath.Join(dataDir, "config.toml")
	require.NoError(t, os.WriteFile(config, []byte("[llm]\n"), 0o600))

	locks := NewSessionLocks()
	pipeline := postprocessors.NewPipeline(chunker.New())
	ingest := NewIngestService(store, local.NewEmbeddingService(0), pipeline, &mockPDFExtractor{}, &mockOCRExtractor{}, locks)
	sessions := NewSessionService(memory.NewHistoryStore(), store, locks)

	for _, id := range []string{"..", ".", "../storage", "../../etc"} {
		removed, err := ingest.Clear(ctx, id)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, id)
		assert.False(t, removed, id)

		_, err = ingest.Ingest(ctx, []string{"/uploads/report.pdf"}, id, true)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, id)

		assert.ErrorIs(t, sessions.Delete(ctx, id), domain.ErrInvalidInput, id)
		assert.False(t, ingest.Status(id), id)
		assert.Empty(t, ingest.IndexPath(id), id)
	}

	assert.FileExists(t, config)
	assert.DirExists(t, filepath.Join(dataDir, "storage"))
}
