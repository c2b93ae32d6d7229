package services

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"

	"github.com/custodia-labs/docqa/internal/adapters/driven/vectorstore"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockEmbeddingService returns a fixed-size vector derived from keywords:
// dimension i is 1 when keywords[i] occurs in the text.
type mockEmbeddingService struct {
	keywords []string
	err      error
	batches  int
}

func newMockEmbedder(keywords ...string) *mockEmbeddingService {
	return &mockEmbeddingService{keywords: keywords}
}

func (m *mockEmbeddingService) Embed(_ context.Context, text string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	vec := make([]float32, len(m.keywords)+1)
	vec[len(m.keywords)] = 0.01
	lower := strings.ToLower(text)
	for i, kw := range m.keywords {
		if strings.Contains(lower, kw) {
			vec[i] = 1
		}
	}
	return vec, nil
}

func (m *mockEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.batches++
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (m *mockEmbeddingService) Dimensions() int              { return len(m.keywords) + 1 }
func (m *mockEmbeddingService) ModelName() string            { return "mock-embed" }
func (m *mockEmbeddingService) Ping(_ context.Context) error { return nil }
func (m *mockEmbeddingService) Close() error                 { return nil }

// mockLLMService streams fixed pieces and records the last prompt.
type mockLLMService struct {
	pieces []string
	err    error // returned after all pieces
	block  bool  // wait for ctx cancellation after the pieces

	mu         sync.Mutex
	lastPrompt string
	lastOpts   driven.GenerateOptions
	calls      int
}

func (m *mockLLMService) Stream(ctx context.Context, prompt string, opts driven.GenerateOptions) iter.Seq2[string, error] {
	m.mu.Lock()
	m.lastPrompt = prompt
	m.lastOpts = opts
	m.calls++
	m.mu.Unlock()

	return func(yield func(string, error) bool) {
		for _, p := range m.pieces {
			if !yield(p, nil) {
				return
			}
		}
		if m.block {
			<-ctx.Done()
			yield("", ctx.Err())
			return
		}
		if m.err != nil {
			yield("", m.err)
		}
	}
}

func (m *mockLLMService) prompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPrompt
}

func (m *mockLLMService) ModelName() string            { return "mock-llm" }
func (m *mockLLMService) Ping(_ context.Context) error { return nil }
func (m *mockLLMService) Close() error                 { return nil }

// mockPromptStore serves templates from a map.
type mockPromptStore struct {
	prompts map[string]string
}

func newMockPrompts() *mockPromptStore {
	return &mockPromptStore{prompts: map[string]string{
		driven.PromptRAGAnswer:          "CTX[{context}] HIST[{chat_history}] Q[{question}]",
		driven.PromptRAGAnswerNoHistory: "CTX[{context}] Q[{question}]",
	}}
}

func (m *mockPromptStore) Load(name string) (string, error) {
	p, ok := m.prompts[name]
	if !ok {
		return "", errors.New("unknown prompt " + name)
	}
	return p, nil
}

func (m *mockPromptStore) Reload() {}

// mockPDFExtractor returns canned pages per file base name.
type mockPDFExtractor struct {
	pages map[string][]string
	errs  map[string]error
	calls int
}

func (m *mockPDFExtractor) ExtractPages(_ context.Context, path string) ([]domain.Document, error) {
	m.calls++
	name := baseName(path)
	if err := m.errs[name]; err != nil {
		return nil, err
	}
	var docs []domain.Document
	for i, text := range m.pages[name] {
		if text == "" {
			continue
		}
		docs = append(docs, domain.Document{Content: text, Source: name, Page: domain.PageRef(i)})
	}
	return docs, nil
}

// mockOCRExtractor returns canned text per file base name.
type mockOCRExtractor struct {
	texts map[string]string
	err   error
}

func (m *mockOCRExtractor) ExtractText(_ context.Context, path string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.texts[baseName(path)], nil
}

// mockVectorStore keeps indices in memory and counts operations.
type mockVectorStore struct {
	mu       sync.Mutex
	indices  map[string]driven.VectorIndex
	loadErr  error
	saveErr  error
	saves    int
	removals int
}

func newMockVectorStore() *mockVectorStore {
	return &mockVectorStore{indices: make(map[string]driven.VectorIndex)}
}

func (m *mockVectorStore) Path(sessionID string) string { return "/indices/" + sessionID }

func (m *mockVectorStore) Exists(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.indices[sessionID]
	return ok
}

func (m *mockVectorStore) New() driven.VectorIndex { return vectorstore.NewFlatIndex() }

func (m *mockVectorStore) Load(_ context.Context, sessionID string) (driven.VectorIndex, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	idx, ok := m.indices[sessionID]
	if !ok {
		return nil, domain.ErrIndexNotFound
	}
	return idx.Clone(), nil
}

func (m *mockVectorStore) Save(_ context.Context, sessionID string, index driven.VectorIndex) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.indices[sessionID] = index.Clone()
	return nil
}

func (m *mockVectorStore) Remove(_ context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.indices[sessionID]
	delete(m.indices, sessionID)
	if ok {
		m.removals++
	}
	return ok, nil
}

func (m *mockVectorStore) len(sessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.indices[sessionID]
	if !ok {
		return 0
	}
	return idx.Len()
}

// recordingWriter collects the fragments written to it.
type recordingWriter struct {
	fragments []domain.Fragment
	err       error
	failAfter int // fail once this many fragments were written, when > 0
}

func (w *recordingWriter) WriteFragment(f domain.Fragment) error {
	if w.err != nil && w.failAfter > 0 && len(w.fragments) >= w.failAfter {
		return w.err
	}
	w.fragments = append(w.fragments, f)
	return nil
}

func (w *recordingWriter) wire() string {
	var b strings.Builder
	for _, f := range w.fragments {
		b.WriteString(f.Wire())
	}
	return b.String()
}

func baseName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}
