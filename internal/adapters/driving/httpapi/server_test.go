package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

type testServer struct {
	ingest   *mockIngestService
	chat     *mockChatService
	sessions *mockSessionService
	server   *Server
	upload   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		ingest:   newMockIngestService(),
		chat:     &mockChatService{},
		sessions: newMockSessionService(),
		upload:   t.TempDir(),
	}
	srv, err := NewServer(&Ports{
		Ingest:   ts.ingest,
		Chat:     ts.chat,
		Sessions: ts.sessions,
	}, Config{UploadDir: ts.upload})
	require.NoError(t, err)
	ts.server = srv
	return ts
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	return rec
}

func multipartBody(t *testing.T, fields map[string]string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for name, content := range files {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = io.WriteString(fw, content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestPorts_Validate(t *testing.T) {
	var nilPorts *Ports
	assert.Error(t, nilPorts.Validate())
	assert.Error(t, (&Ports{}).Validate())
	assert.Error(t, (&Ports{Ingest: newMockIngestService()}).Validate())
	assert.Error(t, (&Ports{Ingest: newMockIngestService(), Chat: &mockChatService{}}).Validate())
	assert.NoError(t, (&Ports{
		Ingest:   newMockIngestService(),
		Chat:     &mockChatService{},
		Sessions: newMockSessionService(),
	}).Validate())
}

func TestNewServer_RequiresUploadDir(t *testing.T) {
	_, err := NewServer(&Ports{
		Ingest:   newMockIngestService(),
		Chat:     &mockChatService{},
		Sessions: newMockSessionService(),
	}, Config{})
	assert.Error(t, err)
}

func TestNewServer_Defaults(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, DefaultAddr, ts.server.cfg.Addr)
	assert.Equal(t, int64(DefaultMaxUploadBytes), ts.server.cfg.MaxUploadBytes)
	assert.Equal(t, DefaultShutdownTimeout, ts.server.cfg.ShutdownTimeout)
}

func TestStatus(t *testing.T) {
	ts := newTestServer(t)
	ts.ingest.indexed["s1"] = true

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/system/status?session_id=s1", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.IndexExists)
	assert.Equal(t, "s1", resp.SessionID)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/system/status?session_id=other", http.NoBody))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.IndexExists)
}

func TestClear(t *testing.T) {
	ts := newTestServer(t)
	ts.ingest.indexed["s1"] = true

	t.Run("query parameter", func(t *testing.T) {
		rec := ts.do(httptest.NewRequest(http.MethodPost, "/system/clear?session_id=s1", http.NoBody))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), msgCleared)
		assert.False(t, ts.ingest.indexed["s1"])
	})

	t.Run("idempotent", func(t *testing.T) {
		rec := ts.do(httptest.NewRequest(http.MethodPost, "/system/clear?session_id=s1", http.NoBody))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("json body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/system/clear", strings.NewReader(`{"session_id":"s2"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := ts.do(req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, ts.ingest.cleared, "s2")
	})

	t.Run("missing session", func(t *testing.T) {
		rec := ts.do(httptest.NewRequest(http.MethodPost, "/system/clear", http.NoBody))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("store failure", func(t *testing.T) {
		ts.ingest.clearErr = errors.New("disk gone")
		defer func() { ts.ingest.clearErr = nil }()
		rec := ts.do(httptest.NewRequest(http.MethodPost, "/system/clear?session_id=s3", http.NoBody))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestUpload_Append(t *testing.T) {
	ts := newTestServer(t)

	body, contentType := multipartBody(t,
		map[string]string{"session_id": "s1"},
		map[string]string{"report.pdf": "pdf bytes"},
	)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)

	rec := ts.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	var result domain.IngestResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, domain.IngestStatusSuccess, result.Status)
	assert.Equal(t, domain.IngestActionAppend, result.Action)
	assert.Equal(t, "s1", result.SessionID)
	assert.Equal(t, 1, result.Files)

	assert.False(t, ts.ingest.gotReset)
	assert.Equal(t, []string{"report.pdf"}, ts.ingest.gotNames)
	assert.Equal(t, []string{"pdf bytes"}, ts.ingest.gotContents)

	// Uploaded files are removed after ingestion.
	for _, p := range ts.ingest.gotPaths {
		_, err := os.Stat(p)
		assert.True(t, os.IsNotExist(err))
	}
	entries, err := os.ReadDir(ts.upload)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUpload_Reset(t *testing.T) {
	ts := newTestServer(t)

	body, contentType := multipartBody(t,
		map[string]string{"session_id": "s1", "action": "reset"},
		map[string]string{"a.pdf": "a", "b.png": "b"},
	)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)

	rec := ts.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, ts.ingest.gotReset)
	assert.ElementsMatch(t, []string{"a.pdf", "b.png"}, ts.ingest.gotNames)
	assert.Contains(t, rec.Body.String(), `"action":"reset"`)
}

func TestUpload_StripsDirectoriesFromFilenames(t *testing.T) {
	ts := newTestServer(t)

	body, contentType := multipartBody(t,
		map[string]string{"session_id": "s1"},
		map[string]string{"../../etc/report.pdf": "x"},
	)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)

	rec := ts.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"report.pdf"}, ts.ingest.gotNames)
}

func TestUpload_ExpectedFailureIsReportedInBody(t *testing.T) {
	ts := newTestServer(t)
	ts.ingest.result = domain.IngestFailure(domain.ErrNoTextExtracted, "No text extracted.")

	body, contentType := multipartBody(t,
		map[string]string{"session_id": "s1"},
		map[string]string{"blank.pdf": ""},
	)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)

	rec := ts.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"error","message":"No text extracted."}`, rec.Body.String())
}

func TestUpload_Errors(t *testing.T) {
	t.Run("no files", func(t *testing.T) {
		ts := newTestServer(t)
		body, contentType := multipartBody(t, map[string]string{"session_id": "s1"}, nil)
		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", contentType)
		assert.Equal(t, http.StatusBadRequest, ts.do(req).Code)
	})

	t.Run("not multipart", func(t *testing.T) {
		ts := newTestServer(t)
		req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("{}"))
		req.Header.Set("Content-Type", "application/json")
		assert.Equal(t, http.StatusBadRequest, ts.do(req).Code)
	})

	t.Run("too large", func(t *testing.T) {
		ts := newTestServer(t)
		ts.server.cfg.MaxUploadBytes = 64
		body, contentType := multipartBody(t,
			map[string]string{"session_id": "s1"},
			map[string]string{"big.pdf": strings.Repeat("x", 4096)},
		)
		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", contentType)
		assert.Equal(t, http.StatusRequestEntityTooLarge, ts.do(req).Code)
	})

	t.Run("ingest failure", func(t *testing.T) {
		ts := newTestServer(t)
		ts.ingest.err = domain.ErrEmbeddingUnavailable
		body, contentType := multipartBody(t,
			map[string]string{"session_id": "s1"},
			map[string]string{"a.pdf": "a"},
		)
		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", contentType)
		assert.Equal(t, http.StatusServiceUnavailable, ts.do(req).Code)
	})
}

func TestAsk_StreamsWireFormat(t *testing.T) {
	ts := newTestServer(t)
	ts.chat.fragments = []domain.Fragment{
		domain.TextFragment("The answer "),
		domain.TextFragment("is 42."),
		domain.SourcesFragment([]string{"report.pdf (Page 2)"}),
	}

	req := httptest.NewRequest(http.MethodPost, "/ask",
		strings.NewReader(`{"question":"What is it?","session_id":"s1"}`))
	rec := ts.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "The answer is 42.\n\n__SOURCES__:[\"report.pdf (Page 2)\"]", rec.Body.String())
	assert.True(t, rec.Flushed)
	assert.Equal(t, "What is it?", ts.chat.question)
	assert.Equal(t, "s1", ts.chat.sessionID)
}

func TestAsk_NoIndexMessage(t *testing.T) {
	ts := newTestServer(t)
	ts.chat.fragments = []domain.Fragment{domain.TextFragment(domain.NoDocumentsMessage)}

	rec := ts.do(httptest.NewRequest(http.MethodPost, "/ask",
		strings.NewReader(`{"question":"hi","session_id":"s1"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.NoDocumentsMessage, rec.Body.String())
}

func TestAsk_Errors(t *testing.T) {
	t.Run("bad json", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader("{")))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty question", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"session_id":"s1"}`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("failure before first fragment", func(t *testing.T) {
		ts := newTestServer(t)
		ts.chat.err = domain.ErrLLMUnavailable
		rec := ts.do(httptest.NewRequest(http.MethodPost, "/ask",
			strings.NewReader(`{"question":"q","session_id":"s1"}`)))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("failure mid stream keeps status", func(t *testing.T) {
		ts := newTestServer(t)
		ts.chat.fragments = []domain.Fragment{domain.TextFragment("partial")}
		ts.chat.err = domain.ErrModelStream
		rec := ts.do(httptest.NewRequest(http.MethodPost, "/ask",
			strings.NewReader(`{"question":"q","session_id":"s1"}`)))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "partial", rec.Body.String())
	})
}

func TestSessions_CRUD(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/sessions", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = ts.do(httptest.NewRequest(http.MethodPost, "/sessions", http.NoBody))
	require.Equal(t, http.StatusCreated, rec.Code)
	var created domain.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, domain.DefaultSessionTitle, created.Title)

	rec = ts.do(httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{"title":"Taxes"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/sessions", http.NoBody))
	var list []domain.SessionSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "Taxes", list[0].Title)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/sessions/"+created.ID, http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), created.ID)

	rec = ts.do(httptest.NewRequest(http.MethodDelete, "/sessions/"+created.ID, http.NoBody))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/sessions/"+created.ID, http.NoBody))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessions_ListFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.sessions.listErr = errors.New("redis down")
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/sessions", http.NoBody))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/ask", http.NoBody))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(httptest.NewRequest(http.MethodOptions, "/ask", http.NoBody))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	ts := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ts.server.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/system/status?session_id=x")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
