package cli

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

func TestAskCmd_Use(t *testing.T) {
	assert.Equal(t, "ask [question]", askCmd.Use)
	assert.NotNil(t, askCmd.Flags().Lookup("session"))
	assert.NotNil(t, askCmd.Flags().Lookup("server"))
}

func TestAskCmd_RequiresQuestion(t *testing.T) {
	setupTestServices()

	_, err := runCommand("ask")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg")
}

func TestAskCmd_RequiresSession(t *testing.T) {
	setupTestServices()

	_, err := runCommand("ask", "what", "happened?")

	assert.ErrorIs(t, err, errNoSession)
}

func TestAskCmd_LocalStreamsAnswerAndSources(t *testing.T) {
	ts := setupTestServices()
	ts.chat.fragments = []domain.Fragment{
		domain.TextFragment("Revenue grew "),
		domain.TextFragment("12%."),
		domain.SourcesFragment([]string{"report.pdf (Page 3)"}),
	}

	out, err := runCommand("ask", "-s", "s1", "How", "did", "revenue", "change?")

	require.NoError(t, err)
	assert.Equal(t, "How did revenue change?", ts.chat.question)
	assert.Equal(t, "s1", ts.chat.sessionID)
	assert.Contains(t, out, "Revenue grew 12%.")
	assert.Contains(t, out, "Sources:")
	assert.Contains(t, out, "report.pdf (Page 3)")
	assert.NotContains(t, out, domain.SourcesMarker)
}

func TestAskCmd_LocalNoDocuments(t *testing.T) {
	ts := setupTestServices()
	ts.chat.fragments = []domain.Fragment{domain.TextFragment(domain.NoDocumentsMessage)}

	out, err := runCommand("ask", "-s", "s1", "anything?")

	require.NoError(t, err)
	assert.Contains(t, out, domain.NoDocumentsMessage)
	assert.NotContains(t, out, "Sources:")
}

func TestAskCmd_LocalError(t *testing.T) {
	ts := setupTestServices()
	ts.chat.err = errors.New("model unavailable")

	_, err := runCommand("ask", "-s", "s1", "q")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "model unavailable")
}

func TestAskCmd_Remote(t *testing.T) {
	setupTestServices()
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ask", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "Hello ")
		w.(http.Flusher).Flush()
		_, _ = io.WriteString(w, "world.\n\n__SOU")
		w.(http.Flusher).Flush()
		_, _ = io.WriteString(w, `RCES__:["a.pdf (Page 1)"]`)
	}))
	defer server.Close()

	out, err := runCommand("ask", "-s", "s1", "--server", server.URL+"/", "hi")

	require.NoError(t, err)
	assert.Equal(t, map[string]string{"question": "hi", "session_id": "s1"}, got)
	assert.Contains(t, out, "Hello world.")
	assert.Contains(t, out, "a.pdf (Page 1)")
	assert.NotContains(t, out, "__SOU")
}

func TestAskCmd_RemoteMalformedSources(t *testing.T) {
	setupTestServices()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "Answer.\n\n__SOURCES__:not-json")
	}))
	defer server.Close()

	out, err := runCommand("ask", "-s", "s1", "--server", server.URL, "hi")

	require.NoError(t, err)
	assert.Contains(t, out, "Answer.")
	assert.NotContains(t, out, "Sources:")
}

func TestAskCmd_RemoteServerError(t *testing.T) {
	setupTestServices()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"error":"LLM provider unavailable"}`)
	}))
	defer server.Close()

	_, err := runCommand("ask", "-s", "s1", "--server", server.URL, "hi")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
	assert.Contains(t, err.Error(), "LLM provider unavailable")
}

func TestAskCmd_ServiceNotConfigured(t *testing.T) {
	setupTestServices()
	SetServices(nil)
	defer SetServices(nil)

	_, err := runCommand("ask", "-s", "s1", "q")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}
