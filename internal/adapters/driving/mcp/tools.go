package mcp

import (
	"context"
	"errors"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question  string `json:"question" jsonschema:"the question to answer from the session's documents"`
	SessionID string `json:"session_id" jsonschema:"the session whose documents and history are used"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer   string   `json:"answer"`
	Sources  []string `json:"sources"`
	Complete bool     `json:"complete"`
}

// IngestInput is the input schema for the ingest tool.
type IngestInput struct {
	Paths     []string `json:"paths" jsonschema:"absolute paths of PDF or image files to ingest"`
	SessionID string   `json:"session_id" jsonschema:"the session whose index receives the documents"`
	Reset     bool     `json:"reset,omitempty" jsonschema:"replace the existing index instead of appending"`
}

// IngestOutput is the output schema for the ingest tool.
type IngestOutput struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	Chunks    int    `json:"chunks"`
	Files     int    `json:"files"`
	SessionID string `json:"session_id,omitempty"`
	Action    string `json:"action,omitempty"`
}

// ListSessionsInput is the (empty) input schema for the list_sessions tool.
type ListSessionsInput struct{}

// ListSessionsOutput is the output schema for the list_sessions tool.
type ListSessionsOutput struct {
	Sessions []SessionOutput `json:"sessions"`
	Count    int             `json:"count"`
}

// SessionOutput represents a single session.
type SessionOutput struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	HasIndex  bool   `json:"has_index"`
}

// ClearIndexInput is the input schema for the clear_index tool.
type ClearIndexInput struct {
	SessionID string `json:"session_id" jsonschema:"the session whose index is removed"`
}

// ClearIndexOutput is the output schema for the clear_index tool.
type ClearIndexOutput struct {
	Cleared bool   `json:"cleared"`
	Message string `json:"message"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from the documents ingested into a session, citing source pages",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ingest",
		Description: "Extract text from PDF or image files and add it to a session's index",
	}, s.handleIngest)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_sessions",
		Description: "List chat sessions, most recent first",
	}, s.handleListSessions)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "clear_index",
		Description: "Remove a session's document index, keeping its history",
	}, s.handleClearIndex)
}

// handleAsk handles the ask tool invocation. The whole answer is collected
// before returning, since tool results are not streamed.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	if strings.TrimSpace(input.Question) == "" {
		return nil, AskOutput{}, errors.New("question is required")
	}
	if input.SessionID == "" {
		return nil, AskOutput{}, domain.ErrMissingSession
	}

	discard := domain.FragmentWriterFunc(func(domain.Fragment) error { return nil })
	result, err := s.ports.Chat.Ask(ctx, input.Question, input.SessionID, discard)
	if err != nil {
		return nil, AskOutput{}, err
	}

	sources := result.Sources
	if sources == nil {
		sources = []string{}
	}
	return nil, AskOutput{
		Answer:   result.Answer,
		Sources:  sources,
		Complete: result.Complete,
	}, nil
}

// handleIngest handles the ingest tool invocation. Expected failures such
// as a batch without text are reported in the output, not as tool errors.
func (s *Server) handleIngest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestInput,
) (*mcp.CallToolResult, IngestOutput, error) {
	if len(input.Paths) == 0 {
		return nil, IngestOutput{}, errors.New("at least one path is required")
	}

	result, err := s.ports.Ingest.Ingest(ctx, input.Paths, input.SessionID, input.Reset)
	if err != nil {
		return nil, IngestOutput{}, err
	}

	return nil, IngestOutput{
		Status:    string(result.Status),
		Message:   result.Message,
		Chunks:    result.Chunks,
		Files:     result.Files,
		SessionID: result.SessionID,
		Action:    string(result.Action),
	}, nil
}

// handleListSessions handles the list_sessions tool invocation.
func (s *Server) handleListSessions(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ ListSessionsInput,
) (*mcp.CallToolResult, ListSessionsOutput, error) {
	if s.ports.Sessions == nil {
		return nil, ListSessionsOutput{Sessions: []SessionOutput{}}, nil
	}

	sessions, err := s.ports.Sessions.List(ctx)
	if err != nil {
		return nil, ListSessionsOutput{}, err
	}

	output := ListSessionsOutput{
		Sessions: make([]SessionOutput, len(sessions)),
		Count:    len(sessions),
	}
	for i, session := range sessions {
		output.Sessions[i] = SessionOutput{
			ID:        session.ID,
			Title:     session.Title,
			CreatedAt: session.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			HasIndex:  s.ports.Ingest.Status(session.ID),
		}
	}
	return nil, output, nil
}

// handleClearIndex handles the clear_index tool invocation.
func (s *Server) handleClearIndex(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ClearIndexInput,
) (*mcp.CallToolResult, ClearIndexOutput, error) {
	removed, err := s.ports.Ingest.Clear(ctx, input.SessionID)
	if err != nil {
		return nil, ClearIndexOutput{}, err
	}

	message := "Vector store cleared successfully."
	if !removed {
		message = "The session had no index."
	}
	return nil, ClearIndexOutput{Cleared: removed, Message: message}, nil
}
