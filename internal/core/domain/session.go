package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Role identifies who authored a Turn.
type Role string

// Available roles.
const (
	// RoleUser is a question typed by the user.
	RoleUser Role = "user"

	// RoleBot is an answer produced by the model.
	RoleBot Role = "bot"
)

// IsValid returns true if the role is recognised.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleBot
}

// DefaultSessionTitle is the title of a session before its first question.
const DefaultSessionTitle = "New Chat"

// titleMaxLength is the number of characters kept when deriving a title.
const titleMaxLength = 30

// sessionIDMaxLength bounds session ids, which name files and directories.
const sessionIDMaxLength = 128

// ValidateSessionID checks that id can name a session's index directory and
// history file. An empty id is ErrMissingSession; an id that is not a single
// plain path element is ErrInvalidInput.
func ValidateSessionID(id string) error {
	if id == "" {
		return ErrMissingSession
	}
	if len(id) > sessionIDMaxLength || strings.HasPrefix(id, ".") || !filepath.IsLocal(id) {
		return fmt.Errorf("session id %q: %w", id, ErrInvalidInput)
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return fmt.Errorf("session id %q: %w", id, ErrInvalidInput)
		}
	}
	return nil
}

// Turn is a single message in a session's history.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Sources   []string  `json:"sources,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is an isolated conversation with its own knowledge base.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	Messages  []Turn    `json:"messages"`
}

// SessionSummary is the listing form of a Session.
type SessionSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary returns the listing form of the session.
func (s *Session) Summary() SessionSummary {
	return SessionSummary{ID: s.ID, Title: s.Title, CreatedAt: s.CreatedAt}
}

// Recent returns the last n turns in chronological order.
func (s *Session) Recent(n int) []Turn {
	if n <= 0 || len(s.Messages) == 0 {
		return nil
	}
	if n > len(s.Messages) {
		n = len(s.Messages)
	}
	recent := make([]Turn, n)
	copy(recent, s.Messages[len(s.Messages)-n:])
	return recent
}

// AppendTurn adds a turn and retitles the session on its first user message.
func (s *Session) AppendTurn(turn Turn) {
	s.Messages = append(s.Messages, turn)
	if turn.Role == RoleUser && len(s.Messages) == 1 {
		s.Title = TitleFromQuestion(turn.Content)
	}
}

// TitleFromQuestion derives a session title from the first question.
func TitleFromQuestion(question string) string {
	question = strings.TrimSpace(question)
	runes := []rune(question)
	if len(runes) > titleMaxLength {
		return string(runes[:titleMaxLength]) + "..."
	}
	if question == "" {
		return DefaultSessionTitle
	}
	return question
}
