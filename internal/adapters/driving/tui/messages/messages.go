// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/custodia-labs/docqa/internal/core/domain"
)

// QuestionSubmitted is sent when the user presses enter on a question.
type QuestionSubmitted struct {
	Question string
}

// FragmentReceived carries one streamed fragment of an answer.
// Stream identifies the answer the fragment belongs to.
type FragmentReceived struct {
	Stream   uint64
	Fragment domain.Fragment
}

// AnswerFinished is the last message of an answer stream.
// Result is non-nil even when Err ends the stream early.
type AnswerFinished struct {
	Stream uint64
	Result *domain.AskResult
	Err    error
}

// SessionsLoaded carries the session listing.
type SessionsLoaded struct {
	Sessions []domain.SessionSummary
	Err      error
}

// SessionLoaded carries one session with its history.
type SessionLoaded struct {
	Session  *domain.Session
	HasIndex bool
	Err      error
}

// SessionSelected is sent when a session is opened from the list.
type SessionSelected struct {
	ID string
}

// NewSessionRequested asks the app to create and open a session.
type NewSessionRequested struct{}

// SessionDeleted signals a session was removed.
type SessionDeleted struct {
	ID  string
	Err error
}

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewSessions is the session picker.
	ViewSessions ViewType = iota
	// ViewChat is the conversation view.
	ViewChat
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewSessions:
		return "sessions"
	case ViewChat:
		return "chat"
	default:
		return "unknown"
	}
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}

// Quit signals the application should exit.
type Quit struct{}
