package driven

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// HistoryStore persists sessions and their turns.
// Implementations must tolerate concurrent Append calls for the same session.
type HistoryStore interface {
	// Create persists a new empty session.
	Create(ctx context.Context, session *domain.Session) error

	// Load returns a session with all its turns.
	// Returns domain.ErrNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.Session, error)

	// Append adds a turn, creating the session if it does not exist yet.
	// The first user turn sets the session title.
	Append(ctx context.Context, sessionID string, turn domain.Turn) error

	// List returns all sessions, most recent first.
	List(ctx context.Context) ([]domain.SessionSummary, error)

	// Delete removes a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, sessionID string) error
}
