package driving

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// SessionService manages conversations.
type SessionService interface {
	// Create starts a new session. An empty title uses the default title.
	Create(ctx context.Context, title string) (*domain.Session, error)

	// Get returns a session with its full history.
	Get(ctx context.Context, id string) (*domain.Session, error)

	// List returns all sessions, most recent first.
	List(ctx context.Context) ([]domain.SessionSummary, error)

	// Delete removes a session's history and index.
	Delete(ctx context.Context, id string) error

	// Recent returns the last n turns of a session, oldest first.
	// A missing session has no turns.
	Recent(ctx context.Context, id string, n int) ([]domain.Turn, error)
}
