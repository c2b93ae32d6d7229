package driving

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// ChatService runs one question-answer exchange and records it in history.
type ChatService interface {
	// Ask answers the question, writing each fragment to w as it arrives.
	// The user turn is recorded before generation and the bot turn after it.
	// The returned result is non-nil even when an error ends the stream.
	Ask(ctx context.Context, question, sessionID string, w domain.FragmentWriter) (*domain.AskResult, error)
}
