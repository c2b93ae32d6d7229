package driving

import (
	"context"
	"iter"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// AnswerService answers questions from a session's documents.
type AnswerService interface {
	// Answer streams the answer to a question. Text fragments arrive as the
	// model produces them, followed by one sources fragment. A session without
	// an index yields a single text fragment explaining that and nothing else.
	// history is the recent conversation, oldest first.
	Answer(ctx context.Context, question, sessionID string, history []domain.Turn) iter.Seq2[domain.Fragment, error]
}
