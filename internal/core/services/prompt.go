package services

import (
	"strings"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// Template placeholders filled by renderPrompt.
const (
	placeholderContext  = "{context}"
	placeholderHistory  = "{chat_history}"
	placeholderQuestion = "{question}"
)

// renderPrompt fills a template in a single pass, so placeholder text inside
// the values is never substituted again.
func renderPrompt(template, context, history, question string) string {
	return strings.NewReplacer(
		placeholderContext, context,
		placeholderHistory, history,
		placeholderQuestion, question,
	).Replace(template)
}

// formatContext joins retrieved chunk texts with blank lines.
func formatContext(chunks []domain.Chunk) string {
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Content
	}
	return strings.Join(texts, "\n\n")
}

// formatHistory renders turns as a transcript, one line per turn.
func formatHistory(turns []domain.Turn) string {
	lines := make([]string, 0, len(turns))
	for _, turn := range turns {
		speaker := "AI"
		if turn.Role == domain.RoleUser {
			speaker = "User"
		}
		lines = append(lines, speaker+": "+turn.Content)
	}
	return strings.Join(lines, "\n")
}
