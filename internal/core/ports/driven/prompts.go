package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files, embed them in the binary,
// or fetch them from a remote configuration service.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// If the prompt is not found, implementations return the built-in default
	// or an error for names without one.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names used throughout the application.
// These constants define the contract between prompt consumers and providers.
const (
	// PromptRAGAnswer answers a question from retrieved context and recent history.
	// Placeholders: {context}, {chat_history}, {question}.
	PromptRAGAnswer = "rag_answer"

	// PromptRAGAnswerNoHistory answers the first question of a session.
	// Placeholders: {context}, {question}.
	PromptRAGAnswerNoHistory = "rag_answer_no_history"
)
