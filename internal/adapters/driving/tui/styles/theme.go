// Package styles provides colour themes and styling for the TUI.
package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// StreamCursor trails an answer while tokens are still arriving.
const StreamCursor = "▍"

// Theme is the palette of the chat screen.
type Theme struct {
	// Accent marks the app title and the answer label.
	Accent lipgloss.Color

	// Question marks the user's label and the session title.
	Question lipgloss.Color

	// Text is the default text colour.
	Text lipgloss.Color

	// Muted is for hints and the status bar.
	Muted lipgloss.Color

	// Citation colours source labels under an answer.
	Citation lipgloss.Color

	// Streaming colours an answer that is still being generated.
	Streaming lipgloss.Color

	// Ready marks a session whose index is loaded.
	Ready lipgloss.Color

	// Error indicates problems.
	Error lipgloss.Color

	// Border frames the question input.
	Border lipgloss.Color

	// Bar is the status bar background.
	Bar lipgloss.Color
}

// DefaultTheme returns the default colour theme.
func DefaultTheme() *Theme {
	return &Theme{
		Accent:    lipgloss.Color("#7C3AED"),
		Question:  lipgloss.Color("#06B6D4"),
		Text:      lipgloss.Color("#CDD6F4"),
		Muted:     lipgloss.Color("#6C7086"),
		Citation:  lipgloss.Color("#94E2D5"),
		Streaming: lipgloss.Color("#BAC2DE"),
		Ready:     lipgloss.Color("#A6E3A1"),
		Error:     lipgloss.Color("#F38BA8"),
		Border:    lipgloss.Color("#45475A"),
		Bar:       lipgloss.Color("#181825"),
	}
}

// Styles contains pre-configured lipgloss styles.
type Styles struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Normal   lipgloss.Style
	Muted    lipgloss.Style
	Selected lipgloss.Style
	Error    lipgloss.Style
	Success  lipgloss.Style

	// InputField frames the question box.
	InputField lipgloss.Style

	// StatusBar spans the bottom line.
	StatusBar lipgloss.Style

	// UserLabel prefixes questions in the transcript.
	UserLabel lipgloss.Style

	// BotLabel prefixes answers in the transcript.
	BotLabel lipgloss.Style

	// Pending renders answer text that is still streaming, and Cursor the
	// marker after it.
	Pending lipgloss.Style
	Cursor  lipgloss.Style

	// Spinner animates while waiting for the first token.
	Spinner lipgloss.Style

	// SourcesTitle heads the citation footer of an answer.
	SourcesTitle lipgloss.Style

	// Source renders a single citation label.
	Source lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(theme *Theme) *Styles {
	if theme == nil {
		theme = DefaultTheme()
	}

	return &Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(theme.Accent),
		Subtitle: lipgloss.NewStyle().Bold(true).Foreground(theme.Question),
		Normal:   lipgloss.NewStyle().Foreground(theme.Text),
		Muted:    lipgloss.NewStyle().Foreground(theme.Muted),
		Selected: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Text).
			Background(theme.Accent),
		Error:   lipgloss.NewStyle().Foreground(theme.Error),
		Success: lipgloss.NewStyle().Foreground(theme.Ready),

		InputField: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(0, 1),

		StatusBar: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Background(theme.Bar).
			Padding(0, 1),

		UserLabel: lipgloss.NewStyle().Bold(true).Foreground(theme.Question),
		BotLabel:  lipgloss.NewStyle().Bold(true).Foreground(theme.Accent),

		Pending: lipgloss.NewStyle().Foreground(theme.Streaming),
		Cursor:  lipgloss.NewStyle().Blink(true).Foreground(theme.Accent),
		Spinner: lipgloss.NewStyle().Foreground(theme.Question),

		SourcesTitle: lipgloss.NewStyle().Bold(true).Foreground(theme.Muted),

		Source: lipgloss.NewStyle().
			Foreground(theme.Citation).
			PaddingLeft(2),
	}
}

// DefaultStyles returns styles with the default theme.
func DefaultStyles() *Styles {
	return NewStyles(DefaultTheme())
}

// PendingAnswer renders the part of an answer received so far, followed by
// the stream cursor.
func (s *Styles) PendingAnswer(text string) string {
	return s.Pending.Render(text) + s.Cursor.Render(StreamCursor)
}

// Citations renders the "Sources" footer listing one label per line, or ""
// when there is nothing to cite.
func (s *Styles) Citations(sources []string) string {
	if len(sources) == 0 {
		return ""
	}
	lines := make([]string, 0, len(sources)+1)
	lines = append(lines, s.SourcesTitle.Render("Sources"))
	for _, src := range sources {
		lines = append(lines, s.Source.Render("• "+src))
	}
	return strings.Join(lines, "\n")
}
