// Package sessions provides the session picker view for the TUI.
package sessions

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
)

// View lists sessions, most recent first, with a leading "new chat" entry.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	statusbar *status.Bar

	service driving.SessionService
	ctx     context.Context

	sessions []domain.SessionSummary
	selected int
	loading  bool
	err      error
	width    int
	height   int
	ready    bool
}

// NewView creates a new session picker.
func NewView(s *styles.Styles, km *keymap.KeyMap, service driving.SessionService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	bar := status.NewBar(s, km)
	bar.SetState(status.StateSessions)

	return &View{
		styles:    s,
		keymap:    km,
		statusbar: bar,
		service:   service,
		ctx:       context.Background(),
		width:     80,
		height:    24,
	}
}

// WithContext sets the context for the view.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return v.Load()
}

// Load fetches the session listing.
func (v *View) Load() tea.Cmd {
	v.loading = true
	service, ctx := v.service, v.ctx
	return func() tea.Msg {
		if service == nil {
			return messages.SessionsLoaded{}
		}
		sessions, err := service.List(ctx)
		return messages.SessionsLoaded{Sessions: sessions, Err: err}
	}
}

// Update handles messages for the session picker.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case messages.SessionsLoaded:
		v.loading = false
		v.err = msg.Err
		if msg.Err == nil {
			v.sessions = msg.Sessions
		}
		v.clampSelection()
		v.updateStatus()
		return v, nil

	case messages.SessionDeleted:
		if msg.Err != nil {
			v.err = msg.Err
			v.updateStatus()
			return v, nil
		}
		return v, v.Load()

	case messages.ErrorOccurred:
		v.err = msg.Err
		v.updateStatus()
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)
	}

	return v, nil
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	keyStr := msg.String()

	switch {
	case keymap.Matches(keyStr, v.keymap.Up):
		if v.selected > 0 {
			v.selected--
		}
		return v, nil

	case keymap.Matches(keyStr, v.keymap.Down):
		if v.selected < len(v.sessions) {
			v.selected++
		}
		return v, nil

	case keymap.Matches(keyStr, v.keymap.NewSession):
		return v, newSession

	case keymap.Matches(keyStr, v.keymap.Select):
		if v.selected == 0 {
			return v, newSession
		}
		id := v.sessions[v.selected-1].ID
		return v, func() tea.Msg {
			return messages.SessionSelected{ID: id}
		}

	case keymap.Matches(keyStr, v.keymap.Delete):
		if v.selected == 0 || v.service == nil {
			return v, nil
		}
		return v, v.deleteSession(v.sessions[v.selected-1].ID)

	case keyStr == "q", keymap.Matches(keyStr, v.keymap.Back):
		return v, tea.Quit
	}

	return v, nil
}

func newSession() tea.Msg {
	return messages.NewSessionRequested{}
}

func (v *View) deleteSession(id string) tea.Cmd {
	service, ctx := v.service, v.ctx
	return func() tea.Msg {
		return messages.SessionDeleted{ID: id, Err: service.Delete(ctx, id)}
	}
}

func (v *View) clampSelection() {
	if v.selected > len(v.sessions) {
		v.selected = len(v.sessions)
	}
}

func (v *View) updateStatus() {
	if v.err != nil {
		v.statusbar.SetState(status.StateError)
		v.statusbar.SetMessage(v.err.Error())
		return
	}
	v.statusbar.SetState(status.StateSessions)
	switch len(v.sessions) {
	case 0:
		v.statusbar.SetMessage("No sessions yet")
	case 1:
		v.statusbar.SetMessage("1 session")
	default:
		v.statusbar.SetMessage(fmt.Sprintf("%d sessions", len(v.sessions)))
	}
}

// View renders the session list.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	var b strings.Builder

	b.WriteString(v.styles.Title.Render("docqa"))
	b.WriteString("\n\n")
	b.WriteString(v.styles.Muted.Render("Chat with your documents"))
	b.WriteString("\n\n")

	if v.loading && len(v.sessions) == 0 {
		b.WriteString(v.styles.Muted.Render("Loading sessions..."))
		b.WriteString("\n")
	}

	b.WriteString(v.renderItem(0, "+ New chat", ""))
	for i, s := range v.sessions {
		b.WriteString(v.renderItem(i+1, s.Title, s.CreatedAt.Local().Format("2006-01-02 15:04")))
	}

	b.WriteString("\n")
	b.WriteString(v.statusbar.View())

	return b.String()
}

func (v *View) renderItem(index int, label, detail string) string {
	cursor := "  "
	style := v.styles.Normal
	if index == v.selected {
		cursor = "> "
		style = v.styles.Selected
	}

	line := cursor + style.Render(label)
	if detail != "" {
		line += "  " + v.styles.Muted.Render(detail)
	}
	return line + "\n"
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
	v.statusbar.SetWidth(width)
}

// Selected returns the currently selected index. Zero is the new chat entry.
func (v *View) Selected() int {
	return v.selected
}

// Sessions returns the loaded sessions.
func (v *View) Sessions() []domain.SessionSummary {
	return v.sessions
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
