// Package chat provides the conversation view for the TUI.
package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
)

// streamBuffer is how many fragments may queue before the model is throttled.
const streamBuffer = 32

// chromeHeight is the number of rows used by the header, input and status bar.
const chromeHeight = 7

// View shows one session's transcript and streams new answers into it.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	input     *input.QuestionInput
	viewport  viewport.Model
	spinner   spinner.Model
	statusbar *status.Bar
	renderer  *glamour.TermRenderer
	plain     bool

	chat     driving.ChatService
	sessions driving.SessionService
	ingest   driving.IngestService
	ctx      context.Context

	sessionID string
	title     string
	hasIndex  bool
	turns     []domain.Turn

	pending   strings.Builder
	sources   []string
	streaming bool
	streamID  uint64
	stream    <-chan tea.Msg
	cancel    context.CancelFunc

	err    error
	width  int
	height int
	ready  bool
}

// NewView creates a new chat view. Sessions and ingest may be nil.
func NewView(
	s *styles.Styles,
	km *keymap.KeyMap,
	chat driving.ChatService,
	sessions driving.SessionService,
	ingest driving.IngestService,
) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = s.Spinner

	v := &View{
		styles:    s,
		keymap:    km,
		input:     input.NewQuestionInput(s),
		viewport:  viewport.New(80, 24-chromeHeight),
		spinner:   sp,
		statusbar: status.NewBar(s, km),
		chat:      chat,
		sessions:  sessions,
		ingest:    ingest,
		ctx:       context.Background(),
		title:     domain.DefaultSessionTitle,
		width:     80,
		height:    24,
	}
	v.renderer = newRenderer(v.width)
	return v
}

// WithContext sets the context for the view.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// WithPlainText disables markdown rendering of answers.
func (v *View) WithPlainText() *View {
	v.plain = true
	return v
}

// SessionID returns the session the view is bound to.
func (v *View) SessionID() string {
	return v.sessionID
}

// SetSession binds the view to a session and loads its history.
func (v *View) SetSession(id string) tea.Cmd {
	v.abandonStream()
	v.sessionID = id
	v.title = domain.DefaultSessionTitle
	v.turns = nil
	v.hasIndex = false
	v.err = nil
	v.resetPending()
	v.statusbar.Clear()
	v.refresh()
	return v.loadSession(id)
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// Update handles messages for the chat view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case messages.SessionLoaded:
		v.handleSessionLoaded(msg)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.FragmentReceived:
		if !v.streaming || msg.Stream != v.streamID {
			return v, nil
		}
		v.handleFragment(msg.Fragment)
		return v, waitForStream(v.stream)

	case messages.AnswerFinished:
		if !v.streaming || msg.Stream != v.streamID {
			return v, nil
		}
		v.handleAnswerFinished(msg)
		return v, nil

	case spinner.TickMsg:
		if !v.streaming {
			return v, nil
		}
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd

	case messages.ErrorOccurred:
		v.err = msg.Err
		v.statusbar.SetState(status.StateError)
		v.statusbar.SetMessage(msg.Err.Error())
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	keyStr := msg.String()

	switch {
	case v.streaming && keymap.Matches(keyStr, v.keymap.Cancel):
		v.stop()
		return v, nil

	case keymap.Matches(keyStr, v.keymap.Back):
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewSessions}
		}

	case keymap.Matches(keyStr, v.keymap.ScrollUp), keymap.Matches(keyStr, v.keymap.ScrollDown):
		var cmd tea.Cmd
		v.viewport, cmd = v.viewport.Update(pageKey(keyStr, v.keymap))
		return v, cmd

	case keymap.Matches(keyStr, v.keymap.Send):
		if v.streaming {
			return v, nil
		}
		question := strings.TrimSpace(v.input.Value())
		if question == "" {
			return v, nil
		}
		v.input.Reset()
		return v, v.ask(question)
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// pageKey maps the configured scroll bindings onto the viewport's own keys.
func pageKey(keyStr string, km *keymap.KeyMap) tea.KeyMsg {
	if keymap.Matches(keyStr, km.ScrollUp) {
		return tea.KeyMsg{Type: tea.KeyPgUp}
	}
	return tea.KeyMsg{Type: tea.KeyPgDown}
}

// ask starts streaming an answer. Fragments arrive as FragmentReceived
// messages followed by exactly one AnswerFinished.
func (v *View) ask(question string) tea.Cmd {
	if v.chat == nil {
		return func() tea.Msg {
			return messages.ErrorOccurred{Err: errors.New("chat service not configured")}
		}
	}

	v.turns = append(v.turns, domain.Turn{Role: domain.RoleUser, Content: question})
	if len(v.turns) == 1 {
		v.title = domain.TitleFromQuestion(question)
	}
	v.resetPending()
	v.err = nil
	v.streaming = true
	v.statusbar.Clear()
	v.statusbar.SetState(status.StateThinking)
	v.refresh()

	ctx, cancel := context.WithCancel(v.ctx)
	ch := make(chan tea.Msg, streamBuffer)
	v.streamID++
	v.cancel = cancel
	v.stream = ch

	id, chat, sessionID, parent := v.streamID, v.chat, v.sessionID, v.ctx
	go func() {
		defer close(ch)
		w := domain.FragmentWriterFunc(func(f domain.Fragment) error {
			select {
			case ch <- messages.FragmentReceived{Stream: id, Fragment: f}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		result, err := chat.Ask(ctx, question, sessionID, w)
		select {
		case ch <- messages.AnswerFinished{Stream: id, Result: result, Err: err}:
		case <-parent.Done():
		}
	}()

	return tea.Batch(waitForStream(ch), v.spinner.Tick)
}

// waitForStream reads the next message of an answer stream.
func waitForStream(ch <-chan tea.Msg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func (v *View) handleFragment(f domain.Fragment) {
	if f.Kind == domain.FragmentSources {
		v.sources = f.Sources
	} else {
		v.pending.WriteString(f.Text)
		v.statusbar.SetState(status.StateStreaming)
	}
	v.refresh()
}

func (v *View) handleAnswerFinished(msg messages.AnswerFinished) {
	answer := v.pending.String()
	sources := v.sources
	if msg.Result != nil {
		answer = msg.Result.Answer
		if msg.Result.Sources != nil {
			sources = msg.Result.Sources
		}
	}

	if answer != "" {
		v.turns = append(v.turns, domain.Turn{Role: domain.RoleBot, Content: answer, Sources: sources})
	}
	if answer == domain.NoDocumentsMessage {
		v.hasIndex = false
	} else if msg.Err == nil {
		v.hasIndex = true
	}

	v.streaming = false
	v.stream = nil
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.resetPending()

	switch {
	case errors.Is(msg.Err, context.Canceled):
		v.statusbar.SetState(status.StateReady)
		v.statusbar.SetMessage("Stopped")
	case msg.Err != nil:
		v.err = msg.Err
		v.statusbar.SetState(status.StateError)
		v.statusbar.SetMessage(msg.Err.Error())
	default:
		v.statusbar.SetState(status.StateReady)
		v.statusbar.SetSourceCount(len(sources))
	}
	v.refresh()
}

// stop cancels a running answer. The stream still delivers AnswerFinished.
func (v *View) stop() {
	if v.cancel != nil {
		v.cancel()
	}
}

// abandonStream cancels a running answer and ignores whatever it still sends.
func (v *View) abandonStream() {
	v.stop()
	v.streaming = false
	v.stream = nil
	v.cancel = nil
}

func (v *View) resetPending() {
	v.pending.Reset()
	v.sources = nil
}

func (v *View) loadSession(id string) tea.Cmd {
	sessions, ingest, ctx := v.sessions, v.ingest, v.ctx
	return func() tea.Msg {
		msg := messages.SessionLoaded{Session: &domain.Session{ID: id, Title: domain.DefaultSessionTitle}}
		if ingest != nil {
			msg.HasIndex = ingest.Status(id)
		}
		if sessions == nil {
			return msg
		}
		session, err := sessions.Get(ctx, id)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return msg
		case err != nil:
			msg.Err = err
			return msg
		}
		msg.Session = session
		return msg
	}
}

func (v *View) handleSessionLoaded(msg messages.SessionLoaded) {
	if msg.Err != nil {
		v.err = msg.Err
		v.statusbar.SetState(status.StateError)
		v.statusbar.SetMessage(msg.Err.Error())
		return
	}
	if msg.Session == nil || msg.Session.ID != v.sessionID {
		return
	}
	v.title = msg.Session.Title
	v.turns = append([]domain.Turn(nil), msg.Session.Messages...)
	v.hasIndex = msg.HasIndex
	v.refresh()
}

// View renders the chat view.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(v.viewport.View())
	b.WriteString("\n")

	if v.streaming {
		b.WriteString(v.spinner.View())
		b.WriteString(" ")
	}
	b.WriteString(v.input.View())
	b.WriteString("\n")
	b.WriteString(v.statusbar.View())

	return b.String()
}

func (v *View) renderHeader() string {
	title := v.styles.Title.Render("docqa")
	session := v.styles.Subtitle.Render(v.title)
	state := v.styles.Muted.Render("no documents")
	if v.hasIndex {
		state = v.styles.Success.Render("index ready")
	}
	//nolint:misspell // lipgloss.Center is the correct constant from the library
	return lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", session, "  ", state)
}

// Transcript renders the conversation without the surrounding chrome.
func (v *View) Transcript() string {
	var b strings.Builder

	if len(v.turns) == 0 && !v.streaming {
		b.WriteString(v.styles.Muted.Render("Ask a question about the documents in this session."))
		return b.String()
	}

	for _, turn := range v.turns {
		v.writeTurn(&b, turn)
	}

	if v.streaming {
		b.WriteString(v.styles.BotLabel.Render("AI"))
		b.WriteString("\n")
		b.WriteString(v.styles.PendingAnswer(v.pending.String()))
		b.WriteString("\n")
		if v.sources != nil {
			v.writeSources(&b, v.sources)
		}
	}

	return b.String()
}

func (v *View) writeTurn(b *strings.Builder, turn domain.Turn) {
	if turn.Role == domain.RoleUser {
		b.WriteString(v.styles.UserLabel.Render("You"))
		b.WriteString("\n")
		b.WriteString(turn.Content)
		b.WriteString("\n\n")
		return
	}

	b.WriteString(v.styles.BotLabel.Render("AI"))
	b.WriteString("\n")
	b.WriteString(v.renderMarkdown(turn.Content))
	b.WriteString("\n")
	if len(turn.Sources) > 0 {
		v.writeSources(b, turn.Sources)
	}
	b.WriteString("\n")
}

func (v *View) writeSources(b *strings.Builder, sources []string) {
	if footer := v.styles.Citations(sources); footer != "" {
		b.WriteString(footer)
		b.WriteString("\n")
	}
}

func (v *View) renderMarkdown(text string) string {
	if v.plain || v.renderer == nil {
		return text
	}
	out, err := v.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

func newRenderer(width int) *glamour.TermRenderer {
	wrap := width - 4
	if wrap < 20 {
		wrap = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return nil
	}
	return r
}

func (v *View) refresh() {
	v.viewport.SetContent(v.Transcript())
	v.viewport.GotoBottom()
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	if width != v.width && !v.plain {
		v.renderer = newRenderer(width)
	}
	v.width = width
	v.height = height
	v.ready = true

	v.viewport.Width = width
	v.viewport.Height = max(height-chromeHeight, 3)
	v.input.SetWidth(width)
	v.statusbar.SetWidth(width)
	v.refresh()
}

// Streaming reports whether an answer is in progress.
func (v *View) Streaming() bool {
	return v.streaming
}

// Turns returns the transcript shown in the view.
func (v *View) Turns() []domain.Turn {
	return v.turns
}

// Title returns the session title shown in the header.
func (v *View) Title() string {
	return v.title
}

// HasIndex reports whether the session has indexed documents.
func (v *View) HasIndex() bool {
	return v.hasIndex
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}

// Status returns the status bar for inspection.
func (v *View) Status() *status.Bar {
	return v.statusbar
}

// Close cancels any answer still streaming.
func (v *View) Close() {
	v.abandonStream()
}
