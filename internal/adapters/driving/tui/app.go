package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/views/chat"
	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/views/sessions"
)

// App is the main TUI application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	// ports provides access to core services via driving ports.
	ports *Ports

	// ctx is the context for cancellation.
	ctx context.Context

	// styles holds the TUI styles.
	styles *styles.Styles

	// sessionsView is the session picker.
	sessionsView *sessions.View

	// chatView is the conversation view.
	chatView *chat.View

	// currentView tracks which view is active.
	currentView messages.ViewType

	// initialSession is opened on start instead of the picker.
	initialSession string

	// err holds the last error that occurred.
	err error

	// width and height are terminal dimensions.
	width  int
	height int

	// ready indicates if the app has initialised.
	ready bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()

	return &App{
		ports:        ports,
		ctx:          context.Background(),
		styles:       s,
		sessionsView: sessions.NewView(s, km, ports.Sessions),
		chatView:     chat.NewView(s, km, ports.Chat, ports.Sessions, ports.Ingest),
		currentView:  messages.ViewSessions,
	}, nil
}

// WithContext sets the context for the app.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	a.sessionsView.WithContext(ctx)
	a.chatView.WithContext(ctx)
	return a
}

// WithSession opens the given session on start instead of the picker.
func (a *App) WithSession(id string) *App {
	a.initialSession = id
	if id != "" {
		a.currentView = messages.ViewChat
	}
	return a
}

// WithPlainText disables markdown rendering of answers.
func (a *App) WithPlainText() *App {
	a.chatView.WithPlainText()
	return a
}

// Init implements tea.Model.
// It runs initial commands when the program starts.
func (a *App) Init() tea.Cmd {
	start := a.sessionsView.Init()
	if a.initialSession != "" {
		start = a.chatView.SetSession(a.initialSession)
	}
	return tea.Batch(
		tea.SetWindowTitle("docqa"),
		a.chatView.Init(),
		start,
	)
}

// Update implements tea.Model.
// It handles messages and updates the model state.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		// Global quit with ctrl+c
		if msg.String() == "ctrl+c" {
			a.chatView.Close()
			return a, tea.Quit
		}
		return a.updateActive(msg)

	case messages.ViewChanged:
		a.currentView = msg.View
		if msg.View == messages.ViewSessions {
			return a, a.sessionsView.Load()
		}
		return a, nil

	case messages.SessionSelected:
		a.currentView = messages.ViewChat
		return a, a.chatView.SetSession(msg.ID)

	case messages.NewSessionRequested:
		return a, a.createSession()

	case messages.SessionsLoaded, messages.SessionDeleted:
		a.sessionsView, cmd = a.sessionsView.Update(msg)
		a.err = a.sessionsView.Err()
		return a, cmd

	case messages.SessionLoaded, messages.FragmentReceived, messages.AnswerFinished, spinner.TickMsg:
		a.chatView, cmd = a.chatView.Update(msg)
		a.err = a.chatView.Err()
		return a, cmd

	case messages.ErrorOccurred:
		a.err = msg.Err
		return a.updateActive(msg)

	case messages.Quit:
		a.chatView.Close()
		return a, tea.Quit
	}

	return a.updateActive(msg)
}

func (a *App) updateActive(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.currentView {
	case messages.ViewChat:
		a.chatView, cmd = a.chatView.Update(msg)
	default:
		a.sessionsView, cmd = a.sessionsView.Update(msg)
	}
	return a, cmd
}

func (a *App) createSession() tea.Cmd {
	service, ctx := a.ports.Sessions, a.ctx
	return func() tea.Msg {
		session, err := service.Create(ctx, "")
		if err != nil {
			return messages.ErrorOccurred{Err: fmt.Errorf("creating session: %w", err)}
		}
		return messages.SessionSelected{ID: session.ID}
	}
}

// View implements tea.Model.
// It renders the current view as a string.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	switch a.currentView {
	case messages.ViewChat:
		return a.chatView.View()
	default:
		return a.sessionsView.View()
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx))
	_, err := p.Run()
	a.chatView.Close()
	return err
}

// CurrentView returns the current view type.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// Chat returns the conversation view.
func (a *App) Chat() *chat.View {
	return a.chatView
}

// Sessions returns the session picker.
func (a *App) Sessions() *sessions.View {
	return a.sessionsView
}

// Err returns the last error that occurred.
func (a *App) Err() error {
	return a.err
}

// Ready returns whether the app has been initialised.
func (a *App) Ready() bool {
	return a.ready
}

// SetDimensions sets the terminal dimensions.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	a.sessionsView.SetDimensions(width, height)
	a.chatView.SetDimensions(width, height)
}
