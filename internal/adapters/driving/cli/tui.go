package cli

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa/internal/adapters/driving/tui"
)

var (
	chatSession string
	chatPlain   bool
)

// chatCmd represents the chat command.
var chatCmd = &cobra.Command{
	Use:     "chat",
	Aliases: []string{"tui"},
	Short:   "Launch the interactive chat",
	Long: `Launch the interactive terminal chat for docqa.

Without --session the chat opens on the session picker, where an
existing conversation can be resumed or a new one started.

Controls:
  ↑/k, ↓/j  - Navigate sessions
  Enter     - Open session / Ask
  n         - New chat
  d         - Delete session
  Esc       - Stop answer / Back to sessions
  PgUp/PgDn - Scroll transcript
  Ctrl+C    - Quit`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatSession, "session", "s", "", "open this session directly")
	chatCmd.Flags().BoolVar(&chatPlain, "plain", false, "show answers as plain text instead of rendered markdown")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) (err error) {
	// Add panic recovery to get stack traces
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
			err = errors.New("chat terminated unexpectedly")
		}
	}()

	ports := tui.NewPorts(chatService, sessionService, ingestService)

	app, err := tui.NewApp(ports)
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}

	app.WithContext(cmd.Context()).WithSession(chatSession)
	if chatPlain {
		app.WithPlainText()
	}

	if err := app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
