package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

var sessionsJSON bool

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Aliases: []string{"session"},
	Short:   "Manage chat sessions",
	Long:    `Each session has its own history and its own document index.`,
	RunE:    runSessionsList,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, most recent first",
	RunE:  runSessionsList,
}

var sessionsNewCmd = &cobra.Command{
	Use:   "new [title]",
	Short: "Create a session",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSessionsNew,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show [session-id]",
	Short: "Show a session's history",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete [session-id]",
	Short: "Delete a session with its history and index",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

func init() {
	sessionsCmd.PersistentFlags().BoolVar(&sessionsJSON, "json", false, "output as JSON")
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsNewCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func runSessionsList(cmd *cobra.Command, _ []string) error {
	if sessionService == nil {
		return errors.New("session service not configured")
	}

	sessions, err := sessionService.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if sessionsJSON {
		if sessions == nil {
			sessions = []domain.SessionSummary{}
		}
		return printJSON(cmd, sessions)
	}

	if len(sessions) == 0 {
		cmd.Println("No sessions. Create one with 'docqa sessions new'.")
		return nil
	}

	cmd.Printf("%-36s  %-16s  %s\n", "ID", "CREATED", "TITLE")
	for _, s := range sessions {
		cmd.Printf("%-36s  %-16s  %s\n", s.ID, s.CreatedAt.Local().Format("2006-01-02 15:04"), s.Title)
	}
	return nil
}

func runSessionsNew(cmd *cobra.Command, args []string) error {
	if sessionService == nil {
		return errors.New("session service not configured")
	}

	title := ""
	if len(args) == 1 {
		title = args[0]
	}
	session, err := sessionService.Create(cmd.Context(), title)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	if sessionsJSON {
		return printJSON(cmd, session)
	}
	cmd.Printf("Created session %s (%s)\n", session.ID, session.Title)
	return nil
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	if sessionService == nil {
		return errors.New("session service not configured")
	}

	session, err := sessionService.Get(cmd.Context(), args[0])
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("session not found: %s", args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	if sessionsJSON {
		return printJSON(cmd, session)
	}

	cmd.Printf("%s\n", session.Title)
	cmd.Printf("ID: %s  Created: %s\n", session.ID, session.CreatedAt.Local().Format("2006-01-02 15:04"))
	if ingestService != nil {
		if ingestService.Status(session.ID) {
			cmd.Printf("Index: %s\n", ingestService.IndexPath(session.ID))
		} else {
			cmd.Println("Index: none")
		}
	}
	cmd.Println(strings.Repeat("-", 40))

	if len(session.Messages) == 0 {
		cmd.Println("(no messages)")
		return nil
	}
	for _, turn := range session.Messages {
		speaker := "You"
		if turn.Role == domain.RoleBot {
			speaker = "AI"
		}
		cmd.Printf("%s: %s\n", speaker, turn.Content)
		if len(turn.Sources) > 0 {
			cmd.Printf("    Sources: %s\n", strings.Join(turn.Sources, "; "))
		}
	}
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	if sessionService == nil {
		return errors.New("session service not configured")
	}

	if err := sessionService.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	cmd.Printf("Deleted session %s\n", args[0])
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
