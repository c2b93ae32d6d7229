package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var indexSession string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a session has an index",
	RunE:  runStatus,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove a session's index",
	Long: `Remove a session's document index. The session and its history are kept,
so documents can be uploaded again. Clearing a session without an index is
not an error.`,
	RunE: runClear,
}

func init() {
	statusCmd.Flags().StringVarP(&indexSession, "session", "s", "", "session id")
	clearCmd.Flags().StringVarP(&indexSession, "session", "s", "", "session id")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(clearCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}
	if indexSession == "" {
		return errNoSession
	}

	if ingestService.Status(indexSession) {
		cmd.Printf("Index: present (%s)\n", ingestService.IndexPath(indexSession))
	} else {
		cmd.Println("Index: none")
	}
	return nil
}

func runClear(cmd *cobra.Command, _ []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}
	if indexSession == "" {
		return errNoSession
	}

	removed, err := ingestService.Clear(cmd.Context(), indexSession)
	if err != nil {
		return fmt.Errorf("failed to clear index: %w", err)
	}
	if removed {
		cmd.Println("Vector store cleared successfully.")
	} else {
		cmd.Println("Nothing to clear.")
	}
	return nil
}
