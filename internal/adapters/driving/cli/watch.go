package cli

import (
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa/internal/adapters/driving/watch"
	"github.com/custodia-labs/docqa/internal/core/domain"
)

var (
	watchSession  string
	watchInitial  bool
	watchDebounce time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch [directory]",
	Short: "Index documents as they appear in a directory",
	Long: `Watch a directory and append new or changed PDFs and images to a
session's index. Press Ctrl+C to stop.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchSession, "session", "s", "", "session id")
	watchCmd.Flags().BoolVar(&watchInitial, "initial", false, "ingest files already in the directory first")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "quiet period before ingesting")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}
	if watchSession == "" {
		return errNoSession
	}

	w, err := watch.New(ingestService, watch.Config{
		Dir:       args[0],
		SessionID: watchSession,
		Debounce:  watchDebounce,
		Initial:   watchInitial,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd.Printf("Watching %s (Ctrl+C to stop)\n", args[0])
	return w.Run(ctx, func(paths []string, result *domain.IngestResult, err error) {
		names := make([]string, len(paths))
		for i, p := range paths {
			names[i] = filepath.Base(p)
		}
		switch {
		case err != nil:
			cmd.Printf("Failed to index %s: %v\n", strings.Join(names, ", "), err)
		case !result.OK():
			cmd.Printf("Skipped %s: %s\n", strings.Join(names, ", "), result.Message)
		default:
			cmd.Printf("Indexed %d chunks from %s\n", result.Chunks, strings.Join(names, ", "))
		}
	})
}
