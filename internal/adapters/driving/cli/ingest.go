package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa/internal/normalisers"
)

var (
	ingestSession string
	ingestReset   bool
	ingestJSON    bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [files, directories or globs...]",
	Short: "Add documents to a session's knowledge base",
	Long: `Extract text from PDFs and images and add it to a session's index.

Arguments may be files, directories (searched recursively) or glob patterns
such as "reports/**/*.pdf". Unsupported files are skipped. Without --session
a new session is created. With --reset the session's existing index is
replaced instead of extended.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestSession, "session", "s", "", "session id (default: create a new session)")
	ingestCmd.Flags().BoolVar(&ingestReset, "reset", false, "replace the session's index instead of appending")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "print the result as JSON")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	paths, err := expandPaths(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return errors.New("no supported files matched")
	}

	ctx := cmd.Context()
	sessionID := ingestSession
	if sessionID == "" {
		if sessionService == nil {
			return errNoSession
		}
		session, err := sessionService.Create(ctx, "")
		if err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		sessionID = session.ID
		if !ingestJSON {
			cmd.Printf("Created session %s\n", sessionID)
		}
	}

	result, err := ingestService.Ingest(ctx, paths, sessionID, ingestReset)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	if ingestJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		cmd.Println(string(data))
	}
	if !result.OK() {
		return fmt.Errorf("ingestion failed: %s", result.Message)
	}
	if !ingestJSON {
		cmd.Printf("Indexed %d chunks from %d files into session %s (%s)\n",
			result.Chunks, result.Files, result.SessionID, result.Action)
	}
	return nil
}

// expandPaths resolves files, directories and glob patterns into a
// de-duplicated list of supported files, in argument order.
func expandPaths(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var paths []string
	add := func(p string) {
		if !seen[p] && normalisers.Supported(p) {
			seen[p] = true
			paths = append(paths, p)
		}
	}

	for _, arg := range args {
		if strings.ContainsAny(arg, "*?[{") {
			matches, err := doublestar.FilepathGlob(arg, doublestar.WithFilesOnly())
			if err != nil {
				return nil, fmt.Errorf("invalid pattern %q: %w", arg, err)
			}
			for _, m := range matches {
				add(m)
			}
			continue
		}

		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", arg, err)
		}
		if !info.IsDir() {
			add(arg)
			continue
		}
		matches, err := doublestar.FilepathGlob(filepath.Join(arg, "**", "*"), doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("cannot walk %s: %w", arg, err)
		}
		for _, m := range matches {
			add(m)
		}
	}
	return paths, nil
}
