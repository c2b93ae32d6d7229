package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/logger"
)

var (
	askSession string
	askServer  string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about a session's documents",
	Long: `Ask a question answered from the documents ingested into a session.

The answer is printed as it is generated, followed by the pages it was
drawn from. The question and answer are recorded in the session's history.

With --server the question is sent to a running 'docqa serve' instance
instead of being answered locally.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askSession, "session", "s", "", "session id")
	askCmd.Flags().StringVar(&askServer, "server", "", "base URL of a docqa server, e.g. http://localhost:8000")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")
	if askSession == "" {
		return errNoSession
	}

	out := cmd.OutOrStdout()
	if !isTerminal(out) {
		color.NoColor = true
	}

	if askServer != "" {
		return askRemote(cmd, askServer, question, askSession)
	}

	if chatService == nil {
		return errors.New("chat service not configured")
	}

	writer := domain.FragmentWriterFunc(func(f domain.Fragment) error {
		if f.Kind == domain.FragmentText {
			_, err := io.WriteString(out, f.Text)
			return err
		}
		return nil
	})

	result, err := chatService.Ask(cmd.Context(), question, askSession, writer)
	fmt.Fprintln(out)
	if err != nil {
		return fmt.Errorf("answer failed: %w", err)
	}
	printSources(out, result.Sources)
	return nil
}

// askRemote posts the question to a server and splits the streamed body
// into prose and the trailing citations.
func askRemote(cmd *cobra.Command, server, question, sessionID string) error {
	body, err := json.Marshal(map[string]string{"question": question, "session_id": sessionID})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(server, "/") + "/ask"
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(resp.Body) //nolint:errcheck // best effort error body
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server error (status %d): %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	out := cmd.OutOrStdout()
	var scanner domain.SentinelScanner
	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := io.WriteString(out, scanner.Write(string(buf[:n]))); err != nil {
				return err
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			fmt.Fprintln(out)
			return fmt.Errorf("read answer: %w", readErr)
		}
	}

	rest, sources, err := scanner.Close()
	fmt.Fprintln(out, rest)
	if err != nil {
		logger.Warn("Ignoring malformed sources: %v", err)
		return nil
	}
	printSources(out, sources)
	return nil
}

// printSources lists citations under the answer. Nothing is printed when the
// answer had no sources fragment.
func printSources(w io.Writer, sources []string) {
	if len(sources) == 0 {
		return
	}
	heading := color.New(color.FgCyan, color.Bold).SprintFunc()
	item := color.New(color.FgGreen).SprintFunc()

	fmt.Fprintln(w)
	fmt.Fprintln(w, heading("Sources:"))
	for _, s := range sources {
		fmt.Fprintf(w, "  - %s\n", item(s))
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
