// Package cli provides the docqa command line interface.
package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/logger"
)

// version is set at build time via SetVersion.
var version = "dev"

var (
	verbose   bool
	ephemeral bool
)

// Services used by the commands. They are set by SetServices, either
// directly or through the bootstrap function before a command runs.
var (
	ingestService   driving.IngestService
	chatService     driving.ChatService
	sessionService  driving.SessionService
	settingsService driving.SettingsService
	appSettings     *domain.AppSettings
)

// skipBootstrap marks commands that never touch the services.
const skipBootstrap = "skip-bootstrap"

// Services bundles everything the commands drive.
type Services struct {
	Ingest   driving.IngestService
	Chat     driving.ChatService
	Sessions driving.SessionService
	Settings driving.SettingsService

	// Config is the resolved configuration the services were built from.
	Config *domain.AppSettings
}

// Options are the global flags that influence how services are built.
type Options struct {
	// Ephemeral keeps configuration, history and indices out of the user's
	// data directory.
	Ephemeral bool
}

// Bootstrap builds the services for one invocation. The returned function
// releases them and may be nil.
type Bootstrap func(opts Options) (*Services, func(), error)

var (
	bootstrap Bootstrap
	release   func()
)

var rootCmd = &cobra.Command{
	Use:   "docqa",
	Short: "Ask questions about your documents",
	Long: `docqa keeps a small knowledge base per chat session. Upload PDFs and
scanned images into a session, then ask questions answered by an LLM that
only uses the retrieved passages and cites the pages it used.`,
	SilenceUsage:      true,
	PersistentPreRunE: setupServices,
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if release != nil {
			release()
			release = nil
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug output")
	rootCmd.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false,
		"keep configuration, history and indices in memory or temporary storage")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// SetServices installs the services used by the commands.
func SetServices(s *Services) {
	if s == nil {
		s = &Services{}
	}
	ingestService = s.Ingest
	chatService = s.Chat
	sessionService = s.Sessions
	settingsService = s.Settings
	appSettings = s.Config
}

// SetBootstrap registers the function that builds services lazily, once the
// global flags have been parsed.
func SetBootstrap(b Bootstrap) {
	bootstrap = b
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func setupServices(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	if bootstrap == nil || cmd.Annotations[skipBootstrap] == "true" {
		return nil
	}

	services, cleanup, err := bootstrap(Options{Ephemeral: ephemeral})
	if err != nil {
		return fmt.Errorf("initialise services: %w", err)
	}
	SetServices(services)
	release = cleanup
	return nil
}

// settings returns the resolved configuration, falling back to defaults.
func settings() domain.AppSettings {
	if appSettings != nil {
		return *appSettings
	}
	if settingsService != nil {
		if s, err := settingsService.Get(); err == nil {
			return *s
		}
	}
	return domain.DefaultAppSettings()
}

var errNoSession = errors.New("a session is required: pass --session or create one with 'docqa sessions new'")
