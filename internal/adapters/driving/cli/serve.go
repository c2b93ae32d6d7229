package cli

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa/internal/adapters/driving/httpapi"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the HTTP API used by the web client.

Endpoints:
  GET    /system/status?session_id=   whether the session has an index
  POST   /system/clear                remove a session's index
  POST   /upload                      multipart files, action=append|reset, session_id
  POST   /ask                         {"question", "session_id"}, streamed plain text
  GET    /sessions                    list sessions
  POST   /sessions                    create a session
  GET    /sessions/{id}               session with history
  DELETE /sessions/{id}               delete a session and its index`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if ingestService == nil || chatService == nil || sessionService == nil {
		return errors.New("services not configured")
	}

	cfg := settings()
	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}

	server, err := httpapi.NewServer(&httpapi.Ports{
		Ingest:   ingestService,
		Chat:     chatService,
		Sessions: sessionService,
	}, httpapi.Config{
		Addr:            addr,
		UploadDir:       cfg.Storage.UploadDir,
		MaxUploadBytes:  cfg.Server.MaxUploadBytes,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd.Printf("docqa API listening on %s\n", addr)
	return server.Run(ctx)
}
