package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sentinelgate/sentinel/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Sentinel HTTP gateway",
	Long: `Start the HTTP gateway agents talk to.

  sentinel serve

Endpoints: POST /audit, POST /audit-only, GET /pending, POST /approve/{id},
POST /reject/{id}, GET /stats, GET /health. All but /health require the
X-Sentinel-Token header unless SENTINEL_DISABLE_AUTH is set.`,
	RunE: serveCommand,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serveCommand(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if !app.settings.AuthDisabled && app.settings.AuthToken == "" {
		fmt.Fprintln(os.Stderr, "warning: SENTINEL_AUTH_TOKEN is not set; protected endpoints will answer 503")
	}

	srv := server.New(server.Config{
		ListenAddr:   fmt.Sprintf("%s:%d", app.settings.Host, app.settings.Port),
		Runtime:      app.runtime,
		Auditor:      app.auditor,
		Store:        app.store,
		AuthToken:    app.settings.AuthToken,
		AuthDisabled: app.settings.AuthDisabled,
		Stderr:       os.Stderr,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		fmt.Fprintf(os.Stderr, "[sentinel] received %s, shutting down\n", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
