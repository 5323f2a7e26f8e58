// Command syncd runs the calendar synchronization daemon: it serves the
// provider's change-notification webhooks and keeps subscription leases
// alive.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bookwell/outlooksync/internal/app"
	"github.com/bookwell/outlooksync/pkg/config"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:          "syncd",
		Short:        "Outlook calendar synchronization daemon",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), renewCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration and builds the dependency container.
func setup(ctx context.Context) (*app.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	return app.NewContainer(ctx, cfg, logger)
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if cfg.IsDevelopment() && level > slog.LevelDebug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve webhooks and renew subscription leases periodically",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			go func() {
				sigCh := make(chan os.Signal, 1)
				signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
				<-sigCh
				cancel()
			}()

			container, err := setup(ctx)
			if err != nil {
				return err
			}
			defer container.Close()
			logger := container.Logger

			// Renew all leases on startup, then on the configured
			// interval. The lease window is 48h, so even a generous
			// interval keeps plenty of slack.
			container.Subscriptions.RenewAll(ctx)

			scheduler := cron.New()
			spec := fmt.Sprintf("@every %s", container.Config.RenewalInterval)
			if _, err := scheduler.AddFunc(spec, func() {
				container.Subscriptions.RenewAll(ctx)
			}); err != nil {
				return fmt.Errorf("failed to schedule lease renewal: %w", err)
			}
			scheduler.Start()
			defer scheduler.Stop()
			logger.Info("lease renewal scheduled", "interval", container.Config.RenewalInterval)

			errCh := make(chan error, 1)
			go func() {
				if err := container.WebhookServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := container.WebhookServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("webhook server shutdown error", "error", err)
			}
			logger.Info("syncd stopped")
			return nil
		},
	}
}

func renewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "renew",
		Short: "Renew all subscription leases once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			container, err := setup(ctx)
			if err != nil {
				return err
			}
			defer container.Close()

			container.Subscriptions.RenewAll(ctx)
			return nil
		},
	}
}
