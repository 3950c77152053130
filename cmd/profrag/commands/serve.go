package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"profrag/internal/httpserver"
	"profrag/internal/logging"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat HTTP server",
	Long: `Run the HTTP server exposing POST /api/chat and GET /healthz.

The server shuts down gracefully on SIGINT or SIGTERM, letting in-flight
streams finish within server.shutdown_timeout_secs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appConfig
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		logger, err := logging.New(cfg.Log, os.Stderr)
		if err != nil {
			return err
		}
		svc, err := buildService(cfg, logger)
		if err != nil {
			return err
		}
		api := httpserver.New(svc, httpserver.Options{
			Logger:         logger,
			RequestTimeout: secs(cfg.Server.RequestTimeoutSecs),
			MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		})
		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           api.Router(),
			ReadHeaderTimeout: secs(cfg.Server.ReadHeaderTimeoutSecs),
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			logger.Info("listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), secs(cfg.Server.ShutdownTimeoutSecs))
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}
