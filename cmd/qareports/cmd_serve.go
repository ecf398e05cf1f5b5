package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/qareports/internal/logging"
	"github.com/JonMunkholm/qareports/internal/web"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := configFrom(cmd)
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	a, err := openApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	server := web.NewServer(a.service, cfg,
		web.WithRemote(a.sync),
		web.WithMetrics(a.metrics.Handler()),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Start() }()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			_ = a.close(cfg.Server.ShutdownTimeout)
			return err
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if active := a.service.LimiterStatus().Active; active > 0 {
		slog.Info("waiting for uploads to complete", "active", active)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	if err := a.close(cfg.Server.ShutdownTimeout); err != nil {
		slog.Warn("pending work did not finish cleanly", "error", err)
		return nil
	}
	slog.Info("server stopped")
	return nil
}
