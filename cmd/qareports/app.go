package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/qareports/internal/cache"
	"github.com/JonMunkholm/qareports/internal/config"
	"github.com/JonMunkholm/qareports/internal/core"
	"github.com/JonMunkholm/qareports/internal/ingest"
	"github.com/JonMunkholm/qareports/internal/metrics"
	"github.com/JonMunkholm/qareports/internal/persist"
)

// app is the wired service shared by every command.
type app struct {
	cfg     *config.Config
	local   cache.Store
	sync    *persist.Sync
	metrics *metrics.Recorder
	service *core.Service
}

// openApp connects both persistence tiers, builds the service and loads
// the persisted state.
func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	local, err := cache.Open(ctx, cfg.Cache.Driver, cfg.Cache.DSN())
	if err != nil {
		return nil, fmt.Errorf("open local cache: %w", err)
	}
	slog.Info("local cache opened", "driver", cfg.Cache.Driver)

	remote, err := persist.NewRemote(ctx, cfg.Remote.Persist())
	if err != nil {
		local.Close()
		return nil, fmt.Errorf("open remote store: %w", err)
	}

	rec := metrics.NewRecorder()
	sync := persist.New(persist.Options{
		Local:         local,
		Remote:        remote,
		Timeout:       cfg.Remote.Timeout,
		RetryInterval: cfg.Remote.RetryInterval,
		Metrics:       rec,
	})

	surface := core.NeverSurfaceBody
	if len(cfg.Upload.SurfaceBodies) > 0 {
		surface = core.SurfaceBodySet(cfg.Upload.SurfaceBodies...)
	}
	core.IngestTimeout = cfg.Upload.Timeout

	svc, err := core.NewService(core.ServiceDeps{
		Assembler:   core.NewAssembler(core.NewRuleEngine(surface)),
		Parser:      ingest.Parser{MaxBytes: cfg.Upload.MaxFileSize}.Sheets,
		Persister:   sync,
		Limiter:     core.NewUploadLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		Metrics:     rec,
		MaxFileSize: cfg.Upload.MaxFileSize,
	})
	if err != nil {
		_ = sync.Close(ctx)
		local.Close()
		return nil, err
	}
	rec.TrackStats(svc.Stats)

	if err := svc.Load(ctx); err != nil {
		// A corrupt or newer cache is not fatal: start empty and keep serving.
		slog.Warn("could not load persisted state, starting empty", "error", err)
	}

	return &app{cfg: cfg, local: local, sync: sync, metrics: rec, service: svc}, nil
}

// close drains in-flight work and releases both tiers.
func (a *app) close(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := a.service.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.sync.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close remote sync: %w", err))
	}
	if err := a.local.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close local cache: %w", err))
	}
	return errors.Join(errs...)
}
