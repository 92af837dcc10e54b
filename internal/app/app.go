// Package app wires the watcher's collaborators together and drives single or looped runs.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"crash_watcher/internal/config"
	"crash_watcher/internal/feed"
	"crash_watcher/internal/geocode"
	"crash_watcher/internal/httpapi"
	"crash_watcher/internal/metrics"
	"crash_watcher/internal/notify"
	"crash_watcher/internal/pipeline"
	"crash_watcher/internal/retry"
	"crash_watcher/internal/store"
	"crash_watcher/internal/watch"
)

// Status describes the most recent run for the ops endpoint.
type Status struct {
	Runs     int              `json:"runs"`
	LastRun  time.Time        `json:"last_run"`
	Summary  pipeline.Summary `json:"summary"`
	Interval string           `json:"interval,omitempty"`
}

// App owns the long-lived pieces (audit store, metrics) and rebuilds the pipeline
// whenever the configuration is reloaded.
type App struct {
	logger  *slog.Logger
	store   *store.Store
	metrics *metrics.Metrics
	load    func(*slog.Logger) (config.Config, error)

	mu       sync.Mutex
	cfg      config.Config
	pipeline *pipeline.Pipeline
	status   Status
}

func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{logger: logger, metrics: metrics.New(), load: config.Load}
	if cfg.AuditDBPath != "" {
		st, err := store.Open(cfg.AuditDBPath)
		if err != nil {
			logger.Warn("audit store unavailable, continuing without it", "path", cfg.AuditDBPath, "err", err)
		} else {
			a.store = st
		}
	}
	if err := a.apply(cfg); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// apply builds the network clients and the pipeline for cfg.
func (a *App) apply(cfg config.Config) error {
	providers := []geocode.Provider{geocode.NewNominatim(cfg.NominatimURL)}
	if cfg.OpenCageAPIKey != "" {
		providers = append(providers, geocode.NewOpenCage(cfg.OpenCageURL, cfg.OpenCageAPIKey))
	}
	if cfg.MapboxToken != "" {
		providers = append(providers, geocode.NewMapbox(cfg.MapboxURL, cfg.MapboxToken))
	}
	deps := pipeline.Deps{
		Feed:     feed.New(cfg.WazeBaseURL, cfg.RapidAPIKey, retry.Default(cfg.MaxFeedRetries), a.logger),
		Geocoder: geocode.NewChain(a.logger, retry.Default(cfg.MaxGeocodeRetries), providers...),
		Poster:   notify.New(cfg.BlueskyPDSURL, retry.Default(cfg.MaxPostRetries), a.logger),
		Metrics:  a.metrics,
		Logger:   a.logger,
	}
	if a.store != nil {
		deps.Audit = a.store
	}
	p, err := pipeline.New(cfg, deps)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.cfg = cfg
	a.pipeline = p
	a.mu.Unlock()
	return nil
}

// Run performs one cycle, or loops on RunInterval until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	cfg := a.config()
	if cfg.RunInterval <= 0 {
		return ignoreCancel(a.runOnce(ctx))
	}

	var changes <-chan struct{}
	w := watch.New(cfg.ConfigPath, a.logger)
	if err := w.Start(ctx); err != nil {
		a.logger.Warn("config watcher not started", "path", cfg.ConfigPath, "err", err)
	} else {
		changes = w.Changes()
	}
	if cfg.HTTPAddr != "" {
		a.serve(ctx, cfg.HTTPAddr)
	}

	a.logger.Info("loop mode", "interval", cfg.RunInterval.String())
	ticker := time.NewTicker(cfg.RunInterval)
	defer ticker.Stop()
	if err := a.runOnce(ctx); err != nil {
		return ignoreCancel(err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
			a.Reload()
		case <-ticker.C:
			if err := a.runOnce(ctx); err != nil {
				return ignoreCancel(err)
			}
		}
	}
}

// Reload re-reads the environment and override file. An invalid configuration is
// logged and the previous one stays in effect.
func (a *App) Reload() {
	cfg, err := a.load(a.logger)
	if err != nil {
		a.logger.Error("config reload rejected, keeping previous settings", "err", err)
		return
	}
	if err := a.apply(cfg); err != nil {
		a.logger.Error("config reload rejected, keeping previous settings", "err", err)
		return
	}
	a.logger.Info("config reloaded", "path", cfg.ConfigPath)
}

func (a *App) runOnce(ctx context.Context) error {
	a.mu.Lock()
	p, cfg := a.pipeline, a.cfg
	a.mu.Unlock()

	sum, err := p.Run(ctx)
	a.mu.Lock()
	a.status.Runs++
	a.status.LastRun = time.Now()
	a.status.Summary = sum
	if cfg.RunInterval > 0 {
		a.status.Interval = cfg.RunInterval.String()
	}
	a.mu.Unlock()

	if cfg.MetricsTextfile != "" {
		if werr := a.metrics.WriteTextfile(cfg.MetricsTextfile); werr != nil {
			a.logger.Warn("could not write metrics textfile", "path", cfg.MetricsTextfile, "err", werr)
		}
	}
	return err
}

func (a *App) serve(ctx context.Context, addr string) {
	var audit httpapi.Audit
	if a.store != nil {
		audit = a.store
	}
	mux := http.NewServeMux()
	httpapi.NewRouter(audit, a.metrics.Registry, func() any { return a.Status() }, a.logger).Register(mux)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		a.logger.Info("ops http listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("ops http stopped", "err", err)
		}
	}()
}

func (a *App) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

func (a *App) config() config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

func (a *App) Metrics() *metrics.Metrics { return a.metrics }

func (a *App) Close() error {
	if a.store == nil {
		return nil
	}
	if err := a.store.Close(); err != nil {
		return fmt.Errorf("close audit store: %w", err)
	}
	return nil
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
