package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/spf13/viper"

	"github.com/atref/atref/internal/adapters"
	"github.com/atref/atref/internal/cache"
	"github.com/atref/atref/internal/config"
	"github.com/atref/atref/internal/httpclient"
	"github.com/atref/atref/internal/orchestrator"
	"github.com/atref/atref/internal/resolver"
	"github.com/atref/atref/internal/snapshot"
	"github.com/atref/atref/internal/telemetry"
	"github.com/atref/atref/internal/versions"
)

// tracerName names the spans produced by the resolution engine
const tracerName = "github.com/atref/atref"

// engine is the wired resolution stack shared by resolve and serve
type engine struct {
	cfg          *config.Config
	orchestrator *orchestrator.Orchestrator
	telemetry    *telemetry.Telemetry
}

// loadConfig loads the file named by --config, if any, with ATREF_* overrides
func loadConfig() (*config.Config, error) {
	opts := []config.Option{config.WithEnvOverrides()}
	if path := viper.GetString("config"); path != "" {
		opts = append(opts, config.WithConfigPath(path))
	}
	cfg, err := config.LoadConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// snapshotStore returns the configured snapshot store, or nil when
// persistence is off
func snapshotStore(cfg *config.Config) (snapshot.Store, string, error) {
	if !cfg.PersistEnabled() {
		return nil, "", nil
	}
	path := cfg.Cache.SnapshotPath
	if path == "" {
		var err error
		if path, err = snapshot.DefaultPath(); err != nil {
			return nil, "", err
		}
	}
	return snapshot.NewFileStore(path), path, nil
}

// newEngine builds telemetry, the resolver, the persisted cache and the orchestrator
func newEngine(ctx context.Context, cfg *config.Config) (*engine, error) {
	logger := logr.FromContextOrDiscard(ctx)

	telCfg := cfg.Telemetry
	if telCfg != nil && telCfg.ServiceVersion == "" {
		withVersion := *telCfg
		withVersion.ServiceVersion = versions.GetVersionInfo().Version
		telCfg = &withVersion
	}
	tel, err := telemetry.New(ctx, telCfg)
	if err != nil {
		return nil, err
	}

	resolverMetrics, rmErr := telemetry.NewResolverMetrics(tel.MeterProvider())
	cacheMetrics, cmErr := telemetry.NewCacheMetrics(tel.MeterProvider())
	if err := errors.Join(rmErr, cmErr); err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}
	tracer := tel.Tracer(tracerName)

	res := resolver.New(httpclient.NewDefaultClient(cfg.GetRequestTimeout()),
		resolver.WithServiceURL(cfg.GetServiceURL()),
		resolver.WithRequestTimeout(cfg.GetRequestTimeout()),
		resolver.WithMaxRetries(cfg.GetMaxRetries()),
		resolver.WithBaseDelay(cfg.GetBaseDelay()),
		resolver.WithReverseFailurePolicy(cfg.GetReverseFailurePolicy()),
		resolver.WithMetrics(resolverMetrics),
		resolver.WithTracer(tracer),
	)

	cacheOpts := []cache.Option{
		cache.WithCapacity(cfg.GetCacheCapacity()),
		cache.WithTTL(cfg.GetCacheTTL()),
		cache.WithMetrics(cacheMetrics),
	}
	store, path, err := snapshotStore(cfg)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, err
	}
	if store != nil {
		cacheOpts = append(cacheOpts, cache.WithObserver(snapshot.NewObserver(store, cacheMetrics)))
	}
	c := cache.New(cacheOpts...)
	if store != nil {
		loaded := snapshot.Warm(ctx, store, c)
		logger.V(1).Info("Cache snapshot", "path", path, "loaded", loaded)
	}

	orchCfg := cfg.OrchestratorConfig()
	orchCfg.Tracer = tracer

	return &engine{
		cfg:          cfg,
		orchestrator: orchestrator.New(orchCfg, adapters.NewDefaultRegistry(), c, res),
		telemetry:    tel,
	}, nil
}

// close flushes telemetry
func (e *engine) close(ctx context.Context) {
	if err := e.telemetry.Shutdown(ctx); err != nil {
		logr.FromContextOrDiscard(ctx).Error(err, "Failed to shutdown telemetry")
	}
}
