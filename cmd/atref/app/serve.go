package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/atref/atref/internal/api"
	"github.com/atref/atref/internal/telemetry"
)

const (
	defaultGracefulTimeout = 30 * time.Second // Kubernetes-friendly shutdown time
	serverRequestTimeout   = 30 * time.Second // Covers every retry of a slow lookup
	serverReadTimeout      = 10 * time.Second // Enough for headers and small requests
	serverWriteTimeout     = 35 * time.Second // Must be > serverRequestTimeout to let middleware handle timeout
	serverIdleTimeout      = 60 * time.Second // Keep connections alive for reuse
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the resolution API server",
		Long: `Start the HTTP API server.

Endpoints:
  GET    /v1/resolve?input=...   resolve one reference
  POST   /v1/resolve             resolve {"inputs": [...]}
  GET    /v1/cache/stats         cache hits, misses and size
  DELETE /v1/cache               clear the cache
  GET    /health                 liveness
  GET    /metrics                Prometheus metrics, when enabled`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().String("address", "", "Address to listen on (default :8080)")
	cobra.CheckErr(viper.BindPFlag("address", cmd.Flags().Lookup("address")))
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	logger := logr.FromContextOrDiscard(ctx)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if address := viper.GetString("address"); address != "" {
		cfg.Server.Address = address
	}

	eng, err := newEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultGracefulTimeout)
		defer cancel()
		eng.close(shutdownCtx)
	}()

	httpMetrics, err := telemetry.NewHTTPMetrics(eng.telemetry.MeterProvider())
	if err != nil {
		return fmt.Errorf("failed to create HTTP metrics: %w", err)
	}

	router := api.NewServer(eng.orchestrator,
		api.WithMiddlewares(
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			telemetry.TracingMiddleware(eng.telemetry.TracerProvider()),
			httpMetrics.Middleware,
			middleware.Timeout(serverRequestTimeout),
			api.LoggingMiddleware,
		),
		api.WithMetricsHandler(eng.telemetry.MetricsHandler()),
	)

	server := &http.Server{
		Addr:         cfg.GetAddress(),
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
		// Handlers inherit the logger
		BaseContext: func(net.Listener) context.Context {
			return logr.NewContext(context.Background(), logger)
		},
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultGracefulTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server shutdown complete")
	return nil
}
