// Command iconcached serves file icons over HTTP from a two-tier cache.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/meigma/iconcache"
	"github.com/meigma/iconcache/gateway"
	"github.com/meigma/iconcache/internal/config"
	"github.com/meigma/iconcache/internal/metrics"
	"github.com/meigma/iconcache/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to an optional YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "iconcached:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	level, err := cfg.Level()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTelEndpoint, "iconcached")
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("telemetry.shutdown_failed", slog.Any("error", err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewProm("iconcache", reg)

	svc, err := iconcache.New(cfg.CacheDir,
		iconcache.WithLogger(logger),
		iconcache.WithMetrics(m),
		iconcache.WithMemoryLimits(cfg.MemoryMaxEntries, cfg.MemoryMaxBytes()),
		iconcache.WithPreloadWorkers(cfg.PreloadWorkers),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Warn("service.close_failed", slog.Any("error", err))
		}
	}()

	gw := gateway.New(svc, gateway.WithLogger(logger), gateway.WithMetrics(m))
	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: gateway.NewRouter(gw, svc,
			gateway.WithAccessLog(logger),
			gateway.WithGatherer(reg),
			gateway.WithCleanupDefaults(cfg.CacheDaysToLive, cfg.MaxCacheSizeMB),
		),
		ReadHeaderTimeout: 5 * time.Second,
	}

	cleanup(logger, svc, cfg)
	if cfg.CleanupInterval > 0 {
		go cleanupLoop(ctx, logger, svc, cfg)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http.listening",
			slog.String("addr", cfg.HTTPAddr),
			slog.String("cache_dir", svc.Dir()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown.signal")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	logger.Info("http.stopped")
	return nil
}

func cleanup(logger *slog.Logger, svc *iconcache.Service, cfg config.Config) {
	if _, err := svc.CleanupDays(cfg.CacheDaysToLive, cfg.MaxCacheSizeMB); err != nil {
		logger.Warn("cache.cleanup_failed", slog.Any("error", err))
	}
}

func cleanupLoop(ctx context.Context, logger *slog.Logger, svc *iconcache.Service, cfg config.Config) {
	ticker := time.NewTicker(cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cleanup(logger, svc, cfg)
		}
	}
}
