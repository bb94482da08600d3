package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/humanmade/blockindex/pkg/api"
	"github.com/humanmade/blockindex/pkg/config"
	"github.com/humanmade/blockindex/pkg/observability"
	"github.com/humanmade/blockindex/pkg/relations"
	"github.com/humanmade/blockindex/pkg/store"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.WithFields(map[string]interface{}{
		"storage": cfg.Storage.Type,
		"port":    cfg.Server.Port,
	}).Info("Starting blockindex")

	st, redisClient, err := buildStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	if providers != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			observability.ShutdownOTel(shutdownCtx, providers, logger)
		}()
	}

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	srv := api.NewServer(st, logger, metrics, cfg.Index)

	if cfg.Index.ReconcilerEnabled {
		reconciler := relations.NewReconciler(st, srv.Index(), logger, metrics, cfg.Index.ReconcilerSchedule)
		if err := reconciler.Start(ctx); err != nil {
			log.Fatalf("Failed to start reconciler: %v", err)
		}
		defer reconciler.Stop()
	}

	apiServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(st, redisClient))
	observability.RegisterMetricsEndpoint(healthMux, registry)
	healthServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("API server listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("Health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("API server shutdown failed")
		}
		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Health server shutdown failed")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	logger.Info("Shutdown complete")
}

// buildStore wires the configured storage backend, optionally wrapped in
// the Redis-backed cache. The returned client is nil when caching is off.
func buildStore(cfg *config.Config) (store.Store, *redis.Client, error) {
	var (
		base store.Store
		err  error
	)

	switch cfg.Storage.Type {
	case "sqlite":
		base, err = store.NewSQLiteStore(cfg.Storage.SQLitePath)
	case "postgres":
		base, err = store.NewPostgresStore(store.PostgresConfig{
			URL:      cfg.Storage.PostgresURL,
			MaxConns: cfg.Storage.PostgresMaxConns,
			MinConns: cfg.Storage.PostgresMinConns,
			Timeout:  cfg.Storage.PostgresTimeout,
		})
	default:
		return nil, nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
	if err != nil {
		return nil, nil, err
	}

	if !cfg.Storage.CacheEnabled {
		return base, nil, nil
	}

	cacheCfg := store.DefaultCacheConfig()
	cacheCfg.RedisURL = cfg.Storage.RedisURL
	cacheCfg.RedisPassword = cfg.Storage.RedisPassword
	cacheCfg.RedisDB = cfg.Storage.RedisDB
	if cfg.Storage.L1CacheSize > 0 {
		cacheCfg.L1Size = cfg.Storage.L1CacheSize
	}

	cached, err := store.NewCachedStore(base, cacheCfg)
	if err != nil {
		base.Close()
		return nil, nil, err
	}
	return cached, cached.Redis(), nil
}
