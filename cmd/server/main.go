// Package main is the entry point for the prodledger API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"prodledger/internal/app"
	"prodledger/internal/config"
	"prodledger/internal/domain/auth"
	v1 "prodledger/internal/infrastructure/http/v1"
	"prodledger/internal/infrastructure/http/v1/handlers"
	"prodledger/internal/infrastructure/metrics"
	"prodledger/pkg/logger"
)

const version = "0.1.0"

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load(config.New())
	if err != nil {
		fmt.Printf("invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.Development(),
		Service:     "prodledger-server",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)
	defer func() { _ = log.Sync() }()

	ctx := logger.WithLogger(context.Background(), log)
	log.Infow("starting prodledger server", "version", version, "storage", cfg.Storage)

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	a, err := app.Build(ctx, cfg, app.Options{
		Migrate:       true,
		Metrics:       m,
		CacheCatalogs: cfg.Storage == config.StoragePostgres,
	})
	if err != nil {
		log.Fatalw("failed to initialize application", "error", err)
	}
	defer a.Close()

	routerCfg := v1.RouterConfig{
		Logger:         log,
		Development:    cfg.Development(),
		RequestTimeout: cfg.RequestTimeout,
		Health: handlers.HealthConfig{
			Version:        version,
			Storage:        cfg.Storage,
			ProducedSource: string(cfg.ProducedSource),
			CountingStage:  string(cfg.CountingStage),
		},
		Targets:    a.Targets,
		Production: a.Production,
		Ledger:     a.Ledger,
		Reports:    a.Reports,
		Lines:      a.Lines,
		Styles:     a.Styles,
		History:    a.Audit,
	}
	if a.Pool != nil {
		routerCfg.Health.DB = a.Pool
		routerCfg.Health.Stats = func() map[string]any {
			s := a.Pool.Stats()
			return map[string]any{
				"total_conns":    s.TotalConns,
				"acquired_conns": s.AcquiredConns,
				"idle_conns":     s.IdleConns,
				"max_conns":      s.MaxConns,
				"catalog_cache":  a.CacheStats(),
			}
		}
	}
	if a.Idempotency != nil {
		routerCfg.Idempotency = a.Idempotency
	}
	if m != nil {
		routerCfg.Metrics = m
		routerCfg.MetricsHandler = m.Handler()
	}
	if cfg.JWTSecret != "" {
		routerCfg.ActorValidator = auth.NewJWTService(auth.DefaultJWTConfig(cfg.JWTSecret))
		log.Info("bearer token authentication enabled")
	}

	router := v1.NewRouter(routerCfg)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
