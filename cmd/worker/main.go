// Package main is the entry point for the prodledger maintenance worker.
// It expires idempotency keys and logs pool usage; it never touches the ledger.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"prodledger/internal/config"
	"prodledger/internal/infrastructure/storage/postgres"
	"prodledger/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(config.New())
	if err != nil {
		fmt.Printf("invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.Development(),
		Service:     "prodledger-worker",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	if cfg.Storage != config.StoragePostgres {
		log.Fatalw("worker requires postgres storage", "storage", cfg.Storage)
	}

	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), log))
	defer cancel()

	log.Info("starting prodledger worker")

	poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
	poolCfg.MaxConns = 2
	poolCfg.MinConns = 1
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txm := postgres.NewTxManager(pool, cfg.StatementTimeout)
	worker := NewWorker(pool, postgres.NewIdempotencyStore(txm, cfg.IdempotencyTTL), log, DefaultWorkerConfig())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// IdempotencyCleaner deletes expired idempotency keys.
type IdempotencyCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// PoolReporter logs connection pool usage.
type PoolReporter interface {
	LogStats(ctx context.Context)
}

// WorkerConfig sets the job intervals.
type WorkerConfig struct {
	CleanupInterval time.Duration
	StatsInterval   time.Duration
}

// DefaultWorkerConfig returns the production intervals.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		CleanupInterval: time.Hour,
		StatsInterval:   5 * time.Minute,
	}
}

// Worker runs periodic maintenance jobs.
type Worker struct {
	pool    PoolReporter
	cleaner IdempotencyCleaner
	log     *logger.Logger
	cfg     WorkerConfig
}

// NewWorker creates a worker.
func NewWorker(pool PoolReporter, cleaner IdempotencyCleaner, log *logger.Logger, cfg WorkerConfig) *Worker {
	return &Worker{
		pool:    pool,
		cleaner: cleaner,
		log:     log.WithComponent("worker"),
		cfg:     cfg,
	}
}

// Run blocks until ctx is cancelled. Cleanup also runs once at start.
func (w *Worker) Run(ctx context.Context) {
	cleanupTicker := time.NewTicker(w.cfg.CleanupInterval)
	defer cleanupTicker.Stop()

	statsTicker := time.NewTicker(w.cfg.StatsInterval)
	defer statsTicker.Stop()

	w.cleanupIdempotency(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-cleanupTicker.C:
			w.cleanupIdempotency(ctx)
		case <-statsTicker.C:
			w.pool.LogStats(ctx)
		}
	}
}

func (w *Worker) cleanupIdempotency(ctx context.Context) {
	n, err := w.cleaner.CleanupExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Errorw("idempotency cleanup failed", "error", err)
		}
		return
	}
	if n > 0 {
		w.log.Infow("cleaned up idempotency keys", "count", n)
	}
}
