// Package app wires storage, domain services and metrics from Config.
// It is shared by the server, the worker and ledgerctl.
package app

import (
	"context"
	"fmt"

	"prodledger/internal/config"
	"prodledger/internal/core/tx"
	"prodledger/internal/domain/audit"
	"prodledger/internal/domain/catalogs/line"
	"prodledger/internal/domain/catalogs/style"
	"prodledger/internal/domain/ledger"
	"prodledger/internal/domain/production"
	"prodledger/internal/domain/reconcile"
	"prodledger/internal/domain/reports"
	"prodledger/internal/domain/targets"
	"prodledger/internal/infrastructure/cache"
	"prodledger/internal/infrastructure/metrics"
	"prodledger/internal/infrastructure/storage/memory"
	"prodledger/internal/infrastructure/storage/postgres"
	"prodledger/internal/infrastructure/storage/postgres/catalog_repo"
	"prodledger/internal/infrastructure/storage/postgres/event_repo"
	"prodledger/internal/infrastructure/storage/postgres/ledger_repo"
	"prodledger/internal/infrastructure/storage/postgres/report_repo"
	"prodledger/pkg/logger"
)

// AuditLog records and reads audit entries.
type AuditLog interface {
	audit.Recorder
	audit.Reader
}

// Options tune Build.
type Options struct {
	// Migrate applies the schema after connecting (postgres only).
	Migrate bool

	// Metrics is attached to the engine as its observer when set.
	Metrics *metrics.Metrics

	// CacheCatalogs caches line and style lookups for production entries and
	// invalidates them from NOTIFY (postgres only). It holds one connection.
	CacheCatalogs bool
}

// App is a wired process.
type App struct {
	Config config.Config

	// Postgres handles; nil with STORAGE=memory.
	Pool        *postgres.Pool
	PgTx        *postgres.TxManager
	Idempotency *postgres.IdempotencyStore
	Catalogs    *cache.Listener

	// Memory is set with STORAGE=memory.
	Memory *memory.Store

	TxManager tx.ReadOnlyManager
	Audit     AuditLog
	Metrics   *metrics.Metrics

	// Sources feeds Engine.Rebuild and is exposed for diagnostics.
	Sources reconcile.Sources

	Ledger      *ledger.Service
	Engine      *reconcile.Engine
	Coordinator *reconcile.Coordinator
	Targets     *targets.Service
	Production  *production.Service
	Reports     *reports.Service
	Lines       *line.Service
	Styles      *style.Service

	lineCache  *cache.Catalog[*line.Line]
	styleCache *cache.Catalog[*style.Style]
}

type repos struct {
	ledger  ledger.Repository
	targets interface {
		targets.Repository
		reconcile.TargetStore
	}
	entries production.Repository
	lines   line.Repository
	styles  style.Repository
	reports reports.Repository

	// Reference lookups for production entries; the repositories unless cached.
	lineLookup  production.LineLookup
	styleLookup production.StyleLookup
}

// Build connects storage and wires every service.
func Build(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	a := &App{Config: cfg, Metrics: opts.Metrics}

	var r repos
	switch cfg.Storage {
	case config.StoragePostgres:
		if err := a.connectPostgres(ctx, opts, &r); err != nil {
			return nil, err
		}
	case config.StorageMemory:
		a.connectMemory(&r)
	default:
		return nil, fmt.Errorf("unknown storage %q", cfg.Storage)
	}

	if err := a.wire(r); err != nil {
		a.Close()
		return nil, err
	}

	logger.Info(ctx, "application wired",
		"storage", cfg.Storage,
		"produced_source", cfg.ProducedSource,
		"counting_stage", cfg.CountingStage,
	)
	return a, nil
}

func (a *App) connectPostgres(ctx context.Context, opts Options, r *repos) error {
	poolCfg := postgres.DefaultPoolConfig(a.Config.DatabaseURL)
	if a.Config.DBMaxConns > 0 {
		poolCfg.MaxConns = a.Config.DBMaxConns
	}
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	a.Pool = pool

	txm := postgres.NewTxManager(pool, a.Config.StatementTimeout)
	a.PgTx = txm
	a.TxManager = txm

	if opts.Migrate {
		if err := postgres.Migrate(ctx, txm); err != nil {
			pool.Close()
			return fmt.Errorf("migrate: %w", err)
		}
	}

	auditLog, err := postgres.NewAuditLog(txm)
	if err != nil {
		pool.Close()
		return err
	}
	a.Audit = auditLog

	if a.Config.IdempotencyEnabled {
		a.Idempotency = postgres.NewIdempotencyStore(txm, a.Config.IdempotencyTTL)
	}

	lines := catalog_repo.NewLineRepo(txm)
	styles := catalog_repo.NewStyleRepo(txm)
	*r = repos{
		ledger:      ledger_repo.NewLedgerRepo(txm),
		targets:     event_repo.NewTargetRepo(txm),
		entries:     event_repo.NewEntryRepo(txm),
		lines:       lines,
		styles:      styles,
		reports:     report_repo.NewReportRepo(txm),
		lineLookup:  lines,
		styleLookup: styles,
	}

	if opts.CacheCatalogs {
		lineCache := cache.NewCatalog[*line.Line](lines)
		styleCache := cache.NewCatalog[*style.Style](styles)

		listener := cache.NewListener(pool.Pool)
		listener.On("line", func(string) { lineCache.Invalidate() })
		listener.On("style", func(string) { styleCache.Invalidate() })
		listener.Start(context.WithoutCancel(ctx))

		a.Catalogs = listener
		a.lineCache, a.styleCache = lineCache, styleCache
		r.lineLookup, r.styleLookup = lineCache, styleCache
	}
	return nil
}

func (a *App) connectMemory(r *repos) {
	store := memory.New()
	a.Memory = store
	a.TxManager = memory.NewTxManager(store)
	a.Audit = memory.NewAuditLog(store)

	lines := memory.NewLineRepo(store)
	styles := memory.NewStyleRepo(store)
	*r = repos{
		ledger:      memory.NewLedgerRepo(store),
		targets:     memory.NewTargetRepo(store),
		entries:     memory.NewEntryRepo(store),
		lines:       lines,
		styles:      styles,
		reports:     memory.NewReportRepo(store),
		lineLookup:  lines,
		styleLookup: styles,
	}
}

func (a *App) wire(r repos) error {
	a.Ledger = ledger.NewService(r.ledger, a.TxManager)
	a.Sources = reconcile.Sources{Targets: r.targets, Entries: r.entries}

	engineCfg := reconcile.Config{
		Policy:  a.Config.Policy(),
		Timeout: a.Config.ReconcileTimeout,
	}
	if a.Metrics != nil {
		engineCfg.Observer = a.Metrics
	}
	engine, err := reconcile.NewEngine(a.Ledger, a.Sources, engineCfg)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	a.Engine = engine
	a.Coordinator = reconcile.NewCoordinator(engine, r.targets, a.TxManager, a.Config.BulkConcurrency)

	a.Lines = line.NewService(r.lines, a.TxManager)
	a.Styles = style.NewService(r.styles, a.TxManager)

	a.Targets = targets.NewService(r.targets, engine, a.Coordinator, a.TxManager, a.Audit)
	a.Production = production.NewService(r.entries, r.lineLookup, r.styleLookup, engine, a.TxManager, a.Audit)
	a.Reports = reports.NewService(r.reports, a.TxManager)
	return nil
}

// CacheStats reports the catalog caches, or nil when caching is off.
func (a *App) CacheStats() map[string]cache.Stats {
	if a.Catalogs == nil {
		return nil
	}
	return map[string]cache.Stats{
		"line":  a.lineCache.Stats(),
		"style": a.styleCache.Stats(),
	}
}

// Close releases storage connections.
func (a *App) Close() {
	if a.Catalogs != nil {
		a.Catalogs.Stop()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}
