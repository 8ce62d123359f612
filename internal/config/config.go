// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"prodledger/internal/core/entity"
	"prodledger/internal/domain/reconcile"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config is the resolved configuration of a prodledger process.
type Config struct {
	Port     string
	LogLevel string
	Env      string

	Storage          string
	DatabaseURL      string
	DBMaxConns       int32
	StatementTimeout time.Duration

	RequestTimeout     time.Duration
	IdempotencyEnabled bool
	IdempotencyTTL     time.Duration
	JWTSecret          string

	ProducedSource   reconcile.ProducedSource
	CountingStage    entity.Stage
	ReconcileTimeout time.Duration
	BulkConcurrency  int

	MetricsEnabled bool
}

// Development reports APP_ENV=development.
func (c Config) Development() bool {
	return c.Env == "development"
}

// Policy returns the reconciliation policy.
func (c Config) Policy() reconcile.Policy {
	return reconcile.Policy{Source: c.ProducedSource, CountingStage: c.CountingStage}
}

// SetDefaults registers every key with its default so AutomaticEnv can
// resolve it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("APP_ENV", "development")

	v.SetDefault("STORAGE", StoragePostgres)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_MAX_CONNS", 25)
	v.SetDefault("DB_STATEMENT_TIMEOUT", "30s")

	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("IDEMPOTENCY_ENABLED", false)
	v.SetDefault("IDEMPOTENCY_TTL", "24h")
	v.SetDefault("JWT_SECRET", "")

	v.SetDefault("PRODUCED_SOURCE", string(reconcile.SourceProduction))
	v.SetDefault("COUNTING_STAGE", string(entity.StageSewing))
	v.SetDefault("RECONCILE_TIMEOUT", "10s")
	v.SetDefault("BULK_CONCURRENCY", 4)

	v.SetDefault("METRICS_ENABLED", true)
}

// New returns a viper instance reading the environment over the defaults.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.AutomaticEnv()
	return v
}

// Load resolves and validates the configuration.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Port:     v.GetString("APP_PORT"),
		LogLevel: v.GetString("LOG_LEVEL"),
		Env:      v.GetString("APP_ENV"),

		Storage:          strings.ToLower(v.GetString("STORAGE")),
		DatabaseURL:      v.GetString("DATABASE_URL"),
		DBMaxConns:       v.GetInt32("DB_MAX_CONNS"),
		StatementTimeout: v.GetDuration("DB_STATEMENT_TIMEOUT"),

		RequestTimeout:     v.GetDuration("REQUEST_TIMEOUT"),
		IdempotencyEnabled: v.GetBool("IDEMPOTENCY_ENABLED"),
		IdempotencyTTL:     v.GetDuration("IDEMPOTENCY_TTL"),
		JWTSecret:          v.GetString("JWT_SECRET"),

		CountingStage:    entity.Stage(strings.ToUpper(v.GetString("COUNTING_STAGE"))),
		ReconcileTimeout: v.GetDuration("RECONCILE_TIMEOUT"),
		BulkConcurrency:  v.GetInt("BULK_CONCURRENCY"),

		MetricsEnabled: v.GetBool("METRICS_ENABLED"),
	}

	src, err := reconcile.ParseProducedSource(v.GetString("PRODUCED_SOURCE"))
	if err != nil {
		return cfg, err
	}
	cfg.ProducedSource = src

	switch cfg.Storage {
	case StoragePostgres:
		if cfg.DatabaseURL == "" {
			return cfg, fmt.Errorf("DATABASE_URL is required when STORAGE=%s", StoragePostgres)
		}
	case StorageMemory:
		if cfg.IdempotencyEnabled {
			return cfg, fmt.Errorf("IDEMPOTENCY_ENABLED requires STORAGE=%s", StoragePostgres)
		}
	default:
		return cfg, fmt.Errorf("unknown STORAGE %q (want postgres or memory)", cfg.Storage)
	}

	if err := cfg.Policy().Validate(); err != nil {
		return cfg, err
	}
	if cfg.BulkConcurrency <= 0 {
		return cfg, fmt.Errorf("BULK_CONCURRENCY must be positive, got %d", cfg.BulkConcurrency)
	}
	if cfg.RequestTimeout <= 0 {
		return cfg, fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	return cfg, nil
}
