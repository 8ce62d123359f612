package main

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"prodledger/internal/app"
	"prodledger/internal/config"
	"prodledger/pkg/logger"
)

// cli carries the resolved configuration shared by every subcommand.
type cli struct {
	v   *viper.Viper
	cfg config.Config
	log *logger.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{v: config.New()}

	rootCmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Operate a prodledger database",
		Long: `ledgerctl migrates the schema, rebuilds style balances from the event log,
prints balances, seeds demo data and issues API tokens.

Flags override the environment (DATABASE_URL, LOG_LEVEL, ...); a .env file in
the working directory is read first.`,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("database-url", "", "PostgreSQL DSN (env DATABASE_URL)")
	flags.StringP("loglevel", "l", "", "log level: debug, info, warn, error (env LOG_LEVEL)")
	flags.String("produced-source", "", "produced source: production or target (env PRODUCED_SOURCE)")
	flags.String("counting-stage", "", "stage counted as produced (env COUNTING_STAGE)")

	for key, flag := range map[string]string{
		"DATABASE_URL":    "database-url",
		"LOG_LEVEL":       "loglevel",
		"PRODUCED_SOURCE": "produced-source",
		"COUNTING_STAGE":  "counting-stage",
	} {
		_ = c.v.BindPFlag(key, flags.Lookup(flag))
	}

	rootCmd.AddCommand(
		newMigrateCmd(c),
		newRebuildCmd(c),
		newBalanceCmd(c),
		newSeedCmd(c),
		newTokenCmd(c),
		newCleanupCmd(c),
	)
	return rootCmd
}

func (c *cli) init() error {
	_ = godotenv.Load()

	// The CLI always talks to postgres; memory storage has nothing to operate on.
	c.v.Set("STORAGE", config.StoragePostgres)
	c.v.Set("IDEMPOTENCY_ENABLED", true)

	cfg, err := config.Load(c.v)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	c.cfg = cfg

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: true, Service: "ledgerctl"})
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	logger.SetDefault(log)
	c.log = log
	return nil
}

func (c *cli) context(cmd *cobra.Command) context.Context {
	return logger.WithLogger(cmd.Context(), c.log)
}

// open connects and wires the application. The caller closes it.
func (c *cli) open(ctx context.Context, migrate bool) (*app.App, error) {
	return app.Build(ctx, c.cfg, app.Options{Migrate: migrate})
}
