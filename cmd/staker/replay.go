package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stakeLedger/internal/config"
	"stakeLedger/internal/replay"
	"stakeLedger/internal/storage"
	"stakeLedger/internal/storage/postgres"
)

const ledgerName = "staker"

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReplay(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" {
		return fmt.Errorf("input path is required")
	}

	genesis, err := replay.ParseGenesis(cfg.Genesis)
	if err != nil {
		return fmt.Errorf("genesis: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var exporter replay.Exporter
	if cfg.PostgresDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN, ledgerName)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		exporter = store
	}

	runner := replay.NewRunner(replay.RunConfig{
		In:              cfg.In,
		Genesis:         genesis,
		SnapshotPath:    cfg.Snapshot,
		SnapshotEnabled: cfg.SnapshotEnabled,
		BatchSize:       cfg.BatchSize,
	}, storage.NewJsonlStorage(cfg.Events), storage.NewJsonlStorage(cfg.Results), exporter, logger)

	logger.Info("replay start",
		zap.String("in", cfg.In),
		zap.String("events", cfg.Events),
		zap.String("results", cfg.Results),
		zap.Bool("snapshot_enabled", cfg.SnapshotEnabled),
		zap.String("snapshot", cfg.Snapshot),
		zap.String("pg_dsn", redactDSN(cfg.PostgresDSN)),
		zap.Int("batch_size", cfg.BatchSize),
	)

	summary, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	logger.Info("replay done",
		zap.Int("applied", summary.Applied),
		zap.Int("rejected", summary.Rejected),
		zap.Int("skipped", summary.Skipped),
		zap.Int("events", summary.Events),
		zap.Uint64("last_seq", summary.LastSeq),
		zap.Uint64("block", summary.Block),
	)
	return nil
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
