package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stakeLedger/internal/report"
)

func runYields(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	q, err := openQuery(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer q.close()

	yields, err := report.PoolYields(q.snap, q.block, q.cfg.BlocksPerYear)
	if err != nil {
		return err
	}

	q.logger.Info("yield report",
		zap.Uint64("block", q.block),
		zap.Uint64("blocks_per_year", q.cfg.BlocksPerYear),
		zap.Int("pools", len(yields)),
	)
	return writeJSONLines(cmd.OutOrStdout(), yields)
}
