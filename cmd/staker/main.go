package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "staker",
		Short:        "Multi-pool staking ledger",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay an operation log into the ledger",
		RunE:  runReplay,
	}

	replayCmd.Flags().String("reward-token", "", "reward token address")
	replayCmd.Flags().Uint64("start-block", 0, "first block that emits rewards")
	replayCmd.Flags().Uint64("end-block", 0, "block at which emission stops")
	replayCmd.Flags().String("reward-per-block", "", "reward base units emitted per block")
	replayCmd.Flags().Uint64("native-weight", 100, "weight of the native pool")
	replayCmd.Flags().String("native-min-deposit", "", "minimum native deposit in base units")
	replayCmd.Flags().Uint64("native-lock-blocks", 0, "unstake lock of the native pool")
	replayCmd.Flags().String("admin", "", "initial admin address")
	replayCmd.Flags().String("custody", "", "custody address holding staked and reward funds")
	replayCmd.Flags().String("in", "./data/operations.jsonl", "input operations JSONL")
	replayCmd.Flags().String("events", "./data/events.jsonl", "output events JSONL")
	replayCmd.Flags().String("results", "./data/rejected.jsonl", "rejected operations JSONL")
	replayCmd.Flags().String("snapshot", "./data/snapshot.json", "snapshot file path")
	replayCmd.Flags().Bool("snapshot-enabled", true, "enable snapshots")
	replayCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for exporting pools and positions")
	replayCmd.Flags().Int("batch-size", 500, "operations per flush and rows per DB batch")
	replayCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(replayCmd)

	pendingCmd := &cobra.Command{
		Use:   "pending",
		Short: "Report pending rewards and withdrawable amounts from a snapshot",
		RunE:  runPending,
	}
	addQueryFlags(pendingCmd)
	pendingCmd.Flags().StringSlice("user", nil, "user addresses (comma-separated), default all positions")
	pendingCmd.Flags().StringSlice("pid", nil, "pool ids (comma-separated), default all pools")

	root.AddCommand(pendingCmd)

	yieldsCmd := &cobra.Command{
		Use:   "yields",
		Short: "Report per-pool emission rates from a snapshot",
		RunE:  runYields,
	}
	addQueryFlags(yieldsCmd)
	yieldsCmd.Flags().Uint64("blocks-per-year", 10512000, "blocks per year for annual rates, 0 disables")

	root.AddCommand(yieldsCmd)

	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Compare snapshot liabilities with on-chain custody balances",
		RunE:  runAudit,
	}
	addQueryFlags(auditCmd)

	root.AddCommand(auditCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addQueryFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "RPC URL used for the chain head and token metadata")
	cmd.Flags().String("snapshot", "./data/snapshot.json", "snapshot file path")
	cmd.Flags().Uint64("at-block", 0, "evaluate at this block instead of the chain head")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
