package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stakeLedger/internal/chain"
	"stakeLedger/internal/report"
	"stakeLedger/internal/stake"
)

func runAudit(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	q, err := openQuery(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer q.close()

	custody, err := chain.ParseAddress(q.snap.Custody)
	if err != nil {
		return fmt.Errorf("custody: %w", err)
	}

	liabilities, err := report.Liabilities(q.snap, q.engine.PendingReward)
	if err != nil {
		return err
	}

	lines := make([]report.AuditLine, 0, len(liabilities))
	short := 0
	for _, l := range liabilities {
		held, err := q.custodyBalance(ctx, l.Asset, custody)
		if err != nil {
			return fmt.Errorf("balance of %s: %w", l.Asset.Hex(), err)
		}
		line := report.CompareCustody(l, held, q.tokenMeta(ctx, l.Asset))
		if !line.Solvent {
			short++
			q.logger.Warn("custody short", zap.String("asset", line.Asset), zap.String("surplus", line.Surplus))
		}
		lines = append(lines, line)
	}

	if err := writeJSONLines(cmd.OutOrStdout(), lines); err != nil {
		return err
	}
	if short > 0 {
		return fmt.Errorf("custody short on %d of %d assets", short, len(lines))
	}
	q.logger.Info("audit ok", zap.Uint64("block", q.block), zap.Int("assets", len(lines)))
	return nil
}

// custodyBalance reads the custody holding of asset at the chain head.
func (q *queryView) custodyBalance(ctx context.Context, asset, custody common.Address) (*uint256.Int, error) {
	if asset != stake.NativeAsset {
		return chain.BalanceOf(ctx, q.client, asset, custody, nil)
	}
	balance, err := q.client.NativeBalance(ctx, custody, nil)
	if err != nil {
		return nil, err
	}
	held, overflow := uint256.FromBig(balance)
	if overflow {
		return nil, fmt.Errorf("native balance overflows 256 bits")
	}
	return held, nil
}
