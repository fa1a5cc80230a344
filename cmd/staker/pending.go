package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stakeLedger/internal/chain"
	"stakeLedger/internal/report"
)

type pendingRow struct {
	Block     uint64 `json:"block"`
	PoolID    uint64 `json:"pid"`
	User      string `json:"user"`
	Asset     string `json:"asset"`
	Staked    string `json:"staked"`
	Pending   string `json:"pending_reward"`
	Requested string `json:"requested"`
	Unlocked  string `json:"unlocked"`
}

type positionKey struct {
	pid  uint64
	user common.Address
}

func runPending(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	q, err := openQuery(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer q.close()

	keys, err := q.positionKeys()
	if err != nil {
		return err
	}

	rewardMeta := q.tokenMeta(ctx, q.engine.Config().RewardToken)
	rows := make([]pendingRow, 0, len(keys))
	for _, key := range keys {
		pool, err := q.engine.Pool(key.pid)
		if err != nil {
			return err
		}
		pos, err := q.engine.PositionOf(key.pid, key.user)
		if err != nil {
			return err
		}
		pending, err := q.engine.PendingReward(key.pid, key.user)
		if err != nil {
			return fmt.Errorf("pending %d/%s: %w", key.pid, key.user.Hex(), err)
		}
		requested, unlocked, err := q.engine.Withdrawable(key.pid, key.user)
		if err != nil {
			return err
		}

		meta := q.tokenMeta(ctx, pool.Asset)
		rows = append(rows, pendingRow{
			Block:     q.block,
			PoolID:    key.pid,
			User:      key.user.Hex(),
			Asset:     pool.Asset.Hex(),
			Staked:    report.FormatTokenAmount(&pos.Staked, meta.Decimals),
			Pending:   report.FormatTokenAmount(pending, rewardMeta.Decimals),
			Requested: report.FormatTokenAmount(requested, meta.Decimals),
			Unlocked:  report.FormatTokenAmount(unlocked, meta.Decimals),
		})
	}

	q.logger.Info("pending report", zap.Uint64("block", q.block), zap.Int("rows", len(rows)))
	return writeJSONLines(cmd.OutOrStdout(), rows)
}

// positionKeys expands the user and pool filters. With no users, every
// stored position in the selected pools is reported.
func (q *queryView) positionKeys() ([]positionKey, error) {
	pools := q.cfg.Pools
	if len(pools) == 0 {
		for pid := uint64(0); pid < q.engine.PoolLength(); pid++ {
			pools = append(pools, pid)
		}
	}
	selected := make(map[uint64]bool, len(pools))
	for _, pid := range pools {
		if pid >= q.engine.PoolLength() {
			return nil, fmt.Errorf("pool %d does not exist", pid)
		}
		selected[pid] = true
	}

	if len(q.cfg.Users) == 0 {
		keys := make([]positionKey, 0, len(q.snap.Positions))
		for _, rec := range q.snap.Positions {
			if selected[rec.PoolID] {
				keys = append(keys, positionKey{pid: rec.PoolID, user: common.HexToAddress(rec.User)})
			}
		}
		return keys, nil
	}

	users, err := chain.ParseAddresses(q.cfg.Users)
	if err != nil {
		return nil, err
	}
	keys := make([]positionKey, 0, len(users)*len(pools))
	for _, user := range users {
		for _, pid := range pools {
			keys = append(keys, positionKey{pid: pid, user: user})
		}
	}
	return keys, nil
}
