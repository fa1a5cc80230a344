package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stakeLedger/internal/chain"
	"stakeLedger/internal/config"
	"stakeLedger/internal/model"
	"stakeLedger/internal/replay"
	"stakeLedger/internal/stake"
)

// queryView is a snapshot restored onto the block it is evaluated at.
type queryView struct {
	cfg    config.QueryConfig
	logger *zap.Logger
	snap   model.LedgerSnapshot
	engine *stake.Engine
	client *chain.Client
	block  uint64
	metas  *chain.TokenMetaCache
}

func openQuery(ctx context.Context, cmd *cobra.Command, requireRPC bool) (*queryView, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuery(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	if requireRPC && cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}

	snap, err := replay.ReadSnapshot(cfg.Snapshot)
	if err != nil {
		return nil, err
	}

	q := &queryView{cfg: cfg, logger: logger, snap: snap, metas: chain.NewTokenMetaCache()}
	if cfg.RPCURL != "" {
		client, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("connect rpc: %w", err)
		}
		q.client = client

		chainID, err := client.GetChainID(ctx)
		if err != nil {
			q.close()
			return nil, fmt.Errorf("get chain id: %w", err)
		}
		logger.Info("rpc connected", zap.String("rpc", cfg.RPCURL), zap.String("chain_id", chainID.String()))
	}

	var clock stake.BlockClock
	switch {
	case cfg.AtBlock > 0:
		clock = stake.NewManualClock(cfg.AtBlock)
	case q.client != nil:
		head := chain.NewChainClock(q.client, chain.ClockOptions{
			MaxRetries: cfg.MaxRetries,
			RetryDelay: cfg.RetryBackoff,
			Logger:     logger,
		})
		if _, err := head.Refresh(ctx); err != nil {
			q.close()
			return nil, fmt.Errorf("read chain head: %w", err)
		}
		clock = head
	default:
		clock = stake.NewManualClock(snap.Block)
	}

	q.block = clock.Current()
	if q.block < snap.Block {
		q.close()
		return nil, fmt.Errorf("block %d is before snapshot block %d", q.block, snap.Block)
	}

	engine, err := replay.OpenView(snap, clock, logger)
	if err != nil {
		q.close()
		return nil, fmt.Errorf("restore snapshot: %w", err)
	}
	q.engine = engine

	logger.Info("snapshot loaded",
		zap.String("snapshot", cfg.Snapshot),
		zap.Uint64("snapshot_block", snap.Block),
		zap.Uint64("block", q.block),
		zap.Uint64("last_seq", snap.LastSeq),
		zap.Int("pools", len(snap.Pools)),
		zap.Int("positions", len(snap.Positions)),
	)
	return q, nil
}

func (q *queryView) close() {
	if q.client != nil {
		q.client.Close()
	}
	_ = q.logger.Sync()
}

// tokenMeta resolves decimals for display. Without an RPC every asset is
// shown with 18 decimals.
func (q *queryView) tokenMeta(ctx context.Context, asset common.Address) model.TokenMeta {
	if asset == stake.NativeAsset {
		return model.TokenMeta{Address: asset.Hex(), Decimals: 18, Symbol: "native"}
	}
	if q.client == nil {
		return model.TokenMeta{Address: asset.Hex(), Decimals: 18}
	}
	return q.metas.Lookup(ctx, q.client, asset, q.logger)
}

func writeJSONLines[T any](w io.Writer, rows []T) error {
	enc := json.NewEncoder(w)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("encode row: %w", err)
		}
	}
	return nil
}
