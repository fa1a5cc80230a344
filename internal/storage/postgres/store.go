package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"stakeLedger/internal/model"
)

// Schema creates the export tables. Amounts are 256-bit integers.
const Schema = `
CREATE TABLE IF NOT EXISTS stake_pools (
	ledger TEXT NOT NULL,
	pid BIGINT NOT NULL,
	asset TEXT NOT NULL,
	weight NUMERIC(20,0) NOT NULL,
	min_deposit NUMERIC(78,0) NOT NULL,
	unstake_lock_blocks NUMERIC(20,0) NOT NULL,
	acc_reward_per_share NUMERIC(78,0) NOT NULL,
	last_reward_block NUMERIC(20,0) NOT NULL,
	total_staked NUMERIC(78,0) NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (ledger, pid)
);
CREATE TABLE IF NOT EXISTS stake_positions (
	ledger TEXT NOT NULL,
	pid BIGINT NOT NULL,
	user_address TEXT NOT NULL,
	staked NUMERIC(78,0) NOT NULL,
	reward_debt NUMERIC(78,0) NOT NULL,
	pending_reward NUMERIC(78,0) NOT NULL,
	queued NUMERIC(78,0) NOT NULL,
	queued_requests INTEGER NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (ledger, pid, user_address)
);
CREATE TABLE IF NOT EXISTS replay_state (
	name TEXT PRIMARY KEY,
	last_seq NUMERIC(20,0) NOT NULL,
	last_block NUMERIC(20,0) NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`

// Store exports ledger state to Postgres.
type Store struct {
	pool   *pgxpool.Pool
	ledger string
}

// NewStore connects to dsn. ledger names the ledger instance in every row.
func NewStore(ctx context.Context, dsn, ledger string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	if ledger == "" {
		return nil, fmt.Errorf("ledger name is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, ledger: ledger}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates missing tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// UpsertPools inserts or updates pool rows.
func (s *Store) UpsertPools(ctx context.Context, pools []model.PoolRecord) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		batch.Queue(`
			INSERT INTO stake_pools (
				ledger, pid, asset, weight, min_deposit, unstake_lock_blocks,
				acc_reward_per_share, last_reward_block, total_staked, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
			ON CONFLICT (ledger, pid)
			DO UPDATE SET
				weight = EXCLUDED.weight,
				min_deposit = EXCLUDED.min_deposit,
				unstake_lock_blocks = EXCLUDED.unstake_lock_blocks,
				acc_reward_per_share = EXCLUDED.acc_reward_per_share,
				last_reward_block = EXCLUDED.last_reward_block,
				total_staked = EXCLUDED.total_staked,
				updated_at = now()
		`,
			s.ledger,
			int64(pool.PoolID),
			pool.Asset,
			fmt.Sprint(pool.Weight),
			pool.MinDeposit,
			fmt.Sprint(pool.UnstakeLockBlocks),
			pool.AccRewardPerShare,
			fmt.Sprint(pool.LastRewardBlock),
			pool.TotalStaked,
		)
	}
	return s.sendBatch(ctx, batch, len(pools))
}

// UpsertPositions inserts or updates position rows.
func (s *Store) UpsertPositions(ctx context.Context, positions []model.PositionRecord) error {
	if len(positions) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pos := range positions {
		queued, err := queuedTotal(pos.Requests)
		if err != nil {
			return fmt.Errorf("position %d/%s: %w", pos.PoolID, pos.User, err)
		}
		batch.Queue(`
			INSERT INTO stake_positions (
				ledger, pid, user_address, staked, reward_debt, pending_reward,
				queued, queued_requests, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
			ON CONFLICT (ledger, pid, user_address)
			DO UPDATE SET
				staked = EXCLUDED.staked,
				reward_debt = EXCLUDED.reward_debt,
				pending_reward = EXCLUDED.pending_reward,
				queued = EXCLUDED.queued,
				queued_requests = EXCLUDED.queued_requests,
				updated_at = now()
		`,
			s.ledger,
			int64(pos.PoolID),
			pos.User,
			pos.Staked,
			pos.RewardDebt,
			pos.PendingReward,
			queued,
			len(pos.Requests),
		)
	}
	return s.sendBatch(ctx, batch, len(positions))
}

// ExportSnapshot writes every pool and position of snap in chunks of
// batchSize rows.
func (s *Store) ExportSnapshot(ctx context.Context, snap model.LedgerSnapshot, batchSize int) error {
	if batchSize <= 0 {
		batchSize = len(snap.Positions) + 1
	}
	if err := s.UpsertPools(ctx, snap.Pools); err != nil {
		return fmt.Errorf("upsert pools: %w", err)
	}
	for start := 0; start < len(snap.Positions); start += batchSize {
		end := min(start+batchSize, len(snap.Positions))
		if err := s.UpsertPositions(ctx, snap.Positions[start:end]); err != nil {
			return fmt.Errorf("upsert positions: %w", err)
		}
	}
	return s.SaveState(ctx, snap.LastSeq, snap.Block)
}

// LoadState returns the last exported operation sequence.
func (s *Store) LoadState(ctx context.Context) (uint64, bool, error) {
	var seq string
	row := s.pool.QueryRow(ctx, `SELECT last_seq::text FROM replay_state WHERE name=$1`, s.ledger)
	if err := row.Scan(&seq); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	var out uint64
	if _, err := fmt.Sscan(seq, &out); err != nil {
		return 0, false, fmt.Errorf("parse last_seq %q: %w", seq, err)
	}
	return out, true, nil
}

// SaveState upserts the last exported operation sequence and block.
func (s *Store) SaveState(ctx context.Context, seq, block uint64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO replay_state (name, last_seq, last_block, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (name) DO UPDATE
		SET last_seq = EXCLUDED.last_seq, last_block = EXCLUDED.last_block, updated_at = now()
	`, s.ledger, fmt.Sprint(seq), fmt.Sprint(block))
	return err
}

func (s *Store) sendBatch(ctx context.Context, batch *pgx.Batch, n int) error {
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func queuedTotal(requests []model.UnstakeRequestRecord) (string, error) {
	total := new(big.Int)
	for _, req := range requests {
		amount, ok := new(big.Int).SetString(req.Amount, 10)
		if !ok {
			return "", fmt.Errorf("invalid request amount %q", req.Amount)
		}
		total.Add(total, amount)
	}
	return total.String(), nil
}
