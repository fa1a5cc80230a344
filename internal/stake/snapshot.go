package stake

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"stakeLedger/internal/model"
)

// Snapshot captures config, pools and positions. Balances and roles belong
// to the collaborators and are added by the caller.
func (e *Engine) Snapshot() model.LedgerSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := model.LedgerSnapshot{
		Block:       e.clock.Current(),
		Config:      configRecord(e.cfg),
		TotalWeight: e.pools.totalWeight,
		Pools:       make([]model.PoolRecord, 0, len(e.pools.pools)),
		Positions:   make([]model.PositionRecord, 0, len(e.positions.positions)),
	}
	for pid, pool := range e.pools.pools {
		snap.Pools = append(snap.Pools, PoolRecord(uint64(pid), pool))
	}
	for _, key := range e.positions.sortedKeys() {
		snap.Positions = append(snap.Positions, PositionRecord(key.pid, key.user, e.positions.positions[key]))
	}
	return snap
}

// RestoreEngine rebuilds an engine from a snapshot.
func RestoreEngine(snap model.LedgerSnapshot, opts Options) (*Engine, error) {
	cfg, err := configFromRecord(snap.Config)
	if err != nil {
		return nil, err
	}
	e, err := newEngine(cfg, opts)
	if err != nil {
		return nil, err
	}

	for i, rec := range snap.Pools {
		if rec.PoolID != uint64(i) {
			return nil, fmt.Errorf("%w: pool records out of order at %d", ErrInvalidConfig, i)
		}
		pool, err := poolFromRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("pool %d: %w", rec.PoolID, err)
		}
		if err := e.pools.checkAdd(pool.Asset, pool.Weight); err != nil {
			return nil, fmt.Errorf("pool %d: %w", rec.PoolID, err)
		}
		e.pools.add(pool)
	}
	if e.pools.length() == 0 {
		return nil, fmt.Errorf("%w: snapshot has no native pool", ErrInvalidConfig)
	}
	if e.pools.totalWeight != snap.TotalWeight {
		return nil, fmt.Errorf("%w: total weight %d does not match pools (%d)", ErrInvalidConfig, snap.TotalWeight, e.pools.totalWeight)
	}

	for _, rec := range snap.Positions {
		if rec.PoolID >= e.pools.length() {
			return nil, fmt.Errorf("%w: position for pid %d", ErrPoolNotFound, rec.PoolID)
		}
		if !common.IsHexAddress(rec.User) {
			return nil, fmt.Errorf("invalid position user: %s", rec.User)
		}
		pos, err := positionFromRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("position %d/%s: %w", rec.PoolID, rec.User, err)
		}
		e.positions.put(rec.PoolID, common.HexToAddress(rec.User), pos)
	}
	return e, nil
}

// PoolRecord converts a pool to its persisted row.
func PoolRecord(pid uint64, pool Pool) model.PoolRecord {
	return model.PoolRecord{
		PoolID:            pid,
		Asset:             pool.Asset.Hex(),
		Weight:            pool.Weight,
		MinDeposit:        FormatAmount(&pool.MinDeposit),
		UnstakeLockBlocks: pool.UnstakeLockBlocks,
		AccRewardPerShare: FormatAmount(&pool.AccRewardPerShare),
		LastRewardBlock:   pool.LastRewardBlock,
		TotalStaked:       FormatAmount(&pool.TotalStaked),
	}
}

// PositionRecord converts a position to its persisted row.
func PositionRecord(pid uint64, user common.Address, pos Position) model.PositionRecord {
	rec := model.PositionRecord{
		PoolID:        pid,
		User:          user.Hex(),
		Staked:        FormatAmount(&pos.Staked),
		RewardDebt:    FormatAmount(&pos.RewardDebt),
		PendingReward: FormatAmount(&pos.PendingReward),
	}
	for _, req := range pos.Requests {
		rec.Requests = append(rec.Requests, model.UnstakeRequestRecord{
			Amount:      FormatAmount(&req.Amount),
			UnlockBlock: req.UnlockBlock,
		})
	}
	return rec
}

func configRecord(cfg GlobalConfig) model.ConfigRecord {
	return model.ConfigRecord{
		RewardToken:      cfg.RewardToken.Hex(),
		StartBlock:       cfg.StartBlock,
		EndBlock:         cfg.EndBlock,
		RewardPerBlock:   FormatAmount(&cfg.RewardPerBlock),
		NativeWeight:     cfg.NativeWeight,
		NativeMinDeposit: FormatAmount(&cfg.NativeMinDeposit),
		NativeLockBlocks: cfg.NativeLockBlocks,
		DepositPaused:    cfg.DepositPaused,
		UnstakePaused:    cfg.UnstakePaused,
		WithdrawPaused:   cfg.WithdrawPaused,
		ClaimPaused:      cfg.ClaimPaused,
	}
}

func configFromRecord(rec model.ConfigRecord) (GlobalConfig, error) {
	if !common.IsHexAddress(rec.RewardToken) {
		return GlobalConfig{}, fmt.Errorf("%w: reward token %q", ErrInvalidConfig, rec.RewardToken)
	}
	rewardPerBlock, err := ParseAmount(rec.RewardPerBlock)
	if err != nil {
		return GlobalConfig{}, err
	}
	nativeMin, err := ParseAmount(rec.NativeMinDeposit)
	if err != nil {
		return GlobalConfig{}, err
	}
	return GlobalConfig{
		RewardToken:      common.HexToAddress(rec.RewardToken),
		StartBlock:       rec.StartBlock,
		EndBlock:         rec.EndBlock,
		RewardPerBlock:   *rewardPerBlock,
		NativeWeight:     rec.NativeWeight,
		NativeMinDeposit: *nativeMin,
		NativeLockBlocks: rec.NativeLockBlocks,
		DepositPaused:    rec.DepositPaused,
		UnstakePaused:    rec.UnstakePaused,
		WithdrawPaused:   rec.WithdrawPaused,
		ClaimPaused:      rec.ClaimPaused,
	}, nil
}

func poolFromRecord(rec model.PoolRecord) (Pool, error) {
	if !common.IsHexAddress(rec.Asset) {
		return Pool{}, fmt.Errorf("invalid asset: %s", rec.Asset)
	}
	amounts, err := parseAmounts(rec.MinDeposit, rec.AccRewardPerShare, rec.TotalStaked)
	if err != nil {
		return Pool{}, err
	}
	return Pool{
		Asset:             common.HexToAddress(rec.Asset),
		Weight:            rec.Weight,
		MinDeposit:        amounts[0],
		UnstakeLockBlocks: rec.UnstakeLockBlocks,
		AccRewardPerShare: amounts[1],
		LastRewardBlock:   rec.LastRewardBlock,
		TotalStaked:       amounts[2],
	}, nil
}

func positionFromRecord(rec model.PositionRecord) (Position, error) {
	amounts, err := parseAmounts(rec.Staked, rec.RewardDebt, rec.PendingReward)
	if err != nil {
		return Position{}, err
	}
	pos := Position{
		Staked:        amounts[0],
		RewardDebt:    amounts[1],
		PendingReward: amounts[2],
	}
	for _, req := range rec.Requests {
		amount, err := ParseAmount(req.Amount)
		if err != nil {
			return Position{}, err
		}
		pos.Requests = append(pos.Requests, UnstakeRequest{Amount: *amount, UnlockBlock: req.UnlockBlock})
	}
	return pos, nil
}

func parseAmounts(values ...string) ([]uint256.Int, error) {
	out := make([]uint256.Int, 0, len(values))
	for _, value := range values {
		amount, err := ParseAmount(value)
		if err != nil {
			return nil, err
		}
		out = append(out, *amount)
	}
	return out, nil
}
