package stake

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"stakeLedger/internal/model"
)

// Options wires an Engine to its collaborators.
type Options struct {
	Clock  BlockClock
	Ledger TokenLedger
	Gate   AuthorizationGate
	Logger *zap.Logger
}

// Engine is the staking ledger. All methods are serialized by a single lock,
// so callers may use it from many goroutines and still observe a total order.
type Engine struct {
	mu        sync.Mutex
	cfg       GlobalConfig
	clock     BlockClock
	ledger    TokenLedger
	gate      AuthorizationGate
	logger    *zap.Logger
	pools     *poolRegistry
	positions *positionLedger
	events    []model.Event
}

// NewEngine validates cfg and creates the native pool at index 0.
func NewEngine(cfg GlobalConfig, opts Options) (*Engine, error) {
	e, err := newEngine(cfg, opts)
	if err != nil {
		return nil, err
	}
	if err := e.pools.checkAdd(NativeAsset, cfg.NativeWeight); err != nil {
		return nil, err
	}
	e.pools.add(Pool{
		Asset:             NativeAsset,
		Weight:            cfg.NativeWeight,
		MinDeposit:        cfg.NativeMinDeposit,
		UnstakeLockBlocks: cfg.NativeLockBlocks,
		LastRewardBlock:   max(e.clock.Current(), cfg.StartBlock),
	})
	return e, nil
}

func newEngine(cfg GlobalConfig, opts Options) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Clock == nil {
		return nil, fmt.Errorf("block clock is nil")
	}
	if opts.Ledger == nil {
		return nil, fmt.Errorf("token ledger is nil")
	}
	if opts.Gate == nil {
		return nil, fmt.Errorf("authorization gate is nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:       cfg,
		clock:     opts.Clock,
		ledger:    opts.Ledger,
		gate:      opts.Gate,
		logger:    logger,
		pools:     newPoolRegistry(),
		positions: newPositionLedger(),
	}, nil
}

// AddPool registers a token pool and returns its index.
func (e *Engine) AddPool(caller, asset common.Address, weight uint64, minDeposit *uint256.Int, lockBlocks uint64) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.authorize(caller, "add_pool"); err != nil {
		return 0, err
	}
	if err := e.pools.checkAdd(asset, weight); err != nil {
		return 0, err
	}
	if minDeposit == nil {
		minDeposit = new(uint256.Int)
	}
	block := e.clock.Current()
	settled, err := e.settleAll(block)
	if err != nil {
		return 0, err
	}

	e.commitAll(settled)
	pid := e.pools.add(Pool{
		Asset:             asset,
		Weight:            weight,
		MinDeposit:        *minDeposit.Clone(),
		UnstakeLockBlocks: lockBlocks,
		LastRewardBlock:   max(block, e.cfg.StartBlock),
	})
	e.emit(model.Event{
		Name:        model.EventAddPool,
		Block:       block,
		PoolID:      pid,
		Asset:       asset.Hex(),
		Amount:      FormatAmount(minDeposit),
		Weight:      weight,
		TotalWeight: e.pools.totalWeight,
	})
	e.logger.Info("pool added", zap.Uint64("pid", pid), zap.String("asset", asset.Hex()), zap.Uint64("weight", weight), zap.Uint64("lock_blocks", lockBlocks))
	return pid, nil
}

// SetPoolWeight reweights pid and returns the new total weight. Every pool is
// settled first, so past emission keeps the old weights.
func (e *Engine) SetPoolWeight(caller common.Address, pid, weight uint64) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.authorize(caller, "set_pool_weight"); err != nil {
		return 0, err
	}
	if _, err := e.pools.checkWeight(pid, weight); err != nil {
		return 0, err
	}
	block := e.clock.Current()
	settled, err := e.settleAll(block)
	if err != nil {
		return 0, err
	}

	e.commitAll(settled)
	total := e.pools.setWeight(pid, weight)
	e.emit(model.Event{Name: model.EventSetPoolWeight, Block: block, PoolID: pid, Weight: weight, TotalWeight: total})
	e.logger.Info("pool weight set", zap.Uint64("pid", pid), zap.Uint64("weight", weight), zap.Uint64("total_weight", total))
	return total, nil
}

// SetRewardToken swaps the asset paid by future claims.
func (e *Engine) SetRewardToken(caller, token common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.authorize(caller, "set_reward_token"); err != nil {
		return err
	}
	if token == NativeAsset {
		return fmt.Errorf("%w: reward token is required", ErrInvalidConfig)
	}
	e.cfg.RewardToken = token
	e.emit(model.Event{Name: model.EventSetRewardToken, Block: e.clock.Current(), Asset: token.Hex()})
	return nil
}

// SetRewardPerBlock changes the emission rate from the current block on.
func (e *Engine) SetRewardPerBlock(caller common.Address, amount *uint256.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.authorize(caller, "set_reward_per_block"); err != nil {
		return err
	}
	if amount == nil || amount.IsZero() {
		return fmt.Errorf("%w: reward per block must be positive", ErrInvalidConfig)
	}
	block := e.clock.Current()
	settled, err := e.settleAll(block)
	if err != nil {
		return err
	}

	e.commitAll(settled)
	e.cfg.RewardPerBlock = *amount.Clone()
	e.emit(model.Event{Name: model.EventSetRewardPerBlock, Block: block, Amount: FormatAmount(amount)})
	return nil
}

// SetEndBlock moves the end of the emission window.
func (e *Engine) SetEndBlock(caller common.Address, endBlock uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.authorize(caller, "set_end_block"); err != nil {
		return err
	}
	if endBlock <= e.cfg.StartBlock {
		return fmt.Errorf("%w: end block %d must be after start block %d", ErrInvalidConfig, endBlock, e.cfg.StartBlock)
	}
	block := e.clock.Current()
	settled, err := e.settleAll(block)
	if err != nil {
		return err
	}

	e.commitAll(settled)
	e.cfg.EndBlock = endBlock
	e.emit(model.Event{Name: model.EventSetEndBlock, Block: block, EndBlock: endBlock})
	return nil
}

// PauseFlag selects one of the pause switches.
type PauseFlag string

const (
	PauseDeposit  PauseFlag = "deposit"
	PauseUnstake  PauseFlag = "unstake"
	PauseWithdraw PauseFlag = "withdraw"
	PauseClaim    PauseFlag = "claim"
)

// SetPause flips a pause switch. Pausing never changes accounting state.
func (e *Engine) SetPause(caller common.Address, flag PauseFlag, paused bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.authorize(caller, "pause_"+string(flag)); err != nil {
		return err
	}
	switch flag {
	case PauseDeposit:
		e.cfg.DepositPaused = paused
	case PauseUnstake:
		e.cfg.UnstakePaused = paused
	case PauseWithdraw:
		e.cfg.WithdrawPaused = paused
	case PauseClaim:
		e.cfg.ClaimPaused = paused
	default:
		return fmt.Errorf("%w: unknown pause flag %q", ErrInvalidConfig, flag)
	}
	e.emit(model.Event{Name: model.EventSetPause, Block: e.clock.Current(), Flag: string(flag), Paused: paused})
	return nil
}

func (e *Engine) SetPauseDeposit(caller common.Address, paused bool) error {
	return e.SetPause(caller, PauseDeposit, paused)
}

func (e *Engine) SetPauseUnstake(caller common.Address, paused bool) error {
	return e.SetPause(caller, PauseUnstake, paused)
}

func (e *Engine) SetPauseWithdraw(caller common.Address, paused bool) error {
	return e.SetPause(caller, PauseWithdraw, paused)
}

func (e *Engine) SetPauseClaim(caller common.Address, paused bool) error {
	return e.SetPause(caller, PauseClaim, paused)
}

// Deposit stakes amount of a token pool's asset. Pool 0 takes DepositNative.
func (e *Engine) Deposit(caller common.Address, pid uint64, amount *uint256.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if pid == NativePoolID {
		if e.cfg.DepositPaused {
			return ErrDepositPaused
		}
		return fmt.Errorf("%w: pool %d takes native deposits", ErrInvalidConfig, pid)
	}
	return e.deposit(caller, pid, amount)
}

// DepositNative stakes native coin into pool 0.
func (e *Engine) DepositNative(caller common.Address, amount *uint256.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.deposit(caller, NativePoolID, amount)
}

func (e *Engine) deposit(caller common.Address, pid uint64, amount *uint256.Int) error {
	if e.cfg.DepositPaused {
		return ErrDepositPaused
	}
	pool, err := e.pools.get(pid)
	if err != nil {
		return err
	}
	if amount == nil || amount.IsZero() || amount.Lt(&pool.MinDeposit) {
		return fmt.Errorf("%w: %s below minimum %s", ErrAmountTooSmall, FormatAmount(amount), FormatAmount(&pool.MinDeposit))
	}

	block := e.clock.Current()
	pool, err = e.accrue(pool, block)
	if err != nil {
		return err
	}
	nextPool, nextPos, err := planDeposit(pool, e.positions.get(pid, caller), amount)
	if err != nil {
		return err
	}
	if err := e.transferIn(pool.Asset, caller, amount); err != nil {
		return fmt.Errorf("deposit pool %d: %w", pid, err)
	}

	e.pools.put(pid, nextPool)
	e.positions.put(pid, caller, nextPos)
	e.emit(model.Event{Name: model.EventDeposit, Block: block, PoolID: pid, User: caller.Hex(), Amount: FormatAmount(amount)})
	e.logger.Debug("deposit", zap.Uint64("pid", pid), zap.String("user", caller.Hex()), zap.String("amount", FormatAmount(amount)))
	return nil
}

// Unstake queues amount for withdrawal after the pool's lock period.
func (e *Engine) Unstake(caller common.Address, pid uint64, amount *uint256.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cfg.UnstakePaused {
		return ErrUnstakePaused
	}
	pool, err := e.pools.get(pid)
	if err != nil {
		return err
	}
	if amount == nil || amount.IsZero() {
		return fmt.Errorf("%w: unstake amount is zero", ErrAmountTooSmall)
	}

	block := e.clock.Current()
	pool, err = e.accrue(pool, block)
	if err != nil {
		return err
	}
	nextPool, nextPos, err := planUnstake(pool, e.positions.get(pid, caller), amount, block)
	if err != nil {
		return err
	}

	e.pools.put(pid, nextPool)
	e.positions.put(pid, caller, nextPos)
	e.emit(model.Event{Name: model.EventUnstake, Block: block, PoolID: pid, User: caller.Hex(), Amount: FormatAmount(amount)})
	e.logger.Debug("unstake", zap.Uint64("pid", pid), zap.String("user", caller.Hex()), zap.String("amount", FormatAmount(amount)),
		zap.Uint64("unlock_block", block+pool.UnstakeLockBlocks))
	return nil
}

// Withdraw pays out every unlocked unstake request and returns the total.
// Nothing unlocked yet is not an error; the result is zero.
func (e *Engine) Withdraw(caller common.Address, pid uint64) (*uint256.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cfg.WithdrawPaused {
		return nil, ErrWithdrawPaused
	}
	pool, err := e.pools.get(pid)
	if err != nil {
		return nil, err
	}

	block := e.clock.Current()
	pos, exists := e.positions.lookup(pid, caller)
	nextPos, amount, err := planWithdraw(pos, block)
	if err != nil {
		return nil, err
	}
	if exists {
		if err := e.transferOut(pool.Asset, caller, amount); err != nil {
			return nil, fmt.Errorf("withdraw pool %d: %w", pid, err)
		}
		e.positions.put(pid, caller, nextPos)
	}

	e.emit(model.Event{Name: model.EventWithdraw, Block: block, PoolID: pid, User: caller.Hex(), Amount: FormatAmount(amount)})
	e.logger.Debug("withdraw", zap.Uint64("pid", pid), zap.String("user", caller.Hex()), zap.String("amount", FormatAmount(amount)))
	return amount, nil
}

// Claim pays the caller's pending reward in the current reward token.
func (e *Engine) Claim(caller common.Address, pid uint64) (*uint256.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cfg.ClaimPaused {
		return nil, ErrClaimPaused
	}
	pool, err := e.pools.get(pid)
	if err != nil {
		return nil, err
	}

	block := e.clock.Current()
	pool, err = e.accrue(pool, block)
	if err != nil {
		return nil, err
	}
	pos, exists := e.positions.lookup(pid, caller)
	nextPos, reward, err := planClaim(pool, pos)
	if err != nil {
		return nil, err
	}
	if exists {
		if err := e.transferOut(e.cfg.RewardToken, caller, reward); err != nil {
			return nil, fmt.Errorf("claim pool %d: %w", pid, err)
		}
	}

	e.pools.put(pid, pool)
	if exists {
		e.positions.put(pid, caller, nextPos)
	}
	e.emit(model.Event{Name: model.EventClaim, Block: block, PoolID: pid, User: caller.Hex(), Asset: e.cfg.RewardToken.Hex(), Amount: FormatAmount(reward)})
	e.logger.Debug("claim", zap.Uint64("pid", pid), zap.String("user", caller.Hex()), zap.String("reward", FormatAmount(reward)))
	return reward, nil
}

// UpdatePool settles pid's accumulator up to the current block.
func (e *Engine) UpdatePool(pid uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	pool, err := e.pools.get(pid)
	if err != nil {
		return err
	}
	block := e.clock.Current()
	next, err := e.accrue(pool, block)
	if err != nil {
		return err
	}
	if next.LastRewardBlock == pool.LastRewardBlock {
		return nil
	}
	e.pools.put(pid, next)
	e.emit(model.Event{Name: model.EventUpdatePool, Block: block, PoolID: pid, Amount: FormatAmount(&next.AccRewardPerShare)})
	return nil
}

// MassUpdatePools settles every pool up to the current block.
func (e *Engine) MassUpdatePools() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	settled, err := e.settleAll(e.clock.Current())
	if err != nil {
		return err
	}
	e.commitAll(settled)
	return nil
}

// PoolLength returns the number of pools, native pool included.
func (e *Engine) PoolLength() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pools.length()
}

// Pool returns a copy of pool pid as stored, without accruing.
func (e *Engine) Pool(pid uint64) (Pool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pools.get(pid)
}

func (e *Engine) TotalWeight() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pools.totalWeight
}

// Config returns the current global configuration.
func (e *Engine) Config() GlobalConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// PositionOf returns a copy of user's position in pid. A user that never
// deposited has a zero position.
func (e *Engine) PositionOf(pid uint64, user common.Address) (Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.pools.get(pid); err != nil {
		return Position{}, err
	}
	return e.positions.get(pid, user), nil
}

// PendingReward returns what Claim would pay at the current block.
func (e *Engine) PendingReward(pid uint64, user common.Address) (*uint256.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pool, err := e.pools.get(pid)
	if err != nil {
		return nil, err
	}
	pool, err = e.accrue(pool, e.clock.Current())
	if err != nil {
		return nil, err
	}
	pos, err := settle(e.positions.get(pid, user), &pool.AccRewardPerShare)
	if err != nil {
		return nil, err
	}
	return pos.PendingReward.Clone(), nil
}

// Withdrawable returns the queued unstake total and the part unlocked now.
func (e *Engine) Withdrawable(pid uint64, user common.Address) (*uint256.Int, *uint256.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.pools.get(pid); err != nil {
		return nil, nil, err
	}
	requested, unlocked := unlockedAmounts(e.positions.get(pid, user), e.clock.Current())
	return requested, unlocked, nil
}

// DrainEvents returns the events committed since the previous call.
func (e *Engine) DrainEvents() []model.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	events := e.events
	e.events = nil
	return events
}

func (e *Engine) authorize(caller common.Address, op string) error {
	if e.gate.IsAdmin(caller) {
		return nil
	}
	e.logger.Warn("unauthorized admin call", zap.String("op", op), zap.String("caller", caller.Hex()))
	return fmt.Errorf("%w: %s may not %s", ErrUnauthorized, caller.Hex(), op)
}

func (e *Engine) accrue(pool Pool, block uint64) (Pool, error) {
	return accrue(pool, &e.cfg, e.pools.totalWeight, block)
}

// settleAll accrues every pool to block without committing.
func (e *Engine) settleAll(block uint64) ([]Pool, error) {
	settled := make([]Pool, len(e.pools.pools))
	for pid, pool := range e.pools.pools {
		next, err := e.accrue(pool, block)
		if err != nil {
			return nil, fmt.Errorf("settle pool %d: %w", pid, err)
		}
		settled[pid] = next
	}
	return settled, nil
}

func (e *Engine) commitAll(settled []Pool) {
	for pid, pool := range settled {
		e.pools.put(uint64(pid), pool)
	}
}

func (e *Engine) transferIn(asset, from common.Address, amount *uint256.Int) error {
	return asTransferError(e.ledger.TransferIn(asset, from, amount))
}

func (e *Engine) transferOut(asset, to common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	return asTransferError(e.ledger.TransferOut(asset, to, amount))
}

func asTransferError(err error) error {
	if err == nil || errors.Is(err, ErrFailedTransfer) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrFailedTransfer, err)
}

func (e *Engine) emit(event model.Event) {
	e.events = append(e.events, event)
}
