package stake

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// NativePoolID is the index of the native-asset pool created with the engine.
const NativePoolID uint64 = 0

// Scale is the fixed-point base of AccRewardPerShare (1e18).
var Scale = uint256.NewInt(1_000_000_000_000_000_000)

// NativeAsset marks the chain's native coin. Token pools never use it.
var NativeAsset = common.Address{}

// Pool is a staking bucket for a single asset.
type Pool struct {
	Asset             common.Address
	Weight            uint64
	MinDeposit        uint256.Int
	UnstakeLockBlocks uint64
	AccRewardPerShare uint256.Int
	LastRewardBlock   uint64
	TotalStaked       uint256.Int
}

// UnstakeRequest is an amount waiting for its lock to expire.
type UnstakeRequest struct {
	Amount      uint256.Int
	UnlockBlock uint64
}

// Position is a user's stake in one pool.
type Position struct {
	Staked        uint256.Int
	RewardDebt    uint256.Int
	PendingReward uint256.Int
	Requests      []UnstakeRequest
}

func (p Position) clone() Position {
	if p.Requests != nil {
		reqs := make([]UnstakeRequest, len(p.Requests))
		copy(reqs, p.Requests)
		p.Requests = reqs
	}
	return p
}

// GlobalConfig holds emission parameters and pause flags.
type GlobalConfig struct {
	RewardToken    common.Address
	StartBlock     uint64
	EndBlock       uint64
	RewardPerBlock uint256.Int

	NativeWeight     uint64
	NativeMinDeposit uint256.Int
	NativeLockBlocks uint64

	DepositPaused  bool
	UnstakePaused  bool
	WithdrawPaused bool
	ClaimPaused    bool
}

// Validate checks the emission window and reward parameters.
func (c GlobalConfig) Validate() error {
	if c.StartBlock >= c.EndBlock {
		return fmt.Errorf("%w: start block %d must be before end block %d", ErrInvalidConfig, c.StartBlock, c.EndBlock)
	}
	if c.RewardPerBlock.IsZero() {
		return fmt.Errorf("%w: reward per block must be positive", ErrInvalidConfig)
	}
	if c.RewardToken == NativeAsset {
		return fmt.Errorf("%w: reward token is required", ErrInvalidConfig)
	}
	return nil
}
