package replay

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"stakeLedger/internal/chain"
	"stakeLedger/internal/config"
	"stakeLedger/internal/stake"
)

// Genesis is the parsed starting point of a fresh ledger.
type Genesis struct {
	Config  stake.GlobalConfig
	Admin   common.Address
	Custody common.Address
}

// ParseGenesis validates raw genesis settings.
func ParseGenesis(raw config.Genesis) (Genesis, error) {
	rewardToken, err := chain.ParseAddress(raw.RewardToken)
	if err != nil {
		return Genesis{}, fmt.Errorf("reward-token: %w", err)
	}
	admin, err := chain.ParseAddress(raw.Admin)
	if err != nil {
		return Genesis{}, fmt.Errorf("admin: %w", err)
	}
	custody, err := chain.ParseAddress(raw.Custody)
	if err != nil {
		return Genesis{}, fmt.Errorf("custody: %w", err)
	}
	rewardPerBlock, err := stake.ParseAmount(raw.RewardPerBlock)
	if err != nil {
		return Genesis{}, fmt.Errorf("reward-per-block: %w", err)
	}
	nativeMin, err := stake.ParseAmount(raw.NativeMinDeposit)
	if err != nil {
		return Genesis{}, fmt.Errorf("native-min-deposit: %w", err)
	}

	cfg := stake.GlobalConfig{
		RewardToken:      rewardToken,
		StartBlock:       raw.StartBlock,
		EndBlock:         raw.EndBlock,
		RewardPerBlock:   *rewardPerBlock,
		NativeWeight:     raw.NativeWeight,
		NativeMinDeposit: *nativeMin,
		NativeLockBlocks: raw.NativeLockBlocks,
	}
	if err := cfg.Validate(); err != nil {
		return Genesis{}, err
	}
	return Genesis{Config: cfg, Admin: admin, Custody: custody}, nil
}
