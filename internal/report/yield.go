package report

import (
	"fmt"
	"math/big"

	"stakeLedger/internal/model"
)

// PoolYield is a pool's share of emission at a block.
type PoolYield struct {
	PoolID         uint64  `json:"pid"`
	Asset          string  `json:"asset"`
	Weight         uint64  `json:"weight"`
	Active         bool    `json:"active"`
	RewardPerBlock string  `json:"reward_per_block"`
	RewardPerStake *string `json:"reward_per_stake_per_block,omitempty"`
	AnnualRate     *string `json:"annual_rate,omitempty"`
}

// PoolYields computes every pool's emission share at block. Rates are reward
// base units per staked base unit and are nil for empty pools. blocksPerYear
// of zero skips annualisation.
func PoolYields(snap model.LedgerSnapshot, block, blocksPerYear uint64) ([]PoolYield, error) {
	rewardPerBlock, ok := parseBigInt(snap.Config.RewardPerBlock)
	if !ok {
		return nil, fmt.Errorf("invalid reward per block %q", snap.Config.RewardPerBlock)
	}
	active := block >= snap.Config.StartBlock && block < snap.Config.EndBlock

	out := make([]PoolYield, 0, len(snap.Pools))
	for _, pool := range snap.Pools {
		staked, ok := parseBigInt(pool.TotalStaked)
		if !ok {
			return nil, fmt.Errorf("pool %d: invalid total staked %q", pool.PoolID, pool.TotalStaked)
		}

		share := new(big.Int)
		if active && snap.TotalWeight > 0 {
			share.Mul(rewardPerBlock, new(big.Int).SetUint64(pool.Weight))
			share.Quo(share, new(big.Int).SetUint64(snap.TotalWeight))
		}

		y := PoolYield{
			PoolID:         pool.PoolID,
			Asset:          pool.Asset,
			Weight:         pool.Weight,
			Active:         active,
			RewardPerBlock: share.String(),
		}
		if staked.Sign() > 0 {
			rate := new(big.Rat).SetFrac(share, staked)
			perBlock := rate.FloatString(ratioScale)
			y.RewardPerStake = &perBlock
			if blocksPerYear > 0 {
				annual := new(big.Rat).Mul(rate, new(big.Rat).SetInt(new(big.Int).SetUint64(blocksPerYear)))
				text := annual.FloatString(ratioScale)
				y.AnnualRate = &text
			}
		}
		out = append(out, y)
	}
	return out, nil
}
