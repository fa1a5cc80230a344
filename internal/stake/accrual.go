package stake

import (
	"github.com/holiman/uint256"
)

// accrue brings pool's accumulator up to block and returns the new pool value.
// The input is not modified. Calling it again at the same block is a no-op.
func accrue(pool Pool, cfg *GlobalConfig, totalWeight uint64, block uint64) (Pool, error) {
	if block <= pool.LastRewardBlock {
		return pool, nil
	}

	effective := min(block, cfg.EndBlock)
	from := max(pool.LastRewardBlock, cfg.StartBlock)
	if effective <= from || pool.TotalStaked.IsZero() {
		pool.LastRewardBlock = block
		return pool, nil
	}

	reward, err := poolEmission(&cfg.RewardPerBlock, effective-from, pool.Weight, totalWeight)
	if err != nil {
		return Pool{}, err
	}
	perShare, err := mulDiv(reward, Scale, &pool.TotalStaked)
	if err != nil {
		return Pool{}, err
	}
	acc, err := checkedAdd(&pool.AccRewardPerShare, perShare)
	if err != nil {
		return Pool{}, err
	}

	pool.AccRewardPerShare = *acc
	pool.LastRewardBlock = block
	return pool, nil
}

// poolEmission is blocks*rewardPerBlock*weight/totalWeight, truncated.
// The remainder of the division is never paid out.
func poolEmission(rewardPerBlock *uint256.Int, blocks, weight, totalWeight uint64) (*uint256.Int, error) {
	if totalWeight == 0 || weight == 0 || blocks == 0 {
		return new(uint256.Int), nil
	}
	total, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(blocks), rewardPerBlock)
	if overflow {
		return nil, ErrOverflow
	}
	return mulDiv(total, uint256.NewInt(weight), uint256.NewInt(totalWeight))
}

// settle moves the reward earned since the last debt reset into PendingReward.
func settle(pos Position, acc *uint256.Int) (Position, error) {
	if pos.Staked.IsZero() {
		return pos, nil
	}
	earned, err := mulDiv(&pos.Staked, acc, Scale)
	if err != nil {
		return Position{}, err
	}
	if earned.Gt(&pos.RewardDebt) {
		delta := new(uint256.Int).Sub(earned, &pos.RewardDebt)
		pending, err := checkedAdd(&pos.PendingReward, delta)
		if err != nil {
			return Position{}, err
		}
		pos.PendingReward = *pending
	}
	return pos, nil
}

// resetDebt marks everything earned at acc as already accounted for.
func resetDebt(pos Position, acc *uint256.Int) (Position, error) {
	debt, err := mulDiv(&pos.Staked, acc, Scale)
	if err != nil {
		return Position{}, err
	}
	pos.RewardDebt = *debt
	return pos, nil
}
