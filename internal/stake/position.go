package stake

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type positionKey struct {
	pid  uint64
	user common.Address
}

// positionLedger holds positions. Positions are created on first deposit and
// kept, zeroed, after a full exit.
type positionLedger struct {
	positions map[positionKey]Position
}

func newPositionLedger() *positionLedger {
	return &positionLedger{positions: make(map[positionKey]Position)}
}

func (l *positionLedger) get(pid uint64, user common.Address) Position {
	return l.positions[positionKey{pid: pid, user: user}].clone()
}

// lookup reports whether user has ever deposited into pid.
func (l *positionLedger) lookup(pid uint64, user common.Address) (Position, bool) {
	pos, ok := l.positions[positionKey{pid: pid, user: user}]
	return pos.clone(), ok
}

func (l *positionLedger) put(pid uint64, user common.Address, pos Position) {
	l.positions[positionKey{pid: pid, user: user}] = pos
}

func (l *positionLedger) sortedKeys() []positionKey {
	keys := make([]positionKey, 0, len(l.positions))
	for key := range l.positions {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].pid != keys[j].pid {
			return keys[i].pid < keys[j].pid
		}
		return bytes.Compare(keys[i].user.Bytes(), keys[j].user.Bytes()) < 0
	})
	return keys
}

// planDeposit returns the pool and position after staking amount. pool must
// already be accrued to the current block.
func planDeposit(pool Pool, pos Position, amount *uint256.Int) (Pool, Position, error) {
	pos, err := settle(pos, &pool.AccRewardPerShare)
	if err != nil {
		return Pool{}, Position{}, err
	}
	staked, err := checkedAdd(&pos.Staked, amount)
	if err != nil {
		return Pool{}, Position{}, err
	}
	total, err := checkedAdd(&pool.TotalStaked, amount)
	if err != nil {
		return Pool{}, Position{}, err
	}
	pos.Staked = *staked
	pool.TotalStaked = *total
	pos, err = resetDebt(pos, &pool.AccRewardPerShare)
	if err != nil {
		return Pool{}, Position{}, err
	}
	return pool, pos, nil
}

// planUnstake moves amount from the stake into the unlock queue.
func planUnstake(pool Pool, pos Position, amount *uint256.Int, block uint64) (Pool, Position, error) {
	if pos.Staked.Lt(amount) {
		return Pool{}, Position{}, fmt.Errorf("%w: staked %s, requested %s",
			ErrInsufficientStake, FormatAmount(&pos.Staked), FormatAmount(amount))
	}
	if block > ^uint64(0)-pool.UnstakeLockBlocks {
		return Pool{}, Position{}, ErrOverflow
	}
	pos, err := settle(pos, &pool.AccRewardPerShare)
	if err != nil {
		return Pool{}, Position{}, err
	}
	pos.Staked.Sub(&pos.Staked, amount)
	pool.TotalStaked.Sub(&pool.TotalStaked, amount)
	pos.Requests = append(pos.Requests, UnstakeRequest{
		Amount:      *amount.Clone(),
		UnlockBlock: block + pool.UnstakeLockBlocks,
	})
	pos, err = resetDebt(pos, &pool.AccRewardPerShare)
	if err != nil {
		return Pool{}, Position{}, err
	}
	return pool, pos, nil
}

// planWithdraw removes every unlocked request and returns their sum. Locked
// requests keep their order.
func planWithdraw(pos Position, block uint64) (Position, *uint256.Int, error) {
	total := new(uint256.Int)
	kept := make([]UnstakeRequest, 0, len(pos.Requests))
	for _, req := range pos.Requests {
		if req.UnlockBlock <= block {
			sum, err := checkedAdd(total, &req.Amount)
			if err != nil {
				return Position{}, nil, err
			}
			total = sum
			continue
		}
		kept = append(kept, req)
	}
	pos.Requests = kept
	return pos, total, nil
}

// planClaim settles the position and empties PendingReward.
func planClaim(pool Pool, pos Position) (Position, *uint256.Int, error) {
	pos, err := settle(pos, &pool.AccRewardPerShare)
	if err != nil {
		return Position{}, nil, err
	}
	pos, err = resetDebt(pos, &pool.AccRewardPerShare)
	if err != nil {
		return Position{}, nil, err
	}
	reward := pos.PendingReward.Clone()
	pos.PendingReward.Clear()
	return pos, reward, nil
}

// unlockedAmounts sums queued and unlocked request amounts.
func unlockedAmounts(pos Position, block uint64) (*uint256.Int, *uint256.Int) {
	requested := new(uint256.Int)
	unlocked := new(uint256.Int)
	for _, req := range pos.Requests {
		requested.Add(requested, &req.Amount)
		if req.UnlockBlock <= block {
			unlocked.Add(unlocked, &req.Amount)
		}
	}
	return requested, unlocked
}
