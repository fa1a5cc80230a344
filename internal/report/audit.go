package report

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"stakeLedger/internal/model"
)

// Liability is what the ledger owes holders of one asset.
type Liability struct {
	Asset   common.Address
	Staked  *big.Int
	Queued  *big.Int
	Rewards *big.Int
}

// Total is staked plus queued plus reward liabilities.
func (l Liability) Total() *big.Int {
	total := new(big.Int).Add(l.Staked, l.Queued)
	return total.Add(total, l.Rewards)
}

// PendingFunc returns a user's claimable reward in a pool.
type PendingFunc func(pid uint64, user common.Address) (*uint256.Int, error)

// Liabilities sums stakes and queued unstakes per pool asset, and pending
// rewards under the reward token. Results are ordered by asset.
func Liabilities(snap model.LedgerSnapshot, pending PendingFunc) ([]Liability, error) {
	byAsset := make(map[common.Address]*Liability)
	get := func(asset common.Address) *Liability {
		l, ok := byAsset[asset]
		if !ok {
			l = &Liability{Asset: asset, Staked: new(big.Int), Queued: new(big.Int), Rewards: new(big.Int)}
			byAsset[asset] = l
		}
		return l
	}

	poolAsset := make(map[uint64]common.Address, len(snap.Pools))
	for _, pool := range snap.Pools {
		asset := common.HexToAddress(pool.Asset)
		poolAsset[pool.PoolID] = asset
		staked, ok := parseBigInt(pool.TotalStaked)
		if !ok {
			return nil, fmt.Errorf("pool %d: invalid total staked %q", pool.PoolID, pool.TotalStaked)
		}
		get(asset).Staked.Add(get(asset).Staked, staked)
	}

	rewardToken := common.HexToAddress(snap.Config.RewardToken)
	for _, pos := range snap.Positions {
		asset, ok := poolAsset[pos.PoolID]
		if !ok {
			return nil, fmt.Errorf("position references unknown pool %d", pos.PoolID)
		}
		for _, req := range pos.Requests {
			amount, ok := parseBigInt(req.Amount)
			if !ok {
				return nil, fmt.Errorf("position %d/%s: invalid request amount %q", pos.PoolID, pos.User, req.Amount)
			}
			get(asset).Queued.Add(get(asset).Queued, amount)
		}
		if pending == nil {
			continue
		}
		reward, err := pending(pos.PoolID, common.HexToAddress(pos.User))
		if err != nil {
			return nil, fmt.Errorf("pending %d/%s: %w", pos.PoolID, pos.User, err)
		}
		get(rewardToken).Rewards.Add(get(rewardToken).Rewards, reward.ToBig())
	}

	out := make([]Liability, 0, len(byAsset))
	for _, l := range byAsset {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Asset[:], out[j].Asset[:]) < 0
	})
	return out, nil
}

// AuditLine compares a liability with what custody actually holds.
type AuditLine struct {
	Asset   string `json:"asset"`
	Symbol  string `json:"symbol,omitempty"`
	Owed    string `json:"owed"`
	Held    string `json:"held"`
	Surplus string `json:"surplus"`
	Solvent bool   `json:"solvent"`
}

// CompareCustody formats a liability against the held balance.
func CompareCustody(l Liability, held *uint256.Int, meta model.TokenMeta) AuditLine {
	owed := l.Total()
	heldBig := new(big.Int)
	if held != nil {
		heldBig = held.ToBig()
	}
	surplus := new(big.Int).Sub(heldBig, owed)
	return AuditLine{
		Asset:   l.Asset.Hex(),
		Symbol:  meta.Symbol,
		Owed:    formatBig(owed, meta.Decimals),
		Held:    formatBig(heldBig, meta.Decimals),
		Surplus: formatBig(surplus, meta.Decimals),
		Solvent: surplus.Sign() >= 0,
	}
}
