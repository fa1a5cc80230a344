package stake

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"stakeLedger/internal/model"
)

// TokenLedger moves fungible balances between users and the ledger's custody.
// Both methods fail with an error wrapping ErrFailedTransfer.
type TokenLedger interface {
	TransferIn(asset, from common.Address, amount *uint256.Int) error
	TransferOut(asset, to common.Address, amount *uint256.Int) error
}

// MemoryLedger is a frictionless in-memory TokenLedger. The native coin is
// tracked under NativeAsset like any other asset.
type MemoryLedger struct {
	mu       sync.Mutex
	custody  common.Address
	balances map[common.Address]map[common.Address]*uint256.Int
}

func NewMemoryLedger(custody common.Address) *MemoryLedger {
	return &MemoryLedger{
		custody:  custody,
		balances: make(map[common.Address]map[common.Address]*uint256.Int),
	}
}

// Custody returns the account holding staked and reward funds.
func (l *MemoryLedger) Custody() common.Address {
	return l.custody
}

// Mint credits holder with amount of asset.
func (l *MemoryLedger) Mint(asset, holder common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	current := l.balance(asset, holder)
	next, overflow := new(uint256.Int).AddOverflow(current, amount)
	if overflow {
		return fmt.Errorf("mint %s to %s: balance overflow", asset.Hex(), holder.Hex())
	}
	l.setBalance(asset, holder, next)
	return nil
}

// BalanceOf returns a copy of holder's balance of asset.
func (l *MemoryLedger) BalanceOf(asset, holder common.Address) *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance(asset, holder).Clone()
}

func (l *MemoryLedger) TransferIn(asset, from common.Address, amount *uint256.Int) error {
	return l.move(asset, from, l.custody, amount)
}

func (l *MemoryLedger) TransferOut(asset, to common.Address, amount *uint256.Int) error {
	return l.move(asset, l.custody, to, amount)
}

func (l *MemoryLedger) move(asset, from, to common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	src := l.balance(asset, from)
	if src.Lt(amount) {
		return fmt.Errorf("%w: %s balance of %s is %s, need %s",
			ErrFailedTransfer, asset.Hex(), from.Hex(), FormatAmount(src), FormatAmount(amount))
	}
	if from == to {
		return nil
	}
	dst, overflow := new(uint256.Int).AddOverflow(l.balance(asset, to), amount)
	if overflow {
		return fmt.Errorf("%w: %s balance of %s overflows", ErrFailedTransfer, asset.Hex(), to.Hex())
	}
	l.setBalance(asset, from, new(uint256.Int).Sub(src, amount))
	l.setBalance(asset, to, dst)
	return nil
}

func (l *MemoryLedger) balance(asset, holder common.Address) *uint256.Int {
	if holders, ok := l.balances[asset]; ok {
		if bal, ok := holders[holder]; ok {
			return bal
		}
	}
	return new(uint256.Int)
}

func (l *MemoryLedger) setBalance(asset, holder common.Address, value *uint256.Int) {
	holders, ok := l.balances[asset]
	if !ok {
		holders = make(map[common.Address]*uint256.Int)
		l.balances[asset] = holders
	}
	if value.IsZero() {
		delete(holders, holder)
		return
	}
	holders[holder] = value
}

// Snapshot returns all non-zero balances ordered by asset then holder.
func (l *MemoryLedger) Snapshot() []model.BalanceRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	records := make([]model.BalanceRecord, 0)
	for asset, holders := range l.balances {
		for holder, bal := range holders {
			records = append(records, model.BalanceRecord{
				Asset:   asset.Hex(),
				Holder:  holder.Hex(),
				Balance: FormatAmount(bal),
			})
		}
	}
	sort.Slice(records, func(i, j int) bool {
		a := common.HexToAddress(records[i].Asset)
		b := common.HexToAddress(records[j].Asset)
		if c := bytes.Compare(a.Bytes(), b.Bytes()); c != 0 {
			return c < 0
		}
		return bytes.Compare(common.HexToAddress(records[i].Holder).Bytes(), common.HexToAddress(records[j].Holder).Bytes()) < 0
	})
	return records
}

// Restore replaces all balances with records.
func (l *MemoryLedger) Restore(records []model.BalanceRecord) error {
	balances := make(map[common.Address]map[common.Address]*uint256.Int)
	for _, rec := range records {
		if !common.IsHexAddress(rec.Asset) || !common.IsHexAddress(rec.Holder) {
			return fmt.Errorf("invalid balance record: %s/%s", rec.Asset, rec.Holder)
		}
		amount, err := ParseAmount(rec.Balance)
		if err != nil {
			return err
		}
		asset := common.HexToAddress(rec.Asset)
		if balances[asset] == nil {
			balances[asset] = make(map[common.Address]*uint256.Int)
		}
		balances[asset][common.HexToAddress(rec.Holder)] = amount
	}

	l.mu.Lock()
	l.balances = balances
	l.mu.Unlock()
	return nil
}
