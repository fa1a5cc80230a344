package stake

import (
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"
)

// poolRegistry is the append-only list of pools and their total weight.
type poolRegistry struct {
	pools       []Pool
	totalWeight uint64
	assets      map[common.Address]uint64
}

func newPoolRegistry() *poolRegistry {
	return &poolRegistry{assets: make(map[common.Address]uint64)}
}

func (r *poolRegistry) length() uint64 {
	return uint64(len(r.pools))
}

func (r *poolRegistry) get(pid uint64) (Pool, error) {
	if pid >= r.length() {
		return Pool{}, fmt.Errorf("%w: pid %d, pool count %d", ErrPoolNotFound, pid, r.length())
	}
	return r.pools[pid], nil
}

func (r *poolRegistry) put(pid uint64, pool Pool) {
	r.pools[pid] = pool
}

// checkAdd validates a new pool without registering it.
func (r *poolRegistry) checkAdd(asset common.Address, weight uint64) error {
	if r.length() == 0 {
		if asset != NativeAsset {
			return fmt.Errorf("%w: pool 0 must hold the native asset", ErrInvalidConfig)
		}
	} else {
		if asset == NativeAsset {
			return fmt.Errorf("%w: native asset is already pool 0", ErrInvalidConfig)
		}
		if pid, ok := r.assets[asset]; ok {
			return fmt.Errorf("%w: asset %s already registered as pool %d", ErrInvalidConfig, asset.Hex(), pid)
		}
	}
	if weight > math.MaxUint64-r.totalWeight {
		return fmt.Errorf("%w: total weight overflow", ErrInvalidConfig)
	}
	return nil
}

// add appends pool and returns its index. Call checkAdd first.
func (r *poolRegistry) add(pool Pool) uint64 {
	pid := r.length()
	r.pools = append(r.pools, pool)
	r.assets[pool.Asset] = pid
	r.totalWeight += pool.Weight
	return pid
}

// checkWeight returns the total weight after pid is reweighted.
func (r *poolRegistry) checkWeight(pid, weight uint64) (uint64, error) {
	pool, err := r.get(pid)
	if err != nil {
		return 0, err
	}
	rest := r.totalWeight - pool.Weight
	if weight > math.MaxUint64-rest {
		return 0, fmt.Errorf("%w: total weight overflow", ErrInvalidConfig)
	}
	return rest + weight, nil
}

// setWeight reweights pid and returns the new total. Call checkWeight first.
func (r *poolRegistry) setWeight(pid, weight uint64) uint64 {
	r.totalWeight = r.totalWeight - r.pools[pid].Weight + weight
	r.pools[pid].Weight = weight
	return r.totalWeight
}
