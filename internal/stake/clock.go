package stake

import (
	"fmt"
	"sync"
)

// BlockClock supplies the current block number. Values never decrease.
type BlockClock interface {
	Current() uint64
}

// ManualClock is a BlockClock driven by its owner, used by replays and tests.
type ManualClock struct {
	mu    sync.RWMutex
	block uint64
}

func NewManualClock(start uint64) *ManualClock {
	return &ManualClock{block: start}
}

func (c *ManualClock) Current() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.block
}

// Set moves the clock to block. Moving backwards is rejected.
func (c *ManualClock) Set(block uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if block < c.block {
		return fmt.Errorf("clock cannot move backwards: %d < %d", block, c.block)
	}
	c.block = block
	return nil
}

// Advance mines n blocks and returns the new height.
func (c *ManualClock) Advance(n uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.block += n
	return c.block
}
