package chain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ChainClock is a block clock fed by an RPC head. Current returns the last
// refreshed height and never moves backwards, even across reorgs.
type ChainClock struct {
	head       HeadReader
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger

	mu    sync.RWMutex
	block uint64
}

// ClockOptions tunes head polling.
type ClockOptions struct {
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

func NewChainClock(head HeadReader, opts ClockOptions) *ChainClock {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChainClock{
		head:       head,
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		logger:     logger,
	}
}

func (c *ChainClock) Current() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.block
}

// Refresh reads the chain head and returns the clock's height afterwards.
func (c *ChainClock) Refresh(ctx context.Context) (uint64, error) {
	if c.head == nil {
		return 0, fmt.Errorf("head reader is nil")
	}

	var latest uint64
	err := withRetry(ctx, c.maxRetries, c.retryDelay, func(ctx context.Context) error {
		n, err := c.head.LatestBlockNumber(ctx)
		if err != nil {
			return err
		}
		latest = n
		return nil
	})
	if err != nil {
		return c.Current(), fmt.Errorf("latest block: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if latest < c.block {
		c.logger.Warn("chain head moved backwards", zap.Uint64("head", latest), zap.Uint64("clock", c.block))
		return c.block, nil
	}
	c.block = latest
	return c.block, nil
}
