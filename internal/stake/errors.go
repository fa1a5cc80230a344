package stake

import (
	"errors"
	"fmt"
)

// Errors returned by Engine operations. Every one of them is raised before the
// operation touches pool, position or custody state.
var (
	ErrPoolNotFound      = errors.New("pool not found")
	ErrAmountTooSmall    = errors.New("amount too small")
	ErrInsufficientStake = errors.New("insufficient stake")
	ErrDepositPaused     = errors.New("deposit paused")
	ErrUnstakePaused     = errors.New("unstake paused")
	ErrWithdrawPaused    = errors.New("withdraw paused")
	ErrClaimPaused       = errors.New("claim paused")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrFailedTransfer    = errors.New("failed transfer")
	ErrInvalidConfig     = errors.New("invalid config")
)

// ErrOverflow reports a 256-bit overflow. It matches ErrInvalidConfig since only
// out-of-range parameters can drive the accumulators that far.
var ErrOverflow = fmt.Errorf("%w: arithmetic overflow", ErrInvalidConfig)
