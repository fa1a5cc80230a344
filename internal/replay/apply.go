package replay

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"stakeLedger/internal/chain"
	"stakeLedger/internal/model"
	"stakeLedger/internal/stake"
)

var pauseFlags = map[string]stake.PauseFlag{
	model.OpPauseDeposit:  stake.PauseDeposit,
	model.OpPauseUnstake:  stake.PauseUnstake,
	model.OpPauseWithdraw: stake.PauseWithdraw,
	model.OpPauseClaim:    stake.PauseClaim,
}

// apply runs one operation against the ledger. Every error is a rejection;
// the ledger state is unchanged when apply fails.
func (s *ledgerState) apply(op model.Operation) error {
	switch op.Op {
	case model.OpUpdatePool:
		return s.engine.UpdatePool(op.PoolID)
	case model.OpMassUpdate:
		return s.engine.MassUpdatePools()
	}

	caller, err := chain.ParseAddress(op.Caller)
	if err != nil {
		return fmt.Errorf("caller: %w", err)
	}

	if flag, ok := pauseFlags[op.Op]; ok {
		return s.engine.SetPause(caller, flag, op.Paused)
	}

	switch op.Op {
	case model.OpFund:
		asset, err := parseAsset(op.Asset)
		if err != nil {
			return err
		}
		amount, err := stake.ParseAmount(op.Amount)
		if err != nil {
			return err
		}
		return s.ledger.Mint(asset, caller, amount)
	case model.OpAddPool:
		asset, err := chain.ParseAddress(op.Asset)
		if err != nil {
			return fmt.Errorf("asset: %w", err)
		}
		minDeposit, err := stake.ParseAmount(op.MinDeposit)
		if err != nil {
			return err
		}
		_, err = s.engine.AddPool(caller, asset, op.Weight, minDeposit, op.LockBlocks)
		return err
	case model.OpSetPoolWeight:
		_, err := s.engine.SetPoolWeight(caller, op.PoolID, op.Weight)
		return err
	case model.OpSetRewardToken:
		token, err := chain.ParseAddress(op.Asset)
		if err != nil {
			return fmt.Errorf("asset: %w", err)
		}
		return s.engine.SetRewardToken(caller, token)
	case model.OpSetRewardPerBlock:
		amount, err := stake.ParseAmount(op.Amount)
		if err != nil {
			return err
		}
		return s.engine.SetRewardPerBlock(caller, amount)
	case model.OpSetEndBlock:
		return s.engine.SetEndBlock(caller, op.BlockArg)
	case model.OpDeposit:
		amount, err := stake.ParseAmount(op.Amount)
		if err != nil {
			return err
		}
		return s.engine.Deposit(caller, op.PoolID, amount)
	case model.OpDepositNative:
		amount, err := stake.ParseAmount(op.Amount)
		if err != nil {
			return err
		}
		return s.engine.DepositNative(caller, amount)
	case model.OpUnstake:
		amount, err := stake.ParseAmount(op.Amount)
		if err != nil {
			return err
		}
		return s.engine.Unstake(caller, op.PoolID, amount)
	case model.OpWithdraw:
		_, err := s.engine.Withdraw(caller, op.PoolID)
		return err
	case model.OpClaim:
		_, err := s.engine.Claim(caller, op.PoolID)
		return err
	default:
		return fmt.Errorf("unknown op %q", op.Op)
	}
}

// parseAsset reads an asset address. Empty means the native coin.
func parseAsset(input string) (common.Address, error) {
	if strings.TrimSpace(input) == "" {
		return stake.NativeAsset, nil
	}
	asset, err := chain.ParseAddress(input)
	if err != nil {
		return common.Address{}, fmt.Errorf("asset: %w", err)
	}
	return asset, nil
}
