package model

// Operation is one line of a replay script.
type Operation struct {
	Seq        uint64 `json:"seq"`
	Block      uint64 `json:"block"`
	Caller     string `json:"caller"`
	Op         string `json:"op"`
	PoolID     uint64 `json:"pid,omitempty"`
	Amount     string `json:"amount,omitempty"`
	Weight     uint64 `json:"weight,omitempty"`
	Asset      string `json:"asset,omitempty"`
	MinDeposit string `json:"min_deposit,omitempty"`
	LockBlocks uint64 `json:"lock_blocks,omitempty"`
	Paused     bool   `json:"paused,omitempty"`
	BlockArg   uint64 `json:"block_arg,omitempty"`
}

// Operation kinds accepted by the replay runner.
const (
	OpFund              = "fund"
	OpAddPool           = "add_pool"
	OpSetPoolWeight     = "set_pool_weight"
	OpSetRewardToken    = "set_reward_token"
	OpSetRewardPerBlock = "set_reward_per_block"
	OpSetEndBlock       = "set_end_block"
	OpPauseDeposit      = "pause_deposit"
	OpPauseUnstake      = "pause_unstake"
	OpPauseWithdraw     = "pause_withdraw"
	OpPauseClaim        = "pause_claim"
	OpDeposit           = "deposit"
	OpDepositNative     = "deposit_native"
	OpUnstake           = "unstake"
	OpWithdraw          = "withdraw"
	OpClaim             = "claim"
	OpUpdatePool        = "update_pool"
	OpMassUpdate        = "mass_update"
)

// OperationResult records an operation the ledger rejected.
type OperationResult struct {
	Seq   uint64 `json:"seq"`
	Block uint64 `json:"block"`
	Op    string `json:"op"`
	Error string `json:"error"`
}
