package model

// LedgerSnapshot is the full persisted state of a ledger instance.
type LedgerSnapshot struct {
	LastSeq     uint64           `json:"last_seq"`
	Block       uint64           `json:"block"`
	Custody     string           `json:"custody"`
	Config      ConfigRecord     `json:"config"`
	TotalWeight uint64           `json:"total_weight"`
	Pools       []PoolRecord     `json:"pools"`
	Positions   []PositionRecord `json:"positions"`
	Balances    []BalanceRecord  `json:"balances,omitempty"`
	Roles       []RoleRecord     `json:"roles,omitempty"`
	UpdatedAt   string           `json:"updated_at"`
}

// ConfigRecord mirrors the ledger's global configuration.
type ConfigRecord struct {
	RewardToken      string `json:"reward_token"`
	StartBlock       uint64 `json:"start_block"`
	EndBlock         uint64 `json:"end_block"`
	RewardPerBlock   string `json:"reward_per_block"`
	NativeWeight     uint64 `json:"native_weight"`
	NativeMinDeposit string `json:"native_min_deposit"`
	NativeLockBlocks uint64 `json:"native_lock_blocks"`
	DepositPaused    bool   `json:"deposit_paused"`
	UnstakePaused    bool   `json:"unstake_paused"`
	WithdrawPaused   bool   `json:"withdraw_paused"`
	ClaimPaused      bool   `json:"claim_paused"`
}

// PoolRecord is a pool row. Pools are stored in index order.
type PoolRecord struct {
	PoolID            uint64 `json:"pid"`
	Asset             string `json:"asset"`
	Weight            uint64 `json:"weight"`
	MinDeposit        string `json:"min_deposit"`
	UnstakeLockBlocks uint64 `json:"unstake_lock_blocks"`
	AccRewardPerShare string `json:"acc_reward_per_share"`
	LastRewardBlock   uint64 `json:"last_reward_block"`
	TotalStaked       string `json:"total_staked"`
}

// PositionRecord is a position row keyed by (pid, user).
type PositionRecord struct {
	PoolID        uint64                 `json:"pid"`
	User          string                 `json:"user"`
	Staked        string                 `json:"staked"`
	RewardDebt    string                 `json:"reward_debt"`
	PendingReward string                 `json:"pending_reward"`
	Requests      []UnstakeRequestRecord `json:"requests,omitempty"`
}

// UnstakeRequestRecord is a queued unstake request.
type UnstakeRequestRecord struct {
	Amount      string `json:"amount"`
	UnlockBlock uint64 `json:"unlock_block"`
}

// BalanceRecord is a holder balance in the in-memory token ledger.
type BalanceRecord struct {
	Asset   string `json:"asset"`
	Holder  string `json:"holder"`
	Balance string `json:"balance"`
}

// RoleRecord is a role membership.
type RoleRecord struct {
	Role    string `json:"role"`
	Account string `json:"account"`
}
