package model

// Event is emitted by the ledger for every committed state change.
type Event struct {
	Seq         uint64 `json:"seq,omitempty"`
	Name        string `json:"event"`
	Block       uint64 `json:"block"`
	PoolID      uint64 `json:"pid"`
	User        string `json:"user,omitempty"`
	Asset       string `json:"asset,omitempty"`
	Amount      string `json:"amount,omitempty"`
	Weight      uint64 `json:"weight,omitempty"`
	TotalWeight uint64 `json:"total_weight,omitempty"`
	EndBlock    uint64 `json:"end_block,omitempty"`
	Flag        string `json:"flag,omitempty"`
	Paused      bool   `json:"paused,omitempty"`
}

// Event names.
const (
	EventDeposit           = "Deposit"
	EventUnstake           = "Unstake"
	EventWithdraw          = "Withdraw"
	EventClaim             = "Claim"
	EventAddPool           = "AddPool"
	EventSetPoolWeight     = "SetPoolWeight"
	EventSetRewardToken    = "SetRewardToken"
	EventSetRewardPerBlock = "SetRewardPerBlock"
	EventSetEndBlock       = "SetEndBlock"
	EventSetPause          = "SetPause"
	EventUpdatePool        = "UpdatePool"
)
