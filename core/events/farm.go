package events

import (
	"math/big"

	"stakefarm/crypto"
)

const (
	// TypeFarmDeposited is emitted after stake is added to a farm.
	TypeFarmDeposited = "farm.deposited"
	// TypeFarmWithdrawn is emitted after stake leaves a farm.
	TypeFarmWithdrawn = "farm.withdrawn"
	// TypeFarmRewardClaimed is emitted when a non-zero reward is paid out.
	TypeFarmRewardClaimed = "farm.reward_claimed"
)

// FarmDeposited captures a stake deposit.
type FarmDeposited struct {
	PoolID    string
	Account   crypto.Address
	Amount    *big.Int
	Staked    *big.Int
	Timestamp uint64
}

// EventType satisfies the Event interface.
func (FarmDeposited) EventType() string { return TypeFarmDeposited }

// Record converts the structured payload into a broadcastable record.
func (e FarmDeposited) Record() *Record {
	return &Record{
		Type: TypeFarmDeposited,
		Attributes: map[string]string{
			"pool":      e.PoolID,
			"account":   e.Account.String(),
			"amount":    formatAmount(e.Amount),
			"staked":    formatAmount(e.Staked),
			"timestamp": uintToString(e.Timestamp),
		},
	}
}

// FarmWithdrawn captures a stake withdrawal.
type FarmWithdrawn struct {
	PoolID    string
	Account   crypto.Address
	Amount    *big.Int
	Staked    *big.Int
	Timestamp uint64
}

// EventType satisfies the Event interface.
func (FarmWithdrawn) EventType() string { return TypeFarmWithdrawn }

// Record converts the structured payload into a broadcastable record.
func (e FarmWithdrawn) Record() *Record {
	return &Record{
		Type: TypeFarmWithdrawn,
		Attributes: map[string]string{
			"pool":      e.PoolID,
			"account":   e.Account.String(),
			"amount":    formatAmount(e.Amount),
			"staked":    formatAmount(e.Staked),
			"timestamp": uintToString(e.Timestamp),
		},
	}
}

// FarmRewardClaimed captures a reward payout.
type FarmRewardClaimed struct {
	PoolID    string
	Account   crypto.Address
	Amount    *big.Int
	Timestamp uint64
}

// EventType satisfies the Event interface.
func (FarmRewardClaimed) EventType() string { return TypeFarmRewardClaimed }

// Record converts the structured payload into a broadcastable record.
func (e FarmRewardClaimed) Record() *Record {
	return &Record{
		Type: TypeFarmRewardClaimed,
		Attributes: map[string]string{
			"pool":      e.PoolID,
			"account":   e.Account.String(),
			"amount":    formatAmount(e.Amount),
			"timestamp": uintToString(e.Timestamp),
		},
	}
}
