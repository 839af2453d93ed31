package farm

import (
	"math/big"

	"stakefarm/crypto"
)

// Pool captures the global accounting state of a staking farm. Amounts are
// denominated in the smallest unit of their token and expressed as big
// integers.
type Pool struct {
	// TotalStaked is the sum of every participant's staked amount.
	TotalStaked *big.Int
	// AccRewardPerShare is the cumulative reward earned by one staked unit
	// since the pool was created, scaled by Precision. It never decreases.
	AccRewardPerShare *big.Int
	// LastUpdateTime is the unix timestamp of the last accumulator advance.
	// Zero means the pool has never been touched.
	LastUpdateTime uint64
	// TotalEmitted is the reward pushed into the accumulator before
	// truncation: elapsed seconds multiplied by the rate while stake was
	// present.
	TotalEmitted *big.Int
	// TotalClaimed is the reward paid out through claims.
	TotalClaimed *big.Int
	// ForfeitedSeconds counts the seconds that elapsed with no stake in the
	// pool. Emission for those seconds is never distributed.
	ForfeitedSeconds uint64
}

// Participant maintains the staking position of a single account.
type Participant struct {
	Address crypto.Address
	// Staked is the current stake of the account.
	Staked *big.Int
	// RewardDebt is Staked * AccRewardPerShare / Precision as of the last
	// settlement.
	RewardDebt *big.Int
	// Claimable is the settled reward that has not been claimed yet.
	Claimable *big.Int
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	pool := &Pool{}
	pool.normalize()
	return pool
}

// NewParticipant returns a zero-valued position for the account.
func NewParticipant(addr crypto.Address) *Participant {
	p := &Participant{Address: addr}
	p.normalize()
	return p
}

// Clone returns a deep copy of the pool.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	clone := &Pool{
		TotalStaked:       cloneBig(p.TotalStaked),
		AccRewardPerShare: cloneBig(p.AccRewardPerShare),
		LastUpdateTime:    p.LastUpdateTime,
		TotalEmitted:      cloneBig(p.TotalEmitted),
		TotalClaimed:      cloneBig(p.TotalClaimed),
		ForfeitedSeconds:  p.ForfeitedSeconds,
	}
	return clone
}

func (p *Pool) normalize() {
	p.TotalStaked = zeroIfNil(p.TotalStaked)
	p.AccRewardPerShare = zeroIfNil(p.AccRewardPerShare)
	p.TotalEmitted = zeroIfNil(p.TotalEmitted)
	p.TotalClaimed = zeroIfNil(p.TotalClaimed)
}

// Clone returns a deep copy of the participant.
func (p *Participant) Clone() *Participant {
	if p == nil {
		return nil
	}
	return &Participant{
		Address:    p.Address,
		Staked:     cloneBig(p.Staked),
		RewardDebt: cloneBig(p.RewardDebt),
		Claimable:  cloneBig(p.Claimable),
	}
}

// IsZero reports whether the participant holds neither stake nor reward.
func (p *Participant) IsZero() bool {
	if p == nil {
		return true
	}
	return signOf(p.Staked) == 0 && signOf(p.Claimable) == 0
}

func (p *Participant) normalize() {
	p.Staked = zeroIfNil(p.Staked)
	p.RewardDebt = zeroIfNil(p.RewardDebt)
	p.Claimable = zeroIfNil(p.Claimable)
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func zeroIfNil(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

func signOf(v *big.Int) int {
	if v == nil {
		return 0
	}
	return v.Sign()
}
