package farm

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"stakefarm/core/events"
	"stakefarm/crypto"
	"stakefarm/observability/metrics"
)

var (
	ErrNilState          = errors.New("farm engine: state not configured")
	ErrInvalidAmount     = errors.New("farm engine: amount must be positive")
	ErrInsufficientStake = errors.New("farm engine: insufficient stake")
	ErrClockRegression   = errors.New("farm engine: timestamp precedes last pool update")
	ErrNilAccount        = errors.New("farm engine: account required")

	errPoolNotConfigured = errors.New("farm engine: pool identifier not configured")
	errStakeLedger       = errors.New("farm engine: stake ledger not configured")
	errRewardLedger      = errors.New("farm engine: reward ledger not configured")
)

const (
	opDeposit  = "deposit"
	opWithdraw = "withdraw"
	opClaim    = "claim"
)

type engineState interface {
	// Atomic runs fn as one transaction: writes become visible only when fn
	// returns nil and are discarded otherwise.
	Atomic(fn func() error) error
	// View runs fn against committed state and discards any writes.
	View(fn func() error) error
	GetFarmPool(poolID string) (*Pool, error)
	PutFarmPool(poolID string, pool *Pool) error
	GetFarmParticipant(poolID string, addr crypto.Address) (*Participant, error)
	PutFarmParticipant(poolID string, participant *Participant) error
}

// StakeLedger moves stake units between participants and pool custody.
type StakeLedger interface {
	// TransferIn pulls amount from the participant into pool custody. It
	// fails when the participant's balance or allowance is short.
	TransferIn(from crypto.Address, amount *big.Int) error
	// TransferOut releases amount from pool custody to the participant.
	TransferOut(to crypto.Address, amount *big.Int) error
}

// RewardLedger issues reward units.
type RewardLedger interface {
	Credit(to crypto.Address, amount *big.Int) error
}

// Engine distributes a fixed per-second reward across stakers in proportion
// to their stake. Every operation advances the pool accumulator to the
// current time, settles the acting participant against it and only then
// mutates stake, so the cost of an operation is independent of how many
// participants exist or how much time has passed.
type Engine struct {
	mu      sync.Mutex
	state   engineState
	stake   StakeLedger
	reward  RewardLedger
	clock   Clock
	rate    *big.Int
	poolID  string
	emitter events.Emitter
}

// NewEngine constructs an engine emitting ratePerSecond reward units per
// second across all stakers.
func NewEngine(ratePerSecond *big.Int) *Engine {
	rate := big.NewInt(0)
	if ratePerSecond != nil && ratePerSecond.Sign() > 0 {
		rate.Set(ratePerSecond)
	}
	return &Engine{
		rate:    rate,
		clock:   SystemClock{},
		poolID:  "default",
		emitter: events.NoopEmitter{},
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetStakeLedger configures the ledger holding stake units.
func (e *Engine) SetStakeLedger(ledger StakeLedger) { e.stake = ledger }

// SetRewardLedger configures the ledger issuing reward units.
func (e *Engine) SetRewardLedger(ledger RewardLedger) { e.reward = ledger }

// SetClock overrides the time source.
func (e *Engine) SetClock(clock Clock) {
	if e == nil {
		return
	}
	if clock == nil {
		clock = SystemClock{}
	}
	e.clock = clock
}

// SetEmitter configures where operations are reported. Events are emitted
// from inside the state transaction; an emitter registered as the state
// commit listener (events.Staged) publishes only committed ones.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

// SetPoolID assigns the pool namespace that subsequent operations will
// operate against.
func (e *Engine) SetPoolID(poolID string) {
	if e == nil {
		return
	}
	e.poolID = strings.TrimSpace(poolID)
}

// PoolID returns the currently configured pool identifier.
func (e *Engine) PoolID() string {
	if e == nil {
		return ""
	}
	return e.poolID
}

// RewardRate returns the reward emitted per second.
func (e *Engine) RewardRate() *big.Int {
	if e == nil || e.rate == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(e.rate)
}

// Deposit pulls amount stake units from the account into the pool and adds
// them to the account's stake.
func (e *Engine) Deposit(account crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		e.observeFailure(opDeposit)
		return ErrInvalidAmount
	}
	return e.transact(opDeposit, account, func(pool *Pool, participant *Participant, now uint64) (events.Event, error) {
		if e.stake == nil {
			return nil, errStakeLedger
		}
		if err := e.stake.TransferIn(account, amount); err != nil {
			return nil, fmt.Errorf("farm engine: stake transfer in: %w", err)
		}
		participant.Staked = new(big.Int).Add(participant.Staked, amount)
		pool.TotalStaked = new(big.Int).Add(pool.TotalStaked, amount)
		// Re-snapshot so the new stake does not earn reward accrued before it
		// arrived.
		participant.RewardDebt = shareOf(participant.Staked, pool.AccRewardPerShare)
		return events.FarmDeposited{
			PoolID:    e.poolID,
			Account:   account,
			Amount:    new(big.Int).Set(amount),
			Staked:    new(big.Int).Set(participant.Staked),
			Timestamp: now,
		}, nil
	})
}

// Withdraw returns amount stake units from the pool to the account. Reward
// settled before the withdrawal stays claimable.
func (e *Engine) Withdraw(account crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		e.observeFailure(opWithdraw)
		return ErrInvalidAmount
	}
	return e.transact(opWithdraw, account, func(pool *Pool, participant *Participant, now uint64) (events.Event, error) {
		if participant.Staked.Cmp(amount) < 0 {
			return nil, fmt.Errorf("%w: staked %s, requested %s", ErrInsufficientStake, participant.Staked, amount)
		}
		if e.stake == nil {
			return nil, errStakeLedger
		}
		participant.Staked = new(big.Int).Sub(participant.Staked, amount)
		pool.TotalStaked = new(big.Int).Sub(pool.TotalStaked, amount)
		participant.RewardDebt = shareOf(participant.Staked, pool.AccRewardPerShare)
		if err := e.stake.TransferOut(account, amount); err != nil {
			return nil, fmt.Errorf("farm engine: stake transfer out: %w", err)
		}
		return events.FarmWithdrawn{
			PoolID:    e.poolID,
			Account:   account,
			Amount:    new(big.Int).Set(amount),
			Staked:    new(big.Int).Set(participant.Staked),
			Timestamp: now,
		}, nil
	})
}

// ClaimPendingReward pays the account everything it has accrued so far and
// returns the payout. Claiming with nothing accrued succeeds and pays zero.
func (e *Engine) ClaimPendingReward(account crypto.Address) (*big.Int, error) {
	payout := big.NewInt(0)
	err := e.transact(opClaim, account, func(pool *Pool, participant *Participant, now uint64) (events.Event, error) {
		if participant.Claimable.Sign() == 0 {
			return nil, nil
		}
		if e.reward == nil {
			return nil, errRewardLedger
		}
		payout.Set(participant.Claimable)
		participant.Claimable = big.NewInt(0)
		pool.TotalClaimed = new(big.Int).Add(pool.TotalClaimed, payout)
		if err := e.reward.Credit(account, payout); err != nil {
			return nil, fmt.Errorf("farm engine: reward credit: %w", err)
		}
		return events.FarmRewardClaimed{
			PoolID:    e.poolID,
			Account:   account,
			Amount:    new(big.Int).Set(payout),
			Timestamp: now,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return payout, nil
}

// PendingReward returns the amount a claim would pay the account at the
// current time without mutating any state.
func (e *Engine) PendingReward(account crypto.Address) (*big.Int, error) {
	pending := big.NewInt(0)
	err := e.view(func() error {
		if account.IsZero() {
			return ErrNilAccount
		}
		now, err := e.now()
		if err != nil {
			return err
		}
		pool, err := e.loadPool()
		if err != nil {
			return err
		}
		participant, err := e.loadParticipant(account)
		if err != nil {
			return err
		}
		if _, err := e.advance(pool, now); err != nil {
			return err
		}
		e.settle(pool, participant)
		pending.Set(participant.Claimable)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pending, nil
}

// Pool returns the persisted pool state as of the last operation.
func (e *Engine) Pool() (*Pool, error) {
	var pool *Pool
	err := e.view(func() error {
		loaded, err := e.loadPool()
		if err != nil {
			return err
		}
		pool = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// Participant returns the persisted position of the account as of its last
// settlement. Use PendingReward for the up-to-date claimable amount.
func (e *Engine) Participant(account crypto.Address) (*Participant, error) {
	var participant *Participant
	err := e.view(func() error {
		loaded, err := e.loadParticipant(account)
		if err != nil {
			return err
		}
		participant = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return participant, nil
}

// transact runs one mutating operation: advance, settle, apply, persist.
// The event returned by apply is emitted inside the transaction, after the
// ledger events apply triggered, and gauges are updated before the engine
// lock is released, so both follow commit order.
func (e *Engine) transact(op string, account crypto.Address, apply func(*Pool, *Participant, uint64) (events.Event, error)) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if strings.TrimSpace(e.poolID) == "" {
		return errPoolNotConfigured
	}
	if account.IsZero() {
		e.observeFailure(op)
		return ErrNilAccount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var (
		committed *Pool
		evt       events.Event
		forfeited uint64
	)
	err := e.state.Atomic(func() error {
		now, err := e.now()
		if err != nil {
			return err
		}
		pool, err := e.loadPool()
		if err != nil {
			return err
		}
		participant, err := e.loadParticipant(account)
		if err != nil {
			return err
		}
		forfeited, err = e.advance(pool, now)
		if err != nil {
			return err
		}
		e.settle(pool, participant)
		evt, err = apply(pool, participant, now)
		if err != nil {
			return err
		}
		if err := e.state.PutFarmParticipant(e.poolID, participant); err != nil {
			return err
		}
		if err := e.state.PutFarmPool(e.poolID, pool); err != nil {
			return err
		}
		if evt != nil {
			e.emitter.Emit(evt)
		}
		committed = pool
		return nil
	})
	if err != nil {
		e.observeFailure(op)
		return err
	}
	m := metrics.Farm()
	m.ObserveOperation(e.poolID, op)
	m.AddForfeitedSeconds(e.poolID, forfeited)
	if claimed, ok := evt.(events.FarmRewardClaimed); ok {
		m.AddRewardsClaimed(e.poolID, claimed.Amount)
	}
	e.observePool(committed)
	return nil
}

func (e *Engine) view(fn func() error) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if strings.TrimSpace(e.poolID) == "" {
		return errPoolNotConfigured
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.View(fn)
}

// advance moves the accumulator forward to now and returns the number of
// seconds forfeited because the pool held no stake.
func (e *Engine) advance(pool *Pool, now uint64) (uint64, error) {
	if now < pool.LastUpdateTime {
		return 0, fmt.Errorf("%w: now %d, last update %d", ErrClockRegression, now, pool.LastUpdateTime)
	}
	elapsed := now - pool.LastUpdateTime
	if pool.TotalStaked.Sign() == 0 {
		var forfeited uint64
		if pool.LastUpdateTime != 0 {
			forfeited = elapsed
			pool.ForfeitedSeconds += elapsed
		}
		pool.LastUpdateTime = now
		return forfeited, nil
	}
	if elapsed == 0 {
		return 0, nil
	}
	delta := accumulatorDelta(elapsed, e.rate, pool.TotalStaked)
	pool.AccRewardPerShare = new(big.Int).Add(pool.AccRewardPerShare, delta)
	pool.TotalEmitted = new(big.Int).Add(pool.TotalEmitted, emission(elapsed, e.rate))
	pool.LastUpdateTime = now
	return 0, nil
}

// settle credits the participant with the reward its current stake earned
// since the last settlement and returns that amount.
func (e *Engine) settle(pool *Pool, participant *Participant) *big.Int {
	entitled := shareOf(participant.Staked, pool.AccRewardPerShare)
	accrued := new(big.Int).Sub(entitled, participant.RewardDebt)
	// The accumulator never decreases, so entitled >= RewardDebt.
	if accrued.Sign() < 0 {
		accrued.SetInt64(0)
	}
	participant.Claimable = new(big.Int).Add(participant.Claimable, accrued)
	participant.RewardDebt = entitled
	return accrued
}

func (e *Engine) now() (uint64, error) {
	clock := e.clock
	if clock == nil {
		clock = SystemClock{}
	}
	ts := clock.Now().Unix()
	if ts < 0 {
		return 0, fmt.Errorf("%w: negative timestamp %d", ErrClockRegression, ts)
	}
	return uint64(ts), nil
}

func (e *Engine) loadPool() (*Pool, error) {
	pool, err := e.state.GetFarmPool(e.poolID)
	if err != nil {
		return nil, err
	}
	if pool == nil {
		return NewPool(), nil
	}
	pool = pool.Clone()
	pool.normalize()
	return pool, nil
}

func (e *Engine) loadParticipant(addr crypto.Address) (*Participant, error) {
	participant, err := e.state.GetFarmParticipant(e.poolID, addr)
	if err != nil {
		return nil, err
	}
	if participant == nil {
		return NewParticipant(addr), nil
	}
	participant = participant.Clone()
	participant.Address = addr
	participant.normalize()
	return participant, nil
}

func (e *Engine) observeFailure(op string) {
	if e == nil {
		return
	}
	metrics.Farm().ObserveFailure(e.poolID, op)
}

func (e *Engine) observePool(pool *Pool) {
	if pool == nil {
		return
	}
	metrics.Farm().ObservePool(e.poolID, pool.TotalStaked, pool.AccRewardPerShare, precision)
}
