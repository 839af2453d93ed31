package farm

import (
	"errors"
	"math/big"
	"math/rand"
	"testing"
	"time"

	"stakefarm/core/events"
	"stakefarm/crypto"
)

type mockEngineState struct {
	pools        map[string]*Pool
	participants map[string]*Participant
}

func newMockEngineState() *mockEngineState {
	return &mockEngineState{
		pools:        make(map[string]*Pool),
		participants: make(map[string]*Participant),
	}
}

func (m *mockEngineState) key(poolID string, addr crypto.Address) string {
	return poolID + ":" + string(addr.Bytes())
}

func (m *mockEngineState) snapshot() (map[string]*Pool, map[string]*Participant) {
	pools := make(map[string]*Pool, len(m.pools))
	for k, v := range m.pools {
		pools[k] = v.Clone()
	}
	participants := make(map[string]*Participant, len(m.participants))
	for k, v := range m.participants {
		participants[k] = v.Clone()
	}
	return pools, participants
}

func (m *mockEngineState) Atomic(fn func() error) error {
	pools, participants := m.snapshot()
	if err := fn(); err != nil {
		m.pools, m.participants = pools, participants
		return err
	}
	return nil
}

func (m *mockEngineState) View(fn func() error) error {
	pools, participants := m.snapshot()
	err := fn()
	m.pools, m.participants = pools, participants
	return err
}

func (m *mockEngineState) GetFarmPool(poolID string) (*Pool, error) {
	return m.pools[poolID], nil
}

func (m *mockEngineState) PutFarmPool(poolID string, pool *Pool) error {
	m.pools[poolID] = pool.Clone()
	return nil
}

func (m *mockEngineState) GetFarmParticipant(poolID string, addr crypto.Address) (*Participant, error) {
	return m.participants[m.key(poolID, addr)], nil
}

func (m *mockEngineState) PutFarmParticipant(poolID string, participant *Participant) error {
	m.participants[m.key(poolID, participant.Address)] = participant.Clone()
	return nil
}

// mockStakeLedger models an allowance-based token with the pool as custodian.
type mockStakeLedger struct {
	balances  map[crypto.Address]*big.Int
	allowance map[crypto.Address]*big.Int
	custody   *big.Int
}

var (
	errMockBalance   = errors.New("mock ledger: insufficient balance")
	errMockAllowance = errors.New("mock ledger: insufficient allowance")
)

func newMockStakeLedger() *mockStakeLedger {
	return &mockStakeLedger{
		balances:  make(map[crypto.Address]*big.Int),
		allowance: make(map[crypto.Address]*big.Int),
		custody:   big.NewInt(0),
	}
}

func (l *mockStakeLedger) fund(addr crypto.Address, amount *big.Int) {
	l.balances[addr] = new(big.Int).Set(amount)
	l.allowance[addr] = new(big.Int).Set(amount)
}

func (l *mockStakeLedger) balance(addr crypto.Address) *big.Int {
	if bal, ok := l.balances[addr]; ok {
		return bal
	}
	return big.NewInt(0)
}

func (l *mockStakeLedger) TransferIn(from crypto.Address, amount *big.Int) error {
	if l.allowance[from] == nil || l.allowance[from].Cmp(amount) < 0 {
		return errMockAllowance
	}
	if l.balance(from).Cmp(amount) < 0 {
		return errMockBalance
	}
	l.allowance[from] = new(big.Int).Sub(l.allowance[from], amount)
	l.balances[from] = new(big.Int).Sub(l.balance(from), amount)
	l.custody = new(big.Int).Add(l.custody, amount)
	return nil
}

func (l *mockStakeLedger) TransferOut(to crypto.Address, amount *big.Int) error {
	if l.custody.Cmp(amount) < 0 {
		return errMockBalance
	}
	l.custody = new(big.Int).Sub(l.custody, amount)
	l.balances[to] = new(big.Int).Add(l.balance(to), amount)
	return nil
}

type mockRewardLedger struct {
	credited map[crypto.Address]*big.Int
	fail     error
}

func newMockRewardLedger() *mockRewardLedger {
	return &mockRewardLedger{credited: make(map[crypto.Address]*big.Int)}
}

func (l *mockRewardLedger) Credit(to crypto.Address, amount *big.Int) error {
	if l.fail != nil {
		return l.fail
	}
	prev, ok := l.credited[to]
	if !ok {
		prev = big.NewInt(0)
	}
	l.credited[to] = new(big.Int).Add(prev, amount)
	return nil
}

func (l *mockRewardLedger) total(addr crypto.Address) *big.Int {
	if v, ok := l.credited[addr]; ok {
		return v
	}
	return big.NewInt(0)
}

type manualClock struct {
	unix int64
}

func (c *manualClock) Now() time.Time { return time.Unix(c.unix, 0) }

func (c *manualClock) set(unix int64) { c.unix = unix }

func makeAddress(suffix byte) crypto.Address {
	raw := make([]byte, 20)
	raw[len(raw)-1] = suffix
	return crypto.NewAddress(crypto.AccountPrefix, raw)
}

// tenths returns value/10 whole tokens in base units.
func tenths(value int64) *big.Int {
	out := new(big.Int).Mul(big.NewInt(value), Precision())
	return out.Quo(out, big.NewInt(10))
}

func ether(value int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(value), Precision())
}

type harness struct {
	engine *Engine
	state  *mockEngineState
	stake  *mockStakeLedger
	reward *mockRewardLedger
	clock  *manualClock
	events *events.Buffer
}

func newHarness(t *testing.T, rate *big.Int) *harness {
	t.Helper()
	h := &harness{
		engine: NewEngine(rate),
		state:  newMockEngineState(),
		stake:  newMockStakeLedger(),
		reward: newMockRewardLedger(),
		clock:  &manualClock{unix: 1_700_000_000},
		events: events.NewBuffer(64),
	}
	h.engine.SetState(h.state)
	h.engine.SetStakeLedger(h.stake)
	h.engine.SetRewardLedger(h.reward)
	h.engine.SetClock(h.clock)
	h.engine.SetEmitter(h.events)
	h.engine.SetPoolID("test")
	return h
}

func (h *harness) pending(t *testing.T, addr crypto.Address) *big.Int {
	t.Helper()
	pending, err := h.engine.PendingReward(addr)
	if err != nil {
		t.Fatalf("pending reward: %v", err)
	}
	return pending
}

func (h *harness) claim(t *testing.T, addr crypto.Address) *big.Int {
	t.Helper()
	payout, err := h.engine.ClaimPendingReward(addr)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	return payout
}

func expectAmount(t *testing.T, label string, got, want *big.Int) {
	t.Helper()
	if got.Cmp(want) != 0 {
		t.Fatalf("%s: got %s want %s", label, got, want)
	}
}

func TestSingleStakerClaimAndWithdraw(t *testing.T) {
	h := newHarness(t, ether(1))
	holder := makeAddress(0x01)
	h.stake.fund(holder, ether(1))

	base := h.clock.unix
	if err := h.engine.Deposit(holder, ether(1)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	expectAmount(t, "custody after deposit", h.stake.custody, ether(1))
	expectAmount(t, "holder stake balance", h.stake.balance(holder), big.NewInt(0))

	h.clock.set(base + 1)
	expectAmount(t, "pending at +1", h.pending(t, holder), ether(1))
	expectAmount(t, "claim at +1", h.claim(t, holder), ether(1))
	expectAmount(t, "reward balance", h.reward.total(holder), ether(1))

	participant, err := h.engine.Participant(holder)
	if err != nil {
		t.Fatalf("participant: %v", err)
	}
	expectAmount(t, "claimable after claim", participant.Claimable, big.NewInt(0))

	h.clock.set(base + 2)
	if err := h.engine.Withdraw(holder, ether(1)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	expectAmount(t, "claim after withdraw", h.claim(t, holder), ether(1))
	expectAmount(t, "reward balance", h.reward.total(holder), ether(2))
	expectAmount(t, "custody after withdraw", h.stake.custody, big.NewInt(0))
	expectAmount(t, "holder stake balance", h.stake.balance(holder), ether(1))
}

func TestTwoStakerSchedule(t *testing.T) {
	h := newHarness(t, ether(1))
	holder1 := makeAddress(0x01)
	holder2 := makeAddress(0x02)
	h.stake.fund(holder1, ether(1))
	h.stake.fund(holder2, ether(1))

	base := h.clock.unix
	if err := h.engine.Deposit(holder1, ether(1)); err != nil {
		t.Fatalf("deposit holder1: %v", err)
	}
	h.clock.set(base + 1)
	if err := h.engine.Deposit(holder2, ether(1)); err != nil {
		t.Fatalf("deposit holder2: %v", err)
	}
	expectAmount(t, "custody", h.stake.custody, ether(2))

	h.clock.set(base + 2)
	expectAmount(t, "holder2 pending at +2", h.pending(t, holder2), tenths(5))
	expectAmount(t, "holder2 claim at +2", h.claim(t, holder2), tenths(5))

	h.clock.set(base + 3)
	expectAmount(t, "holder1 pending at +3", h.pending(t, holder1), ether(2))
	expectAmount(t, "holder1 claim at +3", h.claim(t, holder1), ether(2))

	h.clock.set(base + 5)
	if err := h.engine.Withdraw(holder2, ether(1)); err != nil {
		t.Fatalf("withdraw holder2: %v", err)
	}
	expectAmount(t, "holder2 stake returned", h.stake.balance(holder2), ether(1))
	expectAmount(t, "custody after withdraw", h.stake.custody, ether(1))

	h.clock.set(base + 6)
	expectAmount(t, "holder2 pending at +6", h.pending(t, holder2), tenths(15))
	expectAmount(t, "holder2 claim at +6", h.claim(t, holder2), tenths(15))

	h.clock.set(base + 7)
	expectAmount(t, "holder2 pending at +7", h.pending(t, holder2), big.NewInt(0))
	expectAmount(t, "holder2 claim at +7", h.claim(t, holder2), big.NewInt(0))

	h.clock.set(base + 8)
	expectAmount(t, "holder1 pending at +8", h.pending(t, holder1), ether(4))
	expectAmount(t, "holder1 claim at +8", h.claim(t, holder1), ether(4))

	expectAmount(t, "holder1 total reward", h.reward.total(holder1), ether(6))
	expectAmount(t, "holder2 total reward", h.reward.total(holder2), ether(2))

	pool, err := h.engine.Pool()
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	expectAmount(t, "total emitted", pool.TotalEmitted, ether(8))
	expectAmount(t, "total claimed", pool.TotalClaimed, ether(8))
}

func TestIdlePeriodIsForfeited(t *testing.T) {
	h := newHarness(t, ether(1))
	early := makeAddress(0x01)
	late := makeAddress(0x02)
	h.stake.fund(early, ether(1))
	h.stake.fund(late, ether(1))

	base := h.clock.unix
	if err := h.engine.Deposit(early, ether(1)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	h.clock.set(base + 2)
	if err := h.engine.Withdraw(early, ether(1)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	// Nobody is staked for 100 seconds.
	h.clock.set(base + 102)
	if err := h.engine.Deposit(late, ether(1)); err != nil {
		t.Fatalf("late deposit: %v", err)
	}
	expectAmount(t, "late pending right after deposit", h.pending(t, late), big.NewInt(0))
	expectAmount(t, "early pending after idle period", h.pending(t, early), ether(2))

	h.clock.set(base + 105)
	expectAmount(t, "late pending", h.pending(t, late), ether(3))

	pool, err := h.engine.Pool()
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if pool.ForfeitedSeconds != 100 {
		t.Fatalf("unexpected forfeited seconds: %d", pool.ForfeitedSeconds)
	}
}

func TestEqualStakesEarnEqually(t *testing.T) {
	h := newHarness(t, big.NewInt(7))
	a := makeAddress(0x0A)
	b := makeAddress(0x0B)
	stake := big.NewInt(500)
	h.stake.fund(a, stake)
	h.stake.fund(b, stake)

	if err := h.engine.Deposit(a, stake); err != nil {
		t.Fatalf("deposit a: %v", err)
	}
	if err := h.engine.Deposit(b, stake); err != nil {
		t.Fatalf("deposit b: %v", err)
	}
	h.clock.set(h.clock.unix + 1_000)

	pa := h.pending(t, a)
	pb := h.pending(t, b)
	expectAmount(t, "equal share", pa, pb)
	// 7 per second for 1000 seconds, split evenly.
	expectAmount(t, "share size", pa, big.NewInt(3_500))
}

func TestSettleTwiceAccruesOnce(t *testing.T) {
	h := newHarness(t, ether(1))
	pool := NewPool()
	pool.LastUpdateTime = 100
	pool.TotalStaked = ether(4)
	participant := NewParticipant(makeAddress(0x01))
	participant.Staked = ether(1)

	if _, err := h.engine.advance(pool, 104); err != nil {
		t.Fatalf("advance: %v", err)
	}
	first := h.engine.settle(pool, participant)
	expectAmount(t, "first settlement", first, ether(1))
	second := h.engine.settle(pool, participant)
	expectAmount(t, "second settlement", second, big.NewInt(0))
	expectAmount(t, "claimable", participant.Claimable, ether(1))
}

func TestAdvanceRejectsClockRegression(t *testing.T) {
	h := newHarness(t, ether(1))
	pool := NewPool()
	pool.LastUpdateTime = 50
	if _, err := h.engine.advance(pool, 49); !errors.Is(err, ErrClockRegression) {
		t.Fatalf("expected ErrClockRegression, got %v", err)
	}
	if pool.LastUpdateTime != 50 {
		t.Fatalf("last update moved backwards: %d", pool.LastUpdateTime)
	}
}

func TestWithdrawKeepsClaimable(t *testing.T) {
	h := newHarness(t, ether(1))
	holder := makeAddress(0x01)
	h.stake.fund(holder, ether(3))

	base := h.clock.unix
	if err := h.engine.Deposit(holder, ether(3)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	h.clock.set(base + 10)
	before := h.pending(t, holder)
	if err := h.engine.Withdraw(holder, ether(1)); err != nil {
		t.Fatalf("partial withdraw: %v", err)
	}
	participant, err := h.engine.Participant(holder)
	if err != nil {
		t.Fatalf("participant: %v", err)
	}
	expectAmount(t, "claimable preserved", participant.Claimable, before)
	expectAmount(t, "remaining stake", participant.Staked, ether(2))

	if err := h.engine.Withdraw(holder, ether(2)); err != nil {
		t.Fatalf("full withdraw: %v", err)
	}
	h.clock.set(base + 50)
	expectAmount(t, "claimable after exit", h.pending(t, holder), before)
}

func TestRedepositAfterFullWithdraw(t *testing.T) {
	h := newHarness(t, ether(1))
	holder := makeAddress(0x01)
	h.stake.fund(holder, ether(1))

	base := h.clock.unix
	if err := h.engine.Deposit(holder, ether(1)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	h.clock.set(base + 1)
	if err := h.engine.Withdraw(holder, ether(1)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	h.stake.allowance[holder] = ether(1)
	h.clock.set(base + 5)
	if err := h.engine.Deposit(holder, ether(1)); err != nil {
		t.Fatalf("redeposit: %v", err)
	}
	h.clock.set(base + 7)
	// 1 from the first stint plus 2 from the second; the idle gap pays nothing.
	expectAmount(t, "pending after redeposit", h.pending(t, holder), ether(3))
}

func TestClaimWithNothingAccruedIsNoop(t *testing.T) {
	h := newHarness(t, ether(1))
	holder := makeAddress(0x01)

	payout := h.claim(t, holder)
	expectAmount(t, "payout", payout, big.NewInt(0))
	if len(h.reward.credited) != 0 {
		t.Fatalf("expected no reward credit, got %v", h.reward.credited)
	}
	for _, rec := range h.events.Recent(0) {
		if rec.Type == events.TypeFarmRewardClaimed {
			t.Fatalf("unexpected claim event for zero payout")
		}
	}
}

func TestRepeatedClaimPaysOnce(t *testing.T) {
	h := newHarness(t, ether(1))
	holder := makeAddress(0x01)
	h.stake.fund(holder, ether(1))
	if err := h.engine.Deposit(holder, ether(1)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	h.clock.set(h.clock.unix + 3)
	expectAmount(t, "first claim", h.claim(t, holder), ether(3))
	expectAmount(t, "second claim", h.claim(t, holder), big.NewInt(0))
}

func TestInvalidAmounts(t *testing.T) {
	h := newHarness(t, ether(1))
	holder := makeAddress(0x01)
	h.stake.fund(holder, ether(1))

	cases := []struct {
		name   string
		amount *big.Int
	}{
		{name: "nil", amount: nil},
		{name: "zero", amount: big.NewInt(0)},
		{name: "negative", amount: big.NewInt(-1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := h.engine.Deposit(holder, tc.amount); !errors.Is(err, ErrInvalidAmount) {
				t.Fatalf("deposit: expected ErrInvalidAmount, got %v", err)
			}
			if err := h.engine.Withdraw(holder, tc.amount); !errors.Is(err, ErrInvalidAmount) {
				t.Fatalf("withdraw: expected ErrInvalidAmount, got %v", err)
			}
		})
	}
	if len(h.state.pools) != 0 {
		t.Fatalf("expected no pool writes after invalid amounts")
	}
}

func TestWithdrawMoreThanStakedFails(t *testing.T) {
	h := newHarness(t, ether(1))
	holder := makeAddress(0x01)
	h.stake.fund(holder, ether(1))
	if err := h.engine.Deposit(holder, ether(1)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	h.clock.set(h.clock.unix + 4)
	poolBefore, _ := h.engine.Pool()

	err := h.engine.Withdraw(holder, new(big.Int).Add(ether(1), big.NewInt(1)))
	if !errors.Is(err, ErrInsufficientStake) {
		t.Fatalf("expected ErrInsufficientStake, got %v", err)
	}
	poolAfter, _ := h.engine.Pool()
	if poolAfter.LastUpdateTime != poolBefore.LastUpdateTime {
		t.Fatalf("failed withdraw advanced the pool")
	}
	expectAmount(t, "custody unchanged", h.stake.custody, ether(1))
}

func TestFailedStakeTransferLeavesStateUntouched(t *testing.T) {
	h := newHarness(t, ether(1))
	holder := makeAddress(0x01)
	other := makeAddress(0x02)
	h.stake.fund(other, ether(1))
	if err := h.engine.Deposit(other, ether(1)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	h.clock.set(h.clock.unix + 10)

	h.stake.balances[holder] = ether(5)
	h.stake.allowance[holder] = ether(1)
	err := h.engine.Deposit(holder, ether(2))
	if !errors.Is(err, errMockAllowance) {
		t.Fatalf("expected allowance error, got %v", err)
	}

	h.stake.allowance[holder] = ether(5)
	h.stake.balances[holder] = ether(1)
	err = h.engine.Deposit(holder, ether(2))
	if !errors.Is(err, errMockBalance) {
		t.Fatalf("expected balance error, got %v", err)
	}

	pool, err := h.engine.Pool()
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	expectAmount(t, "total staked", pool.TotalStaked, ether(1))
	if pool.LastUpdateTime != uint64(h.clock.unix-10) {
		t.Fatalf("failed deposit persisted an accumulator advance")
	}
	participant, err := h.engine.Participant(holder)
	if err != nil {
		t.Fatalf("participant: %v", err)
	}
	if !participant.IsZero() {
		t.Fatalf("failed deposit created a position: %+v", participant)
	}
}

func TestFailedRewardCreditKeepsClaimable(t *testing.T) {
	h := newHarness(t, ether(1))
	holder := makeAddress(0x01)
	h.stake.fund(holder, ether(1))
	if err := h.engine.Deposit(holder, ether(1)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	h.clock.set(h.clock.unix + 2)

	h.reward.fail = errors.New("mint paused")
	if _, err := h.engine.ClaimPendingReward(holder); err == nil {
		t.Fatalf("expected claim to fail")
	}
	h.reward.fail = nil
	expectAmount(t, "claim after recovery", h.claim(t, holder), ether(2))
}

func TestOperationsRejectClockRegression(t *testing.T) {
	h := newHarness(t, ether(1))
	holder := makeAddress(0x01)
	h.stake.fund(holder, ether(2))

	base := h.clock.unix
	if err := h.engine.Deposit(holder, ether(1)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	h.clock.set(base - 1)
	if err := h.engine.Deposit(holder, ether(1)); !errors.Is(err, ErrClockRegression) {
		t.Fatalf("deposit: expected ErrClockRegression, got %v", err)
	}
	if _, err := h.engine.ClaimPendingReward(holder); !errors.Is(err, ErrClockRegression) {
		t.Fatalf("claim: expected ErrClockRegression, got %v", err)
	}
	if _, err := h.engine.PendingReward(holder); !errors.Is(err, ErrClockRegression) {
		t.Fatalf("pending: expected ErrClockRegression, got %v", err)
	}
	expectAmount(t, "custody", h.stake.custody, ether(1))
}

func TestPendingRewardDoesNotMutate(t *testing.T) {
	h := newHarness(t, ether(1))
	holder := makeAddress(0x01)
	h.stake.fund(holder, ether(1))
	base := h.clock.unix
	if err := h.engine.Deposit(holder, ether(1)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	h.clock.set(base + 9)
	expectAmount(t, "pending", h.pending(t, holder), ether(9))

	pool, err := h.engine.Pool()
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if pool.LastUpdateTime != uint64(base) {
		t.Fatalf("pending reward persisted an advance to %d", pool.LastUpdateTime)
	}
	expectAmount(t, "claim", h.claim(t, holder), ether(9))
}

func TestEngineRequiresState(t *testing.T) {
	engine := NewEngine(ether(1))
	holder := makeAddress(0x01)
	if err := engine.Deposit(holder, ether(1)); !errors.Is(err, ErrNilState) {
		t.Fatalf("expected ErrNilState, got %v", err)
	}
	if _, err := engine.PendingReward(holder); !errors.Is(err, ErrNilState) {
		t.Fatalf("expected ErrNilState, got %v", err)
	}
}

func TestEventsEmittedOnCommit(t *testing.T) {
	h := newHarness(t, ether(1))
	holder := makeAddress(0x01)
	h.stake.fund(holder, ether(1))
	if err := h.engine.Deposit(holder, ether(1)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	h.clock.set(h.clock.unix + 1)
	h.claim(t, holder)
	if err := h.engine.Withdraw(holder, ether(1)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	_ = h.engine.Withdraw(holder, ether(1))

	recs := h.events.Recent(0)
	want := []string{events.TypeFarmDeposited, events.TypeFarmRewardClaimed, events.TypeFarmWithdrawn}
	if len(recs) != len(want) {
		t.Fatalf("unexpected event count %d: %+v", len(recs), recs)
	}
	for i, typ := range want {
		if recs[i].Type != typ {
			t.Fatalf("event %d: got %s want %s", i, recs[i].Type, typ)
		}
	}
	if recs[1].Attributes["amount"] != ether(1).String() {
		t.Fatalf("unexpected claim amount attribute %q", recs[1].Attributes["amount"])
	}
}

func TestRandomScheduleConservesEmission(t *testing.T) {
	rate := big.NewInt(1_000_003)
	h := newHarness(t, rate)
	rng := rand.New(rand.NewSource(42))

	accounts := make([]crypto.Address, 5)
	for i := range accounts {
		accounts[i] = makeAddress(byte(i + 1))
		h.stake.fund(accounts[i], mustBigInt("1000000000000000000000"))
	}
	claimed := make(map[crypto.Address]*big.Int)
	ops := 0
	for step := 0; step < 300; step++ {
		h.clock.set(h.clock.unix + int64(rng.Intn(20)))
		acct := accounts[rng.Intn(len(accounts))]
		amount := new(big.Int).Mul(big.NewInt(rng.Int63n(1_000_000)+1), big.NewInt(1_000_000_007))
		switch rng.Intn(3) {
		case 0:
			if err := h.engine.Deposit(acct, amount); err != nil {
				t.Fatalf("step %d deposit: %v", step, err)
			}
		case 1:
			participant, err := h.engine.Participant(acct)
			if err != nil {
				t.Fatalf("participant: %v", err)
			}
			if participant.Staked.Sign() == 0 {
				continue
			}
			if amount.Cmp(participant.Staked) > 0 {
				amount = participant.Staked
			}
			if err := h.engine.Withdraw(acct, amount); err != nil {
				t.Fatalf("step %d withdraw: %v", step, err)
			}
		case 2:
			payout := h.claim(t, acct)
			if prev, ok := claimed[acct]; ok {
				payout = new(big.Int).Add(prev, payout)
			}
			claimed[acct] = payout
		}
		ops++
	}

	pool, err := h.engine.Pool()
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	distributed := new(big.Int).Set(pool.TotalClaimed)
	staked := big.NewInt(0)
	for _, acct := range accounts {
		participant, err := h.engine.Participant(acct)
		if err != nil {
			t.Fatalf("participant: %v", err)
		}
		distributed.Add(distributed, participant.Claimable)
		distributed.Add(distributed, new(big.Int).Sub(shareOf(participant.Staked, pool.AccRewardPerShare), participant.RewardDebt))
		staked.Add(staked, participant.Staked)
	}
	expectAmount(t, "total staked matches positions", pool.TotalStaked, staked)

	// Each advance truncates less than TotalStaked/P units and each
	// settlement floors away less than one unit.
	slack := new(big.Int).Quo(pool.TotalStaked, precision)
	slack.Add(slack, big.NewInt(2))
	slack.Mul(slack, big.NewInt(int64(ops*len(accounts))))
	diff := new(big.Int).Sub(pool.TotalEmitted, distributed)
	diff.Abs(diff)
	if diff.Cmp(slack) > 0 {
		t.Fatalf("emission %s and distribution %s differ by %s (slack %s)", pool.TotalEmitted, distributed, diff, slack)
	}
}
