package token

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"stakefarm/core/events"
	"stakefarm/crypto"
)

var (
	ErrInsufficientBalance   = errors.New("token: insufficient balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrInvalidAmount         = errors.New("token: amount must not be negative")
	ErrUnknownToken          = errors.New("token: unknown token")
	ErrNilState              = errors.New("token: state not configured")
	ErrNilAccount            = errors.New("token: account required")
)

type ledgerState interface {
	TokenExists(symbol string) bool
	Balance(symbol string, addr crypto.Address) (*big.Int, error)
	SetBalance(symbol string, addr crypto.Address, amount *big.Int) error
	Allowance(symbol string, owner, spender crypto.Address) (*big.Int, error)
	SetAllowance(symbol string, owner, spender crypto.Address, amount *big.Int) error
	TokenSupply(symbol string) (*big.Int, error)
	AdjustTokenSupply(symbol string, delta *big.Int) (*big.Int, error)
}

// Ledger exposes fungible token accounting for a single registered symbol.
// It does not open transactions of its own; callers that need atomicity run
// ledger operations inside the state manager's Atomic.
type Ledger struct {
	state   ledgerState
	symbol  string
	emitter events.Emitter
}

// NewLedger returns a ledger for symbol.
func NewLedger(symbol string) *Ledger {
	return &Ledger{
		symbol:  strings.ToUpper(strings.TrimSpace(symbol)),
		emitter: events.NoopEmitter{},
	}
}

// SetState wires the ledger to the persistence layer.
func (l *Ledger) SetState(state ledgerState) { l.state = state }

// SetEmitter configures where transfer and approval events are reported.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	l.emitter = emitter
}

// Symbol returns the normalised token symbol.
func (l *Ledger) Symbol() string { return l.symbol }

func (l *Ledger) ready() error {
	if l == nil || l.state == nil {
		return ErrNilState
	}
	if !l.state.TokenExists(l.symbol) {
		return fmt.Errorf("%w: %s", ErrUnknownToken, l.symbol)
	}
	return nil
}

// BalanceOf returns the balance held by addr.
func (l *Ledger) BalanceOf(addr crypto.Address) (*big.Int, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	return l.state.Balance(l.symbol, addr)
}

// Allowance returns the amount spender may move on behalf of owner.
func (l *Ledger) Allowance(owner, spender crypto.Address) (*big.Int, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	return l.state.Allowance(l.symbol, owner, spender)
}

// TotalSupply returns the amount minted so far.
func (l *Ledger) TotalSupply() (*big.Int, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	return l.state.TokenSupply(l.symbol)
}

// Transfer moves amount from one account to another.
func (l *Ledger) Transfer(from, to crypto.Address, amount *big.Int) error {
	if err := l.ready(); err != nil {
		return err
	}
	if err := validateAmount(amount); err != nil {
		return err
	}
	if from.IsZero() || to.IsZero() {
		return ErrNilAccount
	}
	if err := l.move(from, to, amount); err != nil {
		return err
	}
	l.emitter.Emit(events.TokenTransfer{Symbol: l.symbol, From: from, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

// Approve sets the amount spender may move on behalf of owner, replacing any
// previous allowance.
func (l *Ledger) Approve(owner, spender crypto.Address, amount *big.Int) error {
	if err := l.ready(); err != nil {
		return err
	}
	if err := validateAmount(amount); err != nil {
		return err
	}
	if owner.IsZero() || spender.IsZero() {
		return ErrNilAccount
	}
	if err := l.state.SetAllowance(l.symbol, owner, spender, amount); err != nil {
		return err
	}
	l.emitter.Emit(events.TokenApproval{Symbol: l.symbol, Owner: owner, Spender: spender, Amount: new(big.Int).Set(amount)})
	return nil
}

// TransferFrom moves amount from one account to another using the allowance
// granted to spender.
func (l *Ledger) TransferFrom(spender, from, to crypto.Address, amount *big.Int) error {
	if err := l.ready(); err != nil {
		return err
	}
	if err := validateAmount(amount); err != nil {
		return err
	}
	if spender.IsZero() || from.IsZero() || to.IsZero() {
		return ErrNilAccount
	}
	allowance, err := l.state.Allowance(l.symbol, from, spender)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: allowance %s, required %s", ErrInsufficientAllowance, allowance, amount)
	}
	if err := l.move(from, to, amount); err != nil {
		return err
	}
	if err := l.state.SetAllowance(l.symbol, from, spender, new(big.Int).Sub(allowance, amount)); err != nil {
		return err
	}
	l.emitter.Emit(events.TokenTransfer{Symbol: l.symbol, From: from, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

// Mint creates amount new units for to.
func (l *Ledger) Mint(to crypto.Address, amount *big.Int) error {
	if err := l.ready(); err != nil {
		return err
	}
	if err := validateAmount(amount); err != nil {
		return err
	}
	if to.IsZero() {
		return ErrNilAccount
	}
	if amount.Sign() == 0 {
		return nil
	}
	balance, err := l.state.Balance(l.symbol, to)
	if err != nil {
		return err
	}
	if _, err := l.state.AdjustTokenSupply(l.symbol, amount); err != nil {
		return err
	}
	if err := l.state.SetBalance(l.symbol, to, new(big.Int).Add(balance, amount)); err != nil {
		return err
	}
	l.emitter.Emit(events.TokenTransfer{Symbol: l.symbol, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

func (l *Ledger) move(from, to crypto.Address, amount *big.Int) error {
	fromBalance, err := l.state.Balance(l.symbol, from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: balance %s, required %s", ErrInsufficientBalance, fromBalance, amount)
	}
	if amount.Sign() == 0 || from.Equal(to) {
		return nil
	}
	if err := l.state.SetBalance(l.symbol, from, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	toBalance, err := l.state.Balance(l.symbol, to)
	if err != nil {
		return err
	}
	return l.state.SetBalance(l.symbol, to, new(big.Int).Add(toBalance, amount))
}

func validateAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	return nil
}
