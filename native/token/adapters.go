package token

import (
	"errors"
	"math/big"

	"stakefarm/crypto"
)

// ErrCustodyAccount rejects stake movements whose participant is the pool
// custody account itself. Such a move nets to nothing on the ledger.
var ErrCustodyAccount = errors.New("token: custody account cannot stake in its own pool")

// Custody holds stake units on behalf of a pool account. Participants
// approve the pool address before depositing.
type Custody struct {
	ledger *Ledger
	pool   crypto.Address
}

// NewCustody returns a custody adapter keeping funds at pool.
func NewCustody(ledger *Ledger, pool crypto.Address) *Custody {
	return &Custody{ledger: ledger, pool: pool}
}

// Address returns the pool account holding custody.
func (c *Custody) Address() crypto.Address { return c.pool }

// TransferIn pulls amount from the participant using the allowance it
// granted the pool.
func (c *Custody) TransferIn(from crypto.Address, amount *big.Int) error {
	if from.Equal(c.pool) {
		return ErrCustodyAccount
	}
	return c.ledger.TransferFrom(c.pool, from, c.pool, amount)
}

// TransferOut releases amount from the pool to the participant.
func (c *Custody) TransferOut(to crypto.Address, amount *big.Int) error {
	if to.Equal(c.pool) {
		return ErrCustodyAccount
	}
	return c.ledger.Transfer(c.pool, to, amount)
}

// Minter issues reward units by minting them on the ledger.
type Minter struct {
	ledger *Ledger
}

// NewMinter returns a reward adapter minting on ledger.
func NewMinter(ledger *Ledger) *Minter {
	return &Minter{ledger: ledger}
}

// Credit mints amount to the account.
func (m *Minter) Credit(to crypto.Address, amount *big.Int) error {
	return m.ledger.Mint(to, amount)
}
