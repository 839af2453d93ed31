package state

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"stakefarm/crypto"
)

// TokenMetadata describes a registered fungible token.
type TokenMetadata struct {
	Symbol   string
	Name     string
	Decimals uint8
}

// RegisterToken stores the metadata for a token and records it in the token
// index.
func (m *Manager) RegisterToken(symbol, name string, decimals uint8) error {
	normalized := normalizeSymbol(symbol)
	if normalized == "" {
		return fmt.Errorf("token symbol must not be empty")
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("token %s: name must not be empty", normalized)
	}
	if existing, err := m.Token(normalized); err != nil {
		return err
	} else if existing != nil {
		return fmt.Errorf("token %s already registered", normalized)
	}

	list, err := m.TokenList()
	if err != nil {
		return err
	}
	list = append(list, normalized)
	sort.Strings(list)
	if err := m.KVPut(TokenListKey(), list); err != nil {
		return err
	}
	meta := &TokenMetadata{
		Symbol:   normalized,
		Name:     strings.TrimSpace(name),
		Decimals: decimals,
	}
	return m.KVPut(TokenMetadataKey(normalized), meta)
}

// Token retrieves metadata for a registered token. A nil value is returned
// for unknown symbols.
func (m *Manager) Token(symbol string) (*TokenMetadata, error) {
	meta := new(TokenMetadata)
	ok, err := m.KVGet(TokenMetadataKey(symbol), meta)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return meta, nil
}

// TokenList returns all registered token symbols in sorted order.
func (m *Manager) TokenList() ([]string, error) {
	var list []string
	if err := m.KVGetList(TokenListKey(), &list); err != nil {
		return nil, err
	}
	return list, nil
}

// TokenExists reports whether the provided token symbol is registered.
func (m *Manager) TokenExists(symbol string) bool {
	if normalizeSymbol(symbol) == "" {
		return false
	}
	meta, err := m.Token(symbol)
	return err == nil && meta != nil
}

// SetBalance stores an account balance for the provided token.
func (m *Manager) SetBalance(symbol string, addr crypto.Address, amount *big.Int) error {
	if addr.IsZero() {
		return fmt.Errorf("address must not be empty")
	}
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("negative balance not allowed")
	}
	if !m.TokenExists(symbol) {
		return fmt.Errorf("token %s not registered", normalizeSymbol(symbol))
	}
	return m.KVPut(TokenBalanceKey(symbol, addr.Bytes()), amount)
}

// Balance retrieves a token balance for the provided account. Missing
// entries default to zero.
func (m *Manager) Balance(symbol string, addr crypto.Address) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := m.KVGet(TokenBalanceKey(symbol, addr.Bytes()), amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

// SetAllowance stores the amount spender may transfer on behalf of owner.
func (m *Manager) SetAllowance(symbol string, owner, spender crypto.Address, amount *big.Int) error {
	if owner.IsZero() || spender.IsZero() {
		return fmt.Errorf("allowance parties must not be empty")
	}
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("negative allowance not allowed")
	}
	if !m.TokenExists(symbol) {
		return fmt.Errorf("token %s not registered", normalizeSymbol(symbol))
	}
	return m.KVPut(TokenAllowanceKey(symbol, owner.Bytes(), spender.Bytes()), amount)
}

// Allowance returns the amount spender may transfer on behalf of owner.
func (m *Manager) Allowance(symbol string, owner, spender crypto.Address) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := m.KVGet(TokenAllowanceKey(symbol, owner.Bytes(), spender.Bytes()), amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}
