package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"stakefarm/crypto"
)

// WhitelistRoot returns the stored allocation root, or the zero hash when
// none has been published.
func (m *Manager) WhitelistRoot() (common.Hash, error) {
	var raw []byte
	ok, err := m.KVGet(WhitelistRootKey(), &raw)
	if err != nil {
		return common.Hash{}, err
	}
	if !ok {
		return common.Hash{}, nil
	}
	if len(raw) != common.HashLength {
		return common.Hash{}, fmt.Errorf("state: malformed whitelist root %x", raw)
	}
	return common.BytesToHash(raw), nil
}

// SetWhitelistRoot stores the allocation root.
func (m *Manager) SetWhitelistRoot(root common.Hash) error {
	return m.KVPut(WhitelistRootKey(), root.Bytes())
}

// WhitelistOwner returns the address allowed to update the allocation root.
func (m *Manager) WhitelistOwner() (crypto.Address, bool, error) {
	var raw []byte
	ok, err := m.KVGet(WhitelistOwnerKey(), &raw)
	if err != nil {
		return crypto.Address{}, false, err
	}
	if !ok {
		return crypto.Address{}, false, nil
	}
	if len(raw) != crypto.AddressLength {
		return crypto.Address{}, false, fmt.Errorf("state: malformed whitelist owner %x", raw)
	}
	return crypto.NewAddress(crypto.AccountPrefix, raw), true, nil
}

// SetWhitelistOwner records the address allowed to update the allocation
// root.
func (m *Manager) SetWhitelistOwner(owner crypto.Address) error {
	if owner.IsZero() {
		return fmt.Errorf("state: whitelist owner must not be empty")
	}
	return m.KVPut(WhitelistOwnerKey(), owner.Bytes())
}
