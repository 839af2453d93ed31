package crypto

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"
)

// AddressPrefix defines the human-readable part used when rendering addresses.
type AddressPrefix string

const (
	AccountPrefix AddressPrefix = "stake"
	PoolPrefix    AddressPrefix = "pool"
)

// AddressLength is the raw byte length of every account address.
const AddressLength = 20

// Address represents a 20-byte account with a display prefix. Two addresses
// with the same bytes but different prefixes refer to the same account; use
// Equal rather than == when prefixes may differ.
type Address struct {
	prefix AddressPrefix
	bytes  [AddressLength]byte
}

func NewAddress(prefix AddressPrefix, b []byte) Address {
	if len(b) != AddressLength {
		panic("address must be 20 bytes long")
	}
	addr := Address{prefix: prefix}
	copy(addr.bytes[:], b)
	return addr
}

// AddressFromCommon converts a go-ethereum address into an account address.
func AddressFromCommon(prefix AddressPrefix, addr common.Address) Address {
	return NewAddress(prefix, addr.Bytes())
}

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.bytes[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	prefix := a.prefix
	if prefix == "" {
		prefix = AccountPrefix
	}
	encoded, err := bech32.Encode(string(prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// Bytes returns a copy of the raw address bytes.
func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a.bytes[:])
	return out
}

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() AddressPrefix {
	return a.prefix
}

// Common returns the address as a go-ethereum address.
func (a Address) Common() common.Address {
	return common.Address(a.bytes)
}

// Hex renders the address in 0x-prefixed checksummed form.
func (a Address) Hex() string {
	return a.Common().Hex()
}

func (a Address) IsZero() bool {
	return a.bytes == [AddressLength]byte{}
}

// Equal compares the raw bytes of two addresses, ignoring the prefix.
func (a Address) Equal(other Address) bool {
	return a.bytes == other.bytes
}

// Key returns the prefix-independent map key for the address.
func (a Address) Key() [AddressLength]byte {
	return a.bytes
}

func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != AddressLength {
		return Address{}, fmt.Errorf("invalid address length %d", len(conv))
	}
	return NewAddress(AddressPrefix(prefix), conv), nil
}

// ParseAddress accepts either a bech32 address or a 0x-prefixed hex address.
// Hex input is assigned the account prefix.
func ParseAddress(value string) (Address, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return Address{}, fmt.Errorf("address required")
	}
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		if !common.IsHexAddress(trimmed) {
			return Address{}, fmt.Errorf("invalid hex address %q", trimmed)
		}
		return AddressFromCommon(AccountPrefix, common.HexToAddress(trimmed)), nil
	}
	return DecodeAddress(trimmed)
}

// MarshalText renders the address in bech32 form.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText parses either bech32 or hex input.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
