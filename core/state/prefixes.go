package state

import (
	"encoding/hex"
	"strconv"
	"strings"
)

var (
	farmPoolPrefix             = "farm/pool/"
	farmParticipantPrefix      = "farm/participant/"
	farmParticipantIndexPrefix = "farm/participants/"

	tokenMetadataPrefix  = "token/meta/"
	tokenBalancePrefix   = "token/balance/"
	tokenAllowancePrefix = "token/allowance/"
	tokenSupplyPrefix    = "token/supply/"
	tokenListKeyBytes    = []byte("token/list")

	whitelistRootKeyBytes  = []byte("whitelist/root")
	whitelistOwnerKeyBytes = []byte("whitelist/owner")

	stateVersionKey = []byte("state/version")
)

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// FarmPoolKey returns the key of the accumulator record for poolID.
func FarmPoolKey(poolID string) []byte {
	return []byte(farmPoolPrefix + strings.TrimSpace(poolID))
}

// FarmParticipantKey returns the key of the position held by addr in poolID.
func FarmParticipantKey(poolID string, addr []byte) []byte {
	return []byte(farmParticipantPrefix + strings.TrimSpace(poolID) + "/" + hex.EncodeToString(addr))
}

// FarmParticipantCountKey returns the key holding how many addresses have
// ever held a position in poolID.
func FarmParticipantCountKey(poolID string) []byte {
	return []byte(farmParticipantIndexPrefix + strings.TrimSpace(poolID) + "/count")
}

// FarmParticipantIndexKey returns the key of the position-th address to
// join poolID.
func FarmParticipantIndexKey(poolID string, position uint64) []byte {
	return []byte(farmParticipantIndexPrefix + strings.TrimSpace(poolID) + "/" + strconv.FormatUint(position, 10))
}

// TokenMetadataKey returns the key of the registry entry for symbol.
func TokenMetadataKey(symbol string) []byte {
	return []byte(tokenMetadataPrefix + normalizeSymbol(symbol))
}

// TokenBalanceKey returns the key of addr's balance of symbol.
func TokenBalanceKey(symbol string, addr []byte) []byte {
	return []byte(tokenBalancePrefix + normalizeSymbol(symbol) + "/" + hex.EncodeToString(addr))
}

// TokenAllowanceKey returns the key of the amount spender may move on
// behalf of owner.
func TokenAllowanceKey(symbol string, owner, spender []byte) []byte {
	return []byte(tokenAllowancePrefix + normalizeSymbol(symbol) + "/" + hex.EncodeToString(owner) + "/" + hex.EncodeToString(spender))
}

// TokenSupplyKey returns the key of the total supply of symbol.
func TokenSupplyKey(symbol string) []byte {
	return []byte(tokenSupplyPrefix + normalizeSymbol(symbol))
}

// TokenListKey returns the key of the sorted registered symbol list.
func TokenListKey() []byte {
	return append([]byte(nil), tokenListKeyBytes...)
}

// WhitelistRootKey returns the key of the current allocation root.
func WhitelistRootKey() []byte {
	return append([]byte(nil), whitelistRootKeyBytes...)
}

// WhitelistOwnerKey returns the key of the address allowed to replace the
// allocation root.
func WhitelistOwnerKey() []byte {
	return append([]byte(nil), whitelistOwnerKeyBytes...)
}
