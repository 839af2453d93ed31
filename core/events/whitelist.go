package events

import (
	"github.com/ethereum/go-ethereum/common"

	"stakefarm/crypto"
)

// TypeWhitelistRootUpdated is emitted when the allocation root changes.
const TypeWhitelistRootUpdated = "whitelist.root_updated"

type WhitelistRootUpdated struct {
	Caller  crypto.Address
	OldRoot common.Hash
	NewRoot common.Hash
}

func (WhitelistRootUpdated) EventType() string { return TypeWhitelistRootUpdated }

func (e WhitelistRootUpdated) Record() *Record {
	return &Record{
		Type: TypeWhitelistRootUpdated,
		Attributes: map[string]string{
			"caller":  e.Caller.String(),
			"oldRoot": e.OldRoot.Hex(),
			"newRoot": e.NewRoot.Hex(),
		},
	}
}
