package events

import (
	"math/big"
	"strings"

	"stakefarm/crypto"
)

const (
	TypeTokenTransfer = "token.transfer"
	TypeTokenApproval = "token.approval"
)

// TokenTransfer records a balance movement. Mints carry a zero From address.
type TokenTransfer struct {
	Symbol string
	From   crypto.Address
	To     crypto.Address
	Amount *big.Int
}

func (TokenTransfer) EventType() string { return TypeTokenTransfer }

func (e TokenTransfer) Record() *Record {
	attrs := map[string]string{
		"symbol": normalizeAsset(e.Symbol),
		"to":     e.To.String(),
		"amount": formatAmount(e.Amount),
	}
	if e.From.IsZero() {
		attrs["from"] = ""
	} else {
		attrs["from"] = e.From.String()
	}
	return &Record{Type: TypeTokenTransfer, Attributes: attrs}
}

// TokenApproval records an allowance update.
type TokenApproval struct {
	Symbol  string
	Owner   crypto.Address
	Spender crypto.Address
	Amount  *big.Int
}

func (TokenApproval) EventType() string { return TypeTokenApproval }

func (e TokenApproval) Record() *Record {
	return &Record{
		Type: TypeTokenApproval,
		Attributes: map[string]string{
			"symbol":  normalizeAsset(e.Symbol),
			"owner":   e.Owner.String(),
			"spender": e.Spender.String(),
			"amount":  formatAmount(e.Amount),
		},
	}
}

func normalizeAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}
