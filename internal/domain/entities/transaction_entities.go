package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Direction of a transaction relative to the tracked wallet. It is derived
// from the from/to addresses, never from the sign of the amount.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
	DirectionSelf     Direction = "self"
)

// Transaction is the canonical cross-chain record. At most one row exists per
// hash regardless of which provider or webhook produced it.
type Transaction struct {
	ID          uuid.UUID        `db:"id" json:"id"`
	WalletID    uuid.UUID        `db:"wallet_id" json:"wallet_id"`
	Hash        string           `db:"hash" json:"hash"`
	FromAddress string           `db:"from_address" json:"from_address"`
	ToAddress   string           `db:"to_address" json:"to_address"`
	Amount      decimal.Decimal  `db:"amount" json:"amount"`
	Fee         *decimal.Decimal `db:"fee" json:"fee,omitempty"`
	BlockNumber *int64           `db:"block_number" json:"block_number,omitempty"`
	MinedAt     *time.Time       `db:"mined_at" json:"mined_at,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

// Direction computes the transaction direction relative to walletAddress.
func (t *Transaction) Direction(walletAddress string) Direction {
	addr := NormalizeAddress(walletAddress)
	from := NormalizeAddress(t.FromAddress)
	to := NormalizeAddress(t.ToAddress)

	switch {
	case from == addr && to == addr:
		return DirectionSelf
	case from == addr:
		return DirectionOutgoing
	default:
		return DirectionIncoming
	}
}

// CanonicalTransaction is the normalized shape every provider response and
// webhook event is converted into before persistence. Amounts are in native
// units (not base units) and always non-negative.
type CanonicalTransaction struct {
	NetworkSlug   NetworkSlug
	WalletAddress string
	Hash          string
	FromAddress   string
	ToAddress     string
	Amount        decimal.Decimal
	Fee           *decimal.Decimal
	BlockNumber   *int64
	MinedAt       *time.Time
}

// ExternalCounterparty is stored when a UTXO vendor payload aggregates
// multiple inputs/outputs and per-output attribution is unavailable.
const ExternalCounterparty = "External / Multiple"
