package entities

import (
	"time"

	"github.com/google/uuid"
)

// NetworkSlug identifies a supported blockchain (e.g. "ethereum").
type NetworkSlug string

const (
	NetworkBitcoin  NetworkSlug = "bitcoin"
	NetworkLitecoin NetworkSlug = "litecoin"
	NetworkDogecoin NetworkSlug = "dogecoin"
	NetworkEthereum NetworkSlug = "ethereum"
	NetworkPolygon  NetworkSlug = "polygon"
	NetworkBSC      NetworkSlug = "bsc"
	NetworkSolana   NetworkSlug = "solana"
	NetworkTron     NetworkSlug = "tron"
)

// Network is an immutable-per-row reference entity seeded administratively
// and read-only at runtime.
type Network struct {
	ID             uuid.UUID   `db:"id" json:"id"`
	Name           string      `db:"name" json:"name"`
	Slug           NetworkSlug `db:"slug" json:"slug"`
	ChainID        *int64      `db:"chain_id" json:"chain_id,omitempty"`
	CurrencySymbol string      `db:"currency_symbol" json:"currency_symbol"`
	ExplorerURL    string      `db:"explorer_url" json:"explorer_url"`
	IsActive       bool        `db:"is_active" json:"is_active"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
}
