// Package providers defines the history provider contract, the fixed
// priority-ordered catalog, and credential resolution for vendor APIs.
package providers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/whalewatch/whalewatch/internal/domain/entities"
)

// SyncTarget bundles a wallet, its network, and the credential resolved for
// one provider attempt. APIKey is empty for key-optional vendors without a
// configured credential.
type SyncTarget struct {
	Wallet  *entities.Wallet
	Network *entities.Network
	APIKey  string
}

// HistoryProvider is implemented once per vendor/chain integration. All
// operations are idempotent; a provider must never be invoked for a network
// outside SupportedNetworks.
type HistoryProvider interface {
	// Key identifies the vendor for credential resolution and logging.
	Key() string

	// SupportedNetworks is a static capability declaration used for
	// routing. It must not depend on credentials.
	SupportedNetworks() map[entities.NetworkSlug]bool

	// SyncTransactions fetches the most recent page of transactions,
	// normalizes and upserts them, and returns the number written.
	SyncTransactions(ctx context.Context, target SyncTarget) (int, error)

	// FetchTransactions paginates through the vendor API bounded by a
	// time range, stopping on a short page or the max-page safety bound.
	FetchTransactions(ctx context.Context, target SyncTarget, from, to time.Time) (int, error)

	// SyncBalance fetches the native balance, converts it from base
	// units, values it in USD (price failures are non-fatal), and
	// persists the result.
	SyncBalance(ctx context.Context, target SyncTarget) error
}

// TransactionSink persists normalized transactions by hash.
type TransactionSink interface {
	Write(ctx context.Context, walletID uuid.UUID, tx *entities.CanonicalTransaction) (inserted bool, err error)
}

// BalanceStore persists synced wallet balances.
type BalanceStore interface {
	UpdateBalance(ctx context.Context, id uuid.UUID, balance, balanceUSD decimal.Decimal) error
}

// PriceSource quotes native assets in USD.
type PriceSource interface {
	GetUSDPriceForNetwork(ctx context.Context, slug entities.NetworkSlug) (decimal.Decimal, error)
}

// Deps carries the collaborators shared by every provider implementation.
type Deps struct {
	Sink   TransactionSink
	Store  BalanceStore
	Prices PriceSource
}

// MaxPages bounds every date-ranged pagination loop so vendor API drift can
// never produce an unbounded fetch.
const MaxPages = 10
