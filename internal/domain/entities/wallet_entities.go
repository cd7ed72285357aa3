package entities

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NormalizeAddress lower-cases an address for storage and comparison.
// Address comparisons are always case-insensitive across the model.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// Wallet is a tracked address, unique per (network_id, lower-cased address).
type Wallet struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	NetworkID    uuid.UUID       `db:"network_id" json:"network_id"`
	Address      string          `db:"address" json:"address"`
	IsWhale      bool            `db:"is_whale" json:"is_whale"`
	Metadata     json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	Balance      decimal.Decimal `db:"balance" json:"balance"`
	BalanceUSD   decimal.Decimal `db:"balance_usd" json:"balance_usd"`
	LastSyncedAt *time.Time      `db:"last_synced_at" json:"last_synced_at,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// AlertChannel selects the delivery channel(s) for a tracking user's alerts.
type AlertChannel string

const (
	ChannelEmail     AlertChannel = "email"
	ChannelMessenger AlertChannel = "messenger"
	ChannelBoth      AlertChannel = "both"
)

// DirectionFilter narrows which transaction directions trigger alerts.
type DirectionFilter string

const (
	FilterAll      DirectionFilter = "all"
	FilterIncoming DirectionFilter = "incoming"
	FilterOutgoing DirectionFilter = "outgoing"
)

// UserWallet joins a user to a tracked wallet and holds the per-user
// notification preferences.
type UserWallet struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	UserID          uuid.UUID       `db:"user_id" json:"user_id"`
	WalletID        uuid.UUID       `db:"wallet_id" json:"wallet_id"`
	Label           string          `db:"label" json:"label"`
	NotifyEnabled   bool            `db:"notify_enabled" json:"notify_enabled"`
	ThresholdUSD    decimal.Decimal `db:"threshold_usd" json:"threshold_usd"`
	Channel         AlertChannel    `db:"channel" json:"channel"`
	DirectionFilter DirectionFilter `db:"direction_filter" json:"direction_filter"`
	CooldownMinutes int             `db:"cooldown_minutes" json:"cooldown_minutes"`
	LastNotifiedAt  *time.Time      `db:"last_notified_at" json:"last_notified_at,omitempty"`
	Notes           string          `db:"notes" json:"notes"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// User carries the delivery endpoints for alert channels. Account management
// itself lives outside this service.
type User struct {
	ID             uuid.UUID `db:"id" json:"id"`
	Email          string    `db:"email" json:"email"`
	TelegramChatID *int64    `db:"telegram_chat_id" json:"telegram_chat_id,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Integration stores a user-scoped vendor API key. The credential resolver
// prefers these over the environment-level fallback keys.
type Integration struct {
	ID          uuid.UUID `db:"id" json:"id"`
	UserID      uuid.UUID `db:"user_id" json:"user_id"`
	ProviderKey string    `db:"provider_key" json:"provider_key"`
	APIKey      string    `db:"api_key" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
