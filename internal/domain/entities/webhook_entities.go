package entities

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// WebhookSource tags the inbound push vendor a log row came from.
type WebhookSource string

const (
	SourceAlchemy        WebhookSource = "alchemy"
	SourceMoralisStreams WebhookSource = "moralis_streams"
)

// WebhookLog is the append-only durability boundary for inbound webhooks.
// The raw payload is captured verbatim at receipt and never re-interpreted
// after processing; processed_at is set exactly once.
type WebhookLog struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	Source       WebhookSource   `db:"source" json:"source"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	ReceivedAt   time.Time       `db:"received_at" json:"received_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	ClaimedAt    *time.Time      `db:"claimed_at" json:"claimed_at,omitempty"`
	AttemptCount int             `db:"attempt_count" json:"attempt_count"`
	LastError    *string         `db:"last_error" json:"last_error,omitempty"`
}

// SyncJobStatus tracks a queued wallet sync through its lifecycle.
type SyncJobStatus string

const (
	SyncJobPending    SyncJobStatus = "pending"
	SyncJobProcessing SyncJobStatus = "processing"
	SyncJobCompleted  SyncJobStatus = "completed"
	SyncJobFailed     SyncJobStatus = "failed"
)

// SyncJob is a queued unit of wallet sync work delivered at-least-once.
// RangeFrom/RangeTo bound a date-ranged history fetch; both nil means a
// recent-page sync.
type SyncJob struct {
	ID           uuid.UUID     `db:"id" json:"id"`
	WalletID     uuid.UUID     `db:"wallet_id" json:"wallet_id"`
	UserID       *uuid.UUID    `db:"user_id" json:"user_id,omitempty"`
	RangeFrom    *time.Time    `db:"range_from" json:"range_from,omitempty"`
	RangeTo      *time.Time    `db:"range_to" json:"range_to,omitempty"`
	Status       SyncJobStatus `db:"status" json:"status"`
	AttemptCount int           `db:"attempt_count" json:"attempt_count"`
	MaxAttempts  int           `db:"max_attempts" json:"max_attempts"`
	NextRetryAt  *time.Time    `db:"next_retry_at" json:"next_retry_at,omitempty"`
	LastError    *string       `db:"last_error" json:"last_error,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}
