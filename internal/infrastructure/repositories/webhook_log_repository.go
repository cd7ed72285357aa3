package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/whalewatch/whalewatch/internal/domain/entities"
)

const webhookLogColumns = `id, source, payload, received_at, processed_at, claimed_at, attempt_count, last_error`

// claimLease is how long a claimed row stays invisible to other workers. A
// worker that crashes mid-batch loses its claim after the lease and the row
// is retried; a healthy worker finishes well inside it.
const claimLease = 2 * time.Minute

// WebhookLogRepository persists the append-only inbound webhook log. The
// unprocessed rows double as the asynchronous processing queue.
type WebhookLogRepository struct {
	db *sqlx.DB
}

func NewWebhookLogRepository(db *sqlx.DB) *WebhookLogRepository {
	return &WebhookLogRepository{db: db}
}

// Create captures a raw webhook payload verbatim. This is the synchronous
// durability boundary: it must succeed before the vendor gets its 202.
func (r *WebhookLogRepository) Create(ctx context.Context, source entities.WebhookSource, payload json.RawMessage) (*entities.WebhookLog, error) {
	query := `
		INSERT INTO webhook_logs (id, source, payload, received_at, attempt_count)
		VALUES ($1, $2, $3, NOW(), 0)
		RETURNING ` + webhookLogColumns

	var log entities.WebhookLog
	err := r.db.GetContext(ctx, &log, query, uuid.New(), source, []byte(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook log: %w", err)
	}

	return &log, nil
}

// ClaimUnprocessed atomically claims up to limit unprocessed log rows for a
// worker, stamping claimed_at and bumping the attempt count. A row inside its
// claim lease is invisible to other pollers, so a slow but healthy worker is
// not raced by its siblings and does not burn attempts; SKIP LOCKED covers
// the claim statement itself. At-least-once delivery still applies across
// worker crashes, so processing must stay idempotent.
func (r *WebhookLogRepository) ClaimUnprocessed(ctx context.Context, limit, maxAttempts int) ([]*entities.WebhookLog, error) {
	query := `
		UPDATE webhook_logs
		SET attempt_count = attempt_count + 1, claimed_at = NOW()
		WHERE id IN (
			SELECT id FROM webhook_logs
			WHERE processed_at IS NULL
			  AND attempt_count < $2
			  AND (claimed_at IS NULL OR claimed_at < NOW() - make_interval(secs => $3))
			ORDER BY received_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + webhookLogColumns

	var logs []*entities.WebhookLog
	if err := r.db.SelectContext(ctx, &logs, query, limit, maxAttempts, claimLease.Seconds()); err != nil {
		return nil, fmt.Errorf("failed to claim webhook logs: %w", err)
	}

	return logs, nil
}

// MarkProcessed sets processed_at exactly once.
func (r *WebhookLogRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE webhook_logs SET processed_at = NOW() WHERE id = $1 AND processed_at IS NULL`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to mark webhook log processed: %w", err)
	}
	return nil
}

// RecordError stores the latest processing failure for diagnosis and releases
// the claim so the row is eligible again at the next poll, until max attempts.
func (r *WebhookLogRepository) RecordError(ctx context.Context, id uuid.UUID, processErr error) error {
	query := `UPDATE webhook_logs SET last_error = $2, claimed_at = NULL WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, processErr.Error()); err != nil {
		return fmt.Errorf("failed to record webhook log error: %w", err)
	}
	return nil
}
