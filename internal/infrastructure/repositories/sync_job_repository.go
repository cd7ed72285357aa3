package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/whalewatch/whalewatch/internal/domain/entities"
)

const syncJobColumns = `id, wallet_id, user_id, range_from, range_to, status,
	attempt_count, max_attempts, next_retry_at, last_error, created_at, updated_at`

// SyncJobRepository is the DB-backed queue for wallet sync work. Delivery is
// at-least-once: a job claimed by a crashed worker is retried after its
// backoff window, so downstream writes must be upsert-idempotent.
type SyncJobRepository struct {
	db *sqlx.DB
}

func NewSyncJobRepository(db *sqlx.DB) *SyncJobRepository {
	return &SyncJobRepository{db: db}
}

// Enqueue queues a sync task for a wallet. At most one live (pending or
// processing) job exists per wallet; re-enqueueing while one is live is a
// no-op. Returns whether this call actually queued a new job, so callers can
// tell "queued" apart from "a job was already in flight".
func (r *SyncJobRepository) Enqueue(ctx context.Context, job *entities.SyncJob) (bool, error) {
	query := `
		INSERT INTO sync_jobs (
			id, wallet_id, user_id, range_from, range_to, status,
			attempt_count, max_attempts, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, 'pending', 0, $6, NOW(), NOW()
		)
		ON CONFLICT (wallet_id) WHERE status IN ('pending', 'processing') DO NOTHING
	`

	id := job.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	maxAttempts := job.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 3
	}

	res, err := r.db.ExecContext(ctx, query, id, job.WalletID, job.UserID, job.RangeFrom, job.RangeTo, maxAttempts)
	if err != nil {
		return false, fmt.Errorf("failed to enqueue sync job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read enqueue result: %w", err)
	}
	return affected > 0, nil
}

// ClaimPending atomically claims up to limit runnable jobs.
func (r *SyncJobRepository) ClaimPending(ctx context.Context, limit int) ([]*entities.SyncJob, error) {
	query := `
		UPDATE sync_jobs
		SET status = 'processing', attempt_count = attempt_count + 1, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM sync_jobs
			WHERE status = 'pending'
			   OR (status = 'failed' AND attempt_count < max_attempts
			       AND next_retry_at IS NOT NULL AND next_retry_at <= NOW())
			ORDER BY created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + syncJobColumns

	var jobs []*entities.SyncJob
	if err := r.db.SelectContext(ctx, &jobs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to claim sync jobs: %w", err)
	}

	return jobs, nil
}

// MarkCompleted finishes a job.
func (r *SyncJobRepository) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE sync_jobs SET status = 'completed', updated_at = NOW() WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to complete sync job: %w", err)
	}
	return nil
}

// MarkFailed records a failed attempt and schedules the next retry with
// exponential backoff. Jobs past their attempt budget stay failed for good.
func (r *SyncJobRepository) MarkFailed(ctx context.Context, job *entities.SyncJob, jobErr error) error {
	backoff := time.Duration(1<<uint(job.AttemptCount)) * time.Minute
	if backoff > 30*time.Minute {
		backoff = 30 * time.Minute
	}
	nextRetry := time.Now().Add(backoff)

	query := `
		UPDATE sync_jobs
		SET status = 'failed', last_error = $2, next_retry_at = $3, updated_at = NOW()
		WHERE id = $1
	`

	if _, err := r.db.ExecContext(ctx, query, job.ID, jobErr.Error(), nextRetry); err != nil {
		return fmt.Errorf("failed to mark sync job failed: %w", err)
	}
	return nil
}
