package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/whalewatch/whalewatch/internal/domain/entities"
)

// Tracker pairs a tracking row with the user's delivery endpoints, as needed
// by the threshold notifier.
type Tracker struct {
	entities.UserWallet
	Email          string `db:"email"`
	TelegramChatID *int64 `db:"telegram_chat_id"`
}

// UserWalletRepository manages the user-to-wallet tracking join and its
// notification preferences.
type UserWalletRepository struct {
	db *sqlx.DB
}

func NewUserWalletRepository(db *sqlx.DB) *UserWalletRepository {
	return &UserWalletRepository{db: db}
}

// Track creates or updates a tracking row with the given preferences.
func (r *UserWalletRepository) Track(ctx context.Context, uw *entities.UserWallet) (*entities.UserWallet, error) {
	query := `
		INSERT INTO user_wallets (
			id, user_id, wallet_id, label, notify_enabled, threshold_usd,
			channel, direction_filter, cooldown_minutes, notes, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW()
		)
		ON CONFLICT (user_id, wallet_id) DO UPDATE SET
			label            = EXCLUDED.label,
			notify_enabled   = EXCLUDED.notify_enabled,
			threshold_usd    = EXCLUDED.threshold_usd,
			channel          = EXCLUDED.channel,
			direction_filter = EXCLUDED.direction_filter,
			cooldown_minutes = EXCLUDED.cooldown_minutes,
			notes            = EXCLUDED.notes
		RETURNING id, user_id, wallet_id, label, notify_enabled, threshold_usd,
		          channel, direction_filter, cooldown_minutes, last_notified_at, notes, created_at
	`

	id := uw.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	var stored entities.UserWallet
	err := r.db.GetContext(ctx, &stored, query,
		id,
		uw.UserID,
		uw.WalletID,
		uw.Label,
		uw.NotifyEnabled,
		uw.ThresholdUSD,
		uw.Channel,
		uw.DirectionFilter,
		uw.CooldownMinutes,
		uw.Notes,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to track wallet: %w", err)
	}

	return &stored, nil
}

// Untrack removes a user's tracking row. The wallet row itself stays.
func (r *UserWalletRepository) Untrack(ctx context.Context, userID, walletID uuid.UUID) error {
	query := `DELETE FROM user_wallets WHERE user_id = $1 AND wallet_id = $2`

	if _, err := r.db.ExecContext(ctx, query, userID, walletID); err != nil {
		return fmt.Errorf("failed to untrack wallet: %w", err)
	}
	return nil
}

// ListTrackers returns every user tracking the wallet with notifications
// enabled, joined with their delivery endpoints.
func (r *UserWalletRepository) ListTrackers(ctx context.Context, walletID uuid.UUID) ([]*Tracker, error) {
	query := `
		SELECT uw.id, uw.user_id, uw.wallet_id, uw.label, uw.notify_enabled, uw.threshold_usd,
		       uw.channel, uw.direction_filter, uw.cooldown_minutes, uw.last_notified_at,
		       uw.notes, uw.created_at,
		       u.email, u.telegram_chat_id
		FROM user_wallets uw
		JOIN users u ON u.id = uw.user_id
		WHERE uw.wallet_id = $1 AND uw.notify_enabled = TRUE
	`

	var trackers []*Tracker
	if err := r.db.SelectContext(ctx, &trackers, query, walletID); err != nil {
		return nil, fmt.Errorf("failed to list trackers: %w", err)
	}

	return trackers, nil
}

// UpdateLastNotifiedAt stamps a dispatched alert for cooldown accounting.
func (r *UserWalletRepository) UpdateLastNotifiedAt(ctx context.Context, id uuid.UUID, t time.Time) error {
	query := `UPDATE user_wallets SET last_notified_at = $2 WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, t); err != nil {
		return fmt.Errorf("failed to update last_notified_at: %w", err)
	}
	return nil
}
