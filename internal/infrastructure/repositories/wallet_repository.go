package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/whalewatch/whalewatch/internal/domain/entities"
	apperrors "github.com/whalewatch/whalewatch/internal/domain/errors"
)

const walletColumns = `id, network_id, address, is_whale, metadata, balance, balance_usd, last_synced_at, created_at, updated_at`

// WalletRepository manages tracked wallet persistence.
type WalletRepository struct {
	db *sqlx.DB
}

func NewWalletRepository(db *sqlx.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// FirstOrCreate returns the wallet for (network, address), creating it on the
// first watch request. The address is stored lower-cased; the upsert relies on
// the unique (network_id, address) constraint so concurrent first watches
// converge on one row.
func (r *WalletRepository) FirstOrCreate(ctx context.Context, networkID uuid.UUID, address string) (*entities.Wallet, error) {
	query := `
		INSERT INTO wallets (id, network_id, address, balance, balance_usd, created_at, updated_at)
		VALUES ($1, $2, $3, 0, 0, NOW(), NOW())
		ON CONFLICT (network_id, address) DO UPDATE SET updated_at = wallets.updated_at
		RETURNING ` + walletColumns

	var wallet entities.Wallet
	err := r.db.GetContext(ctx, &wallet, query, uuid.New(), networkID, entities.NormalizeAddress(address))
	if err != nil {
		return nil, fmt.Errorf("failed to first-or-create wallet: %w", err)
	}

	return &wallet, nil
}

// GetByID retrieves a wallet by ID.
func (r *WalletRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`

	var wallet entities.Wallet
	err := r.db.GetContext(ctx, &wallet, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("wallet %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	return &wallet, nil
}

// GetByNetworkAndAddress looks a wallet up by normalized address and network.
func (r *WalletRepository) GetByNetworkAndAddress(ctx context.Context, networkID uuid.UUID, address string) (*entities.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE network_id = $1 AND address = $2`

	var wallet entities.Wallet
	err := r.db.GetContext(ctx, &wallet, query, networkID, entities.NormalizeAddress(address))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("wallet %s on network %s: %w", address, networkID, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	return &wallet, nil
}

// GetBySlugAndAddress looks a wallet up by network slug and normalized address.
func (r *WalletRepository) GetBySlugAndAddress(ctx context.Context, slug entities.NetworkSlug, address string) (*entities.Wallet, error) {
	query := `
		SELECT w.id, w.network_id, w.address, w.is_whale, w.metadata, w.balance, w.balance_usd,
		       w.last_synced_at, w.created_at, w.updated_at
		FROM wallets w
		JOIN networks n ON n.id = w.network_id
		WHERE n.slug = $1 AND w.address = $2
	`

	var wallet entities.Wallet
	err := r.db.GetContext(ctx, &wallet, query, slug, entities.NormalizeAddress(address))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("wallet %s on %s: %w", address, slug, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	return &wallet, nil
}

// UpdateBalance persists a freshly synced native balance and its USD value.
func (r *WalletRepository) UpdateBalance(ctx context.Context, id uuid.UUID, balance, balanceUSD decimal.Decimal) error {
	query := `
		UPDATE wallets
		SET balance = $2, balance_usd = $3, updated_at = NOW()
		WHERE id = $1
	`

	if _, err := r.db.ExecContext(ctx, query, id, balance, balanceUSD); err != nil {
		return fmt.Errorf("failed to update wallet balance: %w", err)
	}
	return nil
}

// UpdateLastSyncedAt records a successful sync.
func (r *WalletRepository) UpdateLastSyncedAt(ctx context.Context, id uuid.UUID, t time.Time) error {
	query := `UPDATE wallets SET last_synced_at = $2, updated_at = NOW() WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, t); err != nil {
		return fmt.Errorf("failed to update last_synced_at: %w", err)
	}
	return nil
}

// ListTracked lists wallets on active networks that at least one user tracks,
// for the periodic sync scheduler.
func (r *WalletRepository) ListTracked(ctx context.Context) ([]*entities.Wallet, error) {
	query := `
		SELECT DISTINCT w.id, w.network_id, w.address, w.is_whale, w.metadata, w.balance,
		       w.balance_usd, w.last_synced_at, w.created_at, w.updated_at
		FROM wallets w
		JOIN networks n ON n.id = w.network_id AND n.is_active = TRUE
		JOIN user_wallets uw ON uw.wallet_id = w.id
		ORDER BY w.last_synced_at ASC NULLS FIRST
	`

	var wallets []*entities.Wallet
	if err := r.db.SelectContext(ctx, &wallets, query); err != nil {
		return nil, fmt.Errorf("failed to list tracked wallets: %w", err)
	}

	return wallets, nil
}
