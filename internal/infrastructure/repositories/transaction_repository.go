package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/whalewatch/whalewatch/internal/domain/entities"
)

// TransactionRepository manages canonical transaction persistence. The hash
// column carries a global unique constraint; every write goes through the
// upsert so concurrent tasks and queue redeliveries stay idempotent.
type TransactionRepository struct {
	db *sqlx.DB
}

func NewTransactionRepository(db *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// UpsertByHash inserts the transaction or, when the hash already exists,
// fills in previously-unknown fields. The most recently supplied non-null
// value wins for fee, block_number, and mined_at; addresses and amount are
// overwritten so a confirmed record replaces a provisional one. Returns the
// stored row and whether this call inserted it.
func (r *TransactionRepository) UpsertByHash(ctx context.Context, tx *entities.Transaction) (*entities.Transaction, bool, error) {
	query := `
		INSERT INTO transactions (
			id, wallet_id, hash, from_address, to_address, amount, fee,
			block_number, mined_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW()
		)
		ON CONFLICT (hash) DO UPDATE SET
			from_address = EXCLUDED.from_address,
			to_address   = EXCLUDED.to_address,
			amount       = EXCLUDED.amount,
			fee          = COALESCE(EXCLUDED.fee, transactions.fee),
			block_number = COALESCE(EXCLUDED.block_number, transactions.block_number),
			mined_at     = COALESCE(EXCLUDED.mined_at, transactions.mined_at),
			updated_at   = NOW()
		RETURNING id, wallet_id, hash, from_address, to_address, amount, fee,
		          block_number, mined_at, created_at, updated_at,
		          (xmax = 0) AS inserted
	`

	id := tx.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	var row struct {
		entities.Transaction
		Inserted bool `db:"inserted"`
	}
	err := r.db.GetContext(ctx, &row, query,
		id,
		tx.WalletID,
		tx.Hash,
		tx.FromAddress,
		tx.ToAddress,
		tx.Amount,
		tx.Fee,
		tx.BlockNumber,
		tx.MinedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert transaction %s: %w", tx.Hash, err)
	}

	return &row.Transaction, row.Inserted, nil
}

// ListByWallet returns a page of transactions for a wallet, newest first.
func (r *TransactionRepository) ListByWallet(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]*entities.Transaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT id, wallet_id, hash, from_address, to_address, amount, fee,
		       block_number, mined_at, created_at, updated_at
		FROM transactions
		WHERE wallet_id = $1
		ORDER BY mined_at DESC NULLS FIRST, created_at DESC
		LIMIT $2 OFFSET $3
	`

	var txs []*entities.Transaction
	if err := r.db.SelectContext(ctx, &txs, query, walletID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	return txs, nil
}
