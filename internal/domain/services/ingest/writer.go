// Package ingest persists normalized transactions. Both the history
// providers and the webhook processor funnel their canonical records through
// the same writer so upsert-by-hash semantics hold regardless of origin.
package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/whalewatch/whalewatch/internal/domain/entities"
	"github.com/whalewatch/whalewatch/internal/infrastructure/repositories"
	"github.com/whalewatch/whalewatch/pkg/logger"
)

// Writer converts canonical records into transaction rows.
type Writer struct {
	txRepo *repositories.TransactionRepository
	logger *logger.Logger
}

func NewWriter(txRepo *repositories.TransactionRepository, logger *logger.Logger) *Writer {
	return &Writer{txRepo: txRepo, logger: logger}
}

// Write upserts one canonical transaction for the owning wallet. Returns
// whether the row was newly inserted (as opposed to filled in).
func (w *Writer) Write(ctx context.Context, walletID uuid.UUID, ct *entities.CanonicalTransaction) (bool, error) {
	if ct.Hash == "" {
		return false, fmt.Errorf("canonical transaction has no hash")
	}
	if ct.Amount.IsNegative() {
		// Direction is carried by addresses, never by sign.
		ct.Amount = ct.Amount.Abs()
	}

	tx := &entities.Transaction{
		WalletID:    walletID,
		Hash:        ct.Hash,
		FromAddress: normalizeCounterparty(ct.FromAddress),
		ToAddress:   normalizeCounterparty(ct.ToAddress),
		Amount:      ct.Amount,
		Fee:         ct.Fee,
		BlockNumber: ct.BlockNumber,
		MinedAt:     ct.MinedAt,
	}

	stored, inserted, err := w.txRepo.UpsertByHash(ctx, tx)
	if err != nil {
		return false, err
	}

	w.logger.Debug("transaction written",
		"hash", stored.Hash,
		"wallet_id", walletID.String(),
		"inserted", inserted)

	return inserted, nil
}

// normalizeCounterparty lower-cases real addresses but preserves the literal
// aggregate placeholder used by UTXO vendors.
func normalizeCounterparty(addr string) string {
	if addr == entities.ExternalCounterparty {
		return addr
	}
	return entities.NormalizeAddress(addr)
}
