// Package sync runs wallet history refreshes across the provider catalog
// with sequential first-success-wins fallback.
package sync

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/whalewatch/whalewatch/internal/domain/entities"
	apperrors "github.com/whalewatch/whalewatch/internal/domain/errors"
	"github.com/whalewatch/whalewatch/internal/providers"
	"github.com/whalewatch/whalewatch/pkg/logger"
)

// WalletSource loads sync targets and records completion.
type WalletSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Wallet, error)
	UpdateLastSyncedAt(ctx context.Context, id uuid.UUID, syncedAt time.Time) error
}

// NetworkSource resolves a wallet's network.
type NetworkSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Network, error)
}

// Orchestrator fans a sync request out over the resolved provider list in
// priority order. The first provider that returns without error wins, even
// when it found zero transactions: an empty history is a valid answer, not a
// reason to fall through to a lower-priority vendor.
type Orchestrator struct {
	registry *providers.Registry
	wallets  WalletSource
	networks NetworkSource
	logger   *logger.Logger
}

func NewOrchestrator(registry *providers.Registry, wallets WalletSource, networks NetworkSource, logger *logger.Logger) *Orchestrator {
	return &Orchestrator{registry: registry, wallets: wallets, networks: networks, logger: logger}
}

// SyncWallet refreshes the recent history and balance of one wallet.
// Provider exhaustion is logged and swallowed: a failed sync leaves existing
// data intact and the scheduler retries later.
func (o *Orchestrator) SyncWallet(ctx context.Context, walletID uuid.UUID, userID *uuid.UUID) error {
	return o.run(ctx, walletID, userID, func(ctx context.Context, p providers.HistoryProvider, target providers.SyncTarget) (int, error) {
		return p.SyncTransactions(ctx, target)
	})
}

// FetchRange backfills history for [from, to] through the same fallback
// sequence as SyncWallet.
func (o *Orchestrator) FetchRange(ctx context.Context, walletID uuid.UUID, userID *uuid.UUID, from, to time.Time) error {
	return o.run(ctx, walletID, userID, func(ctx context.Context, p providers.HistoryProvider, target providers.SyncTarget) (int, error) {
		return p.FetchTransactions(ctx, target, from, to)
	})
}

type attempt func(ctx context.Context, p providers.HistoryProvider, target providers.SyncTarget) (int, error)

func (o *Orchestrator) run(ctx context.Context, walletID uuid.UUID, userID *uuid.UUID, fn attempt) error {
	wallet, err := o.wallets.GetByID(ctx, walletID)
	if err != nil {
		return err
	}
	network, err := o.networks.GetByID(ctx, wallet.NetworkID)
	if err != nil {
		return err
	}

	resolved := o.registry.ResolveAll(ctx, network.Slug, userID)
	if len(resolved) == 0 {
		o.logger.Error("no providers available for wallet sync",
			"wallet", wallet.Address,
			"network", network.Slug)
		return nil
	}

	var lastErr error
	for _, candidate := range resolved {
		target := providers.SyncTarget{Wallet: wallet, Network: network, APIKey: candidate.APIKey}

		count, err := fn(ctx, candidate.Provider, target)
		if err != nil {
			if !apperrors.IsProviderFailure(err) {
				// Persistence failures and cancellations are not vendor
				// trouble; another provider would hit the same wall.
				return err
			}
			lastErr = err
			o.logger.Warn("provider attempt failed, trying next",
				"provider", candidate.Provider.Key(),
				"wallet", wallet.Address,
				"network", network.Slug,
				"error", err)
			continue
		}

		if berr := candidate.Provider.SyncBalance(ctx, target); berr != nil {
			o.logger.Warn("balance sync failed",
				"provider", candidate.Provider.Key(),
				"wallet", wallet.Address,
				"error", berr)
		}

		if serr := o.wallets.UpdateLastSyncedAt(ctx, wallet.ID, time.Now().UTC()); serr != nil {
			return serr
		}

		o.logger.Info("wallet synced",
			"provider", candidate.Provider.Key(),
			"wallet", wallet.Address,
			"network", network.Slug,
			"transactions", count)
		return nil
	}

	o.logger.Error("all providers failed for wallet sync",
		"wallet", wallet.Address,
		"network", network.Slug,
		"error", lastErr)
	return nil
}
