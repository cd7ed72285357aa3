// Package alerts evaluates newly ingested transactions against per-tracker
// notification preferences and dispatches threshold alerts.
package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/whalewatch/whalewatch/internal/domain/entities"
	"github.com/whalewatch/whalewatch/internal/infrastructure/repositories"
	"github.com/whalewatch/whalewatch/internal/pkg/units"
	"github.com/whalewatch/whalewatch/pkg/logger"
)

// EmailSender delivers alert emails.
type EmailSender interface {
	SendAlertEmail(ctx context.Context, to, subject, htmlContent, textContent string) error
}

// MessengerSender delivers alert messages to a chat.
type MessengerSender interface {
	SendAlertMessage(ctx context.Context, chatID int64, text string) error
}

// PriceSource quotes native assets in USD.
type PriceSource interface {
	GetUSDPriceForNetwork(ctx context.Context, slug entities.NetworkSlug) (decimal.Decimal, error)
}

// TrackerStore loads notification targets and stamps dispatches.
type TrackerStore interface {
	ListTrackers(ctx context.Context, walletID uuid.UUID) ([]*repositories.Tracker, error)
	UpdateLastNotifiedAt(ctx context.Context, id uuid.UUID, t time.Time) error
}

// Notifier fans one transaction out to the wallet's trackers. Each tracker is
// evaluated independently: direction filter, USD threshold, then cooldown.
type Notifier struct {
	trackers  TrackerStore
	prices    PriceSource
	email     EmailSender
	messenger MessengerSender
	logger    *logger.Logger
	now       func() time.Time
}

func NewNotifier(trackers TrackerStore, prices PriceSource, email EmailSender, messenger MessengerSender, logger *logger.Logger) *Notifier {
	return &Notifier{
		trackers:  trackers,
		prices:    prices,
		email:     email,
		messenger: messenger,
		logger:    logger,
		now:       time.Now,
	}
}

// Notify evaluates a newly inserted transaction for every tracker of the
// wallet. A failed or skipped dispatch for one tracker never affects the
// others, and channel failures within one tracker are independent too.
func (n *Notifier) Notify(ctx context.Context, wallet *entities.Wallet, network *entities.Network, tx *entities.Transaction) error {
	trackers, err := n.trackers.ListTrackers(ctx, wallet.ID)
	if err != nil {
		return fmt.Errorf("listing trackers for wallet %s: %w", wallet.ID, err)
	}
	if len(trackers) == 0 {
		return nil
	}

	direction := tx.Direction(wallet.Address)

	// A single price lookup serves every tracker of this transaction. When
	// the price is unavailable no USD value can be established, so no
	// threshold can be crossed.
	price, priceErr := n.prices.GetUSDPriceForNetwork(ctx, network.Slug)
	if priceErr != nil {
		n.logger.Warn("skipping threshold alerts, price unavailable",
			"network", network.Slug,
			"hash", tx.Hash,
			"error", priceErr)
		return nil
	}
	usdValue := units.USDValue(tx.Amount.Abs(), price)

	for _, tracker := range trackers {
		n.evaluate(ctx, tracker, wallet, network, tx, direction, usdValue)
	}

	return nil
}

func (n *Notifier) evaluate(ctx context.Context, tracker *repositories.Tracker, wallet *entities.Wallet, network *entities.Network, tx *entities.Transaction, direction entities.Direction, usdValue decimal.Decimal) {
	if !matchesFilter(tracker.DirectionFilter, direction) {
		return
	}
	if usdValue.LessThan(tracker.ThresholdUSD) {
		return
	}

	if tracker.CooldownMinutes > 0 && tracker.LastNotifiedAt != nil {
		cooldown := time.Duration(tracker.CooldownMinutes) * time.Minute
		if n.now().Sub(*tracker.LastNotifiedAt) < cooldown {
			n.logger.Debug("alert suppressed by cooldown",
				"user_id", tracker.UserID.String(),
				"wallet", wallet.Address,
				"hash", tx.Hash)
			return
		}
	}

	dispatched := n.dispatch(ctx, tracker, wallet, network, tx, direction, usdValue)
	if !dispatched {
		return
	}

	if err := n.trackers.UpdateLastNotifiedAt(ctx, tracker.UserWallet.ID, n.now().UTC()); err != nil {
		n.logger.Error("failed to stamp alert dispatch",
			"user_wallet_id", tracker.UserWallet.ID.String(),
			"error", err)
	}
}

// dispatch sends on the tracker's channel(s) and reports whether at least one
// delivery succeeded. With channel "both", an email failure does not block
// the messenger attempt and vice versa.
func (n *Notifier) dispatch(ctx context.Context, tracker *repositories.Tracker, wallet *entities.Wallet, network *entities.Network, tx *entities.Transaction, direction entities.Direction, usdValue decimal.Decimal) bool {
	wantEmail := tracker.Channel == entities.ChannelEmail || tracker.Channel == entities.ChannelBoth
	wantMessenger := tracker.Channel == entities.ChannelMessenger || tracker.Channel == entities.ChannelBoth

	delivered := false

	if wantEmail && n.email != nil {
		subject, html, text := buildEmailAlert(tracker, wallet, network, tx, direction, usdValue)
		if err := n.email.SendAlertEmail(ctx, tracker.Email, subject, html, text); err != nil {
			n.logger.Error("email alert delivery failed",
				"user_id", tracker.UserID.String(),
				"wallet", wallet.Address,
				"hash", tx.Hash,
				"error", err)
		} else {
			delivered = true
		}
	}

	if wantMessenger && n.messenger != nil {
		if tracker.TelegramChatID == nil {
			n.logger.Warn("messenger alert skipped, no chat id",
				"user_id", tracker.UserID.String())
		} else if err := n.messenger.SendAlertMessage(ctx, *tracker.TelegramChatID, buildMessengerAlert(tracker, wallet, network, tx, direction, usdValue)); err != nil {
			n.logger.Error("messenger alert delivery failed",
				"user_id", tracker.UserID.String(),
				"wallet", wallet.Address,
				"hash", tx.Hash,
				"error", err)
		} else {
			delivered = true
		}
	}

	return delivered
}

// matchesFilter decides whether a direction passes the tracker's filter.
// Self transfers only pass the "all" filter.
func matchesFilter(filter entities.DirectionFilter, direction entities.Direction) bool {
	switch filter {
	case entities.FilterIncoming:
		return direction == entities.DirectionIncoming
	case entities.FilterOutgoing:
		return direction == entities.DirectionOutgoing
	default:
		return true
	}
}
