package alerts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/whalewatch/whalewatch/internal/domain/entities"
	"github.com/whalewatch/whalewatch/internal/infrastructure/repositories"
	"github.com/whalewatch/whalewatch/pkg/logger"
)

type fakeTrackers struct {
	trackers []*repositories.Tracker
	stamped  []uuid.UUID
}

func (f *fakeTrackers) ListTrackers(context.Context, uuid.UUID) ([]*repositories.Tracker, error) {
	return f.trackers, nil
}

func (f *fakeTrackers) UpdateLastNotifiedAt(_ context.Context, id uuid.UUID, _ time.Time) error {
	f.stamped = append(f.stamped, id)
	return nil
}

type fakePrices struct {
	price decimal.Decimal
	err   error
}

func (f *fakePrices) GetUSDPriceForNetwork(context.Context, entities.NetworkSlug) (decimal.Decimal, error) {
	return f.price, f.err
}

type fakeEmail struct {
	sent int
	err  error
}

func (f *fakeEmail) SendAlertEmail(context.Context, string, string, string, string) error {
	f.sent++
	return f.err
}

type fakeMessenger struct {
	sent int
	err  error
}

func (f *fakeMessenger) SendAlertMessage(context.Context, int64, string) error {
	f.sent++
	return f.err
}

func testWallet() *entities.Wallet {
	return &entities.Wallet{ID: uuid.New(), Address: "0xwallet"}
}

func testNetwork() *entities.Network {
	return &entities.Network{Slug: entities.NetworkEthereum, CurrencySymbol: "ETH", ExplorerURL: "https://etherscan.io"}
}

func incomingTx(amount string) *entities.Transaction {
	return &entities.Transaction{
		ID:          uuid.New(),
		Hash:        "0xhash",
		FromAddress: "0xsender",
		ToAddress:   "0xwallet",
		Amount:      decimal.RequireFromString(amount),
	}
}

func tracker(threshold string, channel entities.AlertChannel, filter entities.DirectionFilter) *repositories.Tracker {
	chatID := int64(12345)
	return &repositories.Tracker{
		UserWallet: entities.UserWallet{
			ID:              uuid.New(),
			UserID:          uuid.New(),
			ThresholdUSD:    decimal.RequireFromString(threshold),
			Channel:         channel,
			DirectionFilter: filter,
		},
		Email:          "user@example.com",
		TelegramChatID: &chatID,
	}
}

func newTestNotifier(trackers *fakeTrackers, prices *fakePrices, email *fakeEmail, messenger *fakeMessenger) *Notifier {
	log := logger.NewLogger(zap.NewNop())
	var e EmailSender
	var m MessengerSender
	if email != nil {
		e = email
	}
	if messenger != nil {
		m = messenger
	}
	return NewNotifier(trackers, prices, e, m, log)
}

func TestNotify_BelowThresholdSkips(t *testing.T) {
	// 0.25 ETH * $1999.96 = $499.99, just under the $500 threshold.
	trackers := &fakeTrackers{trackers: []*repositories.Tracker{tracker("500", entities.ChannelEmail, entities.FilterAll)}}
	prices := &fakePrices{price: decimal.RequireFromString("1999.96")}
	email := &fakeEmail{}

	n := newTestNotifier(trackers, prices, email, nil)
	require.NoError(t, n.Notify(context.Background(), testWallet(), testNetwork(), incomingTx("0.25")))

	assert.Zero(t, email.sent)
	assert.Empty(t, trackers.stamped, "a skipped alert never stamps last_notified_at")
}

func TestNotify_AtThresholdDispatches(t *testing.T) {
	trackers := &fakeTrackers{trackers: []*repositories.Tracker{tracker("500", entities.ChannelEmail, entities.FilterAll)}}
	prices := &fakePrices{price: decimal.RequireFromString("2000")}
	email := &fakeEmail{}

	n := newTestNotifier(trackers, prices, email, nil)
	require.NoError(t, n.Notify(context.Background(), testWallet(), testNetwork(), incomingTx("0.25")))

	assert.Equal(t, 1, email.sent)
	assert.Len(t, trackers.stamped, 1)
}

func TestNotify_CooldownSuppresses(t *testing.T) {
	tr := tracker("100", entities.ChannelEmail, entities.FilterAll)
	tr.CooldownMinutes = 30
	last := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tr.LastNotifiedAt = &last

	trackers := &fakeTrackers{trackers: []*repositories.Tracker{tr}}
	prices := &fakePrices{price: decimal.RequireFromString("2000")}
	email := &fakeEmail{}

	n := newTestNotifier(trackers, prices, email, nil)
	n.now = func() time.Time { return last.Add(29 * time.Minute) }

	require.NoError(t, n.Notify(context.Background(), testWallet(), testNetwork(), incomingTx("1")))
	assert.Zero(t, email.sent)
	assert.Empty(t, trackers.stamped)

	// One minute later the cooldown has elapsed.
	n.now = func() time.Time { return last.Add(30 * time.Minute) }
	require.NoError(t, n.Notify(context.Background(), testWallet(), testNetwork(), incomingTx("1")))
	assert.Equal(t, 1, email.sent)
	assert.Len(t, trackers.stamped, 1)
}

func TestNotify_ChannelFailuresIndependent(t *testing.T) {
	tr := tracker("100", entities.ChannelBoth, entities.FilterAll)
	trackers := &fakeTrackers{trackers: []*repositories.Tracker{tr}}
	prices := &fakePrices{price: decimal.RequireFromString("2000")}
	email := &fakeEmail{err: errors.New("sendgrid down")}
	messenger := &fakeMessenger{}

	n := newTestNotifier(trackers, prices, email, messenger)
	require.NoError(t, n.Notify(context.Background(), testWallet(), testNetwork(), incomingTx("1")))

	assert.Equal(t, 1, email.sent)
	assert.Equal(t, 1, messenger.sent, "email failure must not block the messenger attempt")
	assert.Len(t, trackers.stamped, 1, "one successful delivery still stamps the dispatch")
}

func TestNotify_AllChannelsFailNoStamp(t *testing.T) {
	tr := tracker("100", entities.ChannelBoth, entities.FilterAll)
	trackers := &fakeTrackers{trackers: []*repositories.Tracker{tr}}
	prices := &fakePrices{price: decimal.RequireFromString("2000")}
	email := &fakeEmail{err: errors.New("down")}
	messenger := &fakeMessenger{err: errors.New("down")}

	n := newTestNotifier(trackers, prices, email, messenger)
	require.NoError(t, n.Notify(context.Background(), testWallet(), testNetwork(), incomingTx("1")))

	assert.Empty(t, trackers.stamped)
}

func TestNotify_DirectionFilter(t *testing.T) {
	trackers := &fakeTrackers{trackers: []*repositories.Tracker{tracker("100", entities.ChannelEmail, entities.FilterOutgoing)}}
	prices := &fakePrices{price: decimal.RequireFromString("2000")}
	email := &fakeEmail{}

	n := newTestNotifier(trackers, prices, email, nil)
	require.NoError(t, n.Notify(context.Background(), testWallet(), testNetwork(), incomingTx("1")))
	assert.Zero(t, email.sent)

	outgoing := incomingTx("1")
	outgoing.FromAddress = "0xwallet"
	outgoing.ToAddress = "0xsomeoneelse"
	require.NoError(t, n.Notify(context.Background(), testWallet(), testNetwork(), outgoing))
	assert.Equal(t, 1, email.sent)
}

func TestNotify_SelfTransferOnlyPassesAll(t *testing.T) {
	self := incomingTx("1")
	self.FromAddress = "0xWALLET"
	self.ToAddress = "0xwallet"

	prices := &fakePrices{price: decimal.RequireFromString("2000")}

	for _, tc := range []struct {
		filter entities.DirectionFilter
		sent   int
	}{
		{entities.FilterIncoming, 0},
		{entities.FilterOutgoing, 0},
		{entities.FilterAll, 1},
	} {
		trackers := &fakeTrackers{trackers: []*repositories.Tracker{tracker("100", entities.ChannelEmail, tc.filter)}}
		email := &fakeEmail{}
		n := newTestNotifier(trackers, prices, email, nil)
		require.NoError(t, n.Notify(context.Background(), testWallet(), testNetwork(), self))
		assert.Equal(t, tc.sent, email.sent, "filter %s", tc.filter)
	}
}

func TestNotify_PriceUnavailableSkipsAll(t *testing.T) {
	trackers := &fakeTrackers{trackers: []*repositories.Tracker{
		tracker("100", entities.ChannelEmail, entities.FilterAll),
		tracker("0", entities.ChannelEmail, entities.FilterAll),
	}}
	prices := &fakePrices{err: errors.New("oracle unavailable")}
	email := &fakeEmail{}

	n := newTestNotifier(trackers, prices, email, nil)
	require.NoError(t, n.Notify(context.Background(), testWallet(), testNetwork(), incomingTx("1")))

	assert.Zero(t, email.sent, "no USD value means no threshold can be crossed")
	assert.Empty(t, trackers.stamped)
}

func TestNotify_NilSenderSkipsChannel(t *testing.T) {
	trackers := &fakeTrackers{trackers: []*repositories.Tracker{tracker("100", entities.ChannelMessenger, entities.FilterAll)}}
	prices := &fakePrices{price: decimal.RequireFromString("2000")}

	n := newTestNotifier(trackers, prices, nil, nil)
	require.NoError(t, n.Notify(context.Background(), testWallet(), testNetwork(), incomingTx("1")))
	assert.Empty(t, trackers.stamped)
}
