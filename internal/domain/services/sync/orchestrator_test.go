package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/whalewatch/whalewatch/internal/domain/entities"
	apperrors "github.com/whalewatch/whalewatch/internal/domain/errors"
	"github.com/whalewatch/whalewatch/internal/providers"
	"github.com/whalewatch/whalewatch/pkg/logger"
)

func vendorDown() error {
	return apperrors.NewTransportError("GET", "https://vendor.invalid", 503, nil)
}

type fakeProvider struct {
	key       string
	networks  map[entities.NetworkSlug]bool
	syncErr   error
	syncCount int
	calls     int
	balCalls  int
}

func (f *fakeProvider) Key() string                                      { return f.key }
func (f *fakeProvider) SupportedNetworks() map[entities.NetworkSlug]bool { return f.networks }

func (f *fakeProvider) SyncTransactions(context.Context, providers.SyncTarget) (int, error) {
	f.calls++
	return f.syncCount, f.syncErr
}

func (f *fakeProvider) FetchTransactions(context.Context, providers.SyncTarget, time.Time, time.Time) (int, error) {
	f.calls++
	return f.syncCount, f.syncErr
}

func (f *fakeProvider) SyncBalance(context.Context, providers.SyncTarget) error {
	f.balCalls++
	return nil
}

type fakeWallets struct {
	wallet   *entities.Wallet
	syncedAt *time.Time
}

func (f *fakeWallets) GetByID(context.Context, uuid.UUID) (*entities.Wallet, error) {
	return f.wallet, nil
}

func (f *fakeWallets) UpdateLastSyncedAt(_ context.Context, _ uuid.UUID, t time.Time) error {
	f.syncedAt = &t
	return nil
}

type fakeNetworks struct {
	network *entities.Network
}

func (f *fakeNetworks) GetByID(context.Context, uuid.UUID) (*entities.Network, error) {
	return f.network, nil
}

func ethNetworks(keys ...string) []*fakeProvider {
	out := make([]*fakeProvider, 0, len(keys))
	for _, key := range keys {
		out = append(out, &fakeProvider{
			key:      key,
			networks: map[entities.NetworkSlug]bool{entities.NetworkEthereum: true},
		})
	}
	return out
}

func newTestOrchestrator(t *testing.T, provs []*fakeProvider) (*Orchestrator, *fakeWallets) {
	t.Helper()

	log := logger.NewLogger(zap.NewNop())

	catalog := make([]providers.CatalogEntry, 0, len(provs))
	fallback := map[string]string{}
	for _, p := range provs {
		catalog = append(catalog, providers.CatalogEntry{Provider: p, KeyRequired: false})
		fallback[p.key] = "key-" + p.key
	}

	registry := providers.NewRegistry(catalog, providers.NewCredentialResolver(nil, fallback, log), log)

	wallets := &fakeWallets{wallet: &entities.Wallet{
		ID:        uuid.New(),
		NetworkID: uuid.New(),
		Address:   "0xabc",
	}}
	networks := &fakeNetworks{network: &entities.Network{
		ID:   wallets.wallet.NetworkID,
		Slug: entities.NetworkEthereum,
	}}

	return NewOrchestrator(registry, wallets, networks, log), wallets
}

func TestSyncWallet_FirstSuccessWins(t *testing.T) {
	provs := ethNetworks("one", "two", "three")
	provs[0].syncErr = vendorDown()
	provs[1].syncCount = 5

	orch, wallets := newTestOrchestrator(t, provs)

	err := orch.SyncWallet(context.Background(), wallets.wallet.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, provs[0].calls)
	assert.Equal(t, 1, provs[1].calls)
	assert.Equal(t, 0, provs[2].calls, "lower-priority provider must not be invoked after a success")
	assert.NotNil(t, wallets.syncedAt)
}

func TestSyncWallet_ZeroResultsStillSuccess(t *testing.T) {
	provs := ethNetworks("one", "two")
	// provider one succeeds with zero transactions

	orch, wallets := newTestOrchestrator(t, provs)

	err := orch.SyncWallet(context.Background(), wallets.wallet.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, provs[0].calls)
	assert.Equal(t, 0, provs[1].calls, "an empty history is a valid answer, not a fallback trigger")
	assert.NotNil(t, wallets.syncedAt)
}

func TestSyncWallet_AllFailSwallowed(t *testing.T) {
	provs := ethNetworks("one", "two")
	provs[0].syncErr = vendorDown()
	provs[1].syncErr = apperrors.DataShapeError("two", "result")

	orch, wallets := newTestOrchestrator(t, provs)

	err := orch.SyncWallet(context.Background(), wallets.wallet.ID, nil)
	require.NoError(t, err, "provider exhaustion is logged, not raised")

	assert.Equal(t, 1, provs[0].calls)
	assert.Equal(t, 1, provs[1].calls)
	assert.Nil(t, wallets.syncedAt)
}

func TestSyncWallet_NoProvidersSwallowed(t *testing.T) {
	orch, wallets := newTestOrchestrator(t, nil)

	err := orch.SyncWallet(context.Background(), wallets.wallet.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, wallets.syncedAt)
}

func TestSyncWallet_BalanceSyncedWithWinner(t *testing.T) {
	provs := ethNetworks("one", "two")
	provs[0].syncErr = vendorDown()

	orch, wallets := newTestOrchestrator(t, provs)

	require.NoError(t, orch.SyncWallet(context.Background(), wallets.wallet.ID, nil))
	assert.Equal(t, 0, provs[0].balCalls)
	assert.Equal(t, 1, provs[1].balCalls)
}

func TestSyncWallet_NonProviderErrorAbortsFallback(t *testing.T) {
	// A persistence failure inside the first attempt is not vendor trouble:
	// the next provider would hit the same wall, so the error surfaces to
	// the job queue instead of burning the remaining providers.
	provs := ethNetworks("one", "two")
	dbErr := errors.New("insert transaction: connection reset")
	provs[0].syncErr = dbErr

	orch, wallets := newTestOrchestrator(t, provs)

	err := orch.SyncWallet(context.Background(), wallets.wallet.ID, nil)
	require.ErrorIs(t, err, dbErr)
	assert.Equal(t, 1, provs[0].calls)
	assert.Equal(t, 0, provs[1].calls)
	assert.Nil(t, wallets.syncedAt)
}

func TestFetchRange_UsesRangedFetch(t *testing.T) {
	provs := ethNetworks("one")
	provs[0].syncCount = 3

	orch, wallets := newTestOrchestrator(t, provs)

	from := time.Now().Add(-24 * time.Hour)
	to := time.Now()
	require.NoError(t, orch.FetchRange(context.Background(), wallets.wallet.ID, nil, from, to))
	assert.Equal(t, 1, provs[0].calls)
	assert.NotNil(t, wallets.syncedAt)
}
