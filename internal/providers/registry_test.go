package providers

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
	"github.com/whalewatch/whalewatch/pkg/logger"
)

type stubProvider struct {
	key      string
	networks map[entities.NetworkSlug]bool
}

func (s *stubProvider) Key() string                                      { return s.key }
func (s *stubProvider) SupportedNetworks() map[entities.NetworkSlug]bool { return s.networks }
func (s *stubProvider) SyncTransactions(context.Context, SyncTarget) (int, error) {
	return 0, nil
}
func (s *stubProvider) FetchTransactions(context.Context, SyncTarget, time.Time, time.Time) (int, error) {
	return 0, nil
}
func (s *stubProvider) SyncBalance(context.Context, SyncTarget) error { return nil }

type stubIntegrations struct {
	keys map[string]string
}

func (s *stubIntegrations) GetAPIKey(_ context.Context, _ uuid.UUID, providerKey string) (string, error) {
	if key, ok := s.keys[providerKey]; ok {
		return key, nil
	}
	return "", apperrors.ErrNotFound
}

func testLogger() *logger.Logger { return logger.NewLogger(zap.NewNop()) }

func TestResolveAll_FiltersUnsupportedNetworks(t *testing.T) {
	evm := &stubProvider{key: "evm", networks: map[entities.NetworkSlug]bool{entities.NetworkEthereum: true}}
	utxo := &stubProvider{key: "utxo", networks: map[entities.NetworkSlug]bool{entities.NetworkBitcoin: true}}

	creds := NewCredentialResolver(nil, map[string]string{"evm": "k1", "utxo": "k2"}, testLogger())
	registry := NewRegistry([]CatalogEntry{
		{Provider: evm, KeyRequired: true},
		{Provider: utxo, KeyRequired: true},
	}, creds, testLogger())

	resolved := registry.ResolveAll(context.Background(), entities.NetworkBitcoin, nil)
	require.Len(t, resolved, 1)
	assert.Equal(t, "utxo", resolved[0].Provider.Key())
}

func TestResolveAll_DropsKeyRequiredWithoutCredential(t *testing.T) {
	keyed := &stubProvider{key: "keyed", networks: map[entities.NetworkSlug]bool{entities.NetworkEthereum: true}}
	open := &stubProvider{key: "open", networks: map[entities.NetworkSlug]bool{entities.NetworkEthereum: true}}

	creds := NewCredentialResolver(nil, map[string]string{}, testLogger())
	registry := NewRegistry([]CatalogEntry{
		{Provider: keyed, KeyRequired: true},
		{Provider: open, KeyRequired: false},
	}, creds, testLogger())

	resolved := registry.ResolveAll(context.Background(), entities.NetworkEthereum, nil)
	require.Len(t, resolved, 1)
	assert.Equal(t, "open", resolved[0].Provider.Key())
	assert.Empty(t, resolved[0].APIKey)
}

func TestResolveAll_PreservesCatalogOrder(t *testing.T) {
	first := &stubProvider{key: "first", networks: map[entities.NetworkSlug]bool{entities.NetworkEthereum: true}}
	second := &stubProvider{key: "second", networks: map[entities.NetworkSlug]bool{entities.NetworkEthereum: true}}

	creds := NewCredentialResolver(nil, map[string]string{"first": "a", "second": "b"}, testLogger())
	registry := NewRegistry([]CatalogEntry{
		{Provider: first, KeyRequired: true},
		{Provider: second, KeyRequired: true},
	}, creds, testLogger())

	resolved := registry.ResolveAll(context.Background(), entities.NetworkEthereum, nil)
	require.Len(t, resolved, 2)
	assert.Equal(t, "first", resolved[0].Provider.Key())
	assert.Equal(t, "second", resolved[1].Provider.Key())
}

func TestResolve_NoProviders(t *testing.T) {
	registry := NewRegistry(nil, NewCredentialResolver(nil, nil, testLogger()), testLogger())

	_, err := registry.Resolve(context.Background(), entities.NetworkSolana, nil)
	assert.True(t, errors.Is(err, apperrors.ErrNoProviders))
}

func TestCredentialResolver_UserIntegrationWins(t *testing.T) {
	userID := uuid.New()
	integrations := &stubIntegrations{keys: map[string]string{"vendor": "user-key"}}
	creds := NewCredentialResolver(integrations, map[string]string{"vendor": "env-key"}, testLogger())

	key, found := creds.Resolve(context.Background(), "vendor", &userID)
	require.True(t, found)
	assert.Equal(t, "user-key", key)
}

func TestCredentialResolver_FallsBackToEnv(t *testing.T) {
	userID := uuid.New()
	integrations := &stubIntegrations{keys: map[string]string{}}
	creds := NewCredentialResolver(integrations, map[string]string{"vendor": "env-key"}, testLogger())

	key, found := creds.Resolve(context.Background(), "vendor", &userID)
	require.True(t, found)
	assert.Equal(t, "env-key", key)

	key, found = creds.Resolve(context.Background(), "vendor", nil)
	require.True(t, found)
	assert.Equal(t, "env-key", key)
}

func TestCredentialResolver_NotFound(t *testing.T) {
	creds := NewCredentialResolver(nil, map[string]string{}, testLogger())

	_, found := creds.Resolve(context.Background(), "vendor", nil)
	assert.False(t, found)
}
