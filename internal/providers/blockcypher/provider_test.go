package blockcypher

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/whalewatch/whalewatch/internal/domain/entities"
	"github.com/whalewatch/whalewatch/internal/providers"
	"github.com/whalewatch/whalewatch/pkg/logger"
)

func testTarget() providers.SyncTarget {
	return providers.SyncTarget{
		Wallet: &entities.Wallet{
			ID:      uuid.New(),
			Address: "1testwalletaddr",
		},
		Network: &entities.Network{Slug: entities.NetworkBitcoin},
	}
}

func testProvider() *Provider {
	return New(nil, "https://api.blockcypher.com/v1", providers.Deps{}, logger.NewLogger(zap.NewNop()))
}

func TestNormalize_OutgoingNetChange(t *testing.T) {
	// The wallet spends a 200000 sat input and gets 49000 back as change:
	// net = 49000 - 200000 = -151000, fee = 1000, so 150000 sat went to the
	// counterpart (0.0015 BTC) and 0.00001 BTC to miners.
	confirmed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	raw := txPayload{
		Hash:        "deadbeef01",
		Fees:        1000,
		BlockHeight: 840001,
		Confirmed:   &confirmed,
		Inputs: []txInput{
			{Addresses: []string{"1TESTWALLETADDR"}, OutputValue: 200000},
		},
		Outputs: []txOutput{
			{Addresses: []string{"1counterpartaddr"}, Value: 150000},
			{Addresses: []string{"1testwalletaddr"}, Value: 49000},
		},
	}

	ct, err := testProvider().normalize(testTarget(), raw)
	require.NoError(t, err)
	require.NotNil(t, ct)

	assert.Equal(t, "1testwalletaddr", ct.FromAddress)
	assert.Equal(t, "1counterpartaddr", ct.ToAddress)
	assert.Equal(t, "0.0015", ct.Amount.String())
	require.NotNil(t, ct.Fee)
	assert.Equal(t, "0.00001", ct.Fee.String())
	require.NotNil(t, ct.BlockNumber)
	assert.Equal(t, int64(840001), *ct.BlockNumber)
	require.NotNil(t, ct.MinedAt)
	assert.Equal(t, confirmed, *ct.MinedAt)
}

func TestNormalize_IncomingSingleCounterpart(t *testing.T) {
	raw := txPayload{
		Hash: "deadbeef02",
		Fees: 500,
		Inputs: []txInput{
			{Addresses: []string{"1senderaddr"}, OutputValue: 300000},
		},
		Outputs: []txOutput{
			{Addresses: []string{"1testwalletaddr"}, Value: 250000},
			{Addresses: []string{"1senderaddr"}, Value: 49500},
		},
	}

	ct, err := testProvider().normalize(testTarget(), raw)
	require.NoError(t, err)

	// Incoming: gross amount received, fee recorded but never subtracted.
	assert.Equal(t, "1senderaddr", ct.FromAddress)
	assert.Equal(t, "1testwalletaddr", ct.ToAddress)
	assert.Equal(t, "0.0025", ct.Amount.String())
	require.NotNil(t, ct.Fee)
	assert.Equal(t, "0.000005", ct.Fee.String())
}

func TestNormalize_MultipleCounterpartsCollapse(t *testing.T) {
	raw := txPayload{
		Hash: "deadbeef03",
		Fees: 1000,
		Inputs: []txInput{
			{Addresses: []string{"1senderone"}, OutputValue: 100000},
			{Addresses: []string{"1sendertwo"}, OutputValue: 100000},
		},
		Outputs: []txOutput{
			{Addresses: []string{"1testwalletaddr"}, Value: 199000},
		},
	}

	ct, err := testProvider().normalize(testTarget(), raw)
	require.NoError(t, err)

	assert.Equal(t, entities.ExternalCounterparty, ct.FromAddress)
	assert.Equal(t, "1testwalletaddr", ct.ToAddress)
}

func TestNormalize_OutgoingNeverNegative(t *testing.T) {
	// Degenerate case: the fee exceeds the net spend. The amount clamps to
	// zero instead of going negative.
	raw := txPayload{
		Hash: "deadbeef04",
		Fees: 5000,
		Inputs: []txInput{
			{Addresses: []string{"1testwalletaddr"}, OutputValue: 3000},
		},
		Outputs: []txOutput{},
	}

	ct, err := testProvider().normalize(testTarget(), raw)
	require.NoError(t, err)
	assert.False(t, ct.Amount.IsNegative())
	assert.True(t, ct.Amount.IsZero())
}

func TestNormalize_MissingHash(t *testing.T) {
	_, err := testProvider().normalize(testTarget(), txPayload{})
	assert.Error(t, err)
}

func TestSupportedNetworks(t *testing.T) {
	nets := testProvider().SupportedNetworks()
	assert.True(t, nets[entities.NetworkBitcoin])
	assert.True(t, nets[entities.NetworkLitecoin])
	assert.True(t, nets[entities.NetworkDogecoin])
	assert.False(t, nets[entities.NetworkEthereum])
}
