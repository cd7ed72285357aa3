package units

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whalewatch/whalewatch/internal/domain/entities"
	apperrors "github.com/whalewatch/whalewatch/internal/domain/errors"
)

func TestFromBaseUnits_Wei(t *testing.T) {
	got, err := FromBaseUnits(entities.NetworkEthereum, "2500000000000000000")
	require.NoError(t, err)
	assert.Equal(t, "2.5", got.String())
}

func TestFromBaseUnits_LargeAmountExact(t *testing.T) {
	// Amounts beyond float64's 53-bit mantissa must survive unchanged.
	got, err := FromBaseUnits(entities.NetworkEthereum, "123456789012345678901234567")
	require.NoError(t, err)
	assert.Equal(t, "123456789.012345678901234567", got.String())
}

func TestFromBaseUnits_Satoshi(t *testing.T) {
	got, err := FromBaseUnits(entities.NetworkBitcoin, "149000")
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.RequireFromString("0.00149")))
}

func TestFromBaseUnits_RejectsNonInteger(t *testing.T) {
	for _, input := range []string{"1.5", "1e18", "2E9", ""} {
		_, err := FromBaseUnits(entities.NetworkEthereum, input)
		assert.True(t, errors.Is(err, apperrors.ErrPrecisionLoss), "input %q", input)
	}
}

func TestFromBaseUnits_UnknownNetwork(t *testing.T) {
	_, err := FromBaseUnits(entities.NetworkSlug("ripple"), "100")
	assert.Error(t, err)
}

func TestFromHexBaseUnits(t *testing.T) {
	// 0x2386f26fc10000 = 10^16 wei = 0.01 ETH
	got, err := FromHexBaseUnits(entities.NetworkEthereum, "0x2386f26fc10000")
	require.NoError(t, err)
	assert.Equal(t, "0.01", got.String())
}

func TestFeeFromGas(t *testing.T) {
	// 20 gwei * 21000 gas = 0.00042 ETH
	got, err := FeeFromGas(entities.NetworkEthereum, "20000000000", "21000")
	require.NoError(t, err)
	assert.Equal(t, "0.00042", got.String())
}

func TestFeeFromGas_RejectsGarbage(t *testing.T) {
	_, err := FeeFromGas(entities.NetworkEthereum, "abc", "21000")
	assert.True(t, errors.Is(err, apperrors.ErrPrecisionLoss))
}

func TestUSDValue(t *testing.T) {
	amount := decimal.RequireFromString("2.5")
	price := decimal.RequireFromString("3000.10")
	assert.Equal(t, "7500.25", USDValue(amount, price).String())
}

func TestDecimals(t *testing.T) {
	cases := map[entities.NetworkSlug]int32{
		entities.NetworkBitcoin:  8,
		entities.NetworkEthereum: 18,
		entities.NetworkSolana:   9,
		entities.NetworkTron:     6,
	}
	for slug, want := range cases {
		got, ok := Decimals(slug)
		require.True(t, ok, slug)
		assert.Equal(t, want, got, slug)
	}
}
