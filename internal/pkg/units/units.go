// Package units converts on-chain base-unit amounts (satoshi, wei, lamport,
// sun) into native-unit decimals. Conversion is exact integer parsing followed
// by a power-of-ten scale; no floating point is involved at any step.
package units

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/whalewatch/whalewatch/internal/domain/entities"
	apperrors "github.com/whalewatch/whalewatch/internal/domain/errors"
)

// Fractional digits carried by every amount, fee, and balance in the model.
const Precision = 18

// decimalsBySlug maps a network to the base-10 exponent of its base-unit
// divisor (10^8 satoshi per BTC, 10^18 wei per ETH, and so on).
var decimalsBySlug = map[entities.NetworkSlug]int32{
	entities.NetworkBitcoin:  8,
	entities.NetworkLitecoin: 8,
	entities.NetworkDogecoin: 8,
	entities.NetworkEthereum: 18,
	entities.NetworkPolygon:  18,
	entities.NetworkBSC:      18,
	entities.NetworkSolana:   9,
	entities.NetworkTron:     6,
}

// Decimals returns the base-unit exponent for a network.
func Decimals(slug entities.NetworkSlug) (int32, bool) {
	d, ok := decimalsBySlug[slug]
	return d, ok
}

// FromBaseUnits converts a base-unit amount given as a decimal integer string
// into native units. Non-integer input (a fraction or scientific notation)
// would require rounding and is rejected with ErrPrecisionLoss.
func FromBaseUnits(slug entities.NetworkSlug, baseUnits string) (decimal.Decimal, error) {
	exp, ok := decimalsBySlug[slug]
	if !ok {
		return decimal.Zero, fmt.Errorf("unknown network slug %q", slug)
	}

	s := strings.TrimSpace(baseUnits)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty base-unit amount", apperrors.ErrPrecisionLoss)
	}
	if strings.ContainsAny(s, ".eE") {
		return decimal.Zero, fmt.Errorf("%w: base-unit amount %q is not an integer", apperrors.ErrPrecisionLoss, baseUnits)
	}

	bi, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: base-unit amount %q is not an integer", apperrors.ErrPrecisionLoss, baseUnits)
	}

	return decimal.NewFromBigInt(bi, -exp), nil
}

// FromBaseUnitsInt converts an int64 base-unit amount into native units.
func FromBaseUnitsInt(slug entities.NetworkSlug, baseUnits int64) (decimal.Decimal, error) {
	exp, ok := decimalsBySlug[slug]
	if !ok {
		return decimal.Zero, fmt.Errorf("unknown network slug %q", slug)
	}
	return decimal.New(baseUnits, -exp), nil
}

// FromHexBaseUnits converts a 0x-prefixed hexadecimal base-unit amount
// (Alchemy raw values) into native units.
func FromHexBaseUnits(slug entities.NetworkSlug, hexUnits string) (decimal.Decimal, error) {
	exp, ok := decimalsBySlug[slug]
	if !ok {
		return decimal.Zero, fmt.Errorf("unknown network slug %q", slug)
	}

	s := strings.TrimPrefix(strings.TrimSpace(hexUnits), "0x")
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty hex amount", apperrors.ErrPrecisionLoss)
	}
	bi, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: hex amount %q is not an integer", apperrors.ErrPrecisionLoss, hexUnits)
	}

	return decimal.NewFromBigInt(bi, -exp), nil
}

// FeeFromGas multiplies gas price by gas used (both base-unit integers) and
// scales the product to native units. Used for account chains whose vendors
// report the two factors separately.
func FeeFromGas(slug entities.NetworkSlug, gasPrice, gasUsed string) (decimal.Decimal, error) {
	exp, ok := decimalsBySlug[slug]
	if !ok {
		return decimal.Zero, fmt.Errorf("unknown network slug %q", slug)
	}

	price, pok := new(big.Int).SetString(strings.TrimSpace(gasPrice), 10)
	used, uok := new(big.Int).SetString(strings.TrimSpace(gasUsed), 10)
	if !pok || !uok {
		return decimal.Zero, fmt.Errorf("%w: gas values %q x %q are not integers", apperrors.ErrPrecisionLoss, gasPrice, gasUsed)
	}

	return decimal.NewFromBigInt(new(big.Int).Mul(price, used), -exp), nil
}

// USDValue multiplies a native amount by a USD price and rounds the result to
// the model's 18 fractional digits.
func USDValue(amount, price decimal.Decimal) decimal.Decimal {
	return amount.Mul(price).Round(Precision)
}
