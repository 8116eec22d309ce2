package plan

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// ContributionDecimals is the precision of native-coin contribution amounts (wei).
const ContributionDecimals = 18

// MaxDecimals bounds the token precision accepted by TokenAmount.
// ERC20 decimals() is a uint8, so anything above 255 cannot exist on chain.
const MaxDecimals = 255

// TokenAmount converts a contribution into the token's smallest unit.
//
//	raw = floor(contribution * rate * 10^decimals)
//
// The product is computed in arbitrary-precision decimal arithmetic and
// scaled before truncation, so small contributions with large decimals do
// not drift. Truncation rounds toward zero; a recipient is never allocated
// more than the exact product.
func TokenAmount(contribution, rate decimal.Decimal, decimals int32) (*big.Int, error) {
	if !rate.IsPositive() {
		return nil, fmt.Errorf("%w: rate must be positive, got %s", ErrInvalidInput, rate)
	}
	if decimals < 0 || decimals > MaxDecimals {
		return nil, fmt.Errorf("%w: decimals must be in [0, %d], got %d", ErrInvalidInput, MaxDecimals, decimals)
	}
	if contribution.IsNegative() {
		return nil, fmt.Errorf("%w: negative contribution %s", ErrInvalidInput, contribution)
	}

	return contribution.Mul(rate).Shift(decimals).BigInt(), nil
}

// FromRaw interprets raw as a fixed-point value with the given decimals.
func FromRaw(raw *big.Int, decimals int32) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -decimals)
}

// FormatUnits renders raw with exactly decimals fractional digits.
func FormatUnits(raw *big.Int, decimals int32) string {
	return FromRaw(raw, decimals).StringFixed(decimals)
}

// ParseRate parses a human-entered exchange rate and rejects non-positive values.
func ParseRate(s string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: rate %q: %w", ErrInvalidInput, s, err)
	}
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: rate must be positive, got %s", ErrInvalidInput, rate)
	}
	return rate, nil
}
