package chain

import (
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// Both the base asset and launch tokens use 18 decimals.
const tokenDecimals = 18

// FromWei converts an 18-decimal integer amount to a float.
func FromWei(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := decimal.NewFromBigInt(v, -tokenDecimals).Float64()
	return f
}

// ToWei converts a float amount to an 18-decimal integer from the shortest
// decimal form of the float, rounding any fraction of a unit down. Negative
// input yields zero.
//
// A float carries about 16 significant digits, so an amount obtained from
// FromWei does not always convert back to the same integer and may exceed
// it by a few units. Code spending a held balance caps the result at the
// raw balance.
func ToWei(amount float64) *big.Int {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return new(big.Int)
	}
	return decimal.NewFromFloat(amount).Shift(tokenDecimals).Truncate(0).BigInt()
}

// PriceFromReserves is virtualBase / tokenReserve in base-asset per token.
// A missing or zero token reserve has no defined price and yields 0.
func PriceFromReserves(virtualBase, tokenReserve *big.Int) float64 {
	if virtualBase == nil || tokenReserve == nil || tokenReserve.Sign() <= 0 || virtualBase.Sign() < 0 {
		return 0
	}
	p, _ := decimal.NewFromBigInt(virtualBase, 0).
		DivRound(decimal.NewFromBigInt(tokenReserve, 0), 18).
		Float64()
	return p
}
