// Package pricemath converts between human-readable prices, the protocol's
// X96 square-root price encoding, and tick indices.
package pricemath

import (
	"errors"
	"math"
	"math/big"
)

// ErrInvalidPriceInput marks a price conversion called with a non-positive
// or non-finite input.
var ErrInvalidPriceInput = errors.New("invalid price input")

const tickBase = 1.0001

var q96 = new(big.Float).SetMantExp(big.NewFloat(1), 96)

// PriceToSqrtX96 converts a token1/token0 price into the X96 sqrt encoding,
// adjusting for the token decimal difference. The result is truncated to an
// integer.
func PriceToSqrtX96(price float64, decimals0, decimals1 uint8) (*big.Int, error) {
	if price <= 0 || math.IsInf(price, 0) || math.IsNaN(price) {
		return nil, ErrInvalidPriceInput
	}

	adjusted := price * math.Pow(10, float64(decimals1)-float64(decimals0))
	root := math.Sqrt(adjusted)
	if root <= 0 || math.IsInf(root, 0) || math.IsNaN(root) {
		return nil, ErrInvalidPriceInput
	}

	scaled := new(big.Float).Mul(big.NewFloat(root), q96)
	out, _ := scaled.Int(nil)
	return out, nil
}

// SqrtX96ToPrice is the inverse of PriceToSqrtX96: it squares the
// sqrtPriceX96/2^96 ratio and removes the decimal adjustment.
func SqrtX96ToPrice(sqrtPriceX96 *big.Int, decimals0, decimals1 uint8) (float64, error) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return 0, ErrInvalidPriceInput
	}

	ratio := new(big.Float).Quo(new(big.Float).SetInt(sqrtPriceX96), q96)
	root, _ := ratio.Float64()
	price := root * root * math.Pow(10, float64(decimals0)-float64(decimals1))
	if price <= 0 || math.IsInf(price, 0) || math.IsNaN(price) {
		return 0, ErrInvalidPriceInput
	}
	return price, nil
}

// PriceFromTick computes the decimal-adjusted price at a tick index. Used as
// a fallback when the sqrt-price-derived price is non-finite or zero.
func PriceFromTick(tick int32, decimals0, decimals1 uint8) float64 {
	return math.Pow(tickBase, float64(tick)) * math.Pow(10, float64(decimals0)-float64(decimals1))
}
