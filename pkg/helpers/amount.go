// Package helpers provides common utility functions used across the codebase.
package helpers

import (
	"math/big"
)

// ToDecimal converts a raw integer token amount to its decimal value given the
// mint's decimal places, i.e. amount * 10^(-decimals). Used by the marketplace
// decoder to turn parsed SPL transfer amounts into the floats that make up an
// exchange's price, volume, and fee.
func ToDecimal(amount uint64, decimals uint8) float64 {
	if decimals == 0 {
		return float64(amount)
	}
	divisor := new(big.Float).SetFloat64(1)
	ten := big.NewFloat(10)
	for i := uint8(0); i < decimals; i++ {
		divisor.Mul(divisor, ten)
	}
	v := new(big.Float).SetUint64(amount)
	v.Quo(v, divisor)
	f, _ := v.Float64()
	return f
}
