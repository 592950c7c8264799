package main

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// formatUnits renders a base-unit amount divided by 10^decimals, truncated to
// six fractional digits. Truncation, not rounding: a display must never show
// more than the account holds.
func formatUnits(v *big.Int, decimals int) string {
	if v == nil {
		return "0"
	}
	d := decimal.NewFromBigInt(v, -int32(decimals))
	return d.Truncate(6).String()
}

func formatGwei(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -9).Truncate(2).String()
}
