package bank

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// FormatAmount renders a raw integer amount using the asset's decimals, e.g.
// 1_500_000 with 6 decimals becomes "1.5".
func FormatAmount(raw uint64, decimals uint8) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(raw), -int32(decimals)).String()
}
