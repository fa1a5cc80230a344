package report

import (
	"math/big"

	"github.com/holiman/uint256"
)

const ratioScale = 18

// FormatTokenAmount renders a base-unit amount with the token's decimals.
func FormatTokenAmount(value *uint256.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	return formatBig(value.ToBig(), decimals)
}

func formatBig(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	if decimals == 0 {
		return value.String()
	}
	sign := value.Sign()
	abs := new(big.Int).Abs(value)
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	rat := new(big.Rat).SetFrac(abs, denom)
	text := rat.FloatString(int(decimals))
	if sign < 0 {
		return "-" + text
	}
	return text
}

func parseBigInt(value string) (*big.Int, bool) {
	if value == "" {
		return new(big.Int), true
	}
	return new(big.Int).SetString(value, 10)
}
