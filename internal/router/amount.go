package router

import (
	"fmt"
	"math/big"
	"strings"
)

// ParseAmount converts a positive decimal string into raw token units at the
// given decimals. Fractional digits beyond the token's precision are
// rejected rather than silently truncated.
func ParseAmount(amount string, decimals uint8) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, ErrInvalidAmount
	}

	whole := amount
	frac := ""
	if idx := strings.IndexByte(amount, '.'); idx >= 0 {
		whole, frac = amount[:idx], amount[idx+1:]
	}
	if whole == "" && frac == "" {
		return nil, ErrInvalidAmount
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > int(decimals) {
		return nil, fmt.Errorf("%w: more than %d fractional digits", ErrInvalidAmount, decimals)
	}

	digits := whole + frac + strings.Repeat("0", int(decimals)-len(frac))
	value, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, ErrInvalidAmount
	}
	if value.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	return value, nil
}

// FormatAmount renders raw token units as a decimal string, trimming
// trailing fractional zeros.
func FormatAmount(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}

	str := value.String()
	negative := strings.HasPrefix(str, "-")
	if negative {
		str = str[1:]
	}

	if len(str) <= int(decimals) {
		str = strings.Repeat("0", int(decimals)-len(str)+1) + str
	}

	split := len(str) - int(decimals)
	whole, frac := str[:split], str[split:]
	frac = strings.TrimRight(frac, "0")

	out := whole
	if frac != "" {
		out = whole + "." + frac
	}
	if negative {
		out = "-" + out
	}
	return out
}
