package util

import (
	"fmt"
	"math/big"
	"strings"
)

// ToBaseUnits converts a human-readable amount to the token's smallest
// units, e.g. "1.5" with 6 decimals -> 1500000. Amounts are transfer
// sizes, so negatives are rejected.
func ToBaseUnits(amount string, decimals uint8) (*big.Int, error) {
	if amount == "" {
		return nil, fmt.Errorf("amount cannot be empty")
	}
	if strings.HasPrefix(amount, "-") {
		return nil, fmt.Errorf("amount cannot be negative: %s", amount)
	}

	parts := strings.Split(amount, ".")
	if len(parts) > 2 {
		return nil, fmt.Errorf("invalid amount format: %s", amount)
	}

	whole := parts[0]
	frac := ""
	if len(parts) == 2 {
		frac = parts[1]
	}
	if len(frac) > int(decimals) {
		return nil, fmt.Errorf("amount %s has more than %d fractional digits", amount, decimals)
	}
	frac += strings.Repeat("0", int(decimals)-len(frac))

	combined := strings.TrimLeft(whole+frac, "0")
	if combined == "" {
		combined = "0"
	}

	result, ok := new(big.Int).SetString(combined, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %s", amount)
	}
	return result, nil
}

// FromBaseUnits renders smallest units as a human-readable amount,
// e.g. 1500000 with 6 decimals -> "1.5". Display only, never fed back
// into arithmetic.
func FromBaseUnits(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}

	str := amount.String()
	if len(str) <= int(decimals) {
		str = strings.Repeat("0", int(decimals)-len(str)+1) + str
	}

	insertPos := len(str) - int(decimals)
	whole := str[:insertPos]
	frac := strings.TrimRight(str[insertPos:], "0")

	if frac == "" {
		return whole
	}
	return whole + "." + frac
}
