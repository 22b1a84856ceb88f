package settle

import (
	"fmt"
	"math/big"
)

// DefaultSlippageBps is applied when the caller does not supply an
// explicit minimum: 50 bps = 0.5%.
const DefaultSlippageBps = 50

const bpsDenominator = 10_000

// MinAfterSlippage floors expected * (10000 - bps) / 10000, integer
// division, never rounding up. A zero expected amount yields zero.
func MinAfterSlippage(expected *big.Int, bps uint64) (*big.Int, error) {
	if bps > bpsDenominator {
		return nil, fmt.Errorf("slippage out of range: %d bps", bps)
	}
	if expected.Sign() < 0 {
		return nil, fmt.Errorf("expected amount cannot be negative: %s", expected)
	}

	result := new(big.Int).Mul(expected, big.NewInt(bpsDenominator-int64(bps)))
	return result.Div(result, big.NewInt(bpsDenominator)), nil
}
