// Package oracle contains pricing oracle implementations for development and
// testing. The market engine is formula-agnostic; production deployments
// supply their own domain.PricingOracle.
package oracle

import (
	"fmt"
	"math/bits"

	"github.com/xyzseer/conditional-tokens-contracts/internal/domain"
)

// Uniform prices every outcome token at a fixed number of collateral units,
// independent of market state. Cost and profit are symmetric, which makes
// buy/sell round trips exact and easy to reason about in tests and demos.
type Uniform struct {
	price uint64
}

// NewUniform creates a Uniform oracle charging price collateral per token.
func NewUniform(price uint64) *Uniform {
	return &Uniform{price: price}
}

// Price returns the fixed per-token price.
func (o *Uniform) Price() uint64 { return o.price }

// CalcCost returns count * price with overflow checking.
func (o *Uniform) CalcCost(state domain.MarketState, outcome int, count uint64) (uint64, error) {
	return o.scale(count)
}

// CalcProfit returns count * price with overflow checking.
func (o *Uniform) CalcProfit(state domain.MarketState, outcome int, count uint64) (uint64, error) {
	return o.scale(count)
}

func (o *Uniform) scale(count uint64) (uint64, error) {
	hi, lo := bits.Mul64(count, o.price)
	if hi != 0 {
		return 0, fmt.Errorf("oracle: %d tokens at %d: %w", count, o.price, domain.ErrArithmeticOverflow)
	}
	return lo, nil
}
