package market

import "math/bits"

// CalcMarketFee returns floor(amount * feeFraction / FeeRange), truncating
// toward zero. The product is computed at 128-bit width, so no amount can
// overflow; feeFraction < FeeRange keeps the quotient within 64 bits.
func (m *Market) CalcMarketFee(amount uint64) uint64 {
	hi, lo := bits.Mul64(amount, m.feeFraction)
	q, _ := bits.Div64(hi, lo, FeeRange)
	return q
}
