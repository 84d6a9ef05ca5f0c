package market

import (
	"math"
	"math/big"
	"testing"
	"testing/quick"
)

func feeMarket(t *testing.T, feeFraction uint64) *Market {
	t.Helper()
	m := newFixture(t, feeFraction).market
	return m
}

func TestCalcMarketFee(t *testing.T) {
	// 2% fee: feeFraction 20_000 over FeeRange 1_000_000.
	m := feeMarket(t, 20_000)

	cases := []struct {
		amount uint64
		want   uint64
	}{
		{0, 0},
		{1, 0},
		{49, 0},
		{50, 1},
		{1000, 20},
		{999, 19}, // truncates toward zero
		{1_000_000, 20_000},
		{math.MaxUint64, math.MaxUint64 / 50},
	}
	for _, tc := range cases {
		if got := m.CalcMarketFee(tc.amount); got != tc.want {
			t.Errorf("CalcMarketFee(%d): got=%d want=%d", tc.amount, got, tc.want)
		}
	}
}

func TestCalcMarketFeeZeroFraction(t *testing.T) {
	m := feeMarket(t, 0)
	for _, amount := range []uint64{0, 1, 1000, math.MaxUint64} {
		if got := m.CalcMarketFee(amount); got != 0 {
			t.Errorf("CalcMarketFee(%d) with zero fraction: got=%d want=0", amount, got)
		}
	}
}

func TestCalcMarketFeeMonotonic(t *testing.T) {
	m := feeMarket(t, 31_337)

	property := func(a, b uint64) bool {
		if a > b {
			a, b = b, a
		}
		return m.CalcMarketFee(a) <= m.CalcMarketFee(b)
	}
	if err := quick.Check(property, nil); err != nil {
		t.Fatalf("fee not monotonic: %v", err)
	}
}

func TestCalcMarketFeeMatchesBigInt(t *testing.T) {
	// The 128-bit fast path must agree with arbitrary-precision
	// floor(amount * feeFraction / FeeRange) everywhere, including at the
	// top of the uint64 range.
	m := feeMarket(t, 999_999)

	reference := func(amount uint64) uint64 {
		n := new(big.Int).SetUint64(amount)
		n.Mul(n, new(big.Int).SetUint64(m.FeeFraction()))
		n.Div(n, new(big.Int).SetUint64(FeeRange))
		return n.Uint64()
	}

	property := func(amount uint64) bool {
		return m.CalcMarketFee(amount) == reference(amount)
	}
	if err := quick.Check(property, nil); err != nil {
		t.Fatalf("fee diverges from big.Int reference: %v", err)
	}

	for _, amount := range []uint64{0, 1, math.MaxUint64, math.MaxUint64 - 1} {
		if got, want := m.CalcMarketFee(amount), reference(amount); got != want {
			t.Errorf("CalcMarketFee(%d): got=%d want=%d", amount, got, want)
		}
	}
}
