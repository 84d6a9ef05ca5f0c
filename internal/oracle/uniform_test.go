package oracle

import (
	"errors"
	"math"
	"testing"

	"github.com/xyzseer/conditional-tokens-contracts/internal/domain"
)

func TestUniform(t *testing.T) {
	o := NewUniform(10)
	state := domain.MarketState{}

	cost, err := o.CalcCost(state, 0, 100)
	if err != nil {
		t.Fatalf("CalcCost: %v", err)
	}
	if cost != 1000 {
		t.Fatalf("cost: got=%d want=1000", cost)
	}

	profit, err := o.CalcProfit(state, 1, 7)
	if err != nil {
		t.Fatalf("CalcProfit: %v", err)
	}
	if profit != 70 {
		t.Fatalf("profit: got=%d want=70", profit)
	}
}

func TestUniformOverflow(t *testing.T) {
	o := NewUniform(2)
	state := domain.MarketState{}

	if _, err := o.CalcCost(state, 0, math.MaxUint64/2+1); !errors.Is(err, domain.ErrArithmeticOverflow) {
		t.Fatalf("overflowing cost: got err=%v want ErrArithmeticOverflow", err)
	}
	if _, err := o.CalcCost(state, 0, math.MaxUint64/2); err != nil {
		t.Fatalf("max cost: %v", err)
	}
}
