package event

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xyzseer/conditional-tokens-contracts/internal/domain"
	"github.com/xyzseer/conditional-tokens-contracts/internal/ledger"
)

func balance(t *testing.T, tok domain.Token, owner domain.Account) uint64 {
	t.Helper()
	bal, err := tok.BalanceOf(context.Background(), owner)
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	return bal
}

func TestNewValidation(t *testing.T) {
	book := ledger.NewBook()

	if _, err := New(nil, "USD", 2); !errors.Is(err, domain.ErrInvalidConstruction) {
		t.Fatalf("nil book: got err=%v want ErrInvalidConstruction", err)
	}
	if _, err := New(book, "USD", 1); !errors.Is(err, domain.ErrInvalidConstruction) {
		t.Fatalf("single outcome: got err=%v want ErrInvalidConstruction", err)
	}

	set, err := New(book, "USD", 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := set.OutcomeCount(); got != 4 {
		t.Fatalf("OutcomeCount: got=%d want=4", got)
	}
}

func TestBuySellAllOutcomes(t *testing.T) {
	ctx := context.Background()
	book := ledger.NewBook()
	set, err := New(book, "USD", 3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	holder := common.BytesToAddress([]byte{9})
	if err := book.Mint("USD", holder, 500); err != nil {
		t.Fatalf("Mint: %v", err)
	}

	// Minting needs an allowance on the set's custody account.
	if err := set.BuyAllOutcomes(ctx, holder, 200); !errors.Is(err, domain.ErrTransferFailure) {
		t.Fatalf("unapproved buy: got err=%v want ErrTransferFailure", err)
	}

	if err := set.CollateralToken().Approve(ctx, holder, set.Address(), 200); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if err := set.BuyAllOutcomes(ctx, holder, 200); err != nil {
		t.Fatalf("BuyAllOutcomes: %v", err)
	}

	for i := 0; i < set.OutcomeCount(); i++ {
		if got := balance(t, set.OutcomeToken(i), holder); got != 200 {
			t.Fatalf("outcome %d balance: got=%d want=200", i, got)
		}
	}
	// Collateral backs the minted sets 1:1 in custody.
	if got := balance(t, set.CollateralToken(), holder); got != 300 {
		t.Fatalf("holder collateral: got=%d want=300", got)
	}
	if got := balance(t, set.CollateralToken(), set.Address()); got != 200 {
		t.Fatalf("custody collateral: got=%d want=200", got)
	}

	// Burning a partial set releases exactly that much collateral.
	if err := set.SellAllOutcomes(ctx, holder, 150); err != nil {
		t.Fatalf("SellAllOutcomes: %v", err)
	}
	for i := 0; i < set.OutcomeCount(); i++ {
		if got := balance(t, set.OutcomeToken(i), holder); got != 50 {
			t.Fatalf("outcome %d balance after sell: got=%d want=50", i, got)
		}
	}
	if got := balance(t, set.CollateralToken(), holder); got != 450 {
		t.Fatalf("holder collateral after sell: got=%d want=450", got)
	}
	if got := balance(t, set.CollateralToken(), set.Address()); got != 50 {
		t.Fatalf("custody collateral after sell: got=%d want=50", got)
	}
}

func TestSellAllOutcomesValidatesFirst(t *testing.T) {
	ctx := context.Background()
	book := ledger.NewBook()
	set, err := New(book, "USD", 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	holder := common.BytesToAddress([]byte{9})
	if err := book.Mint("USD", holder, 100); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if err := set.CollateralToken().Approve(ctx, holder, set.Address(), 100); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if err := set.BuyAllOutcomes(ctx, holder, 100); err != nil {
		t.Fatalf("BuyAllOutcomes: %v", err)
	}

	// Drain one leg so the set is incomplete, then try to redeem it.
	other := common.BytesToAddress([]byte{8})
	if err := set.OutcomeToken(1).Transfer(ctx, holder, other, 60); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if err := set.SellAllOutcomes(ctx, holder, 50); !errors.Is(err, domain.ErrTransferFailure) {
		t.Fatalf("incomplete set: got err=%v want ErrTransferFailure", err)
	}
	// Validation happens before any burn, so the complete leg is intact.
	if got := balance(t, set.OutcomeToken(0), holder); got != 100 {
		t.Fatalf("outcome 0 balance after refused sell: got=%d want=100", got)
	}
}
