package ledger

import (
	"context"
	"fmt"
	"math"

	"github.com/xyzseer/conditional-tokens-contracts/internal/domain"
)

// Token is the handle for one asset of a Book. It implements domain.Token.
type Token struct {
	book   *Book
	symbol string
}

// Symbol returns the asset symbol this handle is bound to.
func (t *Token) Symbol() string { return t.symbol }

// Transfer moves amount from one account to another.
func (t *Token) Transfer(ctx context.Context, from, to domain.Account, amount uint64) error {
	b := t.book
	b.mu.Lock()
	defer b.mu.Unlock()
	return t.moveLocked(from, to, amount)
}

// TransferFrom moves amount out of from on the authority of spender. A
// spender moving its own funds needs no allowance; otherwise the remaining
// allowance must cover amount and is reduced by it.
func (t *Token) TransferFrom(ctx context.Context, spender, from, to domain.Account, amount uint64) error {
	b := t.book
	b.mu.Lock()
	defer b.mu.Unlock()

	if spender != from {
		st := b.stateLocked(t.symbol)
		key := allowanceKey{owner: from, spender: spender}
		if st.allowances[key] < amount {
			return fmt.Errorf("ledger: %s: allowance %d from %s to %s below %d: %w",
				t.symbol, st.allowances[key], from, spender, amount, domain.ErrTransferFailure)
		}
		if err := t.moveLocked(from, to, amount); err != nil {
			return err
		}
		st.allowances[key] -= amount
		return nil
	}
	return t.moveLocked(from, to, amount)
}

// Approve sets the allowance spender may draw from owner, overwriting any
// previous grant.
func (t *Token) Approve(ctx context.Context, owner, spender domain.Account, amount uint64) error {
	b := t.book
	b.mu.Lock()
	defer b.mu.Unlock()
	st := b.stateLocked(t.symbol)
	st.allowances[allowanceKey{owner: owner, spender: spender}] = amount
	return nil
}

// BalanceOf reports the current balance of owner.
func (t *Token) BalanceOf(ctx context.Context, owner domain.Account) (uint64, error) {
	b := t.book
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked(t.symbol).balances[owner], nil
}

func (t *Token) moveLocked(from, to domain.Account, amount uint64) error {
	st := t.book.stateLocked(t.symbol)
	if st.balances[from] < amount {
		return fmt.Errorf("ledger: %s: balance %d of %s below %d: %w",
			t.symbol, st.balances[from], from, amount, domain.ErrTransferFailure)
	}
	if from != to && st.balances[to] > math.MaxUint64-amount {
		return fmt.Errorf("ledger: %s: balance of %s: %w", t.symbol, to, domain.ErrArithmeticOverflow)
	}
	st.balances[from] -= amount
	if from != to {
		st.balances[to] += amount
	}
	return nil
}
