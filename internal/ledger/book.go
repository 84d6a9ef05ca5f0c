// Package ledger provides an in-memory asset ledger with transfer,
// allowance, and balance semantics, plus a checkpoint/rollback boundary that
// gives market operations their all-or-nothing behavior. It backs tests and
// the bundled demo deployment; production deployments plug a real ledger
// adapter into the same domain interfaces.
package ledger

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/xyzseer/conditional-tokens-contracts/internal/domain"
)

// Book holds the balances and allowances of every asset, keyed by symbol.
type Book struct {
	mu     sync.Mutex
	tokens map[string]*tokenState

	// opMu serializes Atomically blocks so a rollback never races another
	// in-flight operation's mutations.
	opMu sync.Mutex
}

type tokenState struct {
	balances   map[domain.Account]uint64
	allowances map[allowanceKey]uint64
}

type allowanceKey struct {
	owner, spender domain.Account
}

// NewBook creates an empty ledger.
func NewBook() *Book {
	return &Book{tokens: make(map[string]*tokenState)}
}

// Token returns the handle for symbol, creating the asset on first use.
func (b *Book) Token(symbol string) *Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stateLocked(symbol)
	return &Token{book: b, symbol: symbol}
}

func (b *Book) stateLocked(symbol string) *tokenState {
	st, ok := b.tokens[symbol]
	if !ok {
		st = &tokenState{
			balances:   make(map[domain.Account]uint64),
			allowances: make(map[allowanceKey]uint64),
		}
		b.tokens[symbol] = st
	}
	return st
}

// Mint credits freshly created units of symbol to an account. Used for test
// and demo seeding and by the outcome set manager when minting full sets.
func (b *Book) Mint(symbol string, to domain.Account, amount uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := b.stateLocked(symbol)
	if st.balances[to] > math.MaxUint64-amount {
		return fmt.Errorf("ledger: mint %s to %s: %w", symbol, to, domain.ErrArithmeticOverflow)
	}
	st.balances[to] += amount
	return nil
}

// Burn destroys amount units of symbol held by from.
func (b *Book) Burn(symbol string, from domain.Account, amount uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := b.stateLocked(symbol)
	if st.balances[from] < amount {
		return fmt.Errorf("ledger: burn %s from %s: balance %d below %d: %w",
			symbol, from, st.balances[from], amount, domain.ErrTransferFailure)
	}
	st.balances[from] -= amount
	return nil
}

// Atomically runs fn inside a checkpoint boundary: if fn returns an error,
// every balance and allowance change it made is rolled back.
func (b *Book) Atomically(ctx context.Context, fn func(ctx context.Context) error) error {
	b.opMu.Lock()
	defer b.opMu.Unlock()

	cp := b.checkpoint()
	if err := fn(ctx); err != nil {
		b.restore(cp)
		return err
	}
	return nil
}

func (b *Book) checkpoint() map[string]*tokenState {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := make(map[string]*tokenState, len(b.tokens))
	for sym, st := range b.tokens {
		balances := make(map[domain.Account]uint64, len(st.balances))
		for a, v := range st.balances {
			balances[a] = v
		}
		allowances := make(map[allowanceKey]uint64, len(st.allowances))
		for k, v := range st.allowances {
			allowances[k] = v
		}
		cp[sym] = &tokenState{balances: balances, allowances: allowances}
	}
	return cp
}

func (b *Book) restore(cp map[string]*tokenState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = cp
}
