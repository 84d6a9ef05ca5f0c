// Package event provides an in-memory outcome set manager: a fixed set of
// outcome tokens that mint and burn 1:1 against a collateral asset held on a
// ledger Book. It stands in for an external event contract in tests and the
// bundled demo deployment.
package event

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/xyzseer/conditional-tokens-contracts/internal/domain"
	"github.com/xyzseer/conditional-tokens-contracts/internal/ledger"
)

// Set manages one fixed outcome set. Collateral pulled in by BuyAllOutcomes
// sits in the set's own custody account until SellAllOutcomes releases it,
// so every outstanding full set is backed 1:1.
type Set struct {
	book       *ledger.Book
	address    domain.Account
	collateral *ledger.Token
	outcomes   []*ledger.Token
}

// New creates an outcome set of outcomeCount tokens backed by the collateral
// symbol on book. Outcome token symbols derive from the collateral symbol.
func New(book *ledger.Book, collateral string, outcomeCount int) (*Set, error) {
	if book == nil {
		return nil, fmt.Errorf("event: nil ledger book: %w", domain.ErrInvalidConstruction)
	}
	if outcomeCount < 2 {
		return nil, fmt.Errorf("event: outcome count %d below 2: %w", outcomeCount, domain.ErrInvalidConstruction)
	}

	id := uuid.New()
	outcomes := make([]*ledger.Token, outcomeCount)
	for i := range outcomes {
		outcomes[i] = book.Token(fmt.Sprintf("%s.O%d.%s", collateral, i, id.String()[:8]))
	}
	return &Set{
		book:       book,
		address:    common.BytesToAddress(crypto.Keccak256([]byte("event:"), id[:])),
		collateral: book.Token(collateral),
		outcomes:   outcomes,
	}, nil
}

// OutcomeCount returns the number of outcomes, fixed at construction.
func (s *Set) OutcomeCount() int { return len(s.outcomes) }

// Address is the set's custody account on the ledger.
func (s *Set) Address() domain.Account { return s.address }

// CollateralToken returns the backing collateral asset handle.
func (s *Set) CollateralToken() domain.Token { return s.collateral }

// OutcomeToken returns the asset handle for one outcome. The index must be
// within range; the set panics otherwise, matching slice semantics.
func (s *Set) OutcomeToken(index int) domain.Token { return s.outcomes[index] }

// BuyAllOutcomes debits amount collateral the buyer has approved for the
// set's custody account and credits amount of every outcome token to buyer.
func (s *Set) BuyAllOutcomes(ctx context.Context, buyer domain.Account, amount uint64) error {
	if err := s.collateral.TransferFrom(ctx, s.address, buyer, s.address, amount); err != nil {
		return fmt.Errorf("event: buy all outcomes: %w", err)
	}
	for _, tok := range s.outcomes {
		if err := s.book.Mint(tok.Symbol(), buyer, amount); err != nil {
			return fmt.Errorf("event: buy all outcomes: %w", err)
		}
	}
	return nil
}

// SellAllOutcomes debits amount of every outcome token held by seller and
// credits amount collateral back from custody. Balances are validated before
// anything burns, so a refusal leaves the ledger untouched.
func (s *Set) SellAllOutcomes(ctx context.Context, seller domain.Account, amount uint64) error {
	for i, tok := range s.outcomes {
		bal, err := tok.BalanceOf(ctx, seller)
		if err != nil {
			return fmt.Errorf("event: sell all outcomes: %w", err)
		}
		if bal < amount {
			return fmt.Errorf("event: sell all outcomes: outcome %d balance %d below %d: %w",
				i, bal, amount, domain.ErrTransferFailure)
		}
	}
	for _, tok := range s.outcomes {
		if err := s.book.Burn(tok.Symbol(), seller, amount); err != nil {
			return fmt.Errorf("event: sell all outcomes: %w", err)
		}
	}
	if err := s.collateral.Transfer(ctx, s.address, seller, amount); err != nil {
		return fmt.Errorf("event: sell all outcomes: %w", err)
	}
	return nil
}
