package domain

import "context"

// Token is a handle onto one asset of the external ledger. The collateral
// asset and every outcome asset implement the same contract. A non-nil error
// from any call means the ledger refused the operation and the caller must
// abort whatever it was doing.
type Token interface {
	// Transfer moves amount from one account to another.
	Transfer(ctx context.Context, from, to Account, amount uint64) error

	// TransferFrom moves amount out of the from account on the authority of
	// spender, consuming a previously approved allowance. A spender moving
	// its own funds needs no allowance.
	TransferFrom(ctx context.Context, spender, from, to Account, amount uint64) error

	// Approve grants spender the right to move up to amount out of owner's
	// balance. A later call overwrites the remaining allowance.
	Approve(ctx context.Context, owner, spender Account, amount uint64) error

	// BalanceOf reports the current balance of owner.
	BalanceOf(ctx context.Context, owner Account) (uint64, error)
}

// OutcomeSet manages a fixed set of outcome tokens that mint and burn 1:1
// against a collateral asset.
type OutcomeSet interface {
	// OutcomeCount returns the number of outcomes, fixed at construction.
	OutcomeCount() int

	// Address is the manager's own custody account on the asset ledger;
	// BuyAllOutcomes draws collateral allowances granted to this account.
	Address() Account

	CollateralToken() Token
	OutcomeToken(index int) Token

	// BuyAllOutcomes debits amount collateral already approved by buyer and
	// credits amount of every outcome token to buyer.
	BuyAllOutcomes(ctx context.Context, buyer Account, amount uint64) error

	// SellAllOutcomes debits amount of every outcome token held by seller
	// and credits amount collateral back to seller.
	SellAllOutcomes(ctx context.Context, seller Account, amount uint64) error
}

// MarketState is a read-only snapshot of the market handed to the pricing
// oracle. NetExposure is a copy; the oracle may not mutate market state.
type MarketState struct {
	Funding     uint64
	FeeFraction uint64
	NetExposure []int64
}

// PricingOracle computes trade pricing from current market state. The
// formula is opaque to the market engine.
type PricingOracle interface {
	// CalcCost returns the gross collateral cost of buying count tokens of
	// the given outcome, before fees.
	CalcCost(state MarketState, outcome int, count uint64) (uint64, error)

	// CalcProfit returns the gross collateral payout for selling count
	// tokens of the given outcome, before fees.
	CalcProfit(state MarketState, outcome int, count uint64) (uint64, error)
}

// Atomic wraps a multi-step ledger mutation in an all-or-nothing boundary:
// if fn returns an error, every ledger change made inside it is rolled back
// before Atomically returns.
type Atomic interface {
	Atomically(ctx context.Context, fn func(ctx context.Context) error) error
}
