// Package market implements the trading core of a prediction market:
// funding, buying, selling, short selling, fee accrual, and per-outcome
// exposure bookkeeping on top of pluggable asset ledger, outcome set, and
// pricing oracle collaborators.
//
// Every public operation is all-or-nothing: ledger mutations run inside the
// Atomic collaborator's checkpoint boundary, and engine-local state mutates
// only after every ledger step has succeeded. A mutex serializes operations
// per market, so no two operations ever interleave partial effects.
package market

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/xyzseer/conditional-tokens-contracts/internal/domain"
)

// FeeRange is the denominator of the market fee fraction. A fee fraction of
// FeeRange would take 100% of every trade and is therefore excluded.
const FeeRange uint64 = 1_000_000

// Config carries the immutable parameters of a new market.
type Config struct {
	Creator     domain.Account
	OutcomeSet  domain.OutcomeSet
	Oracle      domain.PricingOracle
	Atomic      domain.Atomic
	FeeFraction uint64
}

// Market is the trading core. It owns funding, feeFraction, and netExposure;
// asset balances belong to the ledger collaborator and the market only ever
// requests transfers against its custody account.
type Market struct {
	mu sync.Mutex

	id        uuid.UUID
	account   domain.Account
	creator   domain.Account
	createdAt time.Time

	event  domain.OutcomeSet
	oracle domain.PricingOracle
	atomic domain.Atomic

	feeFraction uint64
	funding     uint64
	netExposure []int64
}

// New validates cfg and constructs a market with a fresh identity and a
// custody account derived from it. The creator, collaborator references, and
// fee fraction are immutable afterwards.
func New(cfg Config) (*Market, error) {
	if cfg.OutcomeSet == nil || cfg.Oracle == nil || cfg.Atomic == nil {
		return nil, fmt.Errorf("market: missing collaborator: %w", domain.ErrInvalidConstruction)
	}
	if cfg.FeeFraction >= FeeRange {
		return nil, fmt.Errorf("market: fee fraction %d not below %d: %w", cfg.FeeFraction, FeeRange, domain.ErrInvalidConstruction)
	}
	n := cfg.OutcomeSet.OutcomeCount()
	if n < 2 {
		return nil, fmt.Errorf("market: outcome count %d below 2: %w", n, domain.ErrInvalidConstruction)
	}

	id := uuid.New()
	return &Market{
		id:          id,
		account:     custodyAccount(id),
		creator:     cfg.Creator,
		createdAt:   time.Now().UTC(),
		event:       cfg.OutcomeSet,
		oracle:      cfg.Oracle,
		atomic:      cfg.Atomic,
		feeFraction: cfg.FeeFraction,
		netExposure: make([]int64, n),
	}, nil
}

// custodyAccount derives the market's ledger identity from its ID.
func custodyAccount(id uuid.UUID) domain.Account {
	return common.BytesToAddress(crypto.Keccak256([]byte("market:"), id[:]))
}

func (m *Market) ID() uuid.UUID           { return m.id }
func (m *Market) Account() domain.Account { return m.account }
func (m *Market) Creator() domain.Account { return m.creator }
func (m *Market) CreatedAt() time.Time    { return m.createdAt }
func (m *Market) FeeFraction() uint64     { return m.feeFraction }

// Funding returns the cumulative collateral contributed via Fund.
func (m *Market) Funding() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.funding
}

// NetExposure returns a copy of the per-outcome exposure ledger. Entries are
// a cumulative record of tokens sold minus bought back, not a live position
// snapshot; Close does not reset them.
func (m *Market) NetExposure() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int64, len(m.netExposure))
	copy(out, m.netExposure)
	return out
}

// State returns a snapshot suitable for handing to a pricing oracle.
func (m *Market) State() domain.MarketState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

func (m *Market) stateLocked() domain.MarketState {
	exp := make([]int64, len(m.netExposure))
	copy(exp, m.netExposure)
	return domain.MarketState{
		Funding:     m.funding,
		FeeFraction: m.feeFraction,
		NetExposure: exp,
	}
}

// Info assembles the externally visible snapshot of the market.
func (m *Market) Info() domain.MarketInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp := make([]int64, len(m.netExposure))
	copy(exp, m.netExposure)
	return domain.MarketInfo{
		ID:           m.id,
		Creator:      m.creator,
		Address:      m.account,
		OutcomeCount: len(m.netExposure),
		FeeFraction:  m.feeFraction,
		Funding:      m.funding,
		NetExposure:  exp,
		CreatedAt:    m.createdAt,
	}
}

// Fund pulls amount collateral from the creator into market custody and
// mints a full outcome set of the same size. Creator-only. On success the
// cumulative funding counter grows by amount; on any ledger failure nothing
// changes.
func (m *Market) Fund(ctx context.Context, caller domain.Account, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if caller != m.creator {
		return fmt.Errorf("market: fund: caller %s is not the creator: %w", caller, domain.ErrUnauthorized)
	}
	if amount > math.MaxUint64-m.funding {
		return fmt.Errorf("market: fund: funding accumulation: %w", domain.ErrArithmeticOverflow)
	}

	collateral := m.event.CollateralToken()
	err := m.atomic.Atomically(ctx, func(ctx context.Context) error {
		if err := collateral.TransferFrom(ctx, m.account, m.creator, m.account, amount); err != nil {
			return fmt.Errorf("pull funding: %w", err)
		}
		if err := collateral.Approve(ctx, m.account, m.event.Address(), amount); err != nil {
			return fmt.Errorf("approve outcome set: %w", err)
		}
		if err := m.event.BuyAllOutcomes(ctx, m.account, amount); err != nil {
			return fmt.Errorf("mint outcome set: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("market: fund: %w", err)
	}

	m.funding += amount
	return nil
}

// Receipt breaks down the collateral movement of a completed trade. Net is
// the amount actually charged (buy, short sell) or paid out (sell); Gross is
// the oracle's raw figure before the Fee was taken.
type Receipt struct {
	Gross uint64
	Fee   uint64
	Net   uint64
}

// Buy purchases count tokens of the given outcome for the buyer. The total
// cost is the oracle's raw cost plus the market fee; the trade fails if that
// exceeds maxCost. The receipt's Net is the cost actually charged.
func (m *Market) Buy(ctx context.Context, buyer domain.Account, outcome int, count, maxCost uint64) (Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkOutcome(outcome); err != nil {
		return Receipt{}, fmt.Errorf("market: buy: %w", err)
	}
	if count == 0 {
		return Receipt{}, fmt.Errorf("market: buy: zero token count: %w", domain.ErrNonPositiveAmount)
	}

	rawCost, err := m.oracle.CalcCost(m.stateLocked(), outcome, count)
	if err != nil {
		return Receipt{}, fmt.Errorf("market: buy: calc cost: %w", err)
	}
	fee := m.CalcMarketFee(rawCost)
	cost, err := addChecked(rawCost, fee)
	if err != nil {
		return Receipt{}, fmt.Errorf("market: buy: total cost: %w", err)
	}
	if cost == 0 {
		return Receipt{}, fmt.Errorf("market: buy: zero cost: %w", domain.ErrNonPositiveAmount)
	}
	if cost > maxCost {
		return Receipt{}, fmt.Errorf("market: buy: cost %d above limit %d: %w", cost, maxCost, domain.ErrSlippageExceeded)
	}

	// Validate the exposure update up front so the ledger is never touched
	// by a trade that cannot be recorded.
	next, err := addExposure(m.netExposure[outcome], count)
	if err != nil {
		return Receipt{}, fmt.Errorf("market: buy: exposure update: %w", err)
	}

	collateral := m.event.CollateralToken()
	err = m.atomic.Atomically(ctx, func(ctx context.Context) error {
		if err := collateral.TransferFrom(ctx, m.account, buyer, m.account, cost); err != nil {
			return fmt.Errorf("pull cost: %w", err)
		}
		// Only the raw cost converts into outcome tokens; the fee stays
		// behind as market collateral.
		if err := collateral.Approve(ctx, m.account, m.event.Address(), rawCost); err != nil {
			return fmt.Errorf("approve outcome set: %w", err)
		}
		if err := m.event.BuyAllOutcomes(ctx, m.account, rawCost); err != nil {
			return fmt.Errorf("mint outcome set: %w", err)
		}
		if err := m.event.OutcomeToken(outcome).Transfer(ctx, m.account, buyer, count); err != nil {
			return fmt.Errorf("deliver outcome tokens: %w", err)
		}
		return nil
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("market: buy: %w", err)
	}

	m.netExposure[outcome] = next
	return Receipt{Gross: rawCost, Fee: fee, Net: cost}, nil
}

// Sell redeems count tokens of the given outcome held by the seller. The
// payout is the oracle's raw profit minus the market fee; the trade fails if
// that falls below minProfit. The seller must have approved the market's
// custody account for the tokens. The receipt's Net is the profit actually
// paid out.
func (m *Market) Sell(ctx context.Context, seller domain.Account, outcome int, count, minProfit uint64) (Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkOutcome(outcome); err != nil {
		return Receipt{}, fmt.Errorf("market: sell: %w", err)
	}
	if count == 0 {
		return Receipt{}, fmt.Errorf("market: sell: zero token count: %w", domain.ErrNonPositiveAmount)
	}

	rawProfit, err := m.oracle.CalcProfit(m.stateLocked(), outcome, count)
	if err != nil {
		return Receipt{}, fmt.Errorf("market: sell: calc profit: %w", err)
	}
	// fee <= rawProfit because feeFraction < FeeRange.
	fee := m.CalcMarketFee(rawProfit)
	profit := rawProfit - fee
	if profit == 0 {
		return Receipt{}, fmt.Errorf("market: sell: zero profit: %w", domain.ErrNonPositiveAmount)
	}
	if profit < minProfit {
		return Receipt{}, fmt.Errorf("market: sell: profit %d below limit %d: %w", profit, minProfit, domain.ErrSlippageExceeded)
	}

	next, err := subExposure(m.netExposure[outcome], count)
	if err != nil {
		return Receipt{}, fmt.Errorf("market: sell: exposure update: %w", err)
	}

	collateral := m.event.CollateralToken()
	err = m.atomic.Atomically(ctx, func(ctx context.Context) error {
		if err := m.event.OutcomeToken(outcome).TransferFrom(ctx, m.account, seller, m.account, count); err != nil {
			return fmt.Errorf("pull outcome tokens: %w", err)
		}
		if err := m.event.SellAllOutcomes(ctx, m.account, rawProfit); err != nil {
			return fmt.Errorf("redeem outcome set: %w", err)
		}
		// The fee portion of rawProfit stays behind as market collateral.
		if err := collateral.Transfer(ctx, m.account, seller, profit); err != nil {
			return fmt.Errorf("pay profit: %w", err)
		}
		return nil
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("market: sell: %w", err)
	}

	m.netExposure[outcome] = next
	return Receipt{Gross: rawProfit, Fee: fee, Net: profit}, nil
}

// ShortSell bets against the given outcome: the trader pays only the net
// collateral cost and receives count tokens of every other outcome. The
// inner sell leg runs directly against market custody rather than through a
// self-approval round trip. The receipt's Net is the net cost, count minus
// the sell leg's profit.
func (m *Market) ShortSell(ctx context.Context, trader domain.Account, outcome int, count, minProfit uint64) (Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkOutcome(outcome); err != nil {
		return Receipt{}, fmt.Errorf("market: short sell: %w", err)
	}
	if count == 0 {
		return Receipt{}, fmt.Errorf("market: short sell: zero token count: %w", domain.ErrNonPositiveAmount)
	}

	rawProfit, err := m.oracle.CalcProfit(m.stateLocked(), outcome, count)
	if err != nil {
		return Receipt{}, fmt.Errorf("market: short sell: calc profit: %w", err)
	}
	fee := m.CalcMarketFee(rawProfit)
	profit := rawProfit - fee
	if profit == 0 {
		return Receipt{}, fmt.Errorf("market: short sell: zero profit: %w", domain.ErrNonPositiveAmount)
	}
	if profit < minProfit {
		return Receipt{}, fmt.Errorf("market: short sell: profit %d below limit %d: %w", profit, minProfit, domain.ErrSlippageExceeded)
	}
	if profit > count {
		return Receipt{}, fmt.Errorf("market: short sell: profit %d above count %d: %w", profit, count, domain.ErrArithmeticOverflow)
	}
	cost := count - profit

	next, err := subExposure(m.netExposure[outcome], count)
	if err != nil {
		return Receipt{}, fmt.Errorf("market: short sell: exposure update: %w", err)
	}

	collateral := m.event.CollateralToken()
	err = m.atomic.Atomically(ctx, func(ctx context.Context) error {
		if err := collateral.TransferFrom(ctx, m.account, trader, m.account, count); err != nil {
			return fmt.Errorf("pull collateral: %w", err)
		}
		if err := collateral.Approve(ctx, m.account, m.event.Address(), count); err != nil {
			return fmt.Errorf("approve outcome set: %w", err)
		}
		if err := m.event.BuyAllOutcomes(ctx, m.account, count); err != nil {
			return fmt.Errorf("mint outcome set: %w", err)
		}
		// Sell leg: the freshly minted tokens of the shorted outcome are
		// already in market custody, so redemption starts immediately.
		if err := m.event.SellAllOutcomes(ctx, m.account, rawProfit); err != nil {
			return fmt.Errorf("redeem outcome set: %w", err)
		}
		for i := 0; i < m.event.OutcomeCount(); i++ {
			if i == outcome {
				continue
			}
			if err := m.event.OutcomeToken(i).Transfer(ctx, m.account, trader, count); err != nil {
				return fmt.Errorf("deliver outcome %d tokens: %w", i, err)
			}
		}
		if err := collateral.Transfer(ctx, m.account, trader, profit); err != nil {
			return fmt.Errorf("return change: %w", err)
		}
		return nil
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("market: short sell: %w", err)
	}

	m.netExposure[outcome] = next
	return Receipt{Gross: rawProfit, Fee: fee, Net: cost}, nil
}

// Close transfers the market's entire custodial balance of every outcome
// token to the creator. Creator-only. Net exposure is left untouched: it is
// a cumulative trading record, not a live position. Repeat calls are no-ops.
func (m *Market) Close(ctx context.Context, caller domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if caller != m.creator {
		return fmt.Errorf("market: close: caller %s is not the creator: %w", caller, domain.ErrUnauthorized)
	}

	err := m.atomic.Atomically(ctx, func(ctx context.Context) error {
		for i := 0; i < m.event.OutcomeCount(); i++ {
			tok := m.event.OutcomeToken(i)
			bal, err := tok.BalanceOf(ctx, m.account)
			if err != nil {
				return fmt.Errorf("outcome %d balance: %w", i, err)
			}
			if bal == 0 {
				continue
			}
			if err := tok.Transfer(ctx, m.account, m.creator, bal); err != nil {
				return fmt.Errorf("hand over outcome %d tokens: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("market: close: %w", err)
	}
	return nil
}

// WithdrawFees transfers the market's entire collateral balance to the
// creator and returns the amount moved. Creator-only. The balance is not
// split into fee revenue and undeployed principal; both drain together.
func (m *Market) WithdrawFees(ctx context.Context, caller domain.Account) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if caller != m.creator {
		return 0, fmt.Errorf("market: withdraw fees: caller %s is not the creator: %w", caller, domain.ErrUnauthorized)
	}

	collateral := m.event.CollateralToken()
	amount, err := collateral.BalanceOf(ctx, m.account)
	if err != nil {
		return 0, fmt.Errorf("market: withdraw fees: balance: %w", err)
	}
	if amount == 0 {
		return 0, nil
	}
	if err := collateral.Transfer(ctx, m.account, m.creator, amount); err != nil {
		return 0, fmt.Errorf("market: withdraw fees: %w", err)
	}
	return amount, nil
}

func (m *Market) checkOutcome(outcome int) error {
	if outcome < 0 || outcome >= len(m.netExposure) {
		return fmt.Errorf("outcome %d of %d: %w", outcome, len(m.netExposure), domain.ErrInvalidOutcome)
	}
	return nil
}
