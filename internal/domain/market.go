package domain

import (
	"time"

	"github.com/google/uuid"
)

// TradeKind labels the operation that produced a trade record.
type TradeKind string

const (
	TradeKindFund      TradeKind = "fund"
	TradeKindBuy       TradeKind = "buy"
	TradeKindSell      TradeKind = "sell"
	TradeKindShortSell TradeKind = "short_sell"
	TradeKindClose     TradeKind = "close"
	TradeKindWithdraw  TradeKind = "withdraw_fees"
)

// TradeRecord is the read-model row written after every completed market
// operation. Gross is the oracle's raw cost or payout before fees, Net the
// collateral that actually changed hands.
type TradeRecord struct {
	ID        uuid.UUID `json:"id"`
	MarketID  uuid.UUID `json:"market_id"`
	Kind      TradeKind `json:"kind"`
	Trader    Account   `json:"trader"`
	Outcome   int       `json:"outcome"`
	Count     uint64    `json:"count"`
	Gross     uint64    `json:"gross"`
	Fee       uint64    `json:"fee"`
	Net       uint64    `json:"net"`
	CreatedAt time.Time `json:"created_at"`
}

// MarketInfo is the persisted snapshot of a market's externally visible
// state. The engine's in-memory state is authoritative; MarketInfo exists
// for reporting, caching, and the HTTP API.
type MarketInfo struct {
	ID           uuid.UUID `json:"id"`
	Creator      Account   `json:"creator"`
	Address      Account   `json:"address"`
	OutcomeCount int       `json:"outcome_count"`
	FeeFraction  uint64    `json:"fee_fraction"`
	Funding      uint64    `json:"funding"`
	NetExposure  []int64   `json:"net_exposure"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
