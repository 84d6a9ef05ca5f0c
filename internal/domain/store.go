package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// MarketStore persists market snapshots.
type MarketStore interface {
	Upsert(ctx context.Context, info MarketInfo) error
	GetByID(ctx context.Context, id uuid.UUID) (MarketInfo, error)
	List(ctx context.Context, opts ListOpts) ([]MarketInfo, error)
	Count(ctx context.Context) (int64, error)
}

// TradeStore persists the append-only trade history.
type TradeStore interface {
	Insert(ctx context.Context, trade TradeRecord) error
	ListByMarket(ctx context.Context, marketID uuid.UUID, opts ListOpts) ([]TradeRecord, error)
	ListByTrader(ctx context.Context, trader Account, opts ListOpts) ([]TradeRecord, error)
}
