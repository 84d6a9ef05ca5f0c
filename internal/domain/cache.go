package domain

import (
	"context"

	"github.com/google/uuid"
)

// MarketCache provides fast market snapshot lookups.
type MarketCache interface {
	Set(ctx context.Context, info MarketInfo) error
	Get(ctx context.Context, id uuid.UUID) (MarketInfo, error)
	Invalidate(ctx context.Context, id uuid.UUID) error
}

// SignalBus provides pub/sub fan-out of trade events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
