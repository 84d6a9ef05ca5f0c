package app

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/xyzseer/conditional-tokens-contracts/internal/domain"
)

// In-memory read-model backends, used when Postgres or Redis is not
// configured. They keep single-process deployments and the demo mode fully
// functional without external services.

type memMarketStore struct {
	mu    sync.RWMutex
	infos map[uuid.UUID]domain.MarketInfo
}

func newMemMarketStore() *memMarketStore {
	return &memMarketStore{infos: make(map[uuid.UUID]domain.MarketInfo)}
}

func (s *memMarketStore) Upsert(ctx context.Context, info domain.MarketInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.infos[info.ID] = info
	return nil
}

func (s *memMarketStore) GetByID(ctx context.Context, id uuid.UUID) (domain.MarketInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.infos[id]
	if !ok {
		return domain.MarketInfo{}, domain.ErrNotFound
	}
	return info, nil
}

func (s *memMarketStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.MarketInfo, error) {
	s.mu.RLock()
	infos := make([]domain.MarketInfo, 0, len(s.infos))
	for _, info := range s.infos {
		if opts.Since != nil && info.CreatedAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && info.CreatedAt.After(*opts.Until) {
			continue
		}
		infos = append(infos, info)
	}
	s.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.After(infos[j].CreatedAt)
	})
	return window(infos, opts), nil
}

func (s *memMarketStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.infos)), nil
}

type memTradeStore struct {
	mu     sync.RWMutex
	trades []domain.TradeRecord
}

func newMemTradeStore() *memTradeStore {
	return &memTradeStore{}
}

func (s *memTradeStore) Insert(ctx context.Context, trade domain.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = append(s.trades, trade)
	return nil
}

func (s *memTradeStore) ListByMarket(ctx context.Context, marketID uuid.UUID, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	return s.list(func(t domain.TradeRecord) bool { return t.MarketID == marketID }, opts)
}

func (s *memTradeStore) ListByTrader(ctx context.Context, trader domain.Account, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	return s.list(func(t domain.TradeRecord) bool { return t.Trader == trader }, opts)
}

func (s *memTradeStore) list(match func(domain.TradeRecord) bool, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	s.mu.RLock()
	var out []domain.TradeRecord
	for _, t := range s.trades {
		if !match(t) {
			continue
		}
		if opts.Since != nil && t.CreatedAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && t.CreatedAt.After(*opts.Until) {
			continue
		}
		out = append(out, t)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return window(out, opts), nil
}

// window applies offset/limit to an already-sorted slice.
func window[T any](items []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return []T{}
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}

type memMarketCache struct {
	mu    sync.RWMutex
	infos map[uuid.UUID]domain.MarketInfo
}

func newMemMarketCache() *memMarketCache {
	return &memMarketCache{infos: make(map[uuid.UUID]domain.MarketInfo)}
}

func (c *memMarketCache) Set(ctx context.Context, info domain.MarketInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.infos[info.ID] = info
	return nil
}

func (c *memMarketCache) Get(ctx context.Context, id uuid.UUID) (domain.MarketInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.infos[id]
	if !ok {
		return domain.MarketInfo{}, domain.ErrNotFound
	}
	return info, nil
}

func (c *memMarketCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.infos, id)
	return nil
}

type memSignalBus struct {
	mu   sync.Mutex
	subs map[string][]chan []byte
}

func newMemSignalBus() *memSignalBus {
	return &memSignalBus{subs: make(map[string][]chan []byte)}
}

func (b *memSignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[channel] {
		select {
		case ch <- payload:
		default:
			// Slow subscriber; drop rather than block the publisher.
		}
	}
	return nil
}

func (b *memSignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	if ctx.Err() != nil {
		return nil, fmt.Errorf("membus: subscribe %s: %w", channel, ctx.Err())
	}

	ch := make(chan []byte, 128)
	b.mu.Lock()
	b.subs[channel] = append(b.subs[channel], ch)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		subs := b.subs[channel]
		for i, c := range subs {
			if c == ch {
				b.subs[channel] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

var (
	_ domain.MarketStore = (*memMarketStore)(nil)
	_ domain.TradeStore  = (*memTradeStore)(nil)
	_ domain.MarketCache = (*memMarketCache)(nil)
	_ domain.SignalBus   = (*memSignalBus)(nil)
)
