// Package service orchestrates market operations: it owns the registry of
// live market engines, routes trades into them, and maintains the read-model
// side effects (trade history, snapshots, event publishing) around each
// completed operation.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xyzseer/conditional-tokens-contracts/internal/domain"
	"github.com/xyzseer/conditional-tokens-contracts/internal/market"
)

// TradeChannel is the signal bus channel trade events are published on.
const TradeChannel = "trades"

// Factory builds a new market engine for Create. The application wires it to
// the deployment's ledger, outcome set construction, and pricing oracle.
type Factory func(creator domain.Account, outcomeCount int, feeFraction uint64) (*market.Market, error)

// MarketService is the orchestration layer over the market engines. Engine
// state is authoritative; stores and caches are write-through read models,
// and their failures are logged but never roll back a completed trade.
type MarketService struct {
	mu      sync.RWMutex
	markets map[uuid.UUID]*market.Market

	factory Factory
	trades  domain.TradeStore
	store   domain.MarketStore
	cache   domain.MarketCache
	bus     domain.SignalBus
	logger  *slog.Logger
}

// NewMarketService creates a MarketService with all required dependencies.
func NewMarketService(
	factory Factory,
	trades domain.TradeStore,
	store domain.MarketStore,
	cache domain.MarketCache,
	bus domain.SignalBus,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{
		markets: make(map[uuid.UUID]*market.Market),
		factory: factory,
		trades:  trades,
		store:   store,
		cache:   cache,
		bus:     bus,
		logger:  logger.With(slog.String("component", "market_service")),
	}
}

// Create builds and registers a new market.
func (s *MarketService) Create(ctx context.Context, creator domain.Account, outcomeCount int, feeFraction uint64) (domain.MarketInfo, error) {
	m, err := s.factory(creator, outcomeCount, feeFraction)
	if err != nil {
		return domain.MarketInfo{}, fmt.Errorf("market_service: create: %w", err)
	}

	s.mu.Lock()
	s.markets[m.ID()] = m
	s.mu.Unlock()

	info := s.snapshot(ctx, m)
	s.logger.InfoContext(ctx, "market_service: market created",
		slog.String("market_id", m.ID().String()),
		slog.String("creator", creator.Hex()),
		slog.Int("outcomes", outcomeCount),
		slog.Uint64("fee_fraction", feeFraction),
	)
	return info, nil
}

// Get returns a market snapshot. A locally registered engine is
// authoritative and always wins; the cache and store only serve markets
// that are not resident in this process.
func (s *MarketService) Get(ctx context.Context, id uuid.UUID) (domain.MarketInfo, error) {
	if m := s.engine(id); m != nil {
		return m.Info(), nil
	}

	if info, err := s.cache.Get(ctx, id); err == nil {
		return info, nil
	}

	info, err := s.store.GetByID(ctx, id)
	if err != nil {
		return domain.MarketInfo{}, fmt.Errorf("market_service: get %s: %w", id, err)
	}
	return info, nil
}

// List returns snapshots of all registered markets, newest first.
func (s *MarketService) List(ctx context.Context, opts domain.ListOpts) ([]domain.MarketInfo, error) {
	s.mu.RLock()
	infos := make([]domain.MarketInfo, 0, len(s.markets))
	for _, m := range s.markets {
		infos = append(infos, m.Info())
	}
	s.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.After(infos[j].CreatedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(infos) {
			return []domain.MarketInfo{}, nil
		}
		infos = infos[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(infos) {
		infos = infos[:opts.Limit]
	}
	return infos, nil
}

// Count returns the number of registered markets.
func (s *MarketService) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.markets)), nil
}

// Fund routes a funding operation into the market engine and records it.
func (s *MarketService) Fund(ctx context.Context, id uuid.UUID, caller domain.Account, amount uint64) error {
	m, err := s.require(id)
	if err != nil {
		return err
	}
	if err := m.Fund(ctx, caller, amount); err != nil {
		return err
	}
	s.afterOperation(ctx, m, domain.TradeRecord{
		Kind:   domain.TradeKindFund,
		Trader: caller,
		Count:  amount,
		Net:    amount,
	})
	return nil
}

// Buy executes a buy trade and returns the cost charged.
func (s *MarketService) Buy(ctx context.Context, id uuid.UUID, buyer domain.Account, outcome int, count, maxCost uint64) (uint64, error) {
	m, err := s.require(id)
	if err != nil {
		return 0, err
	}
	rcpt, err := m.Buy(ctx, buyer, outcome, count, maxCost)
	if err != nil {
		return 0, err
	}
	s.afterOperation(ctx, m, domain.TradeRecord{
		Kind:    domain.TradeKindBuy,
		Trader:  buyer,
		Outcome: outcome,
		Count:   count,
		Gross:   rcpt.Gross,
		Fee:     rcpt.Fee,
		Net:     rcpt.Net,
	})
	return rcpt.Net, nil
}

// Sell executes a sell trade and returns the profit paid out.
func (s *MarketService) Sell(ctx context.Context, id uuid.UUID, seller domain.Account, outcome int, count, minProfit uint64) (uint64, error) {
	m, err := s.require(id)
	if err != nil {
		return 0, err
	}
	rcpt, err := m.Sell(ctx, seller, outcome, count, minProfit)
	if err != nil {
		return 0, err
	}
	s.afterOperation(ctx, m, domain.TradeRecord{
		Kind:    domain.TradeKindSell,
		Trader:  seller,
		Outcome: outcome,
		Count:   count,
		Gross:   rcpt.Gross,
		Fee:     rcpt.Fee,
		Net:     rcpt.Net,
	})
	return rcpt.Net, nil
}

// ShortSell executes a short sell and returns the net cost.
func (s *MarketService) ShortSell(ctx context.Context, id uuid.UUID, trader domain.Account, outcome int, count, minProfit uint64) (uint64, error) {
	m, err := s.require(id)
	if err != nil {
		return 0, err
	}
	rcpt, err := m.ShortSell(ctx, trader, outcome, count, minProfit)
	if err != nil {
		return 0, err
	}
	s.afterOperation(ctx, m, domain.TradeRecord{
		Kind:    domain.TradeKindShortSell,
		Trader:  trader,
		Outcome: outcome,
		Count:   count,
		Gross:   rcpt.Gross,
		Fee:     rcpt.Fee,
		Net:     rcpt.Net,
	})
	return rcpt.Net, nil
}

// Close liquidates the market's outcome token custody to the creator.
func (s *MarketService) Close(ctx context.Context, id uuid.UUID, caller domain.Account) error {
	m, err := s.require(id)
	if err != nil {
		return err
	}
	if err := m.Close(ctx, caller); err != nil {
		return err
	}
	s.afterOperation(ctx, m, domain.TradeRecord{
		Kind:   domain.TradeKindClose,
		Trader: caller,
	})
	return nil
}

// WithdrawFees drains the market's collateral balance to the creator.
func (s *MarketService) WithdrawFees(ctx context.Context, id uuid.UUID, caller domain.Account) (uint64, error) {
	m, err := s.require(id)
	if err != nil {
		return 0, err
	}
	amount, err := m.WithdrawFees(ctx, caller)
	if err != nil {
		return 0, err
	}
	s.afterOperation(ctx, m, domain.TradeRecord{
		Kind:   domain.TradeKindWithdraw,
		Trader: caller,
		Net:    amount,
	})
	return amount, nil
}

// Trades returns the recorded trade history for a market.
func (s *MarketService) Trades(ctx context.Context, id uuid.UUID, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	trades, err := s.trades.ListByMarket(ctx, id, opts)
	if err != nil {
		return nil, fmt.Errorf("market_service: trades for %s: %w", id, err)
	}
	return trades, nil
}

// TradesByTrader returns one account's recorded trades across all markets.
func (s *MarketService) TradesByTrader(ctx context.Context, trader domain.Account, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	trades, err := s.trades.ListByTrader(ctx, trader, opts)
	if err != nil {
		return nil, fmt.Errorf("market_service: trades for trader %s: %w", trader.Hex(), err)
	}
	return trades, nil
}

func (s *MarketService) engine(id uuid.UUID) *market.Market {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.markets[id]
}

func (s *MarketService) require(id uuid.UUID) (*market.Market, error) {
	if m := s.engine(id); m != nil {
		return m, nil
	}
	return nil, fmt.Errorf("market_service: market %s: %w", id, domain.ErrNotFound)
}

// afterOperation runs the read-model side effects of a completed operation:
// trade record, snapshot upsert, cache refresh, and event publish. Failures
// are logged and swallowed; the trade itself already happened.
func (s *MarketService) afterOperation(ctx context.Context, m *market.Market, rec domain.TradeRecord) {
	rec.ID = uuid.New()
	rec.MarketID = m.ID()
	rec.CreatedAt = time.Now().UTC()

	if err := s.trades.Insert(ctx, rec); err != nil {
		s.logger.WarnContext(ctx, "market_service: trade record insert failed",
			slog.String("market_id", rec.MarketID.String()),
			slog.String("kind", string(rec.Kind)),
			slog.String("error", err.Error()),
		)
	}

	s.snapshot(ctx, m)

	evt, _ := json.Marshal(map[string]any{
		"event":     "trade_executed",
		"trade_id":  rec.ID.String(),
		"market_id": rec.MarketID.String(),
		"kind":      rec.Kind,
		"trader":    rec.Trader.Hex(),
		"outcome":   rec.Outcome,
		"count":     rec.Count,
		"net":       rec.Net,
		"timestamp": rec.CreatedAt.Format(time.RFC3339),
	})
	if err := s.bus.Publish(ctx, TradeChannel, evt); err != nil {
		s.logger.WarnContext(ctx, "market_service: publish event failed",
			slog.String("market_id", rec.MarketID.String()),
			slog.String("error", err.Error()),
		)
	}
}

// snapshot writes the market's current state through to the store and cache.
func (s *MarketService) snapshot(ctx context.Context, m *market.Market) domain.MarketInfo {
	info := m.Info()
	info.UpdatedAt = time.Now().UTC()

	if err := s.store.Upsert(ctx, info); err != nil {
		s.logger.WarnContext(ctx, "market_service: snapshot upsert failed",
			slog.String("market_id", info.ID.String()),
			slog.String("error", err.Error()),
		)
	}
	if err := s.cache.Set(ctx, info); err != nil {
		s.logger.WarnContext(ctx, "market_service: snapshot cache failed",
			slog.String("market_id", info.ID.String()),
			slog.String("error", err.Error()),
		)
		// Drop whatever the cache still holds rather than serve it stale
		// until TTL expiry.
		if err := s.cache.Invalidate(ctx, info.ID); err != nil {
			s.logger.WarnContext(ctx, "market_service: snapshot invalidate failed",
				slog.String("market_id", info.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
	return info
}
