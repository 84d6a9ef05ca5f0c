package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/xyzseer/conditional-tokens-contracts/internal/domain"
	"github.com/xyzseer/conditional-tokens-contracts/internal/event"
	"github.com/xyzseer/conditional-tokens-contracts/internal/ledger"
	"github.com/xyzseer/conditional-tokens-contracts/internal/market"
	"github.com/xyzseer/conditional-tokens-contracts/internal/oracle"
)

type memTradeStore struct {
	mu     sync.Mutex
	trades []domain.TradeRecord
	err    error
}

func (s *memTradeStore) Insert(ctx context.Context, trade domain.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.trades = append(s.trades, trade)
	return nil
}

func (s *memTradeStore) ListByMarket(ctx context.Context, marketID uuid.UUID, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.TradeRecord
	for _, t := range s.trades {
		if t.MarketID == marketID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *memTradeStore) ListByTrader(ctx context.Context, trader domain.Account, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.TradeRecord
	for _, t := range s.trades {
		if t.Trader == trader {
			out = append(out, t)
		}
	}
	return out, nil
}

type memMarketStore struct {
	mu    sync.Mutex
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
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.infos[id]
	if !ok {
		return domain.MarketInfo{}, domain.ErrNotFound
	}
	return info, nil
}

func (s *memMarketStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.MarketInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.MarketInfo, 0, len(s.infos))
	for _, info := range s.infos {
		out = append(out, info)
	}
	return out, nil
}

func (s *memMarketStore) Count(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.infos)), nil
}

type memCache struct {
	mu     sync.Mutex
	infos  map[uuid.UUID]domain.MarketInfo
	setErr error
}

func newMemCache() *memCache {
	return &memCache{infos: make(map[uuid.UUID]domain.MarketInfo)}
}

func (c *memCache) Set(ctx context.Context, info domain.MarketInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.infos[info.ID] = info
	return nil
}

func (c *memCache) failWrites(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setErr = err
}

func (c *memCache) holds(id uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.infos[id]
	return ok
}

func (c *memCache) Get(ctx context.Context, id uuid.UUID) (domain.MarketInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.infos[id]
	if !ok {
		return domain.MarketInfo{}, domain.ErrNotFound
	}
	return info, nil
}

func (c *memCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.infos, id)
	return nil
}

type memBus struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (b *memBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.payloads = append(b.payloads, payload)
	return nil
}

func (b *memBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

type harness struct {
	svc     *MarketService
	book    *ledger.Book
	trades  *memTradeStore
	store   *memMarketStore
	cache   *memCache
	bus     *memBus
	creator domain.Account
	alice   domain.Account
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	book := ledger.NewBook()
	orc := oracle.NewUniform(1)
	factory := func(creator domain.Account, outcomeCount int, feeFraction uint64) (*market.Market, error) {
		set, err := event.New(book, "USD", outcomeCount)
		if err != nil {
			return nil, err
		}
		return market.New(market.Config{
			Creator:     creator,
			OutcomeSet:  set,
			Oracle:      orc,
			Atomic:      book,
			FeeFraction: feeFraction,
		})
	}

	trades := &memTradeStore{}
	store := newMemMarketStore()
	cache := newMemCache()
	bus := &memBus{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewMarketService(factory, trades, store, cache, bus, logger)

	creator := common.BytesToAddress([]byte{1})
	alice := common.BytesToAddress([]byte{2})
	for _, a := range []domain.Account{creator, alice} {
		if err := book.Mint("USD", a, 10_000); err != nil {
			t.Fatalf("mint: %v", err)
		}
	}

	return &harness{svc: svc, book: book, trades: trades, store: store, cache: cache, bus: bus, creator: creator, alice: alice}
}

func TestCreateAndGet(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	info, err := h.svc.Create(ctx, h.creator, 2, 20_000)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if info.OutcomeCount != 2 || info.FeeFraction != 20_000 {
		t.Fatalf("info: got=%+v", info)
	}

	got, err := h.svc.Get(ctx, info.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != info.ID || got.Creator != h.creator {
		t.Fatalf("Get: got=%+v want id=%s", got, info.ID)
	}

	if _, err := h.svc.Get(ctx, uuid.New()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown market: got err=%v want ErrNotFound", err)
	}

	// Creation is persisted to the snapshot store as well.
	if _, err := h.store.GetByID(ctx, info.ID); err != nil {
		t.Fatalf("store snapshot missing: %v", err)
	}
}

func TestTradeSideEffects(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	info, err := h.svc.Create(ctx, h.creator, 2, 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	collateral := h.book.Token("USD")
	marketAcct := info.Address
	if err := collateral.Approve(ctx, h.creator, marketAcct, 1000); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := h.svc.Fund(ctx, info.ID, h.creator, 1000); err != nil {
		t.Fatalf("Fund: %v", err)
	}

	if err := collateral.Approve(ctx, h.alice, marketAcct, 100); err != nil {
		t.Fatalf("approve: %v", err)
	}
	cost, err := h.svc.Buy(ctx, info.ID, h.alice, 0, 100, 100)
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if cost != 100 {
		t.Fatalf("cost: got=%d want=100", cost)
	}

	trades, err := h.svc.Trades(ctx, info.ID, domain.ListOpts{})
	if err != nil {
		t.Fatalf("Trades: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("trade records: got=%d want=2", len(trades))
	}
	if trades[0].Kind != domain.TradeKindFund || trades[1].Kind != domain.TradeKindBuy {
		t.Fatalf("trade kinds: got=%s,%s", trades[0].Kind, trades[1].Kind)
	}
	if trades[1].Net != 100 || trades[1].Count != 100 {
		t.Fatalf("buy record: got=%+v", trades[1])
	}

	// One event per operation on the bus.
	h.bus.mu.Lock()
	events := len(h.bus.payloads)
	var last map[string]any
	if events > 0 {
		if err := json.Unmarshal(h.bus.payloads[events-1], &last); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
	}
	h.bus.mu.Unlock()
	if events != 2 {
		t.Fatalf("bus events: got=%d want=2", events)
	}
	if last["event"] != "trade_executed" || last["kind"] != string(domain.TradeKindBuy) {
		t.Fatalf("last event: got=%v", last)
	}

	// The snapshot reflects the trade.
	snap, err := h.store.GetByID(ctx, info.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.NetExposure[0] != 100 {
		t.Fatalf("snapshot exposure: got=%v want=[100 0]", snap.NetExposure)
	}
}

func TestSideEffectFailureDoesNotFailTrade(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	info, err := h.svc.Create(ctx, h.creator, 2, 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	h.trades.err = errors.New("store down")

	collateral := h.book.Token("USD")
	if err := collateral.Approve(ctx, h.alice, info.Address, 50); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := h.svc.Buy(ctx, info.ID, h.alice, 1, 50, 50); err != nil {
		t.Fatalf("Buy with failing store: %v", err)
	}

	// The engine committed the trade even though the record write failed.
	got, err := h.svc.Get(ctx, info.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.NetExposure[1] != 50 {
		t.Fatalf("exposure: got=%v want=[0 50]", got.NetExposure)
	}
}

func TestGetPrefersLiveEngine(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	info, err := h.svc.Create(ctx, h.creator, 2, 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Plant a stale snapshot in the cache. The registered engine must win.
	stale := info
	stale.Funding = 424242
	if err := h.cache.Set(ctx, stale); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	got, err := h.svc.Get(ctx, info.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Funding == 424242 {
		t.Fatal("Get served the stale cached snapshot over the live engine")
	}
}

func TestFailedCacheWriteEvictsSnapshot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	info, err := h.svc.Create(ctx, h.creator, 2, 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !h.cache.holds(info.ID) {
		t.Fatal("create should populate the cache")
	}

	h.cache.failWrites(errors.New("cache down"))

	collateral := h.book.Token("USD")
	if err := collateral.Approve(ctx, h.creator, info.Address, 500); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := h.svc.Fund(ctx, info.ID, h.creator, 500); err != nil {
		t.Fatalf("Fund with failing cache: %v", err)
	}

	// The unrefreshable entry must be evicted, not left to serve stale data.
	if h.cache.holds(info.ID) {
		t.Fatal("stale snapshot still cached after failed refresh")
	}
}

func TestTradesByTrader(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	info, err := h.svc.Create(ctx, h.creator, 2, 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	collateral := h.book.Token("USD")
	if err := collateral.Approve(ctx, h.creator, info.Address, 1000); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := h.svc.Fund(ctx, info.ID, h.creator, 1000); err != nil {
		t.Fatalf("Fund: %v", err)
	}
	if err := collateral.Approve(ctx, h.alice, info.Address, 100); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := h.svc.Buy(ctx, info.ID, h.alice, 0, 100, 100); err != nil {
		t.Fatalf("Buy: %v", err)
	}

	mine, err := h.svc.TradesByTrader(ctx, h.alice, domain.ListOpts{})
	if err != nil {
		t.Fatalf("TradesByTrader: %v", err)
	}
	if len(mine) != 1 || mine[0].Kind != domain.TradeKindBuy || mine[0].Trader != h.alice {
		t.Fatalf("alice's trades: got=%+v want one buy", mine)
	}

	theirs, err := h.svc.TradesByTrader(ctx, h.creator, domain.ListOpts{})
	if err != nil {
		t.Fatalf("TradesByTrader: %v", err)
	}
	if len(theirs) != 1 || theirs[0].Kind != domain.TradeKindFund {
		t.Fatalf("creator's trades: got=%+v want one fund", theirs)
	}
}

func TestEngineErrorsPassThrough(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	info, err := h.svc.Create(ctx, h.creator, 2, 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := h.svc.Fund(ctx, info.ID, h.alice, 10); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("non-creator fund: got err=%v want ErrUnauthorized", err)
	}
	if _, err := h.svc.Buy(ctx, info.ID, h.alice, 5, 1, 1); !errors.Is(err, domain.ErrInvalidOutcome) {
		t.Fatalf("bad outcome: got err=%v want ErrInvalidOutcome", err)
	}

	// Failed operations leave no trade records behind.
	trades, err := h.svc.Trades(ctx, info.ID, domain.ListOpts{})
	if err != nil {
		t.Fatalf("Trades: %v", err)
	}
	if len(trades) != 0 {
		t.Fatalf("trade records after failures: got=%d want=0", len(trades))
	}
}
