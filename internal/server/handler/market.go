package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/xyzseer/conditional-tokens-contracts/internal/domain"
)

// MarketService defines the methods that the market handler requires from the
// service layer. It is declared locally so the handler package does not depend
// on the concrete service implementation.
type MarketService interface {
	Create(ctx context.Context, creator domain.Account, outcomeCount int, feeFraction uint64) (domain.MarketInfo, error)
	Get(ctx context.Context, id uuid.UUID) (domain.MarketInfo, error)
	List(ctx context.Context, opts domain.ListOpts) ([]domain.MarketInfo, error)
	Count(ctx context.Context) (int64, error)
	Fund(ctx context.Context, id uuid.UUID, caller domain.Account, amount uint64) error
	Buy(ctx context.Context, id uuid.UUID, buyer domain.Account, outcome int, count, maxCost uint64) (uint64, error)
	Sell(ctx context.Context, id uuid.UUID, seller domain.Account, outcome int, count, minProfit uint64) (uint64, error)
	ShortSell(ctx context.Context, id uuid.UUID, trader domain.Account, outcome int, count, minProfit uint64) (uint64, error)
	Close(ctx context.Context, id uuid.UUID, caller domain.Account) error
	WithdrawFees(ctx context.Context, id uuid.UUID, caller domain.Account) (uint64, error)
}

// MarketHandler serves market-related HTTP endpoints.
type MarketHandler struct {
	markets MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given service and logger.
func NewMarketHandler(markets MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		logger:  logger,
	}
}

// createMarketRequest is the body for POST /api/markets.
type createMarketRequest struct {
	Creator      string `json:"creator"`
	OutcomeCount int    `json:"outcome_count"`
	FeeFraction  uint64 `json:"fee_fraction"`
}

// tradeRequest is the shared body for the fund/buy/sell/shortsell endpoints.
// MaxCost doubles as the minimum profit bound for the sell-side operations.
type tradeRequest struct {
	Caller  string `json:"caller"`
	Outcome int    `json:"outcome"`
	Count   uint64 `json:"count"`
	Amount  uint64 `json:"amount"`
	MaxCost uint64 `json:"max_cost"`
	MinProf uint64 `json:"min_profit"`
}

// callerRequest is the body for creator-only endpoints (close, withdraw-fees).
type callerRequest struct {
	Caller string `json:"caller"`
}

// listMarketsResponse wraps the list endpoint output with metadata.
type listMarketsResponse struct {
	Markets []domain.MarketInfo `json:"markets"`
	Total   int64               `json:"total"`
	Limit   int                 `json:"limit"`
	Offset  int                 `json:"offset"`
}

// tradeResponse reports the collateral actually moved by a trade.
type tradeResponse struct {
	MarketID uuid.UUID `json:"market_id"`
	Amount   uint64    `json:"amount"`
}

// CreateMarket builds and registers a new market.
// POST /api/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	creator, ok := domain.ParseAccount(req.Creator)
	if !ok {
		writeError(w, http.StatusBadRequest, "malformed creator account")
		return
	}

	info, err := h.markets.Create(r.Context(), creator, req.OutcomeCount, req.FeeFraction)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: create market failed",
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, info)
}

// ListMarkets returns registered markets with pagination.
// GET /api/markets?limit=50&offset=0
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	markets, err := h.markets.List(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list markets failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list markets")
		return
	}

	total, err := h.markets.Count(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: count markets failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to count markets")
		return
	}

	writeJSON(w, http.StatusOK, listMarketsResponse{
		Markets: markets,
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}

// GetMarket returns a single market snapshot by its ID.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed market id")
		return
	}

	info, err := h.markets.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

// Fund moves collateral from the creator into the market and converts it to
// complete outcome sets.
// POST /api/markets/{id}/fund
func (h *MarketHandler) Fund(w http.ResponseWriter, r *http.Request) {
	id, caller, req, ok := h.tradeParams(w, r)
	if !ok {
		return
	}

	if err := h.markets.Fund(r.Context(), id, caller, req.Amount); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tradeResponse{MarketID: id, Amount: req.Amount})
}

// Buy purchases outcome tokens, bounded by max_cost.
// POST /api/markets/{id}/buy
func (h *MarketHandler) Buy(w http.ResponseWriter, r *http.Request) {
	id, caller, req, ok := h.tradeParams(w, r)
	if !ok {
		return
	}

	cost, err := h.markets.Buy(r.Context(), id, caller, req.Outcome, req.Count, req.MaxCost)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tradeResponse{MarketID: id, Amount: cost})
}

// Sell returns outcome tokens for collateral, bounded below by min_profit.
// POST /api/markets/{id}/sell
func (h *MarketHandler) Sell(w http.ResponseWriter, r *http.Request) {
	id, caller, req, ok := h.tradeParams(w, r)
	if !ok {
		return
	}

	profit, err := h.markets.Sell(r.Context(), id, caller, req.Outcome, req.Count, req.MinProf)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tradeResponse{MarketID: id, Amount: profit})
}

// ShortSell acquires every outcome except one, bounded below by min_profit.
// POST /api/markets/{id}/shortsell
func (h *MarketHandler) ShortSell(w http.ResponseWriter, r *http.Request) {
	id, caller, req, ok := h.tradeParams(w, r)
	if !ok {
		return
	}

	cost, err := h.markets.ShortSell(r.Context(), id, caller, req.Outcome, req.Count, req.MinProf)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tradeResponse{MarketID: id, Amount: cost})
}

// CloseMarket transfers the market's outcome token custody to the creator.
// POST /api/markets/{id}/close
func (h *MarketHandler) CloseMarket(w http.ResponseWriter, r *http.Request) {
	id, caller, ok := h.callerParams(w, r)
	if !ok {
		return
	}

	if err := h.markets.Close(r.Context(), id, caller); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tradeResponse{MarketID: id})
}

// WithdrawFees drains the market's collateral balance to the creator.
// POST /api/markets/{id}/withdraw-fees
func (h *MarketHandler) WithdrawFees(w http.ResponseWriter, r *http.Request) {
	id, caller, ok := h.callerParams(w, r)
	if !ok {
		return
	}

	amount, err := h.markets.WithdrawFees(r.Context(), id, caller)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tradeResponse{MarketID: id, Amount: amount})
}

func (h *MarketHandler) tradeParams(w http.ResponseWriter, r *http.Request) (uuid.UUID, domain.Account, tradeRequest, bool) {
	id, err := marketID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed market id")
		return uuid.UUID{}, domain.Account{}, tradeRequest{}, false
	}

	var req tradeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return uuid.UUID{}, domain.Account{}, tradeRequest{}, false
	}

	caller, ok := domain.ParseAccount(req.Caller)
	if !ok {
		writeError(w, http.StatusBadRequest, "malformed caller account")
		return uuid.UUID{}, domain.Account{}, tradeRequest{}, false
	}

	return id, caller, req, true
}

func (h *MarketHandler) callerParams(w http.ResponseWriter, r *http.Request) (uuid.UUID, domain.Account, bool) {
	id, err := marketID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed market id")
		return uuid.UUID{}, domain.Account{}, false
	}

	var req callerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return uuid.UUID{}, domain.Account{}, false
	}

	caller, ok := domain.ParseAccount(req.Caller)
	if !ok {
		writeError(w, http.StatusBadRequest, "malformed caller account")
		return uuid.UUID{}, domain.Account{}, false
	}

	return id, caller, true
}
