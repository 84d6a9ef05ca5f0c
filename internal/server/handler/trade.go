package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/xyzseer/conditional-tokens-contracts/internal/domain"
)

// TradeService defines the trade-history methods the handler requires from
// the service layer.
type TradeService interface {
	Trades(ctx context.Context, id uuid.UUID, opts domain.ListOpts) ([]domain.TradeRecord, error)
	TradesByTrader(ctx context.Context, trader domain.Account, opts domain.ListOpts) ([]domain.TradeRecord, error)
}

// TradeHandler serves trade-history HTTP endpoints.
type TradeHandler struct {
	trades TradeService
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler with the given service and logger.
func NewTradeHandler(trades TradeService, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{
		trades: trades,
		logger: logger,
	}
}

// listTradesResponse wraps the trade list with its pagination window.
type listTradesResponse struct {
	Trades []domain.TradeRecord `json:"trades"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

// ListTrades returns the recorded trade history for a market, newest first.
// GET /api/markets/{id}/trades?limit=50&offset=0&since=...&until=...
func (h *TradeHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed market id")
		return
	}

	opts := parseListOpts(r)

	trades, err := h.trades.Trades(r.Context(), id, opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list trades failed",
			slog.String("market_id", id.String()),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}

	if trades == nil {
		trades = []domain.TradeRecord{}
	}
	writeJSON(w, http.StatusOK, listTradesResponse{
		Trades: trades,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
}

// ListTraderTrades returns one account's trade history across all markets,
// newest first.
// GET /api/traders/{account}/trades?limit=50&offset=0&since=...&until=...
func (h *TradeHandler) ListTraderTrades(w http.ResponseWriter, r *http.Request) {
	trader, ok := domain.ParseAccount(r.PathValue("account"))
	if !ok {
		writeError(w, http.StatusBadRequest, "malformed trader account")
		return
	}

	opts := parseListOpts(r)

	trades, err := h.trades.TradesByTrader(r.Context(), trader, opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list trader trades failed",
			slog.String("trader", trader.Hex()),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}

	if trades == nil {
		trades = []domain.TradeRecord{}
	}
	writeJSON(w, http.StatusOK, listTradesResponse{
		Trades: trades,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
}
