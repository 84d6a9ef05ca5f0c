package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xyzseer/conditional-tokens-contracts/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a new TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `id, market_id, kind, trader, outcome,
	count, gross, fee, net, created_at`

func scanTradeRows(rows pgx.Rows) ([]domain.TradeRecord, error) {
	var trades []domain.TradeRecord
	for rows.Next() {
		var (
			t                      domain.TradeRecord
			kind, trader           string
			count, gross, fee, net int64
		)
		if err := rows.Scan(
			&t.ID, &t.MarketID, &kind, &trader, &t.Outcome,
			&count, &gross, &fee, &net, &t.CreatedAt,
		); err != nil {
			return nil, err
		}
		t.Kind = domain.TradeKind(kind)
		acct, ok := domain.ParseAccount(trader)
		if !ok {
			return nil, fmt.Errorf("malformed trader column %q", trader)
		}
		t.Trader = acct
		t.Count = uint64(count)
		t.Gross = uint64(gross)
		t.Fee = uint64(fee)
		t.Net = uint64(net)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Insert appends a single trade record. Records are immutable; a duplicate
// primary key is silently skipped via ON CONFLICT DO NOTHING.
func (s *TradeStore) Insert(ctx context.Context, trade domain.TradeRecord) error {
	const query = `
		INSERT INTO trades (
			id, market_id, kind, trader, outcome,
			count, gross, fee, net, created_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10
		) ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		trade.ID, trade.MarketID, string(trade.Kind),
		trade.Trader.Hex(), trade.Outcome,
		int64(trade.Count), int64(trade.Gross),
		int64(trade.Fee), int64(trade.Net),
		trade.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade %s: %w", trade.ID, err)
	}
	return nil
}

// ListByMarket returns trades for a given market with pagination and
// optional time filtering, newest first.
func (s *TradeStore) ListByMarket(ctx context.Context, marketID uuid.UUID, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades WHERE market_id = $1`
	args := []any{marketID}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades by market: %w", err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades by market: %w", err)
	}
	return trades, nil
}

// ListByTrader returns trades executed by the given account with pagination
// and optional time filtering, newest first.
func (s *TradeStore) ListByTrader(ctx context.Context, trader domain.Account, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades WHERE trader = $1`
	args := []any{trader.Hex()}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades by trader: %w", err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades by trader: %w", err)
	}
	return trades, nil
}
