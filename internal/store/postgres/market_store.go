package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xyzseer/conditional-tokens-contracts/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketCols = `id, creator, address, outcome_count, fee_fraction,
	funding, net_exposure, created_at, updated_at`

// Upsert inserts or updates a single market snapshot.
func (s *MarketStore) Upsert(ctx context.Context, info domain.MarketInfo) error {
	const query = `
		INSERT INTO markets (
			id, creator, address, outcome_count, fee_fraction,
			funding, net_exposure, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9
		)
		ON CONFLICT (id) DO UPDATE SET
			fee_fraction = EXCLUDED.fee_fraction,
			funding      = EXCLUDED.funding,
			net_exposure = EXCLUDED.net_exposure,
			updated_at   = EXCLUDED.updated_at`

	_, err := s.pool.Exec(ctx, query,
		info.ID, info.Creator.Hex(), info.Address.Hex(),
		info.OutcomeCount, int64(info.FeeFraction),
		int64(info.Funding), info.NetExposure,
		info.CreatedAt, info.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert market %s: %w", info.ID, err)
	}
	return nil
}

func scanMarket(row pgx.Row) (domain.MarketInfo, error) {
	var (
		info             domain.MarketInfo
		creator, address string
		feeFrac, funding int64
	)
	err := row.Scan(
		&info.ID, &creator, &address,
		&info.OutcomeCount, &feeFrac,
		&funding, &info.NetExposure,
		&info.CreatedAt, &info.UpdatedAt,
	)
	if err != nil {
		return domain.MarketInfo{}, err
	}

	var ok bool
	if info.Creator, ok = domain.ParseAccount(creator); !ok {
		return domain.MarketInfo{}, fmt.Errorf("malformed creator column %q", creator)
	}
	if info.Address, ok = domain.ParseAccount(address); !ok {
		return domain.MarketInfo{}, fmt.Errorf("malformed address column %q", address)
	}
	info.FeeFraction = uint64(feeFrac)
	info.Funding = uint64(funding)
	return info, nil
}

// GetByID retrieves a market snapshot by its primary key.
func (s *MarketStore) GetByID(ctx context.Context, id uuid.UUID) (domain.MarketInfo, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE id = $1`, id)
	info, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.MarketInfo{}, domain.ErrNotFound
		}
		return domain.MarketInfo{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return info, nil
}

// List returns market snapshots newest first, with pagination and optional
// time filtering on created_at.
func (s *MarketStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.MarketInfo, error) {
	query := `SELECT ` + marketCols + ` FROM markets WHERE 1=1`
	args := []any{}
	argIdx := 1

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
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var infos []domain.MarketInfo
	for rows.Next() {
		info, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets rows: %w", err)
	}
	return infos, nil
}

// Count returns the total number of markets in the database.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM markets").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return count, nil
}
