package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/xyzseer/conditional-tokens-contracts/internal/blob/s3"
	"github.com/xyzseer/conditional-tokens-contracts/internal/cache/redis"
	"github.com/xyzseer/conditional-tokens-contracts/internal/config"
	"github.com/xyzseer/conditional-tokens-contracts/internal/domain"
	"github.com/xyzseer/conditional-tokens-contracts/internal/event"
	"github.com/xyzseer/conditional-tokens-contracts/internal/ledger"
	"github.com/xyzseer/conditional-tokens-contracts/internal/market"
	"github.com/xyzseer/conditional-tokens-contracts/internal/oracle"
	"github.com/xyzseer/conditional-tokens-contracts/internal/service"
	"github.com/xyzseer/conditional-tokens-contracts/internal/store/postgres"
)

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Book    *ledger.Book
	Service *service.MarketService

	MarketStore domain.MarketStore
	TradeStore  domain.TradeStore
	MarketCache domain.MarketCache
	SignalBus   domain.SignalBus

	Archiver *s3blob.TradeArchiver // nil unless S3 and the archiver are configured
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
//
// Backends degrade gracefully: with no Postgres the read model lives in
// memory, with no Redis the cache and signal bus do, and with no S3 the
// archiver is simply absent. The engine itself never depends on any of them.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Book: ledger.NewBook(),
	}

	// --- PostgreSQL read model ---
	if cfg.Postgres.Enabled() {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.MarketStore = postgres.NewMarketStore(pool)
		deps.TradeStore = postgres.NewTradeStore(pool)
	} else {
		deps.MarketStore = newMemMarketStore()
		deps.TradeStore = newMemTradeStore()
	}

	// --- Redis cache and signal bus ---
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.MarketCache = redis.NewMarketCache(redisClient, cfg.Redis.CacheTTLDuration())
		deps.SignalBus = redis.NewSignalBus(redisClient)
	} else {
		deps.MarketCache = newMemMarketCache()
		deps.SignalBus = newMemSignalBus()
	}

	// --- S3 trade archival ---
	if cfg.S3.Enabled() {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		if cfg.Archiver.Enabled {
			deps.Archiver = s3blob.NewTradeArchiver(
				s3blob.NewWriter(s3Client),
				deps.MarketStore,
				deps.TradeStore,
				logger,
			)
		}
	}

	// --- Market engine wiring ---
	book := deps.Book
	pricing := oracle.NewUniform(cfg.Market.OraclePrice)
	collateral := cfg.Market.CollateralSymbol
	maxFee := cfg.Market.MaxFeeFraction

	factory := func(creator domain.Account, outcomeCount int, feeFraction uint64) (*market.Market, error) {
		if feeFraction > maxFee {
			return nil, fmt.Errorf("wire: fee fraction %d above configured cap %d: %w",
				feeFraction, maxFee, domain.ErrInvalidConstruction)
		}
		set, err := event.New(book, collateral, outcomeCount)
		if err != nil {
			return nil, err
		}
		return market.New(market.Config{
			Creator:     creator,
			OutcomeSet:  set,
			Oracle:      pricing,
			Atomic:      book,
			FeeFraction: feeFraction,
		})
	}

	deps.Service = service.NewMarketService(
		factory,
		deps.TradeStore,
		deps.MarketStore,
		deps.MarketCache,
		deps.SignalBus,
		logger,
	)

	return deps, cleanup, nil
}
