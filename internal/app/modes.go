package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/sync/errgroup"

	"github.com/xyzseer/conditional-tokens-contracts/internal/domain"
	"github.com/xyzseer/conditional-tokens-contracts/internal/server"
	"github.com/xyzseer/conditional-tokens-contracts/internal/server/handler"
	"github.com/xyzseer/conditional-tokens-contracts/internal/server/ws"
	"github.com/xyzseer/conditional-tokens-contracts/internal/service"
)

// shutdownTimeout bounds how long the HTTP server gets to drain in-flight
// requests once the run context is cancelled.
const shutdownTimeout = 5 * time.Second

// ServeMode runs the HTTP/WebSocket API over the market service, plus the
// trade archiver when one is configured. It blocks until the context is
// cancelled.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)

	hub := ws.NewHub(deps.SignalBus, service.TradeChannel, a.logger)
	g.Go(func() error {
		if err := hub.Run(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("serve mode: ws hub: %w", err)
		}
		return nil
	})

	srv := server.NewServer(
		server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
		},
		server.Handlers{
			Health:  handler.NewHealthHandler(a.logger),
			Markets: handler.NewMarketHandler(deps.Service, a.logger),
			Trades:  handler.NewTradeHandler(deps.Service, a.logger),
		},
		hub,
		a.logger,
	)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	if deps.Archiver != nil {
		interval := a.cfg.Archiver.IntervalDuration()
		g.Go(func() error {
			if err := deps.Archiver.Run(ctx, interval); err != nil && ctx.Err() == nil {
				return fmt.Errorf("serve mode: archiver: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}

// DemoMode seeds an in-process ledger, drives one market through its
// lifecycle, and logs each step. It exists to exercise the whole stack
// without external infrastructure and exits when the script completes.
func (a *App) DemoMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting demo mode")

	const seed = uint64(1_000_000)
	symbol := a.cfg.Market.CollateralSymbol
	creator := demoAccount("creator")
	alice := demoAccount("alice")

	for _, acct := range []domain.Account{creator, alice} {
		if err := deps.Book.Mint(symbol, acct, seed); err != nil {
			return fmt.Errorf("demo: seed %s: %w", acct, err)
		}
	}

	info, err := deps.Service.Create(ctx, creator, 2, 20_000)
	if err != nil {
		return fmt.Errorf("demo: create market: %w", err)
	}

	// Traders approve the market's custody account before trading, the same
	// way an on-chain client would.
	collateral := deps.Book.Token(symbol)
	for _, acct := range []domain.Account{creator, alice} {
		if err := collateral.Approve(ctx, acct, info.Address, seed); err != nil {
			return fmt.Errorf("demo: approve: %w", err)
		}
	}

	if err := deps.Service.Fund(ctx, info.ID, creator, 1_000); err != nil {
		return fmt.Errorf("demo: fund: %w", err)
	}
	a.logger.InfoContext(ctx, "demo: market funded",
		slog.String("market_id", info.ID.String()),
		slog.Uint64("amount", 1_000),
	)

	cost, err := deps.Service.Buy(ctx, info.ID, alice, 0, 100, seed)
	if err != nil {
		return fmt.Errorf("demo: buy: %w", err)
	}
	a.logger.InfoContext(ctx, "demo: bought outcome tokens",
		slog.Int("outcome", 0),
		slog.Uint64("count", 100),
		slog.Uint64("cost", cost),
	)

	shortCost, err := deps.Service.ShortSell(ctx, info.ID, alice, 1, 50, 0)
	if err != nil {
		return fmt.Errorf("demo: short sell: %w", err)
	}
	a.logger.InfoContext(ctx, "demo: short sold outcome",
		slog.Int("outcome", 1),
		slog.Uint64("count", 50),
		slog.Uint64("cost", shortCost),
	)

	fees, err := deps.Service.WithdrawFees(ctx, info.ID, creator)
	if err != nil {
		return fmt.Errorf("demo: withdraw fees: %w", err)
	}
	a.logger.InfoContext(ctx, "demo: fees withdrawn", slog.Uint64("amount", fees))

	if err := deps.Service.Close(ctx, info.ID, creator); err != nil {
		return fmt.Errorf("demo: close: %w", err)
	}

	trades, err := deps.Service.Trades(ctx, info.ID, domain.ListOpts{Limit: 50})
	if err != nil {
		return fmt.Errorf("demo: list trades: %w", err)
	}
	a.logger.InfoContext(ctx, "demo: complete",
		slog.String("market_id", info.ID.String()),
		slog.Int("trades_recorded", len(trades)),
	)
	return nil
}

// demoAccount derives a stable demo ledger account from a label.
func demoAccount(label string) domain.Account {
	return common.BytesToAddress(ethcrypto.Keccak256([]byte("demo:" + label)))
}
