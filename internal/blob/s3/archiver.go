package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/xyzseer/conditional-tokens-contracts/internal/domain"
)

// TradeArchiver exports completed trade history to cold storage. Every run
// it walks the persisted markets and uploads the previous UTC day's trades
// for each as a JSONL object, skipping days that have already been exported.
//
// Key layout:
//
//	archive/trades/{marketID}/2025-01-31.jsonl
//
// Archived rows are never deleted from the primary store; the export is an
// additive backup, not a retention policy.
type TradeArchiver struct {
	writer  domain.BlobWriter
	markets domain.MarketStore
	trades  domain.TradeStore
	logger  *slog.Logger
}

// NewTradeArchiver creates a TradeArchiver over the given stores.
func NewTradeArchiver(writer domain.BlobWriter, markets domain.MarketStore, trades domain.TradeStore, logger *slog.Logger) *TradeArchiver {
	return &TradeArchiver{
		writer:  writer,
		markets: markets,
		trades:  trades,
		logger:  logger.With(slog.String("component", "trade_archiver")),
	}
}

// Run executes an archive pass immediately and then on every tick of the
// given interval until the context is cancelled.
func (a *TradeArchiver) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if n, err := a.ArchiveDay(ctx, time.Now().UTC().AddDate(0, 0, -1)); err != nil {
			a.logger.ErrorContext(ctx, "archive pass failed", slog.String("error", err.Error()))
		} else if n > 0 {
			a.logger.InfoContext(ctx, "archive pass complete", slog.Int64("objects", n))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ArchiveDay uploads one JSONL object per market covering the UTC day that
// contains the given time. Markets with no trades that day are skipped, as
// are day objects that already exist. It returns the number of objects
// uploaded.
func (a *TradeArchiver) ArchiveDay(ctx context.Context, day time.Time) (int64, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	infos, err := a.markets.List(ctx, domain.ListOpts{})
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive list markets: %w", err)
	}

	var uploaded int64
	for _, info := range infos {
		path := archivePath(info.ID.String(), start)

		exists, err := a.writer.Exists(ctx, path)
		if err != nil {
			return uploaded, fmt.Errorf("s3blob: archive check %s: %w", path, err)
		}
		if exists {
			continue
		}

		trades, err := a.trades.ListByMarket(ctx, info.ID, domain.ListOpts{
			Since: &start,
			Until: &end,
		})
		if err != nil {
			return uploaded, fmt.Errorf("s3blob: archive query market %s: %w", info.ID, err)
		}
		if len(trades) == 0 {
			continue
		}

		buf, err := marshalJSONL(trades)
		if err != nil {
			return uploaded, fmt.Errorf("s3blob: archive marshal market %s: %w", info.ID, err)
		}

		if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
			return uploaded, fmt.Errorf("s3blob: archive upload %s: %w", path, err)
		}
		uploaded++

		a.logger.InfoContext(ctx, "archived trades",
			slog.String("market_id", info.ID.String()),
			slog.String("path", path),
			slog.Int("trades", len(trades)),
		)
	}

	return uploaded, nil
}

// archivePath builds the S3 key for a market's daily trade export.
func archivePath(marketID string, day time.Time) string {
	return fmt.Sprintf("archive/trades/%s/%s.jsonl", marketID, day.Format("2006-01-02"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
