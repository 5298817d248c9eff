package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"stockcast/internal/domain/models"
	domrepo "stockcast/internal/domain/repository"
	pkgch "stockcast/pkg/clickhouse"
	applogger "stockcast/pkg/logger"
)

// CHBarStore persists and reads daily bars in ClickHouse. The table is a
// ReplacingMergeTree keyed on (ticker, date), so re-ingesting a day is an
// idempotent overwrite; reads use FINAL to collapse replaced rows.
type CHBarStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHBarStore(ch *pkgch.Client, table string) *CHBarStore {
	return &CHBarStore{db: ch.DB(), table: table}
}

// SetLogger injects a structured logger.
func (s *CHBarStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHBarStore) Init(ctx context.Context) error {
	return nil // Schema init in di
}

func (s *CHBarStore) Store(ctx context.Context, b *models.PriceBar) error {
	if b == nil || b.Ticker == "" || b.Date.IsZero() {
		return fmt.Errorf("store bar: incomplete record")
	}
	q := fmt.Sprintf("INSERT INTO %s (ticker, date, open, high, low, close, volume, vwap) VALUES (?, ?, ?, ?, ?, ?, ?, ?)", s.table)
	_, err := s.db.ExecContext(ctx, q,
		b.Ticker,
		b.Date,
		b.Open,
		b.High,
		b.Low,
		b.Close,
		b.Volume,
		b.VWAP,
	)
	return err
}

func (s *CHBarStore) StoreBatch(ctx context.Context, bars []*models.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}
	// Multi-row VALUES to reduce round-trips; chunked so a full-market
	// day stays well under statement limits.
	const chunkSize = 500
	for start := 0; start < len(bars); start += chunkSize {
		end := start + chunkSize
		if end > len(bars) {
			end = len(bars)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*8)
		for _, b := range bars[start:end] {
			if b == nil || b.Ticker == "" || b.Date.IsZero() {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				b.Ticker,
				b.Date,
				b.Open,
				b.High,
				b.Low,
				b.Close,
				b.Volume,
				b.VWAP,
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (ticker, date, open, high, low, close, volume, vwap) VALUES %s", s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

func (s *CHBarStore) History(ctx context.Context, ticker string, from time.Time) ([]models.PriceBar, error) {
	start := time.Now()
	const qtpl = `
        SELECT ticker, date, open, high, low, close, volume, vwap
        FROM %s FINAL
        WHERE ticker = ? AND date >= ?
        ORDER BY date ASC
    `
	q := fmt.Sprintf(qtpl, s.table)
	rows, err := s.db.QueryContext(ctx, q, ticker, from)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse history query error",
				applogger.String("ticker", ticker),
				applogger.Date("from", from),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("get history: %w", err)
	}
	defer rows.Close()

	out, err := scanBars(rows)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse history scan error",
				applogger.String("ticker", ticker),
				applogger.Error(err),
			)
		}
		return nil, err
	}
	if s.l != nil {
		s.l.Info("clickhouse history ok",
			applogger.String("ticker", ticker),
			applogger.Date("from", from),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHBarStore) LatestN(ctx context.Context, ticker string, n int) ([]models.PriceBar, error) {
	start := time.Now()
	const qtpl = `
        SELECT ticker, date, open, high, low, close, volume, vwap
        FROM %s FINAL
        WHERE ticker = ?
        ORDER BY date DESC
        LIMIT ?
    `
	q := fmt.Sprintf(qtpl, s.table)
	rows, err := s.db.QueryContext(ctx, q, ticker, n)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse latest query error",
				applogger.String("ticker", ticker),
				applogger.Int("limit", n),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("get latest bars: %w", err)
	}
	defer rows.Close()

	out, err := scanBars(rows)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse latest scan error",
				applogger.String("ticker", ticker),
				applogger.Error(err),
			)
		}
		return nil, err
	}
	// reverse to ASC
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if s.l != nil {
		s.l.Info("clickhouse latest ok",
			applogger.String("ticker", ticker),
			applogger.Int("limit", n),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func scanBars(rows *sql.Rows) ([]models.PriceBar, error) {
	out := make([]models.PriceBar, 0, 64)
	for rows.Next() {
		var b models.PriceBar
		var high, low, vwap sql.NullFloat64
		if err := rows.Scan(&b.Ticker, &b.Date, &b.Open, &high, &low, &b.Close, &b.Volume, &vwap); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		if high.Valid {
			v := high.Float64
			b.High = &v
		}
		if low.Valid {
			v := low.Float64
			b.Low = &v
		}
		if vwap.Valid {
			v := vwap.Float64
			b.VWAP = &v
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *CHBarStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHBarStore) Close() error {
	return nil // Managed by pkg
}

var (
	_ domrepo.Storage      = (*CHBarStore)(nil)
	_ domrepo.HistoryStore = (*CHBarStore)(nil)
)
