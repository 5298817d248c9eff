package repository

import (
	"context"
	"database/sql"
	"fmt"

	"stockcast/internal/domain/models"
	domrepo "stockcast/internal/domain/repository"
	pkgch "stockcast/pkg/clickhouse"
	applogger "stockcast/pkg/logger"
)

// CHMoverStore keeps one biggest-mover record per date. The first write
// for a date wins; the ingest job runs once a day, so the check-then-insert
// race is theoretical.
type CHMoverStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHMoverStore(ch *pkgch.Client, table string) *CHMoverStore {
	return &CHMoverStore{db: ch.DB(), table: table}
}

// SetLogger injects a structured logger.
func (s *CHMoverStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHMoverStore) Record(ctx context.Context, m *models.DailyMover) error {
	if m == nil || m.Ticker == "" || m.Date.IsZero() {
		return fmt.Errorf("record mover: incomplete record")
	}

	var count uint64
	q := fmt.Sprintf("SELECT count() FROM %s WHERE date = ?", s.table)
	if err := s.db.QueryRowContext(ctx, q, m.Date).Scan(&count); err != nil {
		return fmt.Errorf("check mover: %w", err)
	}
	if count > 0 {
		if s.l != nil {
			s.l.Info("mover already recorded",
				applogger.Date("date", m.Date),
				applogger.String("ticker", m.Ticker),
			)
		}
		return nil
	}

	q = fmt.Sprintf("INSERT INTO %s (date, ticker, percent_change, close) VALUES (?, ?, ?, ?)", s.table)
	if _, err := s.db.ExecContext(ctx, q, m.Date, m.Ticker, m.PercentChange, m.Close); err != nil {
		return fmt.Errorf("insert mover: %w", err)
	}
	if s.l != nil {
		s.l.Info("mover recorded",
			applogger.Date("date", m.Date),
			applogger.String("ticker", m.Ticker),
			applogger.Float64("percent_change", m.PercentChange),
		)
	}
	return nil
}

func (s *CHMoverStore) Recent(ctx context.Context, limit int) ([]models.DailyMover, error) {
	const qtpl = `
        SELECT date, ticker, percent_change, close
        FROM %s
        ORDER BY date DESC
        LIMIT ?
    `
	q := fmt.Sprintf(qtpl, s.table)
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse movers query error",
				applogger.Int("limit", limit),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("get movers: %w", err)
	}
	defer rows.Close()

	out := make([]models.DailyMover, 0, limit)
	for rows.Next() {
		var m models.DailyMover
		if err := rows.Scan(&m.Date, &m.Ticker, &m.PercentChange, &m.Close); err != nil {
			return nil, fmt.Errorf("scan mover: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

var _ domrepo.MoverStore = (*CHMoverStore)(nil)
