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

// CHPredictionStore persists whole prediction runs. Each prediction is one
// row carrying the run timestamp and its position, so a run reads back in
// watchlist order. Re-running a day replaces its rows.
type CHPredictionStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHPredictionStore(ch *pkgch.Client, table string) *CHPredictionStore {
	return &CHPredictionStore{db: ch.DB(), table: table}
}

// SetLogger injects a structured logger.
func (s *CHPredictionStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHPredictionStore) StoreRun(ctx context.Context, run *models.PredictionRun) error {
	if run == nil || len(run.Predictions) == 0 {
		return fmt.Errorf("store run: empty run")
	}

	day := run.AsOf.UTC().Truncate(24 * time.Hour)
	values := make([]string, 0, len(run.Predictions))
	args := make([]interface{}, 0, len(run.Predictions)*7)
	for i, p := range run.Predictions {
		var predUp *uint8
		if p.PredUp != nil {
			v := uint8(0)
			if *p.PredUp {
				v = 1
			}
			predUp = &v
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
		args = append(args, day, uint8(i), p.Ticker, predUp, p.ProbUp, p.Why, run.AsOf.UTC())
	}

	q := fmt.Sprintf("INSERT INTO %s (date, seq, ticker, pred_up, prob_up, why, asof) VALUES %s", s.table, strings.Join(values, ","))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if s.l != nil {
		s.l.Info("prediction run stored",
			applogger.Date("date", day),
			applogger.Int("predictions", len(run.Predictions)),
		)
	}
	return nil
}

func (s *CHPredictionStore) LatestRun(ctx context.Context) (*models.PredictionRun, error) {
	const qtpl = `
        SELECT seq, ticker, pred_up, prob_up, why, asof
        FROM %s FINAL
        WHERE date = (SELECT max(date) FROM %s)
        ORDER BY seq ASC
    `
	q := fmt.Sprintf(qtpl, s.table, s.table)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse latest run query error", applogger.Error(err))
		}
		return nil, fmt.Errorf("get latest run: %w", err)
	}
	defer rows.Close()

	run := &models.PredictionRun{}
	for rows.Next() {
		var seq uint8
		var p models.Prediction
		var predUp sql.NullInt64
		var probUp sql.NullFloat64
		var asof time.Time
		if err := rows.Scan(&seq, &p.Ticker, &predUp, &probUp, &p.Why, &asof); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		if predUp.Valid {
			v := predUp.Int64 == 1
			p.PredUp = &v
		}
		if probUp.Valid {
			v := probUp.Float64
			p.ProbUp = &v
		}
		run.AsOf = asof.UTC()
		run.Predictions = append(run.Predictions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if len(run.Predictions) == 0 {
		return nil, domrepo.ErrNotFound
	}
	return run, nil
}

var _ domrepo.PredictionStore = (*CHPredictionStore)(nil)
