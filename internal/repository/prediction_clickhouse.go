package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"RiskApprove/internal/domain/models"
	"RiskApprove/internal/domain/repository"
	"RiskApprove/pkg/clickhouse"
)

const predictionsTable = "predictions"

var predictionsDDL = `CREATE TABLE IF NOT EXISTS ` + predictionsTable + ` (
	created_at      DateTime64(3, 'UTC'),
	symbol          LowCardinality(String),
	expected_return Float64,
	volatility      Float64,
	risk_score      Float64,
	trend           LowCardinality(String),
	signal          LowCardinality(String),
	current_price   Float64,
	sma20           Nullable(Float64),
	sma50           Nullable(Float64),
	data_points     UInt32,
	source          LowCardinality(String)
) ENGINE = MergeTree
PARTITION BY toYYYYMM(created_at)
ORDER BY (symbol, created_at)
TTL toDateTime(created_at) + INTERVAL 180 DAY`

// ClickHousePredictions keeps every produced prediction in ClickHouse.
type ClickHousePredictions struct {
	client *clickhouse.Client
	now    func() time.Time
}

var _ repository.PredictionStore = (*ClickHousePredictions)(nil)

// NewClickHousePredictions creates the table when missing.
func NewClickHousePredictions(ctx context.Context, client *clickhouse.Client) (*ClickHousePredictions, error) {
	if err := client.Migrate(ctx, predictionsDDL); err != nil {
		return nil, err
	}
	return &ClickHousePredictions{client: client, now: time.Now}, nil
}

func (s *ClickHousePredictions) Save(ctx context.Context, p *models.Prediction) error {
	q := `INSERT INTO ` + predictionsTable + ` (created_at, symbol, expected_return, volatility, risk_score,
		trend, signal, current_price, sma20, sma50, data_points, source) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.client.DB().ExecContext(ctx, q,
		s.now().UTC(),
		p.Symbol,
		p.ExpectedReturn,
		p.Volatility,
		p.RiskScore,
		string(p.Trend),
		string(p.Signal),
		p.CurrentPrice,
		p.SMA20,
		p.SMA50,
		uint32(p.DataPoints),
		string(p.Source),
	)
	if err != nil {
		return fmt.Errorf("insert prediction %s: %w", p.Symbol, err)
	}
	return nil
}

// Recent returns the newest predictions first. An empty symbol matches all.
func (s *ClickHousePredictions) Recent(ctx context.Context, symbol string, limit int) ([]models.StoredPrediction, error) {
	q := `SELECT created_at, symbol, expected_return, volatility, risk_score, trend, signal,
		current_price, sma20, sma50, data_points, source FROM ` + predictionsTable
	args := []interface{}{}
	if symbol != "" {
		q += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	q += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.client.DB().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	defer rows.Close()

	out := []models.StoredPrediction{}
	for rows.Next() {
		var (
			sp           models.StoredPrediction
			trend, sig   string
			sma20, sma50 sql.NullFloat64
			points       uint32
		)
		if err := rows.Scan(&sp.CreatedAt, &sp.Symbol, &sp.ExpectedReturn, &sp.Volatility, &sp.RiskScore,
			&trend, &sig, &sp.CurrentPrice, &sma20, &sma50, &points, &sp.SourceLabel); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		sp.Trend = models.Trend(trend)
		sp.Signal = models.Signal(sig)
		sp.SMA20 = nullable(sma20)
		sp.SMA50 = nullable(sma50)
		sp.DataPoints = int(points)
		sp.Source = models.PredictionSource(sp.SourceLabel)
		out = append(out, sp)
	}
	return out, rows.Err()
}

// Close releases the pool.
func (s *ClickHousePredictions) Close() error {
	return s.client.Close()
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
