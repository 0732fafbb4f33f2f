package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"RiskApprove/internal/domain"
	"RiskApprove/internal/domain/models"
	domrepo "RiskApprove/internal/domain/repository"
	"RiskApprove/internal/services/indicators"
	applogger "RiskApprove/pkg/logger"
	"RiskApprove/pkg/util"
)

// FailedPredictionMessage is the error text of a batch slot that could not be processed.
const FailedPredictionMessage = "Failed to fetch or process data"

// windowPadDays is added to the trading-day period so weekends and holidays
// still leave enough sessions in the window attempt.
const windowPadDays = 50

// PredictionEvent is published for every produced prediction.
type PredictionEvent struct {
	Type       string             `json:"type"`
	Prediction *models.Prediction `json:"prediction"`
	Source     string             `json:"source"`
	At         time.Time          `json:"at"`
}

// PredictorOption configures Predictor.
type PredictorOption func(*Predictor)

// WithPredictionStore records every prediction.
func WithPredictionStore(s domrepo.PredictionStore) PredictorOption {
	return func(p *Predictor) { p.store = s }
}

// WithPredictionEvents publishes every prediction on topic.
func WithPredictionEvents(pub domrepo.EventPublisher, topic string) PredictorOption {
	return func(p *Predictor) {
		p.events = pub
		p.topic = topic
	}
}

// WithRand replaces the random source of synthetic records.
func WithRand(r *rand.Rand) PredictorOption {
	return func(p *Predictor) { p.rng = r }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) PredictorOption {
	return func(p *Predictor) { p.now = now }
}

// Predictor turns price history into indicator records, falling back to
// synthetic records when history is empty or unusable.
type Predictor struct {
	history        domrepo.PriceHistory
	metrics        domrepo.Metrics
	logger         *applogger.Logger
	periodDays     int
	maxConcurrency int

	store  domrepo.PredictionStore
	events domrepo.EventPublisher
	topic  string

	now   func() time.Time
	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewPredictor(
	history domrepo.PriceHistory,
	m domrepo.Metrics,
	l *applogger.Logger,
	periodDays, maxConcurrency int,
	opts ...PredictorOption,
) *Predictor {
	p := &Predictor{
		history:        history,
		metrics:        m,
		logger:         l.With(applogger.String("component", "predictor")),
		periodDays:     periodDays,
		maxConcurrency: maxConcurrency,
		now:            time.Now,
		rng:            rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.maxConcurrency <= 0 {
		p.maxConcurrency = 1
	}
	return p
}

// Predict returns a live record, a synthetic one, or an error wrapping
// domain.ErrHistoryUnavailable when no history attempt succeeded.
func (p *Predictor) Predict(ctx context.Context, symbol string) (*models.Prediction, error) {
	symbol = util.NormalizeSymbol(symbol)

	bars, err := p.fetch(ctx, symbol)
	if err != nil {
		p.metrics.RecordPrediction("failed")
		return nil, err
	}

	pred, err := indicators.Compute(symbol, bars)
	if err != nil {
		if !errors.Is(err, indicators.ErrNoData) {
			p.logger.Warn("indicator computation failed, using synthetic record",
				applogger.String("symbol", symbol),
				applogger.Int("bars", len(bars)),
				applogger.Error(err),
			)
		}
		pred = p.synthetic(symbol)
	}

	p.metrics.RecordPrediction(string(pred.Source))
	p.record(ctx, pred)
	return pred, nil
}

// PredictMany evaluates symbols concurrently and returns outcomes in input order.
func (p *Predictor) PredictMany(ctx context.Context, symbols []string) []models.PredictionOutcome {
	out := make([]models.PredictionOutcome, len(symbols))
	sem := make(chan struct{}, p.maxConcurrency)
	var wg sync.WaitGroup

	for i, symbol := range symbols {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			pred, err := p.Predict(ctx, symbol)
			if err != nil {
				p.logger.Warn("prediction failed",
					applogger.String("symbol", symbol),
					applogger.Error(err),
				)
				out[i] = models.PredictionOutcome{Failure: &models.PredictionFailure{
					Symbol: symbol,
					Error:  FailedPredictionMessage,
				}}
				return
			}
			out[i] = models.PredictionOutcome{Prediction: pred}
		}(i, symbol)
	}

	wg.Wait()
	return out
}

// Recent returns stored predictions for symbol, newest first.
func (p *Predictor) Recent(ctx context.Context, symbol string, limit int) ([]models.StoredPrediction, error) {
	if p.store == nil {
		return nil, domain.ErrStoreDisabled
	}
	return p.store.Recent(ctx, util.NormalizeSymbol(symbol), limit)
}

// fetch walks the lookback attempts: one year, then the padded trading
// period, then six months. The first attempt must return bars to count;
// later attempts succeed even when empty.
func (p *Predictor) fetch(ctx context.Context, symbol string) ([]models.Bar, error) {
	now := p.now()
	attempts := []domrepo.HistoryQuery{
		{Start: now.AddDate(-1, 0, 0), End: now},
		{Start: now.AddDate(0, 0, -(p.periodDays + windowPadDays)), End: now},
		{Start: now.AddDate(0, -6, 0), End: now},
	}

	var lastErr error
	for i, q := range attempts {
		bars, err := p.history.History(ctx, symbol, q)
		if err == nil && (len(bars) > 0 || i > 0) {
			return bars, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err == nil {
			err = errors.New("no bars returned")
		}
		lastErr = err
		p.logger.Debug("history attempt failed",
			applogger.String("symbol", symbol),
			applogger.Int("attempt", i+1),
			applogger.Error(err),
		)
	}
	return nil, fmt.Errorf("%w: %s: %v", domain.ErrHistoryUnavailable, symbol, lastErr)
}

func (p *Predictor) synthetic(symbol string) *models.Prediction {
	p.rngMu.Lock()
	defer p.rngMu.Unlock()
	return indicators.Synthetic(symbol, p.rng)
}

func (p *Predictor) record(ctx context.Context, pred *models.Prediction) {
	if p.store != nil {
		if err := p.store.Save(ctx, pred); err != nil {
			p.logger.Warn("store prediction", applogger.String("symbol", pred.Symbol), applogger.Error(err))
		}
	}
	if p.events != nil {
		evt := PredictionEvent{
			Type:       "prediction",
			Prediction: pred,
			Source:     string(pred.Source),
			At:         p.now().UTC(),
		}
		if err := p.events.Publish(ctx, p.topic, pred.Symbol, evt); err != nil {
			p.logger.Warn("publish prediction", applogger.String("symbol", pred.Symbol), applogger.Error(err))
		}
	}
}
