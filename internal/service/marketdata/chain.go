package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"RiskApprove/internal/domain/models"
	"RiskApprove/internal/domain/repository"
	applogger "RiskApprove/pkg/logger"
)

// Chain asks each provider in turn and returns the first non-empty answer.
// If every provider answers empty the result is empty with no error; if any
// provider failed and none produced bars, the joined errors are returned.
type Chain struct {
	providers []repository.PriceHistory
	metrics   repository.Metrics
	logger    *applogger.Logger
}

func NewChain(l *applogger.Logger, m repository.Metrics, providers ...repository.PriceHistory) *Chain {
	return &Chain{
		providers: providers,
		metrics:   m,
		logger:    l.With(applogger.String("component", "marketdata")),
	}
}

func (c *Chain) Name() string { return "chain" }

func (c *Chain) History(ctx context.Context, symbol string, q repository.HistoryQuery) ([]models.Bar, error) {
	if len(c.providers) == 0 {
		return nil, errors.New("no history providers configured")
	}

	var errs []error
	for _, p := range c.providers {
		start := time.Now()
		bars, err := p.History(ctx, symbol, q)
		c.metrics.RecordHistoryFetch(p.Name(), err == nil && len(bars) > 0, time.Since(start).Seconds())

		if err == nil && len(bars) > 0 {
			return bars, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err != nil {
			c.logger.Warn("history provider failed",
				applogger.String("provider", p.Name()),
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		c.logger.Debug("history provider returned no bars",
			applogger.String("provider", p.Name()),
			applogger.String("symbol", symbol),
		)
	}

	if len(errs) == len(c.providers) {
		return nil, errors.Join(errs...)
	}
	return nil, nil
}
