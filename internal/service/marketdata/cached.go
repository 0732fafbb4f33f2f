package marketdata

import (
	"context"
	"errors"
	"time"

	"RiskApprove/internal/domain/models"
	"RiskApprove/internal/domain/repository"
	"RiskApprove/pkg/cache"
)

const dayLayout = "2006-01-02"

var errEmptyHistory = errors.New("empty history")

// Cached memoizes non-empty histories per symbol and day range.
type Cached struct {
	inner repository.PriceHistory
	cache cache.Service
	ttl   time.Duration
}

func NewCached(inner repository.PriceHistory, c cache.Service, ttl time.Duration) *Cached {
	return &Cached{inner: inner, cache: c, ttl: ttl}
}

func (c *Cached) Name() string { return c.inner.Name() }

func (c *Cached) History(ctx context.Context, symbol string, q repository.HistoryQuery) ([]models.Bar, error) {
	key := cache.Key("history", symbol, q.Start.UTC().Format(dayLayout), q.End.UTC().Format(dayLayout))

	bars, _, err := cache.GetOrLoad(ctx, c.cache, key, c.ttl, func(ctx context.Context) ([]models.Bar, error) {
		bars, err := c.inner.History(ctx, symbol, q)
		if err == nil && len(bars) == 0 {
			return nil, errEmptyHistory
		}
		return bars, err
	})
	if errors.Is(err, errEmptyHistory) {
		return nil, nil
	}
	return bars, err
}
