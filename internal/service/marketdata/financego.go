package marketdata

import (
	"context"
	"fmt"
	"time"

	"RiskApprove/internal/domain/models"
	"RiskApprove/internal/domain/repository"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
)

// FinanceGo fetches daily bars through the finance-go chart iterator.
type FinanceGo struct{}

func NewFinanceGo() *FinanceGo { return &FinanceGo{} }

func (p *FinanceGo) Name() string { return "finance-go" }

// History runs the blocking chart request off the caller's goroutine so ctx
// cancellation is honored; the library has no context support.
func (p *FinanceGo) History(ctx context.Context, symbol string, q repository.HistoryQuery) ([]models.Bar, error) {
	type result struct {
		bars []models.Bar
		err  error
	}

	done := make(chan result, 1)
	go func() {
		bars, err := p.fetch(symbol, q)
		done <- result{bars: bars, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.bars, r.err
	}
}

func (p *FinanceGo) fetch(symbol string, q repository.HistoryQuery) ([]models.Bar, error) {
	start, end := q.Start, q.End
	iter := chart.Get(&chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	})

	bars := make([]models.Bar, 0, 256)
	for iter.Next() {
		b := iter.Bar()
		closePrice, _ := b.Close.Float64()
		if closePrice == 0 {
			continue
		}
		open, _ := b.Open.Float64()
		high, _ := b.High.Float64()
		low, _ := b.Low.Float64()

		bars = append(bars, models.Bar{
			Time:   time.Unix(int64(b.Timestamp), 0).UTC(),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: int64(b.Volume),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("finance-go chart %s: %w", symbol, err)
	}
	return bars, nil
}
