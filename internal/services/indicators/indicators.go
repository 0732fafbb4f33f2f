// Package indicators derives return, risk and trend signals from daily closes.
package indicators

import (
	"errors"
	"math"

	"RiskApprove/internal/domain/models"
)

const (
	// TradingDaysPerYear annualizes daily statistics.
	TradingDaysPerYear = 252

	ShortWindow = 20
	LongWindow  = 50

	// signalThreshold is the annualized expected return that separates BUY/SELL from HOLD.
	signalThreshold = 0.05
)

// ErrNoData is returned when there is nothing to compute from.
var ErrNoData = errors.New("indicators: no bars")

// ErrNonFinite is returned when a statistic comes out as NaN or Inf.
var ErrNonFinite = errors.New("indicators: non-finite result")

// Closes extracts closing prices in order.
func Closes(bars []models.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// DailyReturns computes simple returns r_t = C_t / C_{t-1} - 1.
// It returns len(closes)-1 values, or nil if there are fewer than two closes.
func DailyReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		out = append(out, closes[i]/closes[i-1]-1)
	}
	return out
}

// Mean is 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// SampleStdDev uses the n-1 denominator and is 0 for fewer than two values.
func SampleStdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := Mean(xs)
	ss := 0.0
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

// SMA returns the mean of the last window closes, or nil when the series is shorter.
func SMA(closes []float64, window int) *float64 {
	if window <= 0 || len(closes) < window {
		return nil
	}
	v := Mean(closes[len(closes)-window:])
	return &v
}

// AnnualizedVolatility is the sample standard deviation of daily returns scaled by sqrt(252).
func AnnualizedVolatility(returns []float64) float64 {
	return SampleStdDev(returns) * math.Sqrt(TradingDaysPerYear)
}

// AnnualizedReturn is the mean daily return scaled by 252.
func AnnualizedReturn(returns []float64) float64 {
	return Mean(returns) * TradingDaysPerYear
}

// TrendOf compares the short and long moving averages.
func TrendOf(sma20, sma50 *float64) models.Trend {
	switch {
	case sma20 == nil || sma50 == nil:
		return models.TrendNeutral
	case *sma20 > *sma50:
		return models.TrendBullish
	default:
		return models.TrendBearish
	}
}

// SignalOf maps trend and expected return to an action.
func SignalOf(trend models.Trend, expectedReturn float64) models.Signal {
	switch {
	case trend == models.TrendBullish && expectedReturn > signalThreshold:
		return models.SignalBuy
	case trend == models.TrendBearish || expectedReturn < -signalThreshold:
		return models.SignalSell
	default:
		return models.SignalHold
	}
}

// RiskScore maps volatility onto [0, 100] using scale.
func RiskScore(volatility, scale float64) float64 {
	return clamp(volatility*scale, 0, 100)
}

// Compute builds a live prediction from bars ordered oldest first.
func Compute(symbol string, bars []models.Bar) (*models.Prediction, error) {
	if len(bars) == 0 {
		return nil, ErrNoData
	}

	closes := Closes(bars)
	returns := DailyReturns(closes)

	vol := AnnualizedVolatility(returns)
	expected := AnnualizedReturn(returns)
	sma20 := SMA(closes, ShortWindow)
	sma50 := SMA(closes, LongWindow)
	last := closes[len(closes)-1]

	if !finite(vol, expected, last) || !finitePtr(sma20, sma50) {
		return nil, ErrNonFinite
	}

	trend := TrendOf(sma20, sma50)
	return &models.Prediction{
		Symbol:         symbol,
		ExpectedReturn: expected,
		Volatility:     vol,
		RiskScore:      RiskScore(vol, 100),
		Trend:          trend,
		Signal:         SignalOf(trend, expected),
		CurrentPrice:   last,
		SMA20:          sma20,
		SMA50:          sma50,
		DataPoints:     len(bars),
		Source:         models.SourceLive,
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func finitePtr(vs ...*float64) bool {
	for _, v := range vs {
		if v != nil && !finite(*v) {
			return false
		}
	}
	return true
}
