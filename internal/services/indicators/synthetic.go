package indicators

import (
	"math/rand/v2"

	"RiskApprove/internal/domain/models"
)

// SyntheticNote marks records that were not computed from market data.
const SyntheticNote = "Mock data - market data unavailable"

var syntheticTrends = [...]models.Trend{models.TrendBullish, models.TrendBearish, models.TrendNeutral}

// Synthetic returns a placeholder prediction drawn from rng.
func Synthetic(symbol string, rng *rand.Rand) *models.Prediction {
	expected := uniform(rng, 0.05, 0.15)
	vol := uniform(rng, 0.15, 0.35)
	trend := syntheticTrends[rng.IntN(len(syntheticTrends))]
	price := uniform(rng, 50, 200)
	sma20 := price * 0.98
	sma50 := price * 0.95

	var signal models.Signal
	switch trend {
	case models.TrendBullish:
		signal = models.SignalBuy
	case models.TrendBearish:
		signal = models.SignalSell
	default:
		signal = models.SignalHold
	}

	return &models.Prediction{
		Symbol:         symbol,
		ExpectedReturn: expected,
		Volatility:     vol,
		RiskScore:      RiskScore(vol, 200),
		Trend:          trend,
		Signal:         signal,
		CurrentPrice:   price,
		SMA20:          &sma20,
		SMA50:          &sma50,
		DataPoints:     TradingDaysPerYear,
		Note:           SyntheticNote,
		Source:         models.SourceMock,
	}
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}
