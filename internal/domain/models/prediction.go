package models

import "time"

type Trend string

const (
	TrendBullish Trend = "BULLISH"
	TrendBearish Trend = "BEARISH"
	TrendNeutral Trend = "NEUTRAL"
)

type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// PredictionSource tells whether a record was computed from market data or synthesized.
type PredictionSource string

const (
	SourceLive PredictionSource = "live"
	SourceMock PredictionSource = "mock"
)

// Bar is one daily OHLCV observation.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// Prediction is the per-symbol indicator record returned by the ml-service.
type Prediction struct {
	Symbol         string   `json:"symbol"`
	ExpectedReturn float64  `json:"expectedReturn"`
	Volatility     float64  `json:"volatility"`
	RiskScore      float64  `json:"riskScore"`
	Trend          Trend    `json:"trend"`
	Signal         Signal   `json:"signal"`
	CurrentPrice   float64  `json:"currentPrice"`
	SMA20          *float64 `json:"sma20"`
	SMA50          *float64 `json:"sma50"`
	DataPoints     int      `json:"dataPoints"`
	Note           string   `json:"note,omitempty"`

	Source PredictionSource `json:"-"`
}

// PredictionFailure stands in for a symbol that could not be processed at all.
type PredictionFailure struct {
	Symbol string `json:"symbol"`
	Error  string `json:"error"`
}

// PredictionOutcome is one slot of a batch: exactly one of Prediction and Failure is set.
type PredictionOutcome struct {
	Prediction *Prediction
	Failure    *PredictionFailure
}

// Value returns whichever record the outcome carries, ready for JSON encoding.
func (o PredictionOutcome) Value() interface{} {
	if o.Prediction != nil {
		return o.Prediction
	}
	return o.Failure
}

// StoredPrediction is a prediction as persisted in the history store.
type StoredPrediction struct {
	Prediction
	SourceLabel string    `json:"source"`
	CreatedAt   time.Time `json:"createdAt"`
}
