package models

// PredictRequest is the validated form of POST /predict.
type PredictRequest struct {
	Stocks []string `json:"stocks" validate:"required,min=1,max=100,dive,required,max=20"`
}

type PredictSingleRequest struct {
	Symbol string `json:"symbol" validate:"required,max=20"`
}

type ComplianceCheckRequest struct {
	Portfolio   map[string]float64    `json:"portfolio" validate:"max=500"`
	RiskProfile string                `json:"riskProfile" default:"MEDIUM" validate:"max=32"`
	RiskMetrics map[string]RiskMetric `json:"riskMetrics" validate:"max=500"`
}

type HistoryRequest struct {
	Symbol string `query:"symbol" validate:"required,max=20"`
	Limit  int    `query:"limit" default:"20" validate:"gte=1,lte=500"`
}

type AuditRequest struct {
	Limit int `query:"limit" default:"20" validate:"gte=1,lte=500"`
}
