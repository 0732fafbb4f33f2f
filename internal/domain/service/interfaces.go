package service

import (
	"context"

	"RiskApprove/internal/domain/models"
)

// Predictor produces indicator records for symbols.
type Predictor interface {
	// Predict returns ErrHistoryUnavailable when no provider could be reached.
	Predict(ctx context.Context, symbol string) (*models.Prediction, error)
	PredictMany(ctx context.Context, symbols []string) []models.PredictionOutcome
}

// ComplianceChecker evaluates a proposed allocation.
type ComplianceChecker interface {
	Check(ctx context.Context, req *models.ComplianceCheckRequest) *models.ComplianceResult
}

// RegulationIndex is the process-wide handle on the regulation vector index.
type RegulationIndex interface {
	Ready() bool
	Chunks() int
	Rebuild(ctx context.Context) (int, error)
}
