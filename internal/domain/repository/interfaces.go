package repository

import (
	"context"
	"time"

	"RiskApprove/internal/domain/models"

	"github.com/cloudwego/eino/components/indexer"
	"github.com/cloudwego/eino/components/retriever"
)

// HistoryQuery bounds a daily-bar request.
type HistoryQuery struct {
	Start time.Time
	End   time.Time
}

// PriceHistory fetches the daily bars of a symbol, oldest first.
type PriceHistory interface {
	Name() string
	History(ctx context.Context, symbol string, q HistoryQuery) ([]models.Bar, error)
}

// PredictionStore keeps a history of produced predictions.
type PredictionStore interface {
	Save(ctx context.Context, p *models.Prediction) error
	Recent(ctx context.Context, symbol string, limit int) ([]models.StoredPrediction, error)
	Close() error
}

// AuditStore keeps a trail of compliance checks.
type AuditStore interface {
	Record(ctx context.Context, e *models.AuditEntry) error
	Recent(ctx context.Context, limit int) ([]models.AuditEntry, error)
	Close() error
}

// EventPublisher emits domain events to a message bus.
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, payload interface{}) error
	Close() error
}

// VectorStore is the nearest-neighbor index over regulation chunks. Store embeds
// and adds documents; Retrieve returns the closest ones with their score set.
type VectorStore interface {
	indexer.Indexer
	retriever.Retriever
	Reset(ctx context.Context) error
	Count(ctx context.Context) (int, error)
	Close() error
}

type Metrics interface {
	RecordPrediction(source string)
	RecordHistoryFetch(provider string, ok bool, seconds float64)
	RecordComplianceCheck(compliant bool)
	RecordViolation(kind string)
	SetIndexedChunks(n int)
	RecordIndexRebuild(ok bool, seconds float64)
}
