package repository

import (
	"context"

	"RiskApprove/internal/domain"
	"RiskApprove/internal/domain/models"
	"RiskApprove/internal/domain/repository"
)

// NoopPredictions is used when the history store is disabled.
type NoopPredictions struct{}

var _ repository.PredictionStore = NoopPredictions{}

func (NoopPredictions) Save(context.Context, *models.Prediction) error { return nil }

func (NoopPredictions) Recent(context.Context, string, int) ([]models.StoredPrediction, error) {
	return nil, domain.ErrStoreDisabled
}

func (NoopPredictions) Close() error { return nil }

// NoopAudit is used when the audit trail is disabled.
type NoopAudit struct{}

var _ repository.AuditStore = NoopAudit{}

func (NoopAudit) Record(context.Context, *models.AuditEntry) error { return nil }

func (NoopAudit) Recent(context.Context, int) ([]models.AuditEntry, error) {
	return nil, domain.ErrStoreDisabled
}

func (NoopAudit) Close() error { return nil }

// NoopEvents drops every event.
type NoopEvents struct{}

var _ repository.EventPublisher = NoopEvents{}

func (NoopEvents) Publish(context.Context, string, string, interface{}) error { return nil }

func (NoopEvents) Close() error { return nil }
