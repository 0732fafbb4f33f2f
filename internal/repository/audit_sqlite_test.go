package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"RiskApprove/internal/domain"
	"RiskApprove/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteAudit_RecordAndRecent(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteAudit(filepath.Join(t.TempDir(), "nested", "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, profile := range []string{"LOW", "MEDIUM", "HIGH"} {
		res := models.NewComplianceResult()
		res.Compliant = i != 1
		if i == 1 {
			res.Violations = append(res.Violations, models.Violation{
				Type: models.FindingAllocation, Message: "Total allocation (90.0%) does not equal 100%",
				Severity: models.SeverityMedium, Source: models.SystemSource,
			})
		}
		entry := &models.AuditEntry{CheckedAt: base.Add(time.Duration(i) * time.Minute), RiskProfile: profile, Holdings: i + 1, Result: res}
		require.NoError(t, store.Record(ctx, entry))
		assert.NotEmpty(t, entry.ID)
	}

	got, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "HIGH", got[0].RiskProfile)
	assert.Equal(t, "MEDIUM", got[1].RiskProfile)
	assert.Equal(t, 2, got[1].Holdings)
	assert.True(t, got[1].CheckedAt.Equal(base.Add(time.Minute)))
	assert.False(t, got[1].Result.Compliant)
	require.Len(t, got[1].Result.Violations, 1)
	assert.Equal(t, models.FindingAllocation, got[1].Result.Violations[0].Type)
}

func TestSQLiteAudit_RejectsMissingResult(t *testing.T) {
	store, err := NewSQLiteAudit(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.Error(t, store.Record(context.Background(), &models.AuditEntry{RiskProfile: "LOW"}))
}

func TestNoopStores(t *testing.T) {
	ctx := context.Background()

	require.NoError(t, NoopPredictions{}.Save(ctx, &models.Prediction{Symbol: "AAPL"}))
	_, err := NoopPredictions{}.Recent(ctx, "AAPL", 10)
	require.ErrorIs(t, err, domain.ErrStoreDisabled)

	require.NoError(t, NoopAudit{}.Record(ctx, &models.AuditEntry{}))
	_, err = NoopAudit{}.Recent(ctx, 10)
	require.ErrorIs(t, err, domain.ErrStoreDisabled)

	require.NoError(t, NoopEvents{}.Publish(ctx, "topic", "key", struct{}{}))
}
