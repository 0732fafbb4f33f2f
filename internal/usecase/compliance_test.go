package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"RiskApprove/internal/domain"
	"RiskApprove/internal/domain/models"
	applogger "RiskApprove/pkg/logger"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearcher struct {
	ready bool
	docs  []*schema.Document
	err   error

	query string
	topK  int
}

func (f *fakeSearcher) Ready() bool { return f.ready }

func (f *fakeSearcher) Search(_ context.Context, query string, topK int) ([]*schema.Document, error) {
	f.query = query
	f.topK = topK
	return f.docs, f.err
}

func chunk(content, source string, score float64) *schema.Document {
	meta := map[string]any{}
	if source != "" {
		meta["source"] = source
	}
	return (&schema.Document{Content: content, MetaData: meta}).WithScore(score)
}

func newTestCompliance(s *fakeSearcher, m *fakeMetrics, opts ...ComplianceOption) *Compliance {
	return NewCompliance(s, ComplianceConfig{TopK: 5, MaxCitations: 3, CitationChars: 500}, m, applogger.Nop(), opts...)
}

func TestCompliance_IndexUnavailable(t *testing.T) {
	for _, s := range []*fakeSearcher{
		{ready: false},
		{ready: true, err: domain.ErrIndexNotReady},
	} {
		c := newTestCompliance(s, newFakeMetrics())
		res := c.Check(context.Background(), &models.ComplianceCheckRequest{Portfolio: map[string]float64{"AAPL": 0.4}})

		assert.True(t, res.Compliant)
		assert.Empty(t, res.Violations)
		assert.NotNil(t, res.Violations)
		assert.Empty(t, res.Citations)
		require.Len(t, res.Warnings, 1)
		assert.Equal(t, models.Warning{
			Type:    models.FindingIndexUnavailable,
			Message: "Vector store not initialized",
			Source:  models.SystemSource,
		}, res.Warnings[0])
	}
}

func TestCompliance_RetrievalFailure(t *testing.T) {
	m := newFakeMetrics()
	c := newTestCompliance(&fakeSearcher{ready: true, err: errors.New("redis: connection refused")}, m)

	res := c.Check(context.Background(), &models.ComplianceCheckRequest{Portfolio: map[string]float64{"AAPL": 1}})

	assert.False(t, res.Compliant)
	assert.Empty(t, res.Warnings)
	assert.Empty(t, res.Citations)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, models.Violation{
		Type:     models.FindingSystemError,
		Message:  "Compliance retrieval failed",
		Severity: models.SeverityHigh,
		Source:   models.SystemSource,
	}, res.Violations[0])
	assert.Equal(t, 1, m.violations[models.FindingSystemError])
	assert.Equal(t, 1, m.checks[false])
}

func TestCompliance_Rules(t *testing.T) {
	concentration := chunk("A single stock position must respect the concentration limit.", "/regs/conc.pdf", 0.9)
	highRisk := chunk("High risk assets are subject to a maximum allocation.", "regs/risk.txt", 0.8)
	neutral := chunk("Records must be kept for five years.", "", 0.5)

	tests := []struct {
		name           string
		req            models.ComplianceCheckRequest
		docs           []*schema.Document
		wantCompliant  bool
		wantViolations []models.Violation
		wantWarnings   []models.Warning
	}{
		{
			name: "balanced medium portfolio is compliant",
			req: models.ComplianceCheckRequest{
				Portfolio:   map[string]float64{"AAPL": 0.25, "MSFT": 0.25, "GOOGL": 0.25, "AMZN": 0.25},
				RiskProfile: "MEDIUM",
			},
			docs:          []*schema.Document{concentration, highRisk, neutral},
			wantCompliant: true,
		},
		{
			name: "concentrated low profile portfolio",
			req: models.ComplianceCheckRequest{
				Portfolio:   map[string]float64{"AAPL": 0.6, "MSFT": 0.4},
				RiskProfile: "low",
				RiskMetrics: map[string]models.RiskMetric{
					"TSLA": {RiskScore: 85},
					"AAPL": {RiskScore: 71},
					"MSFT": {RiskScore: 70},
				},
			},
			docs: []*schema.Document{concentration, highRisk},
			wantViolations: []models.Violation{{
				Type:     models.FindingConcentration,
				Message:  "Single stock allocation (60.0%) may exceed concentration limits",
				Severity: models.SeverityHigh,
				Source:   "conc.pdf",
			}},
			wantWarnings: []models.Warning{
				{Type: models.FindingRiskLimit, Message: "Low risk profile may have restrictions on high-risk assets", Source: "risk.txt"},
				{Type: models.FindingRiskProfile, Message: "Low risk profile may not be suitable for high-risk stocks: AAPL, TSLA", Source: models.SystemSource},
			},
		},
		{
			name: "allocation off by more than one percent",
			req: models.ComplianceCheckRequest{
				Portfolio:   map[string]float64{"AAPL": 0.2, "MSFT": 0.2, "GOOGL": 0.2, "AMZN": 0.2, "META": 0.1},
				RiskProfile: "HIGH",
			},
			docs: []*schema.Document{neutral},
			wantViolations: []models.Violation{{
				Type:     models.FindingAllocation,
				Message:  "Total allocation (90.0%) does not equal 100%",
				Severity: models.SeverityMedium,
				Source:   models.SystemSource,
			}},
		},
		{
			name:          "allocation within tolerance",
			req:           models.ComplianceCheckRequest{Portfolio: map[string]float64{"A": 0.2, "B": 0.2, "C": 0.2, "D": 0.2, "E": 0.195}},
			docs:          []*schema.Document{neutral},
			wantCompliant: true,
		},
		{
			name: "empty portfolio violates allocation only",
			req:  models.ComplianceCheckRequest{},
			docs: []*schema.Document{concentration},
			wantViolations: []models.Violation{{
				Type:     models.FindingAllocation,
				Message:  "Total allocation (0.0%) does not equal 100%",
				Severity: models.SeverityMedium,
				Source:   models.SystemSource,
			}},
		},
		{
			name: "risk limit warning needs a limit word",
			req: models.ComplianceCheckRequest{
				Portfolio:   map[string]float64{"AAPL": 0.2, "MSFT": 0.2, "GOOGL": 0.2, "AMZN": 0.2, "META": 0.2},
				RiskProfile: "LOW",
			},
			docs:          []*schema.Document{chunk("High risk assets are discussed here.", "x.md", 0.4)},
			wantCompliant: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeSearcher{ready: true, docs: tt.docs}
			c := newTestCompliance(s, newFakeMetrics())

			req := tt.req
			res := c.Check(context.Background(), &req)

			assert.Equal(t, tt.wantCompliant, res.Compliant)
			if tt.wantViolations == nil {
				assert.Empty(t, res.Violations)
			} else {
				assert.Equal(t, tt.wantViolations, res.Violations)
			}
			if tt.wantWarnings == nil {
				assert.Empty(t, res.Warnings)
			} else {
				assert.Equal(t, tt.wantWarnings, res.Warnings)
			}
			assert.Len(t, res.Citations, len(tt.docs))
			assert.Equal(t, 5, s.topK)
		})
	}
}

func TestCompliance_ConcentrationPerMatchingChunk(t *testing.T) {
	docs := []*schema.Document{
		chunk("Concentration rule one.", "a.txt", 0.9),
		chunk("Single stock rule two.", "b.txt", 0.8),
	}
	c := newTestCompliance(&fakeSearcher{ready: true, docs: docs}, newFakeMetrics())
	res := c.Check(context.Background(), &models.ComplianceCheckRequest{Portfolio: map[string]float64{"AAPL": 1}})

	require.Len(t, res.Violations, 2)
	assert.Equal(t, "a.txt", res.Violations[0].Source)
	assert.Equal(t, "b.txt", res.Violations[1].Source)
	assert.Equal(t, "Single stock allocation (100.0%) may exceed concentration limits", res.Violations[0].Message)
}

func TestCompliance_Citations(t *testing.T) {
	long := strings.Repeat("x", 800)
	docs := []*schema.Document{
		chunk(long, "/data/regs/first.pdf", 0.91),
		chunk("second", "", 0.7),
		chunk("third", "third.txt", 0.6),
		chunk("fourth", "fourth.txt", 0.5),
		chunk("fifth", "fifth.txt", 0.4),
	}
	s := &fakeSearcher{ready: true, docs: docs}
	c := newTestCompliance(s, newFakeMetrics())

	res := c.Check(context.Background(), &models.ComplianceCheckRequest{
		Portfolio:   map[string]float64{"AAPL": 1},
		RiskMetrics: map[string]models.RiskMetric{"AAPL": {RiskScore: 40, Volatility: 0.2}},
	})

	require.Len(t, res.Citations, 3)
	assert.Len(t, res.Citations[0].Text, 500)
	assert.Equal(t, "first.pdf", res.Citations[0].Source)
	assert.InDelta(t, 0.91, res.Citations[0].RelevanceScore, 1e-9)
	assert.Equal(t, "Unknown", res.Citations[1].Source)
	assert.Equal(t, "third.txt", res.Citations[2].Source)

	assert.Equal(t,
		`Risk profile: MEDIUM Portfolio allocation: {"AAPL":1} Risk metrics: {"AAPL":{"riskScore":40,"volatility":0.2}}`,
		s.query)
}

func TestCompliance_AuditAndEvents(t *testing.T) {
	audit := &memAudit{}
	events := &fakeEvents{}
	c := newTestCompliance(&fakeSearcher{ready: true}, newFakeMetrics(),
		WithAuditStore(audit),
		WithComplianceEvents(events, "compliance"),
	)

	res := c.Check(context.Background(), &models.ComplianceCheckRequest{
		Portfolio:   map[string]float64{"AAPL": 0.5, "MSFT": 0.5},
		RiskProfile: "high",
	})
	assert.True(t, res.Compliant)

	require.Len(t, audit.entries, 1)
	assert.Equal(t, "HIGH", audit.entries[0].RiskProfile)
	assert.Equal(t, 2, audit.entries[0].Holdings)
	assert.Same(t, res, audit.entries[0].Result)

	require.Len(t, events.events, 1)
	assert.Equal(t, "compliance", events.events[0].topic)
	assert.Equal(t, "HIGH", events.events[0].key)

	recent, err := c.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestCompliance_RecentWithoutAudit(t *testing.T) {
	c := newTestCompliance(&fakeSearcher{}, newFakeMetrics())
	_, err := c.Recent(context.Background(), 10)
	require.ErrorIs(t, err, domain.ErrStoreDisabled)
}
