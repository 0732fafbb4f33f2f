package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"RiskApprove/internal/domain"
	"RiskApprove/internal/domain/models"
	domrepo "RiskApprove/internal/domain/repository"
	"RiskApprove/internal/services/documents"
	applogger "RiskApprove/pkg/logger"
	"RiskApprove/pkg/util"

	"github.com/cloudwego/eino/schema"
)

// Rule thresholds.
const (
	concentrationLimit  = 0.25
	allocationTolerance = 0.01
	highRiskScore       = 70
)

const (
	unknownSource           = "Unknown"
	indexUnavailableMessage = "Vector store not initialized"
	retrievalFailedMessage  = "Compliance retrieval failed"
)

// RegulationSearcher finds regulation chunks relevant to a query.
type RegulationSearcher interface {
	Ready() bool
	Search(ctx context.Context, query string, topK int) ([]*schema.Document, error)
}

// ComplianceEvent is published for every evaluated check.
type ComplianceEvent struct {
	Type        string                   `json:"type"`
	RiskProfile string                   `json:"riskProfile"`
	Holdings    int                      `json:"holdings"`
	Result      *models.ComplianceResult `json:"result"`
	At          time.Time                `json:"at"`
}

// ComplianceConfig bounds retrieval and the size of the returned citations.
type ComplianceConfig struct {
	TopK          int
	MaxCitations  int
	CitationChars int
}

// ComplianceOption configures Compliance.
type ComplianceOption func(*Compliance)

// WithAuditStore records every result.
func WithAuditStore(s domrepo.AuditStore) ComplianceOption {
	return func(c *Compliance) { c.audit = s }
}

// WithComplianceEvents publishes every result on topic.
func WithComplianceEvents(pub domrepo.EventPublisher, topic string) ComplianceOption {
	return func(c *Compliance) {
		c.events = pub
		c.topic = topic
	}
}

// Compliance checks a proposed allocation against retrieved regulation
// chunks and a set of fixed portfolio rules.
type Compliance struct {
	index   RegulationSearcher
	cfg     ComplianceConfig
	metrics domrepo.Metrics
	logger  *applogger.Logger

	audit  domrepo.AuditStore
	events domrepo.EventPublisher
	topic  string
	now    func() time.Time
}

func NewCompliance(index RegulationSearcher, cfg ComplianceConfig, m domrepo.Metrics, l *applogger.Logger, opts ...ComplianceOption) *Compliance {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.MaxCitations <= 0 {
		cfg.MaxCitations = 3
	}
	if cfg.CitationChars <= 0 {
		cfg.CitationChars = 500
	}
	c := &Compliance{
		index:   index,
		cfg:     cfg,
		metrics: m,
		logger:  l.With(applogger.String("component", "compliance")),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check never fails: retrieval problems are reported inside the result.
func (c *Compliance) Check(ctx context.Context, req *models.ComplianceCheckRequest) *models.ComplianceResult {
	profile := normalizeProfile(req.RiskProfile)
	res := c.evaluate(ctx, profile, req)

	c.metrics.RecordComplianceCheck(res.Compliant)
	for _, v := range res.Violations {
		c.metrics.RecordViolation(v.Type)
	}
	c.record(ctx, profile, len(req.Portfolio), res)
	return res
}

// Recent returns the newest audited checks.
func (c *Compliance) Recent(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	if c.audit == nil {
		return nil, domain.ErrStoreDisabled
	}
	return c.audit.Recent(ctx, limit)
}

func (c *Compliance) evaluate(ctx context.Context, profile string, req *models.ComplianceCheckRequest) *models.ComplianceResult {
	res := models.NewComplianceResult()
	res.Compliant = true

	if !c.index.Ready() {
		res.Warnings = append(res.Warnings, models.Warning{
			Type:    models.FindingIndexUnavailable,
			Message: indexUnavailableMessage,
			Source:  models.SystemSource,
		})
		return res
	}

	query, err := buildQuery(profile, req)
	if err != nil {
		return c.systemError(err)
	}
	docs, err := c.index.Search(ctx, query, c.cfg.TopK)
	if err != nil {
		if errors.Is(err, domain.ErrIndexNotReady) {
			res.Warnings = append(res.Warnings, models.Warning{
				Type:    models.FindingIndexUnavailable,
				Message: indexUnavailableMessage,
				Source:  models.SystemSource,
			})
			return res
		}
		return c.systemError(err)
	}

	maxWeight := 0.0
	total := 0.0
	for _, w := range req.Portfolio {
		maxWeight = math.Max(maxWeight, w)
		total += w
	}
	low := profile == string(models.RiskLow)

	for _, doc := range docs {
		source := sourceName(doc)
		res.Citations = append(res.Citations, models.Citation{
			Text:           util.Truncate(doc.Content, c.cfg.CitationChars),
			Source:         source,
			RelevanceScore: doc.Score(),
		})

		text := strings.ToLower(doc.Content)
		if low && strings.Contains(text, "high risk") && util.ContainsAny(text, "limit", "maximum") {
			res.Warnings = append(res.Warnings, models.Warning{
				Type:    models.FindingRiskLimit,
				Message: "Low risk profile may have restrictions on high-risk assets",
				Source:  source,
			})
		}
		if util.ContainsAny(text, "concentration", "single stock") && maxWeight > concentrationLimit {
			res.Violations = append(res.Violations, models.Violation{
				Type:     models.FindingConcentration,
				Message:  fmt.Sprintf("Single stock allocation (%.1f%%) may exceed concentration limits", maxWeight*100),
				Severity: models.SeverityHigh,
				Source:   source,
			})
		}
	}

	if math.Abs(total-1) > allocationTolerance {
		res.Violations = append(res.Violations, models.Violation{
			Type:     models.FindingAllocation,
			Message:  fmt.Sprintf("Total allocation (%.1f%%) does not equal 100%%", total*100),
			Severity: models.SeverityMedium,
			Source:   models.SystemSource,
		})
	}

	if low {
		var risky []string
		for symbol, m := range req.RiskMetrics {
			if m.RiskScore > highRiskScore {
				risky = append(risky, symbol)
			}
		}
		if len(risky) > 0 {
			sort.Strings(risky)
			res.Warnings = append(res.Warnings, models.Warning{
				Type:    models.FindingRiskProfile,
				Message: "Low risk profile may not be suitable for high-risk stocks: " + strings.Join(risky, ", "),
				Source:  models.SystemSource,
			})
		}
	}

	res.Compliant = len(res.Violations) == 0
	if len(res.Citations) > c.cfg.MaxCitations {
		res.Citations = res.Citations[:c.cfg.MaxCitations]
	}
	return res
}

func (c *Compliance) systemError(err error) *models.ComplianceResult {
	c.logger.Error("compliance retrieval failed", applogger.Error(err))
	out := models.NewComplianceResult()
	out.Violations = append(out.Violations, models.Violation{
		Type:     models.FindingSystemError,
		Message:  retrievalFailedMessage,
		Severity: models.SeverityHigh,
		Source:   models.SystemSource,
	})
	return out
}

func (c *Compliance) record(ctx context.Context, profile string, holdings int, res *models.ComplianceResult) {
	at := c.now().UTC()
	if c.audit != nil {
		entry := &models.AuditEntry{CheckedAt: at, RiskProfile: profile, Holdings: holdings, Result: res}
		if err := c.audit.Record(ctx, entry); err != nil {
			c.logger.Warn("audit compliance check", applogger.Error(err))
		}
	}
	if c.events != nil {
		evt := ComplianceEvent{Type: "compliance_check", RiskProfile: profile, Holdings: holdings, Result: res, At: at}
		if err := c.events.Publish(ctx, c.topic, profile, evt); err != nil {
			c.logger.Warn("publish compliance check", applogger.Error(err))
		}
	}
}

func normalizeProfile(p string) string {
	p = strings.ToUpper(strings.TrimSpace(p))
	if p == "" {
		return string(models.RiskMedium)
	}
	return p
}

func buildQuery(profile string, req *models.ComplianceCheckRequest) (string, error) {
	portfolio := req.Portfolio
	if portfolio == nil {
		portfolio = map[string]float64{}
	}
	metrics := req.RiskMetrics
	if metrics == nil {
		metrics = map[string]models.RiskMetric{}
	}
	p, err := json.Marshal(portfolio)
	if err != nil {
		return "", fmt.Errorf("encode portfolio: %w", err)
	}
	m, err := json.Marshal(metrics)
	if err != nil {
		return "", fmt.Errorf("encode risk metrics: %w", err)
	}
	return fmt.Sprintf("Risk profile: %s Portfolio allocation: %s Risk metrics: %s", profile, p, m), nil
}

func sourceName(doc *schema.Document) string {
	src, _ := doc.MetaData[documents.MetaSource].(string)
	if src == "" {
		return unknownSource
	}
	return filepath.Base(src)
}
