package models

import "time"

type RiskProfile string

const (
	RiskLow    RiskProfile = "LOW"
	RiskMedium RiskProfile = "MEDIUM"
	RiskHigh   RiskProfile = "HIGH"
)

type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
)

// Finding types.
const (
	FindingConcentration    = "CONCENTRATION"
	FindingAllocation       = "ALLOCATION"
	FindingRiskLimit        = "RISK_LIMIT"
	FindingRiskProfile      = "RISK_PROFILE"
	FindingSystemError      = "SYSTEM_ERROR"
	FindingIndexUnavailable = "INDEX_UNAVAILABLE"
)

// SystemSource marks findings produced by fixed rules rather than a regulation text.
const SystemSource = "System"

// RiskMetric is what the caller knows about one holding.
type RiskMetric struct {
	RiskScore      float64 `json:"riskScore"`
	Volatility     float64 `json:"volatility,omitempty"`
	ExpectedReturn float64 `json:"expectedReturn,omitempty"`
}

type Violation struct {
	Type     string   `json:"type"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Source   string   `json:"source"`
}

type Warning struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Source  string `json:"source"`
}

type Citation struct {
	Text           string  `json:"text"`
	Source         string  `json:"source"`
	RelevanceScore float64 `json:"relevanceScore"`
}

// ComplianceResult is the record returned by the rag-service.
type ComplianceResult struct {
	Compliant  bool        `json:"compliant"`
	Violations []Violation `json:"violations"`
	Warnings   []Warning   `json:"warnings"`
	Citations  []Citation  `json:"citations"`
}

// NewComplianceResult returns an empty result whose lists encode as [] rather than null.
func NewComplianceResult() *ComplianceResult {
	return &ComplianceResult{
		Violations: []Violation{},
		Warnings:   []Warning{},
		Citations:  []Citation{},
	}
}

// AuditEntry is one recorded compliance check.
type AuditEntry struct {
	ID          string            `json:"id"`
	CheckedAt   time.Time         `json:"checkedAt"`
	RiskProfile string            `json:"riskProfile"`
	Holdings    int               `json:"holdings"`
	Result      *ComplianceResult `json:"result"`
}
