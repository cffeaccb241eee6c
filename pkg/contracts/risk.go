package contracts

import "time"

// RiskLevel is the ordered severity classification that drives routing.
// LOW < MEDIUM < HIGH < CRITICAL.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// riskRank gives RiskLevel its total order.
var riskRank = map[RiskLevel]int{
	RiskLow:      1,
	RiskMedium:   2,
	RiskHigh:     3,
	RiskCritical: 4,
}

// Rank returns the position of the level in the total order (LOW=1 ..
// CRITICAL=4). Unknown levels rank 0, below LOW.
func (r RiskLevel) Rank() int {
	return riskRank[r]
}

// Valid reports whether r is one of the four defined levels.
func (r RiskLevel) Valid() bool {
	return riskRank[r] != 0
}

// AtLeast reports whether r is at or above other in the severity order.
func (r RiskLevel) AtLeast(other RiskLevel) bool {
	return r.Rank() >= other.Rank()
}

// MaxRiskLevel returns the higher of a and b.
func MaxRiskLevel(a, b RiskLevel) RiskLevel {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Finding is one risk observation produced by the scorer, tied to zero
// or one clause. Immutable.
type Finding struct {
	ClauseID string    `json:"clause_id,omitempty"`
	Severity RiskLevel `json:"severity"`
	Category string    `json:"category"`
	// Flag is the machine-readable risk code, e.g. "unlimited_liability".
	Flag        string `json:"flag,omitempty"`
	Description string `json:"description"`
	// Suggestion is the recommended redline, when the scorer has one.
	Suggestion string `json:"suggestion,omitempty"`
}

// RiskAssessment is the scorer's verdict over a clause set. The overall
// level is the maximum severity across findings: a single CRITICAL
// finding makes the contract CRITICAL regardless of count.
type RiskAssessment struct {
	Level    RiskLevel `json:"level"`
	Findings []Finding `json:"findings"`

	// LiabilityCents estimates worst-case exposure. UnlimitedLiability
	// when no cap could be established.
	LiabilityCents int64     `json:"liability_cents,omitempty"`
	AssessedAt     time.Time `json:"assessed_at"`
}

// UnlimitedLiability is the floor exposure assumed when a liability
// clause carries no cap. Uncapped exposure is unbounded in principle;
// the estimator reports at least this much.
const UnlimitedLiability int64 = 10_000_000_00

// Risk flags attached to clauses by the extractor. Findings, leverage
// points, and fallback templates key off these codes.
const (
	FlagUnlimitedLiability    = "unlimited_liability"
	FlagAutoRenewal           = "auto_renewal"
	FlagUnilateralTermination = "unilateral_termination"
	FlagBroadNonCompete       = "broad_non_compete"
	FlagLongNonCompete        = "long_non_compete"
	FlagOneSidedIndemnity     = "one_sided_indemnification"
	FlagBroadConfidentiality  = "broad_confidentiality"
	FlagIPFavorsProvider      = "ip_favors_provider"
	FlagHighInterestRate      = "high_interest_rate"
	FlagMissingDataProtection = "missing_data_protection"
)

// OverallLevel computes the max-severity level for a finding set.
// An empty set is LOW.
func OverallLevel(findings []Finding) RiskLevel {
	level := RiskLow
	for _, f := range findings {
		level = MaxRiskLevel(level, f.Severity)
	}
	return level
}
