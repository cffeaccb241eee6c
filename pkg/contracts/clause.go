package contracts

// ClauseType identifies the legal family a clause belongs to.
type ClauseType string

const (
	ClauseLiability       ClauseType = "liability"
	ClauseIndemnification ClauseType = "indemnification"
	ClauseTermination     ClauseType = "termination"
	ClauseConfidentiality ClauseType = "confidentiality"
	ClauseNonCompete      ClauseType = "non_compete"
	ClauseAutoRenewal     ClauseType = "auto_renewal"
	ClausePayment         ClauseType = "payment"
	ClauseIPAssignment    ClauseType = "ip_assignment"
	ClauseDataProtection  ClauseType = "data_protection"
	ClauseWarranty        ClauseType = "warranty"
	ClauseGoverningLaw    ClauseType = "governing_law"

	// ClauseGeneral is the catch-all used when a document yields no
	// recognizable sections. The whole text becomes one clause.
	ClauseGeneral ClauseType = "general"
)

// Span locates a clause within the contract text by byte offsets.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Clause is one extracted provision. Produced by the clause extractor;
// immutable after analysis completes.
type Clause struct {
	ID   string     `json:"id"`
	Type ClauseType `json:"type"`
	Span Span       `json:"span"`
	Text string     `json:"text"`

	// RiskFlags are the machine-readable risk codes the extractor
	// detected in this clause, e.g. "unlimited_liability". A clause
	// with no flags uses standard terms.
	RiskFlags []string `json:"risk_flags,omitempty"`

	// Attributes holds structured facts parsed from the clause text,
	// e.g. "cap_amount_cents", "duration_months", "notice_days".
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Standard reports whether the clause carries no risk flags.
func (c Clause) Standard() bool {
	return len(c.RiskFlags) == 0
}
