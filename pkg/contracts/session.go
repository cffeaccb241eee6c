package contracts

import "time"

// Stage is the lifecycle phase of a session. A session is in exactly one
// stage at any time. Transitions are owned by the orchestrator.
type Stage string

const (
	StageIntake      Stage = "INTAKE"
	StageAnalysis    Stage = "ANALYSIS"
	StageRiskRouting Stage = "RISK_ROUTING"
	StageNegotiation Stage = "NEGOTIATION"
	StageApproval    Stage = "APPROVAL"
	StageExecuted    Stage = "EXECUTED"
	StageRejected    Stage = "REJECTED"
)

// Terminal reports whether the stage accepts no further mutation.
func (s Stage) Terminal() bool {
	return s == StageExecuted || s == StageRejected
}

// NegotiationRound is one counter-term submission. Append-only.
type NegotiationRound struct {
	Round        int        `json:"round"`
	CounterTerms string     `json:"counter_terms"`
	SubmittedBy  string     `json:"submitted_by,omitempty"`
	SubmittedAt  time.Time  `json:"submitted_at"`
	Rejected     bool       `json:"rejected,omitempty"`
	RejectedAt   *time.Time `json:"rejected_at,omitempty"`
}

// LeveragePoint is a negotiation angle derived from a finding: what to
// push back on and the fallback position to retreat to.
type LeveragePoint struct {
	Flag      string     `json:"flag"`
	ClauseID  string     `json:"clause_id,omitempty"`
	Severity  RiskLevel  `json:"severity"`
	Rationale string     `json:"rationale"`
	Fallback  string     `json:"fallback,omitempty"`
	Clause    ClauseType `json:"clause_type,omitempty"`
}

// LifecycleSession is the aggregate root: one contract's full lifecycle
// state from submission to terminal outcome.
//
// Mutation rules:
//   - stage/status changes go through the orchestrator only
//   - clauses and findings are append-only once analysis completes
//   - RiskLevel is set exactly once, at risk routing, and never changes
//     afterward; a renegotiation records a proposed assessment instead
//   - the approval chain's length and role order are fixed at routing
type LifecycleSession struct {
	ID       string   `json:"id"`
	Contract Contract `json:"contract"`
	Stage    Stage    `json:"stage"`

	Clauses  []Clause  `json:"clauses,omitempty"`
	Findings []Finding `json:"findings,omitempty"`

	// RiskLevel is empty until risk routing has run.
	RiskLevel  RiskLevel       `json:"risk_level,omitempty"`
	RoutedAt   *time.Time      `json:"routed_at,omitempty"`
	Assessment *RiskAssessment `json:"assessment,omitempty"`

	// ProposedAssessment holds the re-scored result of a renegotiation.
	// Adopting it requires an explicit reroute command; it never
	// overwrites RiskLevel on its own.
	ProposedAssessment *RiskAssessment `json:"proposed_assessment,omitempty"`

	ApprovalChain     []ApprovalStep     `json:"approval_chain,omitempty"`
	NegotiationRounds []NegotiationRound `json:"negotiation_rounds,omitempty"`
	LeveragePoints    []LeveragePoint    `json:"leverage_points,omitempty"`

	// AnalysisError holds the last collaborator failure while the
	// session is stalled in ANALYSIS. Cleared on successful retry.
	AnalysisError string `json:"analysis_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReadyToExecute reports whether the session may accept Execute: it is
// in APPROVAL with every step of the chain signed off. LOW-risk sessions
// satisfy this immediately because routing auto-approves their synthetic
// AUTO chain.
func (s *LifecycleSession) ReadyToExecute() bool {
	return s.Stage == StageApproval && ChainComplete(s.ApprovalChain)
}

// PendingApprovals counts chain steps still awaiting a decision.
func (s *LifecycleSession) PendingApprovals() int {
	n := 0
	for _, step := range s.ApprovalChain {
		if step.Status == StepPending {
			n++
		}
	}
	return n
}

// Clone returns a deep copy safe to hand outside the orchestrator's
// critical section.
func (s *LifecycleSession) Clone() *LifecycleSession {
	cp := *s
	cp.Clauses = append([]Clause(nil), s.Clauses...)
	cp.Findings = append([]Finding(nil), s.Findings...)
	cp.ApprovalChain = append([]ApprovalStep(nil), s.ApprovalChain...)
	cp.NegotiationRounds = append([]NegotiationRound(nil), s.NegotiationRounds...)
	cp.LeveragePoints = append([]LeveragePoint(nil), s.LeveragePoints...)
	for i, cl := range cp.Clauses {
		cp.Clauses[i].RiskFlags = append([]string(nil), cl.RiskFlags...)
		if cl.Attributes != nil {
			attrs := make(map[string]string, len(cl.Attributes))
			for k, v := range cl.Attributes {
				attrs[k] = v
			}
			cp.Clauses[i].Attributes = attrs
		}
	}
	for i, step := range cp.ApprovalChain {
		if step.DecidedAt != nil {
			t := *step.DecidedAt
			cp.ApprovalChain[i].DecidedAt = &t
		}
	}
	for i, round := range cp.NegotiationRounds {
		if round.RejectedAt != nil {
			t := *round.RejectedAt
			cp.NegotiationRounds[i].RejectedAt = &t
		}
	}
	if s.RoutedAt != nil {
		t := *s.RoutedAt
		cp.RoutedAt = &t
	}
	if s.Assessment != nil {
		a := *s.Assessment
		a.Findings = append([]Finding(nil), s.Assessment.Findings...)
		cp.Assessment = &a
	}
	if s.ProposedAssessment != nil {
		a := *s.ProposedAssessment
		a.Findings = append([]Finding(nil), s.ProposedAssessment.Findings...)
		cp.ProposedAssessment = &a
	}
	return &cp
}
