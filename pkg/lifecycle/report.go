package lifecycle

import (
	"context"
	"time"

	"github.com/Covenant-Systems/pactum/pkg/approval"
	"github.com/Covenant-Systems/pactum/pkg/contracts"
)

// Report is a point-in-time summary of one session: where it is, what
// the analysis found, and what still blocks execution.
type Report struct {
	SessionID    string                 `json:"session_id"`
	Title        string                 `json:"title,omitempty"`
	ContractType contracts.ContractType `json:"contract_type"`
	Stage        contracts.Stage        `json:"stage"`
	RiskLevel    contracts.RiskLevel    `json:"risk_level,omitempty"`

	ValueCents     int64 `json:"value_cents,omitempty"`
	LiabilityCents int64 `json:"liability_cents,omitempty"`

	ClauseCount   int            `json:"clause_count"`
	FindingCounts map[string]int `json:"finding_counts,omitempty"`

	Approvals         ApprovalSummary           `json:"approvals"`
	NegotiationRounds int                       `json:"negotiation_rounds"`
	ProposedLevel     contracts.RiskLevel       `json:"proposed_level,omitempty"`
	Leverage          []contracts.LeveragePoint `json:"leverage,omitempty"`

	AnalysisError string          `json:"analysis_error,omitempty"`
	Timeline      []TimelineEntry `json:"timeline"`

	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	GeneratedAt time.Time `json:"generated_at"`
}

// ApprovalSummary condenses the chain for dashboards.
type ApprovalSummary struct {
	Total    int                    `json:"total"`
	Approved int                    `json:"approved"`
	Pending  int                    `json:"pending"`
	NextRole contracts.ApprovalRole `json:"next_role,omitempty"`
	Complete bool                   `json:"complete"`
}

// TimelineEntry is one event in the session's history, stripped to
// what a reviewer scans for.
type TimelineEntry struct {
	Sequence int64               `json:"sequence"`
	Type     contracts.EventType `json:"type"`
	Stage    contracts.Stage     `json:"stage"`
	ActorID  string              `json:"actor_id,omitempty"`
	At       time.Time           `json:"at"`
}

// Report builds the summary from the session snapshot and its event
// history.
func (o *Orchestrator) Report(ctx context.Context, id string) (Report, error) {
	s, err := o.store.Get(ctx, id)
	if err != nil {
		return Report{}, err
	}
	events, err := o.bus.History(ctx, id, 0)
	if err != nil {
		return Report{}, err
	}

	r := Report{
		SessionID:         s.ID,
		Title:             s.Contract.Title,
		ContractType:      s.Contract.Type,
		Stage:             s.Stage,
		RiskLevel:         s.RiskLevel,
		ValueCents:        s.Contract.ValueCents,
		ClauseCount:       len(s.Clauses),
		NegotiationRounds: len(s.NegotiationRounds),
		Leverage:          s.LeveragePoints,
		AnalysisError:     s.AnalysisError,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
		GeneratedAt:       o.clock().UTC(),
	}
	if s.Assessment != nil {
		r.LiabilityCents = s.Assessment.LiabilityCents
	}
	if s.ProposedAssessment != nil {
		r.ProposedLevel = s.ProposedAssessment.Level
	}
	if len(s.Findings) > 0 {
		r.FindingCounts = make(map[string]int, 4)
		for _, f := range s.Findings {
			r.FindingCounts[string(f.Severity)]++
		}
	}

	approved, total := approval.Progress(s.ApprovalChain)
	r.Approvals = ApprovalSummary{
		Total:    total,
		Approved: approved,
		Pending:  s.PendingApprovals(),
		Complete: total > 0 && contracts.ChainComplete(s.ApprovalChain),
	}
	if idx, ok := approval.NextPending(s.ApprovalChain); ok {
		r.Approvals.NextRole = s.ApprovalChain[idx].Role
	}

	r.Timeline = make([]TimelineEntry, len(events))
	for i, e := range events {
		r.Timeline[i] = TimelineEntry{
			Sequence: e.Sequence,
			Type:     e.Type,
			Stage:    e.Stage,
			ActorID:  e.ActorID,
			At:       e.Timestamp,
		}
	}
	return r, nil
}
