// Package routing decides who must sign a contract. The assessed risk
// level selects a fixed base chain; a versioned escalation policy can
// raise the level or add signers on top, never the reverse. Routing is
// the single writer of a session's risk level and approval chain shape.
package routing

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Covenant-Systems/pactum/pkg/contracts"
	"github.com/Covenant-Systems/pactum/pkg/fault"
)

// Decision is the routing outcome for one session. Level and Chain are
// written to the session exactly once and never change afterward.
type Decision struct {
	// AssessedLevel is the scorer's verdict before policy floors.
	AssessedLevel contracts.RiskLevel `json:"assessed_level"`

	// Level is the effective risk level after policy floors. This is
	// what the session records and the chain is built from.
	Level contracts.RiskLevel `json:"level"`

	Chain []contracts.ApprovalStep `json:"chain"`

	// ViaNegotiation routes the session through NEGOTIATION before
	// approvals open. HIGH and CRITICAL contracts always negotiate.
	ViaNegotiation bool `json:"via_negotiation"`

	// AutoApproved marks a chain satisfied at routing time with no
	// human in it.
	AutoApproved bool `json:"auto_approved"`

	AppliedRules  []string `json:"applied_rules,omitempty"`
	PolicyName    string   `json:"policy_name"`
	PolicyVersion string   `json:"policy_version"`
}

// BaseChain is the required signer sequence for a risk level before any
// policy escalation.
func BaseChain(level contracts.RiskLevel) []contracts.ApprovalRole {
	switch level {
	case contracts.RiskLow:
		return []contracts.ApprovalRole{contracts.RoleAuto}
	case contracts.RiskMedium:
		return []contracts.ApprovalRole{contracts.RoleManager}
	case contracts.RiskHigh:
		return []contracts.ApprovalRole{contracts.RoleManager, contracts.RoleVP, contracts.RoleLegal}
	case contracts.RiskCritical:
		return []contracts.ApprovalRole{contracts.RoleManager, contracts.RoleVP, contracts.RoleLegal, contracts.RoleCFO}
	}
	return nil
}

// Router applies the installed policy to scored contracts. Safe for
// concurrent use; the policy can be swapped at runtime but never rolled
// back to an older version.
type Router struct {
	mu     sync.RWMutex
	policy *Policy
	eval   *Evaluator
	clock  func() time.Time
}

// NewRouter builds a router with the given policy, or the built-in
// standard escalation policy when nil.
func NewRouter(policy *Policy) (*Router, error) {
	eval, err := NewEvaluator()
	if err != nil {
		return nil, err
	}
	if policy == nil {
		policy = DefaultPolicy()
	}
	if err := policy.Validate(eval); err != nil {
		return nil, err
	}
	return &Router{policy: policy, eval: eval, clock: time.Now}, nil
}

// WithClock overrides the timestamp source for auto-approved steps.
func (r *Router) WithClock(clock func() time.Time) *Router {
	r.clock = clock
	return r
}

// ActivePolicy returns the installed policy's identity.
func (r *Router) ActivePolicy() (name, version string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.policy.Name, r.policy.Version
}

// SetPolicy installs a new policy. Versions move forward only: loading
// an older version than the installed one is denied.
func (r *Router) SetPolicy(p *Policy) error {
	if err := p.Validate(r.eval); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current := r.policy.semverOf()
	next := p.semverOf()
	if next.LessThan(current) {
		return fmt.Errorf("policy rollback from %s to %s denied", current, next)
	}
	r.policy = p
	return nil
}

// Route computes the approval chain for a scored contract. Guard
// evaluation failures fail the routing rather than silently skipping
// the rule.
func (r *Router) Route(c contracts.Contract, assessment contracts.RiskAssessment) (Decision, error) {
	if !assessment.Level.Valid() {
		return Decision{}, fault.ErrInvalidInput.WithMessagef("unknown risk level %q", assessment.Level)
	}

	r.mu.RLock()
	policy := r.policy
	r.mu.RUnlock()

	input := celInput(c, assessment)
	effective := assessment.Level
	var extra []contracts.ApprovalRole
	var applied []string
	for _, rule := range policy.Rules {
		if rule.When != "" {
			ok, err := r.eval.Evaluate(rule.When, input)
			if err != nil {
				return Decision{}, fmt.Errorf("policy %s rule %s: %w", policy.Name, rule.Name, err)
			}
			if !ok {
				continue
			}
		}
		applied = append(applied, rule.Name)
		if rule.FloorLevel != "" {
			effective = contracts.MaxRiskLevel(effective, rule.FloorLevel)
		}
		extra = append(extra, rule.AddRoles...)
	}

	roles := normalizeChain(append(BaseChain(effective), extra...))
	chain := make([]contracts.ApprovalStep, len(roles))
	for i, role := range roles {
		chain[i] = contracts.ApprovalStep{Role: role, Status: contracts.StepPending}
	}

	auto := len(roles) == 1 && roles[0] == contracts.RoleAuto
	if auto {
		now := r.clock().UTC()
		chain[0].Status = contracts.StepApproved
		chain[0].Approver = "system"
		chain[0].Comments = "auto-approved: low risk"
		chain[0].DecidedAt = &now
	}

	return Decision{
		AssessedLevel:  assessment.Level,
		Level:          effective,
		Chain:          chain,
		ViaNegotiation: effective.AtLeast(contracts.RiskHigh),
		AutoApproved:   auto,
		AppliedRules:   applied,
		PolicyName:     policy.Name,
		PolicyVersion:  policy.Version,
	}, nil
}

// normalizeChain dedupes, orders by seniority, and drops the synthetic
// AUTO signer as soon as any human role is required.
func normalizeChain(roles []contracts.ApprovalRole) []contracts.ApprovalRole {
	human := false
	for _, role := range roles {
		if role != contracts.RoleAuto {
			human = true
			break
		}
	}
	seen := make(map[contracts.ApprovalRole]bool, len(roles))
	out := roles[:0:0]
	for _, role := range roles {
		if human && role == contracts.RoleAuto {
			continue
		}
		if seen[role] {
			continue
		}
		seen[role] = true
		out = append(out, role)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Seniority() < out[j].Seniority()
	})
	return out
}

func celInput(c contracts.Contract, a contracts.RiskAssessment) map[string]any {
	flags := make([]string, 0, len(a.Findings))
	for _, f := range a.Findings {
		if f.Flag != "" {
			flags = append(flags, f.Flag)
		}
	}
	return map[string]any{
		"contract": map[string]any{
			"type":        string(c.Type),
			"value_cents": c.ValueCents,
			"title":       c.Title,
		},
		"risk": map[string]any{
			"level":           string(a.Level),
			"rank":            a.Level.Rank(),
			"flags":           flags,
			"liability_cents": a.LiabilityCents,
		},
	}
}
