// Package approval enforces the signing law of an approval chain:
// steps are decided strictly left to right, every decision produces an
// immutable receipt, and nothing here ever reorders or resizes a chain.
// Chain construction belongs to routing; stage transitions belong to
// the lifecycle orchestrator.
package approval

import (
	"time"

	"github.com/google/uuid"

	"github.com/Covenant-Systems/pactum/pkg/canonicalize"
	"github.com/Covenant-Systems/pactum/pkg/contracts"
	"github.com/Covenant-Systems/pactum/pkg/fault"
)

// Decision is the outcome a receipt records.
type Decision string

const (
	DecisionApproved Decision = "APPROVED"
	DecisionRejected Decision = "REJECTED"
)

// Receipt is the immutable record of one sign-off decision. ContentHash
// covers the decision-relevant fields so a receipt can be verified
// against a tampered chain.
type Receipt struct {
	ReceiptID   string                 `json:"receipt_id"`
	SessionID   string                 `json:"session_id"`
	StepIndex   int                    `json:"step_index"`
	Role        contracts.ApprovalRole `json:"role"`
	Decision    Decision               `json:"decision"`
	Approver    string                 `json:"approver"`
	Comments    string                 `json:"comments,omitempty"`
	DecidedAt   time.Time              `json:"decided_at"`
	ContentHash string                 `json:"content_hash"`
}

// NextPending returns the index of the first undecided step.
func NextPending(chain []contracts.ApprovalStep) (int, bool) {
	for i, s := range chain {
		if s.Status == contracts.StepPending {
			return i, true
		}
	}
	return 0, false
}

// Progress reports decided-vs-total steps.
func Progress(chain []contracts.ApprovalStep) (approved, total int) {
	for _, s := range chain {
		if s.Status == contracts.StepApproved {
			approved++
		}
	}
	return approved, len(chain)
}

// Approve marks the chain's current step approved, in place. The role
// must own exactly the first pending step: approving ahead of an
// earlier pending signer, approving twice, or approving from outside
// the chain are all invalid state, and the chain is left untouched.
func Approve(sessionID string, chain []contracts.ApprovalStep, role contracts.ApprovalRole, approver, comments string, now time.Time) (Receipt, error) {
	if len(chain) == 0 {
		return Receipt{}, fault.ErrInvalidState.WithMessage("session has no approval chain")
	}
	idx, ok := NextPending(chain)
	if !ok {
		return Receipt{}, fault.ErrInvalidState.WithMessage("approval chain is already fully decided")
	}
	current := chain[idx]
	if current.Role != role {
		for i, s := range chain {
			if s.Role != role {
				continue
			}
			if i < idx {
				return Receipt{}, fault.ErrInvalidState.WithMessagef("%s has already decided its step", role)
			}
			return Receipt{}, fault.ErrInvalidState.WithMessagef("%s cannot approve before %s", role, current.Role)
		}
		return Receipt{}, fault.ErrInvalidState.WithMessagef("role %s is not part of the approval chain", role)
	}

	chain[idx].Status = contracts.StepApproved
	chain[idx].Approver = approver
	chain[idx].Comments = comments
	t := now.UTC()
	chain[idx].DecidedAt = &t

	return newReceipt(sessionID, idx, role, DecisionApproved, approver, comments, t), nil
}

// RejectCurrent marks the first pending step rejected, in place, and
// returns its receipt. A fully decided or empty chain has no step to
// mark; the second return is false and the caller records the
// rejection at session level only.
func RejectCurrent(sessionID string, chain []contracts.ApprovalStep, approver, reason string, now time.Time) (Receipt, bool) {
	idx, ok := NextPending(chain)
	if !ok {
		return Receipt{}, false
	}
	chain[idx].Status = contracts.StepRejected
	chain[idx].Approver = approver
	chain[idx].Comments = reason
	t := now.UTC()
	chain[idx].DecidedAt = &t

	return newReceipt(sessionID, idx, chain[idx].Role, DecisionRejected, approver, reason, t), true
}

func newReceipt(sessionID string, idx int, role contracts.ApprovalRole, decision Decision, approver, comments string, decidedAt time.Time) Receipt {
	r := Receipt{
		ReceiptID: uuid.New().String(),
		SessionID: sessionID,
		StepIndex: idx,
		Role:      role,
		Decision:  decision,
		Approver:  approver,
		Comments:  comments,
		DecidedAt: decidedAt,
	}
	hashable := struct {
		SessionID string                 `json:"session_id"`
		StepIndex int                    `json:"step_index"`
		Role      contracts.ApprovalRole `json:"role"`
		Decision  Decision               `json:"decision"`
		Approver  string                 `json:"approver"`
		DecidedAt time.Time              `json:"decided_at"`
	}{sessionID, idx, role, decision, approver, decidedAt}
	if h, err := canonicalize.CanonicalHash(hashable); err == nil {
		r.ContentHash = "sha256:" + h
	}
	return r
}
