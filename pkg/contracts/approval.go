package contracts

import "time"

// ApprovalRole names a required signer level in the approval chain.
type ApprovalRole string

const (
	RoleAuto    ApprovalRole = "AUTO"
	RoleManager ApprovalRole = "MANAGER"
	RoleVP      ApprovalRole = "VP"
	RoleLegal   ApprovalRole = "LEGAL"
	RoleCFO     ApprovalRole = "CFO"
)

// roleSeniority orders roles from most junior to most senior. Chains are
// always signed in ascending seniority.
var roleSeniority = map[ApprovalRole]int{
	RoleAuto:    0,
	RoleManager: 1,
	RoleVP:      2,
	RoleLegal:   3,
	RoleCFO:     4,
}

// Seniority returns the signing rank of the role.
func (r ApprovalRole) Seniority() int {
	return roleSeniority[r]
}

// Valid reports whether r is one of the defined roles.
func (r ApprovalRole) Valid() bool {
	_, ok := roleSeniority[r]
	return ok
}

// StepStatus is the state of one approval step.
type StepStatus string

const (
	StepPending  StepStatus = "PENDING"
	StepApproved StepStatus = "APPROVED"
	StepRejected StepStatus = "REJECTED"
)

// ApprovalStep is one required sign-off. The chain's length and role
// ordering are fixed at routing time; only Status, Approver, Comments
// and DecidedAt mutate afterward.
type ApprovalStep struct {
	Role      ApprovalRole `json:"role"`
	Status    StepStatus   `json:"status"`
	Approver  string       `json:"approver,omitempty"`
	Comments  string       `json:"comments,omitempty"`
	DecidedAt *time.Time   `json:"decided_at,omitempty"`
}

// ChainComplete reports whether every step in the chain is APPROVED.
// An empty chain is never complete.
func ChainComplete(chain []ApprovalStep) bool {
	if len(chain) == 0 {
		return false
	}
	for _, s := range chain {
		if s.Status != StepApproved {
			return false
		}
	}
	return true
}
