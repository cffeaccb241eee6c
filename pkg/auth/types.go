// Package auth authenticates API callers with bearer tokens and makes
// the caller's identity available to handlers through the request
// context.
package auth

import "github.com/Covenant-Systems/pactum/pkg/contracts"

// Principal is the authenticated caller of a request.
type Principal struct {
	// ID identifies the caller, e.g. an email or service account name.
	ID string
	// Role is the caller's approval authority, empty for callers who
	// only submit and observe.
	Role contracts.ApprovalRole
	// Department scopes the caller to a review profile.
	Department string
}

// CanActAs reports whether the principal holds at least the authority
// of the given approval role.
func (p Principal) CanActAs(role contracts.ApprovalRole) bool {
	if p.Role == "" {
		return false
	}
	return p.Role.Seniority() >= role.Seniority()
}
