// Package contracts defines the shared domain types for the contract
// lifecycle kernel: the submitted contract, its extracted clauses, risk
// findings, approval chain, and the lifecycle session aggregate that ties
// them together.
//
// Types here are data only. State transitions are owned by the lifecycle
// orchestrator; analysis and routing logic live in their own packages.
package contracts

import "time"

// ContractType classifies the submitted agreement. It feeds routing
// policy (e.g. EMPLOYMENT contracts always require LEGAL sign-off).
type ContractType string

const (
	TypeService    ContractType = "SERVICE"
	TypeEmployment ContractType = "EMPLOYMENT"
	TypeLicensing  ContractType = "LICENSING"
	TypeLease      ContractType = "LEASE"
	TypePurchase   ContractType = "PURCHASE"
	TypeNDA        ContractType = "NDA"
	TypeGeneral    ContractType = "GENERAL"
)

// Contract is the submitted agreement. Immutable once accepted at intake.
type Contract struct {
	ID          string       `json:"id"`
	Title       string       `json:"title,omitempty"`
	Type        ContractType `json:"type"`
	Text        string       `json:"text"`
	ValueCents  int64        `json:"value_cents,omitempty"`
	SubmittedAt time.Time    `json:"submitted_at"`
}
