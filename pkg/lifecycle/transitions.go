package lifecycle

import "github.com/Covenant-Systems/pactum/pkg/contracts"

// transitions is the authoritative edge set of the lifecycle state
// machine. Every stage change the orchestrator performs is checked
// against this table; nothing else in the system writes a stage.
//
//	INTAKE -> ANALYSIS                 submission validated
//	ANALYSIS -> RISK_ROUTING           extraction and scoring complete
//	RISK_ROUTING -> APPROVAL           LOW/MEDIUM, or reroute outcome
//	RISK_ROUTING -> NEGOTIATION        HIGH/CRITICAL negotiate first
//	NEGOTIATION -> APPROVAL            proposal accepted or rerouted down
//	APPROVAL -> EXECUTED               execute after chain complete
//	any active -> REJECTED             explicit short-circuit
var transitions = map[contracts.Stage][]contracts.Stage{
	contracts.StageIntake:      {contracts.StageAnalysis, contracts.StageRejected},
	contracts.StageAnalysis:    {contracts.StageRiskRouting, contracts.StageRejected},
	contracts.StageRiskRouting: {contracts.StageApproval, contracts.StageNegotiation, contracts.StageRejected},
	contracts.StageNegotiation: {contracts.StageApproval, contracts.StageRejected},
	contracts.StageApproval:    {contracts.StageExecuted, contracts.StageRejected},
	contracts.StageExecuted:    nil,
	contracts.StageRejected:    nil,
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to contracts.Stage) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Stages lists every stage in lifecycle order.
func Stages() []contracts.Stage {
	return []contracts.Stage{
		contracts.StageIntake,
		contracts.StageAnalysis,
		contracts.StageRiskRouting,
		contracts.StageNegotiation,
		contracts.StageApproval,
		contracts.StageExecuted,
		contracts.StageRejected,
	}
}
