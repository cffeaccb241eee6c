package lifecycle

import (
	"testing"

	"github.com/Covenant-Systems/pactum/pkg/contracts"
)

func TestTransitionTable(t *testing.T) {
	type edge struct{ from, to contracts.Stage }
	allowed := map[edge]bool{
		{contracts.StageIntake, contracts.StageAnalysis}:         true,
		{contracts.StageIntake, contracts.StageRejected}:         true,
		{contracts.StageAnalysis, contracts.StageRiskRouting}:    true,
		{contracts.StageAnalysis, contracts.StageRejected}:       true,
		{contracts.StageRiskRouting, contracts.StageApproval}:    true,
		{contracts.StageRiskRouting, contracts.StageNegotiation}: true,
		{contracts.StageRiskRouting, contracts.StageRejected}:    true,
		{contracts.StageNegotiation, contracts.StageApproval}:    true,
		{contracts.StageNegotiation, contracts.StageRejected}:    true,
		{contracts.StageApproval, contracts.StageExecuted}:       true,
		{contracts.StageApproval, contracts.StageRejected}:       true,
	}

	stages := Stages()
	for _, from := range stages {
		for _, to := range stages {
			got := CanTransition(from, to)
			want := allowed[edge{from, to}]
			if got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTerminalStagesHaveNoExits(t *testing.T) {
	for _, from := range []contracts.Stage{contracts.StageExecuted, contracts.StageRejected} {
		for _, to := range Stages() {
			if CanTransition(from, to) {
				t.Errorf("terminal stage %s allows transition to %s", from, to)
			}
		}
	}
}

func TestNoSelfTransitions(t *testing.T) {
	for _, s := range Stages() {
		if CanTransition(s, s) {
			t.Errorf("self transition allowed for %s", s)
		}
	}
}
