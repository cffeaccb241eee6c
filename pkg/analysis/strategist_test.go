package analysis

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Covenant-Systems/pactum/pkg/contracts"
)

type stubTemplates map[contracts.ClauseType]string

func (s stubTemplates) SafeClause(ct contracts.ClauseType) (string, bool) {
	text, ok := s[ct]
	return text, ok
}

func TestLeverageOnlyHighAndCritical(t *testing.T) {
	clauses := []contracts.Clause{
		{ID: "cl-liability", Type: contracts.ClauseLiability},
		{ID: "cl-auto_renewal", Type: contracts.ClauseAutoRenewal},
	}
	findings := []contracts.Finding{
		{ClauseID: "cl-auto_renewal", Flag: contracts.FlagAutoRenewal, Severity: contracts.RiskMedium},
		{ClauseID: "cl-liability", Flag: contracts.FlagUnlimitedLiability, Severity: contracts.RiskCritical},
		{ClauseID: "cl-liability", Severity: contracts.RiskLow},
	}

	points := NewStrategist(nil).DevelopLeverage(clauses, findings)
	require.Len(t, points, 1)
	require.Equal(t, contracts.FlagUnlimitedLiability, points[0].Flag)
	require.Equal(t, contracts.RiskCritical, points[0].Severity)
	require.NotEmpty(t, points[0].Rationale)
}

func TestLeverageOrdersBySeverityAndCaps(t *testing.T) {
	findings := []contracts.Finding{
		{ClauseID: "a", Flag: contracts.FlagUnilateralTermination, Severity: contracts.RiskHigh},
		{ClauseID: "b", Flag: contracts.FlagBroadNonCompete, Severity: contracts.RiskHigh},
		{ClauseID: "c", Flag: contracts.FlagLongNonCompete, Severity: contracts.RiskHigh},
		{ClauseID: "d", Flag: contracts.FlagOneSidedIndemnity, Severity: contracts.RiskHigh},
		{ClauseID: "e", Flag: contracts.FlagIPFavorsProvider, Severity: contracts.RiskHigh},
		{ClauseID: "f", Flag: contracts.FlagUnlimitedLiability, Severity: contracts.RiskCritical},
	}

	points := NewStrategist(nil).DevelopLeverage(nil, findings)
	require.Len(t, points, maxLeveragePoints)
	require.Equal(t, contracts.FlagUnlimitedLiability, points[0].Flag)
	for _, p := range points[1:] {
		require.Equal(t, contracts.RiskHigh, p.Severity)
	}
}

func TestLeverageDedupesByFlag(t *testing.T) {
	findings := []contracts.Finding{
		{ClauseID: "cl-termination", Flag: contracts.FlagUnilateralTermination, Severity: contracts.RiskHigh},
		{ClauseID: "cl-general", Flag: contracts.FlagUnilateralTermination, Severity: contracts.RiskHigh},
	}
	points := NewStrategist(nil).DevelopLeverage(nil, findings)
	require.Len(t, points, 1)
	require.Equal(t, "cl-termination", points[0].ClauseID)
}

func TestLeverageFallbackPrefersTemplate(t *testing.T) {
	clauses := []contracts.Clause{{ID: "cl-liability", Type: contracts.ClauseLiability}}
	findings := []contracts.Finding{{
		ClauseID:   "cl-liability",
		Flag:       contracts.FlagUnlimitedLiability,
		Severity:   contracts.RiskCritical,
		Suggestion: "from the finding",
	}}

	templates := stubTemplates{contracts.ClauseLiability: "from the library"}
	points := NewStrategist(templates).DevelopLeverage(clauses, findings)
	require.Equal(t, "from the library", points[0].Fallback)
	require.Equal(t, contracts.ClauseLiability, points[0].Clause)

	points = NewStrategist(nil).DevelopLeverage(clauses, findings)
	require.Equal(t, "from the finding", points[0].Fallback)
}
