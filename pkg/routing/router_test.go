package routing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Covenant-Systems/pactum/pkg/contracts"
	"github.com/Covenant-Systems/pactum/pkg/fault"
)

var routeClock = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func testRouter(t *testing.T) *Router {
	t.Helper()
	r, err := NewRouter(nil)
	require.NoError(t, err)
	return r.WithClock(func() time.Time { return routeClock })
}

func roles(chain []contracts.ApprovalStep) []contracts.ApprovalRole {
	out := make([]contracts.ApprovalRole, len(chain))
	for i, s := range chain {
		out[i] = s.Role
	}
	return out
}

func assessment(level contracts.RiskLevel) contracts.RiskAssessment {
	return contracts.RiskAssessment{Level: level}
}

func TestBaseChains(t *testing.T) {
	require.Equal(t, []contracts.ApprovalRole{contracts.RoleAuto}, BaseChain(contracts.RiskLow))
	require.Equal(t, []contracts.ApprovalRole{contracts.RoleManager}, BaseChain(contracts.RiskMedium))
	require.Equal(t,
		[]contracts.ApprovalRole{contracts.RoleManager, contracts.RoleVP, contracts.RoleLegal},
		BaseChain(contracts.RiskHigh))
	require.Equal(t,
		[]contracts.ApprovalRole{contracts.RoleManager, contracts.RoleVP, contracts.RoleLegal, contracts.RoleCFO},
		BaseChain(contracts.RiskCritical))
	require.Nil(t, BaseChain("BOGUS"))
}

func TestRouteLowAutoApproves(t *testing.T) {
	d, err := testRouter(t).Route(contracts.Contract{Type: contracts.TypeService, ValueCents: 10_000_00}, assessment(contracts.RiskLow))
	require.NoError(t, err)

	require.Equal(t, contracts.RiskLow, d.Level)
	require.True(t, d.AutoApproved)
	require.False(t, d.ViaNegotiation)
	require.Len(t, d.Chain, 1)

	step := d.Chain[0]
	require.Equal(t, contracts.RoleAuto, step.Role)
	require.Equal(t, contracts.StepApproved, step.Status)
	require.Equal(t, "system", step.Approver)
	require.NotNil(t, step.DecidedAt)
	require.Equal(t, routeClock, *step.DecidedAt)
}

func TestRouteMediumSingleManager(t *testing.T) {
	d, err := testRouter(t).Route(contracts.Contract{Type: contracts.TypeService}, assessment(contracts.RiskMedium))
	require.NoError(t, err)

	require.Equal(t, []contracts.ApprovalRole{contracts.RoleManager}, roles(d.Chain))
	require.False(t, d.AutoApproved)
	require.False(t, d.ViaNegotiation)
	require.Equal(t, contracts.StepPending, d.Chain[0].Status)
}

func TestRouteHighNegotiatesFirst(t *testing.T) {
	d, err := testRouter(t).Route(contracts.Contract{Type: contracts.TypeService}, assessment(contracts.RiskHigh))
	require.NoError(t, err)

	require.Equal(t,
		[]contracts.ApprovalRole{contracts.RoleManager, contracts.RoleVP, contracts.RoleLegal},
		roles(d.Chain))
	require.True(t, d.ViaNegotiation)
	for _, s := range d.Chain {
		require.Equal(t, contracts.StepPending, s.Status)
	}
}

func TestRouteCriticalFullChain(t *testing.T) {
	d, err := testRouter(t).Route(contracts.Contract{Type: contracts.TypeService}, assessment(contracts.RiskCritical))
	require.NoError(t, err)

	require.Equal(t,
		[]contracts.ApprovalRole{contracts.RoleManager, contracts.RoleVP, contracts.RoleLegal, contracts.RoleCFO},
		roles(d.Chain))
	require.True(t, d.ViaNegotiation)
}

func TestRouteValueFloors(t *testing.T) {
	r := testRouter(t)

	cases := []struct {
		valueCents int64
		wantLevel  contracts.RiskLevel
		wantRoles  []contracts.ApprovalRole
	}{
		// Below every threshold: stays LOW, auto-approved.
		{49_999_99, contracts.RiskLow, []contracts.ApprovalRole{contracts.RoleAuto}},
		// >= $50K floors MEDIUM.
		{60_000_00, contracts.RiskMedium, []contracts.ApprovalRole{contracts.RoleManager}},
		// >= $250K also adds VP on top of the MEDIUM base.
		{250_000_00, contracts.RiskMedium, []contracts.ApprovalRole{contracts.RoleManager, contracts.RoleVP}},
		// >= $500K floors HIGH; VP already in the HIGH base.
		{600_000_00, contracts.RiskHigh, []contracts.ApprovalRole{contracts.RoleManager, contracts.RoleVP, contracts.RoleLegal}},
		// >= $1M floors CRITICAL.
		{1_200_000_00, contracts.RiskCritical, []contracts.ApprovalRole{contracts.RoleManager, contracts.RoleVP, contracts.RoleLegal, contracts.RoleCFO}},
	}
	for _, tc := range cases {
		d, err := r.Route(contracts.Contract{Type: contracts.TypeService, ValueCents: tc.valueCents}, assessment(contracts.RiskLow))
		require.NoError(t, err)
		require.Equal(t, tc.wantLevel, d.Level, "value %d", tc.valueCents)
		require.Equal(t, contracts.RiskLow, d.AssessedLevel)
		require.Equal(t, tc.wantRoles, roles(d.Chain), "value %d", tc.valueCents)
	}
}

func TestRouteEmploymentAddsLegal(t *testing.T) {
	d, err := testRouter(t).Route(contracts.Contract{Type: contracts.TypeEmployment}, assessment(contracts.RiskMedium))
	require.NoError(t, err)
	require.Equal(t,
		[]contracts.ApprovalRole{contracts.RoleManager, contracts.RoleLegal},
		roles(d.Chain))
	require.Contains(t, d.AppliedRules, "employment-licensing-legal-review")
}

func TestRouteLowEmploymentDropsAuto(t *testing.T) {
	d, err := testRouter(t).Route(contracts.Contract{Type: contracts.TypeEmployment}, assessment(contracts.RiskLow))
	require.NoError(t, err)

	require.Equal(t, contracts.RiskLow, d.Level)
	require.Equal(t, []contracts.ApprovalRole{contracts.RoleLegal}, roles(d.Chain))
	require.False(t, d.AutoApproved)
	require.Equal(t, contracts.StepPending, d.Chain[0].Status)
}

// Policy escalation can raise but never shrink: the human part of the
// effective level's base chain survives every combination, and the
// effective level never drops below the assessed one.
func TestRoutePolicyOnlyExtends(t *testing.T) {
	r := testRouter(t)
	levels := []contracts.RiskLevel{contracts.RiskLow, contracts.RiskMedium, contracts.RiskHigh, contracts.RiskCritical}
	values := []int64{0, 49_999_99, 50_000_00, 250_000_00, 500_000_00, 1_000_000_00}
	types := []contracts.ContractType{contracts.TypeService, contracts.TypeEmployment, contracts.TypeNDA, contracts.TypeLicensing}

	for _, level := range levels {
		for _, value := range values {
			for _, ct := range types {
				d, err := r.Route(contracts.Contract{Type: ct, ValueCents: value}, assessment(level))
				require.NoError(t, err)
				require.True(t, d.Level.AtLeast(level),
					"%s/%d/%s: effective %s below assessed %s", ct, value, level, d.Level, level)

				have := make(map[contracts.ApprovalRole]bool)
				for _, role := range roles(d.Chain) {
					have[role] = true
				}
				for _, role := range BaseChain(d.Level) {
					if role == contracts.RoleAuto {
						continue
					}
					require.True(t, have[role],
						"%s/%d/%s: base role %s missing from chain %v", ct, value, level, role, roles(d.Chain))
				}
				for i := 1; i < len(d.Chain); i++ {
					require.Less(t, d.Chain[i-1].Role.Seniority(), d.Chain[i].Role.Seniority())
				}
			}
		}
	}
}

func TestRouteInvalidLevel(t *testing.T) {
	_, err := testRouter(t).Route(contracts.Contract{}, assessment("SEVERE"))
	require.ErrorIs(t, err, fault.ErrInvalidInput)
}

func TestSetPolicyRollbackDenied(t *testing.T) {
	r := testRouter(t)

	older := DefaultPolicy()
	older.Version = "0.9.0"
	require.Error(t, r.SetPolicy(older))

	newer := DefaultPolicy()
	newer.Version = "1.1.0"
	require.NoError(t, r.SetPolicy(newer))

	_, version := r.ActivePolicy()
	require.Equal(t, "1.1.0", version)

	// Same version reinstalls cleanly.
	require.NoError(t, r.SetPolicy(newer))
}

func TestRouteCustomPolicyFlagRule(t *testing.T) {
	policy := &Policy{
		Name:    "gdpr-watch",
		Version: "2.0.0",
		Rules: []Rule{{
			Name:     "data-protection-legal",
			When:     `"missing_data_protection" in risk.flags`,
			AddRoles: []contracts.ApprovalRole{contracts.RoleLegal},
		}},
	}
	r, err := NewRouter(policy)
	require.NoError(t, err)

	a := contracts.RiskAssessment{
		Level: contracts.RiskMedium,
		Findings: []contracts.Finding{
			{Flag: contracts.FlagMissingDataProtection, Severity: contracts.RiskLow},
		},
	}
	d, err := r.Route(contracts.Contract{Type: contracts.TypeService}, a)
	require.NoError(t, err)
	require.Equal(t,
		[]contracts.ApprovalRole{contracts.RoleManager, contracts.RoleLegal},
		roles(d.Chain))
}
