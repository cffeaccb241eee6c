package analysis

import (
	"sort"

	"github.com/Covenant-Systems/pactum/pkg/contracts"
)

// maxLeveragePoints caps how many angles a negotiation packet carries.
// More than a handful dilutes all of them.
const maxLeveragePoints = 5

// TemplateSource supplies market-standard replacement language for a
// clause type. The clause library in pkg/templates implements it.
type TemplateSource interface {
	SafeClause(ct contracts.ClauseType) (string, bool)
}

// leverageLines is the arguing position for each risk flag, quoted
// verbatim into negotiation packets.
var leverageLines = map[string]string{
	contracts.FlagUnlimitedLiability:    "Uncapped liability is a walk-away term; market standard caps exposure at 12 months of fees.",
	contracts.FlagUnilateralTermination: "Termination rights must run both ways; one-sided convenience termination undercuts the whole bargain.",
	contracts.FlagBroadNonCompete:       "Courts routinely refuse to enforce unbounded non-competes; narrowing the scope protects both sides.",
	contracts.FlagLongNonCompete:        "Twelve months is the defensible ceiling for a restricted period in this market.",
	contracts.FlagOneSidedIndemnity:     "Mutual indemnification is table stakes for an agreement of this size.",
	contracts.FlagIPFavorsProvider:      "Pre-existing IP cannot transfer, and ownership of deliverables should follow who paid for the work.",
	contracts.FlagAutoRenewal:           "An evergreen term with no notice window removes all pricing leverage at renewal.",
	contracts.FlagBroadConfidentiality:  "Unbounded confidentiality is unworkable in practice; the standard carve-outs exist for a reason.",
	contracts.FlagHighInterestRate:      "Late interest at 18% annualized is far above commercial norms.",
	contracts.FlagMissingDataProtection: "Regulators hold both parties accountable; breach notice and deletion terms are mandatory.",
}

// Strategist turns findings into negotiation leverage: what to push
// back on, in what order, and the fallback language to retreat to.
type Strategist struct {
	templates TemplateSource
}

// NewStrategist builds a strategist. templates may be nil, in which
// case fallbacks come from the findings' own suggestions.
func NewStrategist(templates TemplateSource) *Strategist {
	return &Strategist{templates: templates}
}

// DevelopLeverage selects the negotiation angles for a scored contract.
// Only HIGH and CRITICAL findings earn a leverage point, one per risk
// flag, most severe first, capped at maxLeveragePoints.
func (s *Strategist) DevelopLeverage(clauses []contracts.Clause, findings []contracts.Finding) []contracts.LeveragePoint {
	byID := make(map[string]contracts.Clause, len(clauses))
	for _, cl := range clauses {
		byID[cl.ID] = cl
	}

	seen := make(map[string]bool)
	var points []contracts.LeveragePoint
	for _, f := range findings {
		if f.Flag == "" || seen[f.Flag] || !f.Severity.AtLeast(contracts.RiskHigh) {
			continue
		}
		seen[f.Flag] = true

		cl := byID[f.ClauseID]
		points = append(points, contracts.LeveragePoint{
			Flag:      f.Flag,
			ClauseID:  f.ClauseID,
			Severity:  f.Severity,
			Rationale: s.rationale(f),
			Fallback:  s.fallback(cl.Type, f),
			Clause:    cl.Type,
		})
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Severity.Rank() > points[j].Severity.Rank()
	})
	if len(points) > maxLeveragePoints {
		points = points[:maxLeveragePoints]
	}
	return points
}

func (s *Strategist) rationale(f contracts.Finding) string {
	if line, ok := leverageLines[f.Flag]; ok {
		return line
	}
	return f.Description
}

// fallback is the replacement language to offer: the library's safe
// clause for the type when one exists, otherwise the finding's own
// suggestion.
func (s *Strategist) fallback(ct contracts.ClauseType, f contracts.Finding) string {
	if s.templates != nil {
		if text, ok := s.templates.SafeClause(ct); ok {
			return text
		}
	}
	return f.Suggestion
}
