package templates

import "github.com/Covenant-Systems/pactum/pkg/contracts"

// Precedent is one negotiation-relevant ruling: how a clause pattern
// fared when tested, and what that implies at the table.
type Precedent struct {
	ID           string               `json:"id"`
	Clause       contracts.ClauseType `json:"clause_type"`
	CaseName     string               `json:"case_name"`
	Jurisdiction string               `json:"jurisdiction"`
	Year         int                  `json:"year"`
	Outcome      string               `json:"outcome"`
	Guidance     string               `json:"guidance"`
	RiskImpact   string               `json:"risk_impact"`
}

var builtinPrecedents = []Precedent{
	{
		ID:           "PREC-001",
		Clause:       contracts.ClauseLiability,
		CaseName:     "Harlan Data Services v. Corvex Analytics",
		Jurisdiction: "Del. Ch.",
		Year:         2019,
		Outcome:      "A clearly drafted cap at twelve months of fees was enforced exactly as written; the court refused to read in a higher ceiling.",
		Guidance:     "Caps are enforced literally. Negotiate the number, because no court will fix it later.",
		RiskImpact:   "An uncapped clause will likewise be enforced as written.",
	},
	{
		ID:           "PREC-002",
		Clause:       contracts.ClauseLiability,
		CaseName:     "Meridian Logistics v. Packfleet Systems",
		Jurisdiction: "S.D.N.Y.",
		Year:         2021,
		Outcome:      "A mutual waiver of consequential damages survived even a willful breach claim.",
		Guidance:     "Pair any cap with a consequential damages waiver; they are upheld together.",
		RiskImpact:   "Missing waiver leaves lost-profits exposure on the table.",
	},
	{
		ID:           "PREC-003",
		Clause:       contracts.ClauseIndemnification,
		CaseName:     "Ostrander Medical v. Quill Billing",
		Jurisdiction: "Tex. App.",
		Year:         2020,
		Outcome:      "A one-way customer indemnity was enforced; the court held mutuality must be bargained for, never implied.",
		Guidance:     "Ask for mutual indemnification explicitly. Silence means the drafted asymmetry stands.",
		RiskImpact:   "One-sided language is fully enforceable.",
	},
	{
		ID:           "PREC-004",
		Clause:       contracts.ClauseNonCompete,
		CaseName:     "Brightfield Robotics v. Ana Okafor",
		Jurisdiction: "Cal. Super.",
		Year:         2022,
		Outcome:      "A worldwide non-compete was void in California and unenforceable wholesale, not blue-penciled.",
		Guidance:     "Scope must match markets actually served; overreach risks losing the clause entirely.",
		RiskImpact:   "Broad geography can invalidate the restriction outright.",
	},
	{
		ID:           "PREC-005",
		Clause:       contracts.ClauseNonCompete,
		CaseName:     "Kestrel Capital v. Marr",
		Jurisdiction: "N.Y. App. Div.",
		Year:         2018,
		Outcome:      "A thirty-six month restriction was cut to twelve months as the longest period reasonably necessary.",
		Guidance:     "Twelve months is the defensible ceiling; longer periods invite judicial rewriting.",
		RiskImpact:   "Long durations are vulnerable but cannot be relied on to fail.",
	},
	{
		ID:           "PREC-006",
		Clause:       contracts.ClauseAutoRenewal,
		CaseName:     "Stonebrook Hospitality v. Lumen POS",
		Jurisdiction: "Ill. App.",
		Year:         2021,
		Outcome:      "An evergreen renewal bound the customer for a further three-year term after a missed notice window.",
		Guidance:     "Treat the non-renewal deadline as a contractual obligation; statutory relief is narrow.",
		RiskImpact:   "Missed windows lock in full renewal terms.",
	},
	{
		ID:           "PREC-007",
		Clause:       contracts.ClauseConfidentiality,
		CaseName:     "Veritura Labs v. Chen Consulting",
		Jurisdiction: "Mass. Super.",
		Year:         2019,
		Outcome:      "A perpetual obligation over all information in any form failed for indefiniteness.",
		Guidance:     "Bounded definitions with standard carve-outs are what actually protect secrets.",
		RiskImpact:   "Overbroad drafting can leave real secrets unprotected.",
	},
	{
		ID:           "PREC-008",
		Clause:       contracts.ClauseIPAssignment,
		CaseName:     "Foundry Creative v. Alto Beverage Co.",
		Jurisdiction: "9th Cir.",
		Year:         2020,
		Outcome:      "Assignment language reaching pre-existing tools was enforced; the vendor lost its own framework.",
		Guidance:     "Carve out pre-existing IP expressly; courts will not infer the exclusion.",
		RiskImpact:   "Exclusive-ownership language transfers more than the deliverables.",
	},
	{
		ID:           "PREC-009",
		Clause:       contracts.ClauseDataProtection,
		CaseName:     "In re Caldera Health Data Breach",
		Jurisdiction: "EDPB / Ir. DPC",
		Year:         2022,
		Outcome:      "Both controller and processor were fined where the contract lacked breach-notice and deletion terms.",
		Guidance:     "Contractual GDPR terms are a compliance floor, not boilerplate.",
		RiskImpact:   "Thin data terms create regulatory exposure for both parties.",
	},
	{
		ID:           "PREC-010",
		Clause:       contracts.ClauseTermination,
		CaseName:     "Northgate Facilities v. Iris Maintenance",
		Jurisdiction: "Fla. App.",
		Year:         2023,
		Outcome:      "Termination for convenience without a refund clause let the vendor keep a full year of prepaid fees.",
		Guidance:     "Wind-down and pro-rata refund terms must be express.",
		RiskImpact:   "Convenience termination without refunds is enforceable.",
	},
}

// Precedents returns rulings for a clause type, in library order.
func (l *Library) Precedents(ct contracts.ClauseType) []Precedent {
	var out []Precedent
	for _, p := range l.precedents {
		if p.Clause == ct {
			out = append(out, p)
		}
	}
	return out
}

// PrecedentByID looks up one ruling.
func (l *Library) PrecedentByID(id string) (Precedent, bool) {
	for _, p := range l.precedents {
		if p.ID == id {
			return p, true
		}
	}
	return Precedent{}, false
}

// AllPrecedents returns the full library in stable order.
func (l *Library) AllPrecedents() []Precedent {
	return append([]Precedent(nil), l.precedents...)
}
