package analysis

import (
	"regexp"
	"strconv"

	"github.com/Covenant-Systems/pactum/pkg/contracts"
	"github.com/Covenant-Systems/pactum/pkg/fault"
)

// severityRule maps one risk flag to its severity and the advisory text
// attached to findings that carry it.
type severityRule struct {
	severity    contracts.RiskLevel
	description string
	suggestion  string
}

// severityRules is the scoring table. A flag absent from the table
// scores MEDIUM so an extractor addition can never silently downgrade
// overall risk.
var severityRules = map[string]severityRule{
	contracts.FlagUnlimitedLiability: {
		severity:    contracts.RiskCritical,
		description: "Liability is uncapped, leaving total exposure unbounded.",
		suggestion:  "Cap liability at fees paid in the preceding 12 months and exclude consequential damages.",
	},
	contracts.FlagUnilateralTermination: {
		severity:    contracts.RiskHigh,
		description: "The counterparty may terminate without cause with no matching right for the customer.",
		suggestion:  "Make termination for convenience mutual, or add a wind-down period with fee refunds.",
	},
	contracts.FlagBroadNonCompete: {
		severity:    contracts.RiskHigh,
		description: "The non-compete has no meaningful geographic bound and is likely unenforceable as written.",
		suggestion:  "Narrow the restriction to markets actually served during the engagement.",
	},
	contracts.FlagLongNonCompete: {
		severity:    contracts.RiskHigh,
		description: "The restricted period runs well past the customary twelve months.",
		suggestion:  "Reduce the restricted period to twelve months or less.",
	},
	contracts.FlagOneSidedIndemnity: {
		severity:    contracts.RiskHigh,
		description: "Indemnification obligations flow in one direction only.",
		suggestion:  "Make indemnification mutual with carve-outs for gross negligence and willful misconduct.",
	},
	contracts.FlagIPFavorsProvider: {
		severity:    contracts.RiskHigh,
		description: "All work product is owned exclusively by the counterparty, including derivatives of customer IP.",
		suggestion:  "Carve out pre-existing IP and grant the customer ownership of paid-for deliverables.",
	},
	contracts.FlagAutoRenewal: {
		severity:    contracts.RiskMedium,
		description: "The contract renews automatically; a missed notice window locks in another full term.",
		suggestion:  "Require 60 days' non-renewal notice and calendar the deadline on signature.",
	},
	contracts.FlagBroadConfidentiality: {
		severity:    contracts.RiskMedium,
		description: "Confidentiality covers all information in any form, without standard carve-outs.",
		suggestion:  "Limit coverage to marked materials with exclusions for public and independently developed information.",
	},
	contracts.FlagHighInterestRate: {
		severity:    contracts.RiskMedium,
		description: "Late-payment interest compounds well above commercial norms.",
		suggestion:  "Negotiate the rate down to 1% per month or replace it with a flat late fee.",
	},
	contracts.FlagMissingDataProtection: {
		severity:    contracts.RiskLow,
		description: "Data protection obligations are referenced but thin for the data involved.",
		suggestion:  "Confirm breach notice, deletion, and subprocessor terms meet GDPR and CCPA requirements.",
	},
}

var multiplierRe = regexp.MustCompile(`(?i)([0-9]+)\s*(?:times|x)\s*(?:the|total|annual)`)

// RuleScorer converts extracted clauses into findings using the fixed
// severity table. Scoring is pure: no clock, no I/O, same clauses in,
// same findings out.
type RuleScorer struct{}

// NewScorer returns the rule-based risk scorer.
func NewScorer() *RuleScorer {
	return &RuleScorer{}
}

// Score produces one finding per detected flag plus a LOW finding for
// each clean clause, and the overall level as the maximum severity
// across findings. An empty clause set cannot be scored.
func (s *RuleScorer) Score(clauses []contracts.Clause) (contracts.RiskLevel, []contracts.Finding, error) {
	if len(clauses) == 0 {
		return "", nil, fault.ErrScoringFailure.WithMessage("no clauses to score")
	}

	var findings []contracts.Finding
	for _, cl := range clauses {
		for _, flag := range cl.RiskFlags {
			rule, ok := severityRules[flag]
			if !ok {
				rule = severityRule{
					severity:    contracts.RiskMedium,
					description: "Unclassified risk indicator detected.",
				}
			}
			findings = append(findings, contracts.Finding{
				ClauseID:    cl.ID,
				Severity:    rule.severity,
				Category:    string(cl.Type),
				Flag:        flag,
				Description: rule.description,
				Suggestion:  rule.suggestion,
			})
		}
		if cl.Standard() {
			findings = append(findings, contracts.Finding{
				ClauseID:    cl.ID,
				Severity:    contracts.RiskLow,
				Category:    string(cl.Type),
				Description: "Standard terms; no risk indicators detected.",
			})
		}
	}
	return contracts.OverallLevel(findings), findings, nil
}

// EstimateLiability computes worst-case exposure in cents across the
// liability and indemnification clauses: the largest stated cap,
// scaled by an explicit multiplier ("2x the total fees") when present.
// An uncapped clause floors the estimate at UnlimitedLiability.
func EstimateLiability(clauses []contracts.Clause) int64 {
	var exposure int64
	uncapped := false
	for _, cl := range clauses {
		if cl.Type != contracts.ClauseLiability && cl.Type != contracts.ClauseIndemnification && cl.Type != contracts.ClauseGeneral {
			continue
		}
		amount, ok := maxDollarCents(cl.Text)
		if ok {
			if m := multiplierRe.FindStringSubmatch(cl.Text); m != nil {
				if n, err := strconv.ParseInt(m[1], 10, 64); err == nil && n > 1 {
					amount *= n
				}
			}
			if amount > exposure {
				exposure = amount
			}
		}
		for _, flag := range cl.RiskFlags {
			if flag == contracts.FlagUnlimitedLiability {
				uncapped = true
			}
		}
	}
	if uncapped && exposure < contracts.UnlimitedLiability {
		return contracts.UnlimitedLiability
	}
	return exposure
}
