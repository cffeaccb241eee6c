// Package templates is the read-only library of market-standard clause
// language and negotiation precedents. The strategist offers these as
// fallback positions; the API exposes them for counsel drafting
// counter-terms.
package templates

import (
	"sort"

	"github.com/Covenant-Systems/pactum/pkg/contracts"
)

// safeClauses is balanced replacement language per clause type. Text is
// offered verbatim as the fallback position for a flagged clause.
var safeClauses = map[contracts.ClauseType]string{
	contracts.ClauseLiability: "Each party's aggregate liability under this Agreement shall not exceed " +
		"the fees paid or payable in the twelve (12) months preceding the event giving rise to the " +
		"claim. Neither party shall be liable for indirect, incidental, or consequential damages.",

	contracts.ClauseAutoRenewal: "This Agreement renews for successive one (1) year terms unless either " +
		"party gives notice of non-renewal at least sixty (60) days before the end of the then-current " +
		"term. Any price increase on renewal shall not exceed five percent (5%).",

	contracts.ClauseNonCompete: "During the term and for twelve (12) months thereafter, the restricted " +
		"party shall not provide substantially similar services to a direct competitor within the " +
		"markets where the Company actively operates.",

	contracts.ClauseTermination: "Either party may terminate this Agreement for convenience on ninety " +
		"(90) days' written notice, or immediately upon material breach not cured within thirty (30) " +
		"days of notice. Prepaid fees for undelivered services shall be refunded pro rata.",

	contracts.ClauseIPAssignment: "Work product created specifically for Customer and paid for in full " +
		"is assigned to Customer upon payment. Each party retains ownership of its pre-existing " +
		"intellectual property, tools, and general know-how.",

	contracts.ClauseConfidentiality: "Confidential Information means non-public information designated " +
		"confidential at disclosure. Obligations do not apply to information that is public, already " +
		"known, independently developed, or lawfully received from a third party, and expire three (3) " +
		"years after disclosure.",

	contracts.ClauseIndemnification: "Each party shall indemnify the other against third-party claims " +
		"arising from its breach of this Agreement, its gross negligence, or its willful misconduct, " +
		"subject to the limitation of liability.",

	contracts.ClauseWarranty: "Provider warrants that the services will materially conform to the " +
		"documentation and will be performed with reasonable skill and care. Customer's exclusive " +
		"remedy for breach of this warranty is re-performance or a pro-rata refund.",

	contracts.ClauseDataProtection: "Each party shall comply with applicable data protection law, " +
		"including GDPR and CCPA where applicable. Provider shall notify Customer of any personal data " +
		"breach within seventy-two (72) hours and shall delete or return personal data on termination.",

	contracts.ClausePayment: "Invoices are payable net thirty (30) days. Undisputed overdue amounts " +
		"accrue interest at one percent (1%) per month or the maximum lawful rate, whichever is less.",
}

// Library serves safe clause language and precedents. The zero value is
// not usable; construct with NewLibrary.
type Library struct {
	safe       map[contracts.ClauseType]string
	precedents []Precedent
}

// NewLibrary returns the built-in library.
func NewLibrary() *Library {
	safe := make(map[contracts.ClauseType]string, len(safeClauses))
	for ct, text := range safeClauses {
		safe[ct] = text
	}
	return &Library{safe: safe, precedents: builtinPrecedents}
}

// WithSafeClause overrides or adds replacement language for one clause
// type.
func (l *Library) WithSafeClause(ct contracts.ClauseType, text string) *Library {
	l.safe[ct] = text
	return l
}

// SafeClause returns the replacement language for a clause type.
func (l *Library) SafeClause(ct contracts.ClauseType) (string, bool) {
	text, ok := l.safe[ct]
	return text, ok
}

// Types lists the clause types the library has language for, sorted.
func (l *Library) Types() []contracts.ClauseType {
	types := make([]contracts.ClauseType, 0, len(l.safe))
	for ct := range l.safe {
		types = append(types, ct)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
