package analysis

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Covenant-Systems/pactum/pkg/contracts"
	"github.com/Covenant-Systems/pactum/pkg/fault"
)

// sampleMSA exercises most of the section and flag rules at once: an
// uncapped liability clause, one-way indemnity, evergreen renewal,
// vendor-only termination, and punitive late interest.
const sampleMSA = `MASTER SERVICES AGREEMENT

This Master Services Agreement ("Agreement") is entered into between
Apex Software, Inc. ("Provider") and the customer identified on the
order form ("Customer"). Total contract value: $250,000.00.

1. TERM AND RENEWAL
This Agreement shall automatically renew for successive twelve (12)
month periods unless either party provides sixty (60) days written
notice of non-renewal.

2. PAYMENT TERMS
Customer shall pay all invoices within fifteen (15) days. Overdue
amounts accrue interest at 1.5% per month.

3. LIMITATION OF LIABILITY
Customer liability under this Agreement shall be unlimited. Provider
liability shall not exceed $50,000.00 in the aggregate.

4. INDEMNIFICATION
Customer shall indemnify, defend, and hold harmless Provider from any
claims arising out of Customer use of the services.

5. TERMINATION
Provider may terminate this Agreement at any time without cause upon
ten (10) days notice. Customer may terminate only for material breach.

6. CONFIDENTIALITY
Each party shall protect all information disclosed by either party in
any form for a period of five (5) years.

7. GOVERNING LAW
This Agreement is governed by the laws of the State of Delaware.
`

func extractMSA(t *testing.T) []contracts.Clause {
	t.Helper()
	clauses, err := NewExtractor().Extract(sampleMSA)
	require.NoError(t, err)
	return clauses
}

func clauseByType(t *testing.T, clauses []contracts.Clause, ct contracts.ClauseType) contracts.Clause {
	t.Helper()
	for _, cl := range clauses {
		if cl.Type == ct {
			return cl
		}
	}
	t.Fatalf("no %s clause in %d extracted", ct, len(clauses))
	return contracts.Clause{}
}

func TestExtractSections(t *testing.T) {
	clauses := extractMSA(t)
	require.Len(t, clauses, 7)

	want := []contracts.ClauseType{
		contracts.ClauseAutoRenewal,
		contracts.ClausePayment,
		contracts.ClauseLiability,
		contracts.ClauseIndemnification,
		contracts.ClauseTermination,
		contracts.ClauseConfidentiality,
		contracts.ClauseGoverningLaw,
	}
	for i, ct := range want {
		require.Equal(t, ct, clauses[i].Type)
		require.Equal(t, "cl-"+string(ct), clauses[i].ID)
	}
}

func TestExtractSpansIndexNormalizedText(t *testing.T) {
	text := Normalize(sampleMSA)
	for _, cl := range extractMSA(t) {
		require.True(t, cl.Span.Start < cl.Span.End)
		require.Equal(t, cl.Text, text[cl.Span.Start:cl.Span.End])
	}
}

func TestExtractFlags(t *testing.T) {
	clauses := extractMSA(t)

	require.Equal(t, []string{contracts.FlagUnlimitedLiability},
		clauseByType(t, clauses, contracts.ClauseLiability).RiskFlags)
	require.Equal(t, []string{contracts.FlagOneSidedIndemnity},
		clauseByType(t, clauses, contracts.ClauseIndemnification).RiskFlags)
	require.Equal(t, []string{contracts.FlagUnilateralTermination},
		clauseByType(t, clauses, contracts.ClauseTermination).RiskFlags)
	require.Equal(t, []string{contracts.FlagAutoRenewal},
		clauseByType(t, clauses, contracts.ClauseAutoRenewal).RiskFlags)
	require.Equal(t, []string{contracts.FlagHighInterestRate},
		clauseByType(t, clauses, contracts.ClausePayment).RiskFlags)
	require.Equal(t, []string{contracts.FlagBroadConfidentiality},
		clauseByType(t, clauses, contracts.ClauseConfidentiality).RiskFlags)

	law := clauseByType(t, clauses, contracts.ClauseGoverningLaw)
	require.True(t, law.Standard())
}

func TestExtractAttributes(t *testing.T) {
	clauses := extractMSA(t)

	require.Equal(t, "5000000",
		clauseByType(t, clauses, contracts.ClauseLiability).Attributes["cap_amount_cents"])

	renewal := clauseByType(t, clauses, contracts.ClauseAutoRenewal)
	require.Equal(t, "60", renewal.Attributes["notice_days"])
	require.Equal(t, "12", renewal.Attributes["term_months"])

	require.Equal(t, "10",
		clauseByType(t, clauses, contracts.ClauseTermination).Attributes["notice_days"])
	require.Equal(t, "60",
		clauseByType(t, clauses, contracts.ClauseConfidentiality).Attributes["duration_months"])
	require.Equal(t, "1.5",
		clauseByType(t, clauses, contracts.ClausePayment).Attributes["monthly_interest_pct"])
}

func TestExtractMutualIndemnityNotFlagged(t *testing.T) {
	text := `1. INDEMNIFICATION
Customer shall indemnify Provider, and Provider shall on a mutual
basis indemnify Customer, against third-party claims.
`
	clauses, err := NewExtractor().Extract(text)
	require.NoError(t, err)
	require.Len(t, clauses, 1)
	require.Equal(t, contracts.ClauseIndemnification, clauses[0].Type)
	require.Empty(t, clauses[0].RiskFlags)
}

func TestExtractWithoutLimitationBoilerplateNotFlagged(t *testing.T) {
	text := `1. LIMITATION OF LIABILITY
In no event shall either party be liable for indirect damages,
including without limitation lost profits. Aggregate liability shall
not exceed $10,000.00.
`
	clauses, err := NewExtractor().Extract(text)
	require.NoError(t, err)
	require.Empty(t, clauses[0].RiskFlags)
}

func TestExtractUnstructuredFallsBackToGeneral(t *testing.T) {
	text := "We agree to cooperate in good faith. Payment of $5,000 is due on delivery."
	clauses, err := NewExtractor().Extract(text)
	require.NoError(t, err)
	require.Len(t, clauses, 1)
	require.Equal(t, contracts.ClauseGeneral, clauses[0].Type)
	require.Equal(t, "cl-general", clauses[0].ID)
}

func TestExtractGeneralClauseRunsScopedRules(t *testing.T) {
	text := "Liability under this letter agreement is unlimited for both parties."
	clauses, err := NewExtractor().Extract(text)
	require.NoError(t, err)
	require.Equal(t, contracts.ClauseGeneral, clauses[0].Type)
	require.Contains(t, clauses[0].RiskFlags, contracts.FlagUnlimitedLiability)
}

func TestExtractDuplicateSectionFirstWins(t *testing.T) {
	text := `1. CONFIDENTIALITY
First confidentiality section.

2. CONFIDENTIALITY OBLIGATIONS
Second one, ignored.
`
	clauses, err := NewExtractor().Extract(text)
	require.NoError(t, err)
	require.Len(t, clauses, 1)
	require.Contains(t, clauses[0].Text, "First")
}

func TestExtractEmptyTextFails(t *testing.T) {
	_, err := NewExtractor().Extract("   \n\t ")
	require.ErrorIs(t, err, fault.ErrExtractionFailure)
}

func TestExtractDeterministic(t *testing.T) {
	a, err := NewExtractor().Extract(sampleMSA)
	require.NoError(t, err)
	b, err := NewExtractor().Extract(sampleMSA)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestNormalizeLineEndingsAndNFC(t *testing.T) {
	out := Normalize("café\r\nsecond line\r")
	require.Equal(t, "café\nsecond line\n", out)
}
