package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Covenant-Systems/pactum/pkg/contracts"
	"github.com/Covenant-Systems/pactum/pkg/fault"
)

func TestDetectType(t *testing.T) {
	cases := []struct {
		text string
		want contracts.ContractType
	}{
		{"MASTER SERVICES AGREEMENT between the parties", contracts.TypeService},
		{"MUTUAL NON-DISCLOSURE AGREEMENT", contracts.TypeNDA},
		{"EMPLOYMENT AGREEMENT for the position of Engineer", contracts.TypeEmployment},
		{"SOFTWARE LICENSE AGREEMENT", contracts.TypeLicensing},
		{"COMMERCIAL LEASE AGREEMENT between Landlord and Tenant", contracts.TypeLease},
		{"PURCHASE ORDER No. 4411", contracts.TypePurchase},
		{"Letter of intent regarding the merger", contracts.TypeGeneral},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, DetectType(tc.text), "text: %s", tc.text)
	}
}

func TestDetectTypeIgnoresLateMentions(t *testing.T) {
	text := "SERVICES AGREEMENT\n" + strings.Repeat("terms and conditions apply. ", 40) +
		"The NDA attached as Exhibit B governs disclosures."
	require.Equal(t, contracts.TypeService, DetectType(text))
}

func TestDetectValueCents(t *testing.T) {
	require.Equal(t, int64(25_000_000),
		DetectValueCents("Total contract value: $250,000.00 over the term."))
	require.Equal(t, int64(12_000_000),
		DetectValueCents("Total compensation shall be $120,000 per the schedule."))
	require.Equal(t, int64(9_600_000),
		DetectValueCents("Fees of $96,000 annually, invoiced monthly."))
	require.Equal(t, int64(500_000),
		DetectValueCents("A deposit of $2,000 and a balance of $5,000 are due."))
	require.Equal(t, int64(0), DetectValueCents("No amounts are stated here."))
}

func TestDetectTitle(t *testing.T) {
	require.Equal(t, "MASTER SERVICES AGREEMENT", DetectTitle("\n\nMASTER \t SERVICES  AGREEMENT\nbody"))
	require.Equal(t, "", DetectTitle("   \n\t  "))
}

func TestPipelineAnalyze(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p := NewPipeline(nil).WithClock(func() time.Time { return fixed })

	res, err := p.Analyze(context.Background(), contracts.Contract{Text: sampleMSA})
	require.NoError(t, err)

	require.Equal(t, contracts.TypeService, res.ContractType)
	require.Equal(t, int64(25_000_000), res.ValueCents)
	require.Len(t, res.Clauses, 7)
	require.Equal(t, contracts.RiskCritical, res.Assessment.Level)
	require.Equal(t, contracts.UnlimitedLiability, res.Assessment.LiabilityCents)
	require.Equal(t, fixed, res.Assessment.AssessedAt)
	require.NotEmpty(t, res.Leverage)
	require.Equal(t, contracts.FlagUnlimitedLiability, res.Leverage[0].Flag)
}

func TestPipelineKeepsSubmitterMetadata(t *testing.T) {
	p := NewPipeline(nil)
	res, err := p.Analyze(context.Background(), contracts.Contract{
		Type:       contracts.TypeLease,
		ValueCents: 42,
		Text:       sampleMSA,
	})
	require.NoError(t, err)
	require.Equal(t, contracts.TypeLease, res.ContractType)
	require.Equal(t, int64(42), res.ValueCents)
}

type failingExtractor struct{}

func (failingExtractor) Extract(string) ([]contracts.Clause, error) {
	return nil, errors.New("parser crashed")
}

type failingScorer struct{}

func (failingScorer) Score([]contracts.Clause) (contracts.RiskLevel, []contracts.Finding, error) {
	return "", nil, errors.New("model unavailable")
}

func TestPipelineWrapsCollaboratorFailures(t *testing.T) {
	p := NewPipeline(nil).WithExtractor(failingExtractor{})
	_, err := p.Analyze(context.Background(), contracts.Contract{Text: sampleMSA})
	require.ErrorIs(t, err, fault.ErrExtractionFailure)

	p = NewPipeline(nil).WithScorer(failingScorer{})
	_, err = p.Analyze(context.Background(), contracts.Contract{Text: sampleMSA})
	require.ErrorIs(t, err, fault.ErrScoringFailure)
}

func TestPipelineHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewPipeline(nil).Analyze(ctx, contracts.Contract{Text: sampleMSA})
	require.ErrorIs(t, err, context.Canceled)
}
