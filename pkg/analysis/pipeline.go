// Package analysis turns raw contract text into structured clauses,
// risk findings, and negotiation leverage. Every step is deterministic:
// the same text always produces the same clauses, flags, severities,
// and leverage, so an analysis can be re-run and audited byte for byte.
package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/Covenant-Systems/pactum/pkg/contracts"
	"github.com/Covenant-Systems/pactum/pkg/fault"
)

// ClauseExtractor splits contract text into typed clauses.
type ClauseExtractor interface {
	Extract(text string) ([]contracts.Clause, error)
}

// RiskScorer converts clauses into findings and an overall level.
type RiskScorer interface {
	Score(clauses []contracts.Clause) (contracts.RiskLevel, []contracts.Finding, error)
}

// LeverageDeveloper derives negotiation angles from a scored contract.
type LeverageDeveloper interface {
	DevelopLeverage(clauses []contracts.Clause, findings []contracts.Finding) []contracts.LeveragePoint
}

// Result is everything one analysis run learned about a contract.
type Result struct {
	ContractType contracts.ContractType
	ValueCents   int64
	Clauses      []contracts.Clause
	Findings     []contracts.Finding
	Assessment   contracts.RiskAssessment
	Leverage     []contracts.LeveragePoint
}

// Pipeline runs extraction, scoring, and leverage development as one
// unit. Collaborators are swappable so failures in either stage can be
// exercised directly.
type Pipeline struct {
	extractor  ClauseExtractor
	scorer     RiskScorer
	strategist LeverageDeveloper
	clock      func() time.Time
}

// NewPipeline wires the default extractor, scorer, and strategist.
// templates may be nil; leverage fallbacks then come from finding
// suggestions.
func NewPipeline(templates TemplateSource) *Pipeline {
	return &Pipeline{
		extractor:  NewExtractor(),
		scorer:     NewScorer(),
		strategist: NewStrategist(templates),
		clock:      time.Now,
	}
}

// WithClock overrides the assessment timestamp source.
func (p *Pipeline) WithClock(clock func() time.Time) *Pipeline {
	p.clock = clock
	return p
}

// WithExtractor swaps the clause extractor.
func (p *Pipeline) WithExtractor(e ClauseExtractor) *Pipeline {
	p.extractor = e
	return p
}

// WithScorer swaps the risk scorer.
func (p *Pipeline) WithScorer(s RiskScorer) *Pipeline {
	p.scorer = s
	return p
}

// Analyze runs the full pipeline over a submitted contract. Detection
// fills in contract type and value only when the submitter left them
// unset. Extractor errors surface as E_EXTRACTION_FAILURE and scorer
// errors as E_SCORING_FAILURE so the orchestrator can stall the session
// with the precise cause.
func (p *Pipeline) Analyze(ctx context.Context, contract contracts.Contract) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	clauses, err := p.extractor.Extract(contract.Text)
	if err != nil {
		if errors.Is(err, fault.ErrExtractionFailure) {
			return Result{}, err
		}
		return Result{}, fault.ErrExtractionFailure.WithMessagef("extract clauses: %v", err)
	}

	level, findings, err := p.scorer.Score(clauses)
	if err != nil {
		if errors.Is(err, fault.ErrScoringFailure) {
			return Result{}, err
		}
		return Result{}, fault.ErrScoringFailure.WithMessagef("score clauses: %v", err)
	}

	res := Result{
		ContractType: contract.Type,
		ValueCents:   contract.ValueCents,
		Clauses:      clauses,
		Findings:     findings,
		Assessment: contracts.RiskAssessment{
			Level:          level,
			Findings:       findings,
			LiabilityCents: EstimateLiability(clauses),
			AssessedAt:     p.clock().UTC(),
		},
		Leverage: p.strategist.DevelopLeverage(clauses, findings),
	}
	if res.ContractType == "" {
		res.ContractType = DetectType(contract.Text)
	}
	if res.ValueCents == 0 {
		res.ValueCents = DetectValueCents(contract.Text)
	}
	return res, nil
}

// Reassess re-scores a contract after a negotiation round. Clauses
// extracted from the counter-terms replace same-type clauses in the
// base set and the merged set is scored fresh. The result is a
// proposal only; adopting it is a routing decision, not an analysis
// one, and the base clause set is never modified.
func (p *Pipeline) Reassess(ctx context.Context, base []contracts.Clause, counterTerms string) (contracts.RiskAssessment, error) {
	if err := ctx.Err(); err != nil {
		return contracts.RiskAssessment{}, err
	}

	revised, err := p.extractor.Extract(counterTerms)
	if err != nil {
		if errors.Is(err, fault.ErrExtractionFailure) {
			return contracts.RiskAssessment{}, err
		}
		return contracts.RiskAssessment{}, fault.ErrExtractionFailure.WithMessagef("extract counter-terms: %v", err)
	}

	merged := MergeClauses(base, revised)
	level, findings, err := p.scorer.Score(merged)
	if err != nil {
		if errors.Is(err, fault.ErrScoringFailure) {
			return contracts.RiskAssessment{}, err
		}
		return contracts.RiskAssessment{}, fault.ErrScoringFailure.WithMessagef("score merged clauses: %v", err)
	}

	return contracts.RiskAssessment{
		Level:          level,
		Findings:       findings,
		LiabilityCents: EstimateLiability(merged),
		AssessedAt:     p.clock().UTC(),
	}, nil
}

// MergeClauses overlays revised clauses onto base by clause type: a
// revised clause supersedes the base clause of the same type, revised
// types the base never had are appended, and base clauses the revision
// does not touch carry over unchanged. Base order is preserved.
func MergeClauses(base, revised []contracts.Clause) []contracts.Clause {
	byType := make(map[contracts.ClauseType]contracts.Clause, len(revised))
	for _, cl := range revised {
		byType[cl.Type] = cl
	}
	merged := make([]contracts.Clause, 0, len(base)+len(revised))
	for _, cl := range base {
		if repl, ok := byType[cl.Type]; ok {
			merged = append(merged, repl)
			delete(byType, cl.Type)
			continue
		}
		merged = append(merged, cl)
	}
	for _, cl := range revised {
		if _, pending := byType[cl.Type]; pending {
			merged = append(merged, cl)
			delete(byType, cl.Type)
		}
	}
	return merged
}
