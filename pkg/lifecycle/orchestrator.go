// Package lifecycle drives a submitted contract through the stage
// machine: intake, analysis, risk routing, optional negotiation,
// multi-level approval, and execution. The orchestrator is the only
// component that writes a session's stage. Commands validate first and
// apply second, so a rejected command never leaves partial state, and
// each session has its own critical section so concurrent commands
// against different sessions never serialize each other.
package lifecycle

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Covenant-Systems/pactum/pkg/analysis"
	"github.com/Covenant-Systems/pactum/pkg/approval"
	"github.com/Covenant-Systems/pactum/pkg/contracts"
	"github.com/Covenant-Systems/pactum/pkg/eventbus"
	"github.com/Covenant-Systems/pactum/pkg/fault"
	"github.com/Covenant-Systems/pactum/pkg/routing"
	"github.com/Covenant-Systems/pactum/pkg/session"
)

// MinTextLength is the intake floor: a submission shorter than this
// cannot be a contract worth analyzing.
const MinTextLength = 50

// DefaultMaxNegotiationRounds bounds counter-term submissions per
// session.
const DefaultMaxNegotiationRounds = 3

// Analyzer turns contract text into clauses, findings, and an
// assessment, and re-scores merged terms after a negotiation round.
type Analyzer interface {
	Analyze(ctx context.Context, c contracts.Contract) (analysis.Result, error)
	Reassess(ctx context.Context, base []contracts.Clause, counterTerms string) (contracts.RiskAssessment, error)
}

// Router decides the approval chain for an assessed contract.
type Router interface {
	Route(c contracts.Contract, a contracts.RiskAssessment) (routing.Decision, error)
}

// Archiver exports an executed session's evidence bundle. Optional;
// export failures never undo an execution.
type Archiver interface {
	ExportExecuted(ctx context.Context, s *contracts.LifecycleSession, events []contracts.Event) (string, error)
}

// Orchestrator owns the lifecycle state machine for every session.
type Orchestrator struct {
	store    session.Store
	bus      *eventbus.Bus
	analyzer Analyzer
	router   Router
	archiver Archiver

	mu    sync.Mutex
	locks map[string]*sessionLock

	clock        func() time.Time
	logger       *slog.Logger
	maxRounds    int
	syncAnalysis bool
	wg           sync.WaitGroup
}

// New wires an orchestrator. Analysis runs in the background per
// submission unless WithSyncAnalysis is set.
func New(store session.Store, bus *eventbus.Bus, analyzer Analyzer, router Router) *Orchestrator {
	return &Orchestrator{
		store:     store,
		bus:       bus,
		analyzer:  analyzer,
		router:    router,
		locks:     make(map[string]*sessionLock),
		clock:     time.Now,
		logger:    slog.Default().With("component", "lifecycle"),
		maxRounds: DefaultMaxNegotiationRounds,
	}
}

// WithClock overrides the timestamp source for deterministic testing.
func (o *Orchestrator) WithClock(clock func() time.Time) *Orchestrator {
	o.clock = clock
	return o
}

// WithLogger overrides the default logger.
func (o *Orchestrator) WithLogger(logger *slog.Logger) *Orchestrator {
	o.logger = logger
	return o
}

// WithArchiver wires evidence export on execution.
func (o *Orchestrator) WithArchiver(a Archiver) *Orchestrator {
	o.archiver = a
	return o
}

// WithMaxNegotiationRounds overrides the counter-term submission limit.
func (o *Orchestrator) WithMaxNegotiationRounds(n int) *Orchestrator {
	if n > 0 {
		o.maxRounds = n
	}
	return o
}

// WithSyncAnalysis makes Submit run Analysis inline instead of in the
// background. Deterministic tests and the demo walkthrough use this.
func (o *Orchestrator) WithSyncAnalysis() *Orchestrator {
	o.syncAnalysis = true
	return o
}

// Close waits for in-flight background analyses to finish.
func (o *Orchestrator) Close() {
	o.wg.Wait()
}

// SubmitRequest is a new contract submission. Only Text is required;
// type and value are detected from the text when unset.
type SubmitRequest struct {
	Text        string                 `json:"text"`
	Title       string                 `json:"title,omitempty"`
	Type        contracts.ContractType `json:"type,omitempty"`
	ValueCents  int64                  `json:"value_cents,omitempty"`
	SubmittedBy string                 `json:"submitted_by,omitempty"`
}

// Submit runs intake validation, creates the session, advances it to
// ANALYSIS, and schedules the analysis run. Returns the session ID.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	trimmed := strings.TrimSpace(req.Text)
	if trimmed == "" {
		return "", fault.ErrInvalidInput.WithMessage("contract text is empty")
	}
	if len(trimmed) < MinTextLength {
		return "", fault.ErrInvalidInput.WithMessagef("contract text is %d characters, need at least %d", len(trimmed), MinTextLength)
	}
	if req.ValueCents < 0 {
		return "", fault.ErrInvalidInput.WithMessage("contract value cannot be negative")
	}

	now := o.clock().UTC()
	s := &contracts.LifecycleSession{
		ID: uuid.New().String(),
		Contract: contracts.Contract{
			ID:          uuid.New().String(),
			Title:       req.Title,
			Type:        req.Type,
			Text:        req.Text,
			ValueCents:  req.ValueCents,
			SubmittedAt: now,
		},
		Stage:     contracts.StageIntake,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.store.Create(ctx, s); err != nil {
		return "", err
	}

	unlock := o.lock(s.ID)
	if err := o.advance(ctx, s, contracts.StageAnalysis, req.SubmittedBy); err != nil {
		unlock()
		return "", err
	}
	err := o.store.Save(ctx, s)
	unlock()
	if err != nil {
		return "", err
	}

	if o.syncAnalysis {
		o.runAnalysis(ctx, s.ID)
		return s.ID, nil
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		// Detached from the submit request: analysis outlives it.
		o.runAnalysis(context.Background(), s.ID)
	}()
	return s.ID, nil
}

// GetStatus returns a read-only snapshot of the session.
func (o *Orchestrator) GetStatus(ctx context.Context, id string) (*contracts.LifecycleSession, error) {
	return o.store.Get(ctx, id)
}

// List returns snapshots of every session, newest first.
func (o *Orchestrator) List(ctx context.Context) ([]*contracts.LifecycleSession, error) {
	return o.store.List(ctx)
}

// Subscribe opens an event stream for the session: full history first,
// then live events, closed after the terminal event.
func (o *Orchestrator) Subscribe(ctx context.Context, id string, afterSeq int64) (<-chan contracts.Event, func(), error) {
	if _, err := o.store.Get(ctx, id); err != nil {
		return nil, nil, err
	}
	return o.bus.Subscribe(ctx, id, afterSeq)
}

// Events returns the session's event history after the given sequence.
func (o *Orchestrator) Events(ctx context.Context, id string, afterSeq int64) ([]contracts.Event, error) {
	if _, err := o.store.Get(ctx, id); err != nil {
		return nil, err
	}
	return o.bus.History(ctx, id, afterSeq)
}

// ApproveRequest records one sign-off. Role may be left empty to mean
// the chain's current pending step; when set, approving out of order
// or from outside the chain is invalid state.
type ApproveRequest struct {
	ApproverID string                 `json:"approver_id"`
	Role       contracts.ApprovalRole `json:"role,omitempty"`
	Comments   string                 `json:"comments,omitempty"`
}

// Approve signs off the chain's first pending step. Valid only during
// APPROVAL. Approving the last step does not execute the contract: the
// session becomes ready to execute and waits for an explicit Execute.
func (o *Orchestrator) Approve(ctx context.Context, id string, req ApproveRequest) error {
	if req.ApproverID == "" {
		return fault.ErrInvalidInput.WithMessage("approver id is required")
	}
	unlock := o.lock(id)
	defer unlock()

	s, err := o.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := o.requireStage(s, contracts.StageApproval, "approve"); err != nil {
		return err
	}

	role := req.Role
	if role == "" {
		idx, ok := approval.NextPending(s.ApprovalChain)
		if !ok {
			return fault.ErrInvalidState.WithMessage("approval chain is already fully decided, awaiting execute")
		}
		role = s.ApprovalChain[idx].Role
	}

	receipt, err := approval.Approve(s.ID, s.ApprovalChain, role, req.ApproverID, req.Comments, o.clock())
	if err != nil {
		return err
	}
	s.UpdatedAt = o.clock().UTC()

	o.emit(ctx, s, contracts.EventApprovalRecorded, req.ApproverID, map[string]any{
		"role":       string(receipt.Role),
		"step_index": receipt.StepIndex,
		"approver":   receipt.Approver,
		"comments":   receipt.Comments,
		"receipt_id": receipt.ReceiptID,
	})
	if contracts.ChainComplete(s.ApprovalChain) {
		o.emit(ctx, s, contracts.EventApprovalComplete, req.ApproverID, map[string]any{
			"approvals": len(s.ApprovalChain),
		})
	}
	return o.store.Save(ctx, s)
}

// Reject short-circuits the session to REJECTED from any active stage.
// During APPROVAL the current pending step records the rejection;
// during NEGOTIATION the latest round does.
func (o *Orchestrator) Reject(ctx context.Context, id, approverID, reason string) error {
	unlock := o.lock(id)
	defer unlock()

	s, err := o.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if s.Stage.Terminal() {
		return fault.ErrInvalidState.WithMessagef("session is %s; no further commands accepted", s.Stage)
	}

	now := o.clock().UTC()
	var rejectedRole contracts.ApprovalRole
	switch s.Stage {
	case contracts.StageApproval:
		if receipt, ok := approval.RejectCurrent(s.ID, s.ApprovalChain, approverID, reason, now); ok {
			rejectedRole = receipt.Role
		}
	case contracts.StageNegotiation:
		if n := len(s.NegotiationRounds); n > 0 {
			s.NegotiationRounds[n-1].Rejected = true
			s.NegotiationRounds[n-1].RejectedAt = &now
		}
	}

	from := s.Stage
	if err := o.advance(ctx, s, contracts.StageRejected, approverID); err != nil {
		return err
	}
	payload := map[string]any{
		"rejected_by": approverID,
		"reason":      reason,
		"from_stage":  string(from),
	}
	if rejectedRole != "" {
		payload["role"] = string(rejectedRole)
	}
	o.emit(ctx, s, contracts.EventContractRejected, approverID, payload)
	return o.store.Save(ctx, s)
}

// RenegotiateRequest is one counter-term submission.
type RenegotiateRequest struct {
	CounterTerms string `json:"counter_terms"`
	SubmittedBy  string `json:"submitted_by,omitempty"`
}

// Renegotiate appends a negotiation round and re-scores the contract
// with the counter-terms merged in. The re-scored result is recorded
// as a proposed assessment: the session's risk level never changes
// here, and the approval chain is rebuilt only by an explicit Reroute.
func (o *Orchestrator) Renegotiate(ctx context.Context, id string, req RenegotiateRequest) error {
	if strings.TrimSpace(req.CounterTerms) == "" {
		return fault.ErrInvalidInput.WithMessage("counter-terms are empty")
	}
	unlock := o.lock(id)
	defer unlock()

	s, err := o.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := o.requireStage(s, contracts.StageNegotiation, "renegotiate"); err != nil {
		return err
	}
	if len(s.NegotiationRounds) >= o.maxRounds {
		return fault.ErrInvalidState.WithMessagef("negotiation round limit of %d reached", o.maxRounds)
	}

	proposed, err := o.analyzer.Reassess(ctx, s.Clauses, req.CounterTerms)
	if err != nil {
		return err
	}

	now := o.clock().UTC()
	round := contracts.NegotiationRound{
		Round:        len(s.NegotiationRounds) + 1,
		CounterTerms: req.CounterTerms,
		SubmittedBy:  req.SubmittedBy,
		SubmittedAt:  now,
	}
	s.NegotiationRounds = append(s.NegotiationRounds, round)
	s.ProposedAssessment = &proposed
	s.UpdatedAt = now

	o.emit(ctx, s, contracts.EventNegotiationSubmitted, req.SubmittedBy, map[string]any{
		"round":        round.Round,
		"submitted_by": round.SubmittedBy,
	})
	o.emit(ctx, s, contracts.EventRiskAssessed, req.SubmittedBy, map[string]any{
		"level":           string(proposed.Level),
		"liability_cents": proposed.LiabilityCents,
		"findings":        len(proposed.Findings),
		"proposed":        true,
	})
	return o.store.Save(ctx, s)
}

// Reroute adopts the pending proposed assessment: a fresh routing
// decision replaces the approval chain with net-new steps computed
// from the proposed level. The session's recorded risk level stays
// what the original routing set; only the effective chain changes.
func (o *Orchestrator) Reroute(ctx context.Context, id, actorID string) error {
	unlock := o.lock(id)
	defer unlock()

	s, err := o.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := o.requireStage(s, contracts.StageNegotiation, "reroute"); err != nil {
		return err
	}
	if s.ProposedAssessment == nil {
		return fault.ErrInvalidState.WithMessage("no proposed assessment to adopt; renegotiate first")
	}

	decision, err := o.router.Route(s.Contract, *s.ProposedAssessment)
	if err != nil {
		return err
	}

	s.ApprovalChain = decision.Chain
	s.ProposedAssessment = nil
	s.UpdatedAt = o.clock().UTC()

	o.emit(ctx, s, contracts.EventRiskAssessed, actorID, map[string]any{
		"level":           string(decision.Level),
		"assessed_level":  string(decision.AssessedLevel),
		"chain":           roleNames(decision.Chain),
		"policy":          decision.PolicyName,
		"policy_version":  decision.PolicyVersion,
		"applied_rules":   decision.AppliedRules,
		"proposed":        false,
		"rerouted":        true,
		"via_negotiation": decision.ViaNegotiation,
	})

	// A proposal still routed through negotiation keeps the session
	// where it is; anything lower opens approvals now.
	if !decision.ViaNegotiation {
		if err := o.advance(ctx, s, contracts.StageApproval, actorID); err != nil {
			return err
		}
		if decision.AutoApproved {
			o.emit(ctx, s, contracts.EventApprovalComplete, "system", map[string]any{
				"approvals": len(s.ApprovalChain),
			})
		}
	}
	return o.store.Save(ctx, s)
}

// AcceptProposal accepts the strategist's position without further
// counter-terms and moves the session from NEGOTIATION to APPROVAL.
func (o *Orchestrator) AcceptProposal(ctx context.Context, id, actorID string) error {
	unlock := o.lock(id)
	defer unlock()

	s, err := o.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := o.requireStage(s, contracts.StageNegotiation, "accept-proposal"); err != nil {
		return err
	}
	if err := o.advance(ctx, s, contracts.StageApproval, actorID); err != nil {
		return err
	}
	return o.store.Save(ctx, s)
}

// Execute finalizes a fully approved session. Valid only when the
// session is in APPROVAL with every chain step signed off.
func (o *Orchestrator) Execute(ctx context.Context, id, actorID string) error {
	unlock := o.lock(id)
	defer unlock()

	s, err := o.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if s.Stage.Terminal() {
		return fault.ErrInvalidState.WithMessagef("session is %s; no further commands accepted", s.Stage)
	}
	if s.Stage != contracts.StageApproval {
		return fault.ErrInvalidState.WithMessagef("execute is only valid during APPROVAL, session is %s", s.Stage)
	}
	if !s.ReadyToExecute() {
		return fault.ErrInvalidState.WithMessagef("%d approval(s) still pending", s.PendingApprovals())
	}

	if err := o.advance(ctx, s, contracts.StageExecuted, actorID); err != nil {
		return err
	}
	o.emit(ctx, s, contracts.EventContractExecuted, actorID, map[string]any{
		"executed_by": actorID,
		"risk_level":  string(s.RiskLevel),
		"approvals":   len(s.ApprovalChain),
	})
	if err := o.store.Save(ctx, s); err != nil {
		return err
	}

	if o.archiver != nil {
		events, histErr := o.bus.History(ctx, s.ID, 0)
		if histErr != nil {
			o.logger.Error("archive: read history", "session_id", s.ID, "error", histErr)
			return nil
		}
		ref, expErr := o.archiver.ExportExecuted(ctx, s.Clone(), events)
		if expErr != nil {
			o.logger.Error("archive: export failed", "session_id", s.ID, "error", expErr)
			return nil
		}
		o.logger.Info("archive: evidence exported", "session_id", s.ID, "ref", ref)
	}
	return nil
}

// RetryAnalysis re-runs Analysis for a session stalled by a
// collaborator failure. Valid only while the session is in ANALYSIS;
// the orchestrator never retries on its own.
func (o *Orchestrator) RetryAnalysis(ctx context.Context, id string) error {
	unlock := o.lock(id)
	defer unlock()

	s, err := o.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := o.requireStage(s, contracts.StageAnalysis, "retry-analysis"); err != nil {
		return err
	}
	return o.analyzeLocked(ctx, s)
}

// runAnalysis is the scheduled analysis entry: it takes the session's
// critical section and runs the pipeline.
func (o *Orchestrator) runAnalysis(ctx context.Context, id string) {
	unlock := o.lock(id)
	defer unlock()

	s, err := o.store.Get(ctx, id)
	if err != nil {
		o.logger.Error("analysis: load session", "session_id", id, "error", err)
		return
	}
	if s.Stage != contracts.StageAnalysis {
		return
	}
	if err := o.analyzeLocked(ctx, s); err != nil {
		o.logger.Warn("analysis stalled", "session_id", id, "error", err)
	}
}

// analyzeLocked runs extraction, scoring, routing, and the branch into
// NEGOTIATION or APPROVAL as one atomic application. A collaborator
// failure records an analysis_failed event and leaves the session in
// ANALYSIS for an explicit retry. Caller holds the session lock.
func (o *Orchestrator) analyzeLocked(ctx context.Context, s *contracts.LifecycleSession) error {
	result, err := o.analyzer.Analyze(ctx, s.Contract)
	if err == nil {
		// Fill detected facts before routing so value and type rules
		// see them even when the submission left the fields blank.
		if s.Contract.Type == "" {
			s.Contract.Type = result.ContractType
		}
		if s.Contract.ValueCents == 0 {
			s.Contract.ValueCents = result.ValueCents
		}
		if s.Contract.Title == "" {
			s.Contract.Title = analysis.DetectTitle(s.Contract.Text)
		}
		// Route while still in ANALYSIS so a routing failure stalls
		// the session the same way a collaborator failure does.
		var decision routing.Decision
		decision, err = o.router.Route(s.Contract, result.Assessment)
		if err == nil {
			return o.applyAnalysis(ctx, s, result, decision)
		}
	}

	s.AnalysisError = err.Error()
	s.UpdatedAt = o.clock().UTC()
	o.emit(ctx, s, contracts.EventAnalysisFailed, "", map[string]any{
		"error": err.Error(),
	})
	if saveErr := o.store.Save(ctx, s); saveErr != nil {
		return saveErr
	}
	return err
}

func (o *Orchestrator) applyAnalysis(ctx context.Context, s *contracts.LifecycleSession, result analysis.Result, decision routing.Decision) error {
	s.AnalysisError = ""
	s.Clauses = result.Clauses
	s.Findings = result.Findings
	s.LeveragePoints = result.Leverage

	for _, cl := range s.Clauses {
		o.emit(ctx, s, contracts.EventClauseExtracted, "", map[string]any{
			"clause_id": cl.ID,
			"type":      string(cl.Type),
			"flags":     cl.RiskFlags,
		})
	}

	if err := o.advance(ctx, s, contracts.StageRiskRouting, ""); err != nil {
		return err
	}

	now := o.clock().UTC()
	s.RiskLevel = decision.Level
	s.RoutedAt = &now
	assessment := result.Assessment
	s.Assessment = &assessment
	s.ApprovalChain = decision.Chain
	s.UpdatedAt = now

	o.emit(ctx, s, contracts.EventRiskAssessed, "", map[string]any{
		"level":           string(decision.Level),
		"assessed_level":  string(decision.AssessedLevel),
		"liability_cents": assessment.LiabilityCents,
		"findings":        len(assessment.Findings),
		"chain":           roleNames(decision.Chain),
		"policy":          decision.PolicyName,
		"policy_version":  decision.PolicyVersion,
		"applied_rules":   decision.AppliedRules,
		"proposed":        false,
	})

	next := contracts.StageApproval
	if decision.ViaNegotiation {
		next = contracts.StageNegotiation
	}
	if err := o.advance(ctx, s, next, ""); err != nil {
		return err
	}
	if next == contracts.StageApproval && decision.AutoApproved {
		o.emit(ctx, s, contracts.EventApprovalComplete, "system", map[string]any{
			"approvals": len(s.ApprovalChain),
		})
	}
	return o.store.Save(ctx, s)
}

// advance validates the transition against the table and enters the
// new stage. Terminal stages announce themselves through their own
// terminal event rather than a stage_entered.
func (o *Orchestrator) advance(ctx context.Context, s *contracts.LifecycleSession, to contracts.Stage, actor string) error {
	from := s.Stage
	if !CanTransition(from, to) {
		return fault.ErrInvalidState.WithMessagef("no transition from %s to %s", from, to)
	}
	s.Stage = to
	s.UpdatedAt = o.clock().UTC()
	if !to.Terminal() {
		o.emit(ctx, s, contracts.EventStageEntered, actor, map[string]any{
			"from": string(from),
			"to":   string(to),
		})
	}
	return nil
}

// emit publishes an event to the session stream and persists it.
// Emission is best-effort: the command that caused it has already
// validated, and a dropped event is logged, not rolled back.
func (o *Orchestrator) emit(ctx context.Context, s *contracts.LifecycleSession, typ contracts.EventType, actor string, payload map[string]any) {
	e, err := o.bus.Emit(ctx, contracts.Event{
		SessionID: s.ID,
		Type:      typ,
		Stage:     s.Stage,
		Timestamp: o.clock().UTC(),
		ActorID:   actor,
		Payload:   payload,
	})
	if err != nil {
		o.logger.Error("emit event", "session_id", s.ID, "type", typ, "error", err)
		return
	}
	if err := o.store.AppendEvent(ctx, e); err != nil {
		o.logger.Error("persist event", "session_id", s.ID, "seq", e.Sequence, "error", err)
	}
}

func (o *Orchestrator) requireStage(s *contracts.LifecycleSession, want contracts.Stage, command string) error {
	if s.Stage == want {
		return nil
	}
	if s.Stage.Terminal() {
		return fault.ErrInvalidState.WithMessagef("session is %s; no further commands accepted", s.Stage)
	}
	return fault.ErrInvalidState.WithMessagef("%s is only valid during %s, session is %s", command, want, s.Stage)
}

// sessionLock is a refcounted mutex entry: the count tracks commands
// holding or waiting on the session.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// lock takes the session's critical section and returns its release.
// The map entry lives only while a command holds or waits on it, so
// the map stays bounded by in-flight commands rather than by every
// session the process has ever touched.
func (o *Orchestrator) lock(id string) func() {
	o.mu.Lock()
	l, ok := o.locks[id]
	if !ok {
		l = &sessionLock{}
		o.locks[id] = l
	}
	l.refs++
	o.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		o.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(o.locks, id)
		}
		o.mu.Unlock()
	}
}

func roleNames(chain []contracts.ApprovalStep) []string {
	names := make([]string, len(chain))
	for i, step := range chain {
		names[i] = string(step.Role)
	}
	return names
}
