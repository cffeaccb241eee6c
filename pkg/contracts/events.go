package contracts

import "time"

// EventType names a lifecycle progress event.
type EventType string

const (
	EventStageEntered         EventType = "stage_entered"
	EventClauseExtracted      EventType = "clause_extracted"
	EventRiskAssessed         EventType = "risk_assessed"
	EventApprovalRecorded     EventType = "approval_recorded"
	EventApprovalComplete     EventType = "approval_complete"
	EventNegotiationSubmitted EventType = "negotiation_round_submitted"
	EventContractRejected     EventType = "contract_rejected"
	EventContractExecuted     EventType = "contract_executed"
	EventAnalysisFailed       EventType = "analysis_failed"
)

// TerminalEvent reports whether the event type ends a session's stream.
func (t EventType) TerminalEvent() bool {
	return t == EventContractExecuted || t == EventContractRejected
}

// Event is the immutable unit of session history. Sequence numbers are
// strictly increasing per session with no gaps; PayloadHash and PrevHash
// chain each event to its predecessor over canonicalized payload bytes.
type Event struct {
	SessionID   string         `json:"session_id"`
	Sequence    int64          `json:"sequence"`
	Type        EventType      `json:"type"`
	Stage       Stage          `json:"stage"`
	Timestamp   time.Time      `json:"timestamp"`
	ActorID     string         `json:"actor_id,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
	PayloadHash string         `json:"payload_hash"`
	PrevHash    string         `json:"prev_hash"`
}
