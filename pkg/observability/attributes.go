// Package observability provides lifecycle-specific instrumentation helpers.
package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Semantic convention attributes for lifecycle spans.
var (
	AttrSessionID    = attribute.Key("pactum.session.id")
	AttrStage        = attribute.Key("pactum.session.stage")
	AttrContractType = attribute.Key("pactum.contract.type")
	AttrRiskLevel    = attribute.Key("pactum.risk.level")

	AttrCommand = attribute.Key("pactum.command")
	AttrActorID = attribute.Key("pactum.actor.id")

	AttrApprovalRole = attribute.Key("pactum.approval.role")
	AttrRound        = attribute.Key("pactum.negotiation.round")

	AttrEventType = attribute.Key("pactum.event.type")
	AttrSequence  = attribute.Key("pactum.event.sequence")
)

// SessionOperation creates attributes for a session-scoped command.
func SessionOperation(sessionID, stage, command string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrSessionID.String(sessionID),
		AttrStage.String(stage),
		AttrCommand.String(command),
	}
}

// ApprovalOperation creates attributes for an approval decision.
func ApprovalOperation(sessionID, role, actorID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrSessionID.String(sessionID),
		AttrApprovalRole.String(role),
		AttrActorID.String(actorID),
	}
}

// NegotiationOperation creates attributes for a negotiation round.
func NegotiationOperation(sessionID string, round int, actorID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrSessionID.String(sessionID),
		AttrRound.Int(round),
		AttrActorID.String(actorID),
	}
}

// EventEmitted creates attributes for an emitted lifecycle event.
func EventEmitted(sessionID, eventType string, sequence uint64) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrSessionID.String(sessionID),
		AttrEventType.String(eventType),
		AttrSequence.Int64(int64(sequence)),
	}
}

// SpanFromContext extracts the span from context.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// AddSpanEvent adds an event to the current span.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// SetSpanStatus records the error on the current span when non-nil.
func SetSpanStatus(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if err != nil {
		span.RecordError(err)
	}
}
