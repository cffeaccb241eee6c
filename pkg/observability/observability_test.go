package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	require.Equal(t, "pactum", config.ServiceName)
	require.Equal(t, "development", config.Environment)
	require.Equal(t, "localhost:4317", config.OTLPEndpoint)
	require.Equal(t, 1.0, config.SampleRate)
	require.True(t, config.Enabled)
}

func TestNewProviderDisabled(t *testing.T) {
	p, err := New(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, p)

	require.NotNil(t, p.Tracer())
	require.NotNil(t, p.Meter())
}

func TestNewProviderEmptyEndpointIsNoop(t *testing.T) {
	p, err := New(context.Background(), &Config{Enabled: true, OTLPEndpoint: ""})
	require.NoError(t, err)
	require.NotNil(t, p)
	require.Nil(t, p.tracerProvider)
	require.Nil(t, p.meterProvider)
}

func TestTrackOperation(t *testing.T) {
	p, err := New(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)

	ctx := context.Background()
	attrs := SessionOperation("ses_abc", "APPROVAL", "approve")

	newCtx, finish := p.TrackOperation(ctx, "lifecycle.approve", attrs...)
	require.NotNil(t, newCtx)

	time.Sleep(1 * time.Millisecond)
	finish(nil)
}

func TestTrackOperationWithError(t *testing.T) {
	p, err := New(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)

	_, finish := p.TrackOperation(context.Background(), "lifecycle.execute")
	finish(errors.New("chain incomplete"))
}

func TestRecordMetricsNoopWhenDisabled(t *testing.T) {
	p, err := New(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)

	ctx := context.Background()
	p.RecordRequest(ctx, attribute.String("test", "value"))
	p.RecordError(ctx, errors.New("test"), attribute.String("test", "value"))
	p.RecordDuration(ctx, 100*time.Millisecond, attribute.String("test", "value"))
	p.SessionOpened(ctx)
	p.SessionClosed(ctx)
	p.RecordStageTransition(ctx, "INTAKE", "ANALYSIS")
}

func TestStartSpan(t *testing.T) {
	p, err := New(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)

	newCtx, span := p.StartSpan(context.Background(), "lifecycle.submit")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()
}

func TestShutdown(t *testing.T) {
	p, err := New(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Shutdown(ctx))
}

func TestSessionOperationAttributes(t *testing.T) {
	attrs := SessionOperation("ses_123", "NEGOTIATION", "renegotiate")
	require.Len(t, attrs, 3)
	require.Equal(t, "pactum.session.id", string(attrs[0].Key))
	require.Equal(t, "ses_123", attrs[0].Value.AsString())
	require.Equal(t, "NEGOTIATION", attrs[1].Value.AsString())
}

func TestApprovalOperationAttributes(t *testing.T) {
	attrs := ApprovalOperation("ses_123", "VP", "vp-1")
	require.Len(t, attrs, 3)
	require.Equal(t, "pactum.approval.role", string(attrs[1].Key))
	require.Equal(t, "VP", attrs[1].Value.AsString())
}

func TestEventEmittedAttributes(t *testing.T) {
	attrs := EventEmitted("ses_123", "risk_assessed", 4)
	require.Len(t, attrs, 3)
	require.Equal(t, "pactum.event.sequence", string(attrs[2].Key))
	require.Equal(t, int64(4), attrs[2].Value.AsInt64())
}

func TestSpanHelpers(t *testing.T) {
	ctx := context.Background()
	require.NotNil(t, SpanFromContext(ctx))
	AddSpanEvent(ctx, "stage_entered", attribute.String("stage", "APPROVAL"))
	SetSpanStatus(ctx, errors.New("test error"))
	SetSpanStatus(ctx, nil)
}
