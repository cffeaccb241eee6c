package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Covenant-Systems/pactum/pkg/canonicalize"
	"github.com/Covenant-Systems/pactum/pkg/contracts"
	"github.com/Covenant-Systems/pactum/pkg/eventbus"
	"github.com/Covenant-Systems/pactum/pkg/fault"
)

// BundleFormat versions the evidence bundle layout.
const BundleFormat = "pactum-evidence/1"

// Bundle is the evidence record for a finished session: the final
// snapshot plus the complete event log that produced it. Bundles are
// serialized canonically, so a bundle's blob reference doubles as its
// integrity proof.
type Bundle struct {
	Format     string                      `json:"format"`
	SessionID  string                      `json:"session_id"`
	Outcome    contracts.Stage             `json:"outcome"`
	Contract   contracts.Contract          `json:"contract"`
	Session    *contracts.LifecycleSession `json:"session"`
	Events     []contracts.Event           `json:"events"`
	EventCount int                         `json:"event_count"`
	ExportedAt time.Time                   `json:"exported_at"`
}

// Exporter builds and stores evidence bundles.
type Exporter struct {
	store  BlobStore
	clock  func() time.Time
	logger *slog.Logger
}

func NewExporter(store BlobStore) *Exporter {
	return &Exporter{
		store:  store,
		clock:  time.Now,
		logger: slog.Default().With("component", "archive"),
	}
}

// WithClock overrides the export timestamp source.
func (x *Exporter) WithClock(clock func() time.Time) *Exporter {
	x.clock = clock
	return x
}

// ExportExecuted writes the evidence bundle for a finished session and
// returns its blob reference. The event chain is verified first: a log
// that does not check out is never archived.
func (x *Exporter) ExportExecuted(ctx context.Context, s *contracts.LifecycleSession, events []contracts.Event) (string, error) {
	if s == nil {
		return "", fault.ErrInvalidInput.WithMessage("export without a session")
	}
	if !s.Stage.Terminal() {
		return "", fault.ErrInvalidState.WithMessagef("session %s is %s, only finished sessions are archived", s.ID, s.Stage)
	}
	if err := eventbus.VerifyChain(events); err != nil {
		return "", fmt.Errorf("session %s event log failed verification: %w", s.ID, err)
	}

	bundle := Bundle{
		Format:     BundleFormat,
		SessionID:  s.ID,
		Outcome:    s.Stage,
		Contract:   s.Contract,
		Session:    s,
		Events:     events,
		EventCount: len(events),
		ExportedAt: x.clock().UTC(),
	}
	data, err := canonicalize.JCS(bundle)
	if err != nil {
		return "", fmt.Errorf("canonicalize bundle: %w", err)
	}

	ref, err := x.store.Put(ctx, data)
	if err != nil {
		return "", fmt.Errorf("store bundle: %w", err)
	}
	x.logger.Info("evidence bundle archived",
		"session_id", s.ID, "outcome", s.Stage, "events", len(events), "ref", ref)
	return ref, nil
}

// Load reads a bundle back by reference and re-verifies its event
// chain.
func (x *Exporter) Load(ctx context.Context, ref string) (*Bundle, error) {
	data, err := x.store.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode bundle %s: %w", ref, err)
	}
	if b.Format != BundleFormat {
		return nil, fmt.Errorf("bundle %s has format %q, want %q", ref, b.Format, BundleFormat)
	}
	if err := eventbus.VerifyChain(b.Events); err != nil {
		return nil, fmt.Errorf("bundle %s event log failed verification: %w", ref, err)
	}
	return &b, nil
}
