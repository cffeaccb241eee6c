package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Covenant-Systems/pactum/pkg/contracts"
	"github.com/Covenant-Systems/pactum/pkg/fault"
)

func testSession(id string, created time.Time) *contracts.LifecycleSession {
	return &contracts.LifecycleSession{
		ID: id,
		Contract: contracts.Contract{
			ID:          "c-" + id,
			Type:        contracts.TypeService,
			Text:        "the parties agree to the terms set out below",
			SubmittedAt: created,
		},
		Stage:     contracts.StageIntake,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestMemoryStoreCreateGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	created := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

	if err := store.Create(ctx, testSession("s-1", created)); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(ctx, "s-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "s-1" || got.Stage != contracts.StageIntake {
		t.Fatalf("bad session: %+v", got)
	}

	if err := store.Create(ctx, testSession("s-1", created)); !errors.Is(err, fault.ErrInvalidState) {
		t.Fatalf("duplicate create: got %v, want invalid state", err)
	}
}

func TestMemoryStoreGetUnknown(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, fault.ErrNotFound) {
		t.Fatalf("got %v, want not found", err)
	}
	if err := store.Save(context.Background(), testSession("nope", time.Now())); !errors.Is(err, fault.ErrNotFound) {
		t.Fatalf("save unknown: got %v, want not found", err)
	}
}

func TestMemoryStoreIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s := testSession("s-1", time.Now().UTC())
	if err := store.Create(ctx, s); err != nil {
		t.Fatal(err)
	}

	// Mutating the handed-in or handed-out session must not reach the store.
	s.Stage = contracts.StageExecuted
	got, err := store.Get(ctx, "s-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Stage != contracts.StageIntake {
		t.Fatalf("store leaked caller mutation: stage=%s", got.Stage)
	}
	got.RiskLevel = contracts.RiskCritical
	again, err := store.Get(ctx, "s-1")
	if err != nil {
		t.Fatal(err)
	}
	if again.RiskLevel != "" {
		t.Fatalf("store leaked reader mutation: risk=%s", again.RiskLevel)
	}
}

func TestMemoryStoreListNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"s-old", "s-mid", "s-new"} {
		if err := store.Create(ctx, testSession(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatal(err)
		}
	}
	all, err := store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].ID != "s-new" || all[2].ID != "s-old" {
		t.Fatalf("bad order: %v, %v, %v", all[0].ID, all[1].ID, all[2].ID)
	}
}

func TestMemoryStoreEventSequenceGuard(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.AppendEvent(ctx, contracts.Event{SessionID: "s-1", Sequence: 1, Type: contracts.EventStageEntered}); err != nil {
		t.Fatal(err)
	}
	if err := store.AppendEvent(ctx, contracts.Event{SessionID: "s-1", Sequence: 3, Type: contracts.EventRiskAssessed}); !errors.Is(err, fault.ErrInvalidState) {
		t.Fatalf("gap accepted: %v", err)
	}
	if err := store.AppendEvent(ctx, contracts.Event{SessionID: "s-1", Sequence: 2, Type: contracts.EventRiskAssessed}); err != nil {
		t.Fatal(err)
	}

	events, err := store.SessionEvents(ctx, "s-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || events[0].Sequence != 1 || events[1].Sequence != 2 {
		t.Fatalf("bad history: %+v", events)
	}
}
