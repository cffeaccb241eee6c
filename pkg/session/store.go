// Package session persists lifecycle sessions and their event history.
// Three backends share one contract: an in-memory store for tests and
// the demo, and a database/sql store that runs against both SQLite
// (lite mode) and Postgres. The store holds data; the orchestrator owns
// every stage transition and serializes writes per session.
package session

import (
	"context"

	"github.com/Covenant-Systems/pactum/pkg/contracts"
)

// Store is the durable interface for session management.
type Store interface {
	// Create persists a new session. The ID must be unique.
	Create(ctx context.Context, s *contracts.LifecycleSession) error

	// Get retrieves a session by ID. fault.ErrNotFound when unknown.
	Get(ctx context.Context, id string) (*contracts.LifecycleSession, error)

	// Save replaces the stored session with the given state.
	// fault.ErrNotFound when the session was never created.
	Save(ctx context.Context, s *contracts.LifecycleSession) error

	// List returns every stored session, newest first.
	List(ctx context.Context) ([]*contracts.LifecycleSession, error)

	// AppendEvent records one emitted event in the session's durable
	// history. Events arrive in sequence order and are never rewritten.
	AppendEvent(ctx context.Context, e contracts.Event) error

	// SessionEvents returns the session's full event history in
	// sequence order. Satisfies eventbus.Backfill.
	SessionEvents(ctx context.Context, sessionID string) ([]contracts.Event, error)
}
