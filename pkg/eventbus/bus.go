// Package eventbus is the in-process event fabric: one append-only,
// hash-chained log per session, fanned out to live subscribers.
// Sequences are dense (1, 2, 3, ...) per session; a late subscriber
// replays history before receiving live events, with no gap and no
// duplicate in between; a terminal event ends every subscription.
package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Covenant-Systems/pactum/pkg/canonicalize"
	"github.com/Covenant-Systems/pactum/pkg/contracts"
	"github.com/Covenant-Systems/pactum/pkg/fault"
)

// Backfill restores a session's event history from durable storage the
// first time the bus sees the session after a restart.
type Backfill interface {
	SessionEvents(ctx context.Context, sessionID string) ([]contracts.Event, error)
}

// Bus fans session events out to subscribers. Safe for concurrent use.
//
// A subscriber that cannot keep up is disconnected rather than given a
// stream with holes: its channel is closed, and it may resubscribe from
// the last sequence it processed.
type Bus struct {
	mu       sync.Mutex
	logs     map[string]*sessionLog
	buffer   int
	clock    func() time.Time
	backfill Backfill
	logger   *slog.Logger
}

type sessionLog struct {
	events  []contracts.Event
	lastSeq int64
	chain   string
	subs    map[int]chan contracts.Event
	nextSub int
	closed  bool
}

// NewBus creates a bus with a per-subscriber buffer of 64 events.
func NewBus() *Bus {
	return &Bus{
		logs:   make(map[string]*sessionLog),
		buffer: 64,
		clock:  time.Now,
		logger: slog.Default().With("component", "eventbus"),
	}
}

// WithBuffer sets the per-subscriber channel capacity.
func (b *Bus) WithBuffer(n int) *Bus {
	if n > 0 {
		b.buffer = n
	}
	return b
}

// WithClock overrides the timestamp source for events emitted without one.
func (b *Bus) WithClock(clock func() time.Time) *Bus {
	b.clock = clock
	return b
}

// WithBackfill wires durable history restoration.
func (b *Bus) WithBackfill(bf Backfill) *Bus {
	b.backfill = bf
	return b
}

// Emit appends an event to its session's log, assigns the next
// sequence, links the hash chain, and fans out. The enriched event is
// returned. Emitting onto a session whose stream ended is invalid
// state.
func (b *Bus) Emit(ctx context.Context, e contracts.Event) (contracts.Event, error) {
	if e.SessionID == "" {
		return contracts.Event{}, fault.ErrInvalidInput.WithMessage("event has no session id")
	}
	if e.Type == "" {
		return contracts.Event{}, fault.ErrInvalidInput.WithMessage("event has no type")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	log, err := b.sessionLocked(ctx, e.SessionID)
	if err != nil {
		return contracts.Event{}, err
	}
	if log.closed {
		return contracts.Event{}, fault.ErrInvalidState.WithMessagef("session %s event stream is closed", e.SessionID)
	}

	e.Sequence = log.lastSeq + 1
	if e.Timestamp.IsZero() {
		e.Timestamp = b.clock().UTC()
	}
	payloadHash, err := canonicalize.CanonicalHash(e.Payload)
	if err != nil {
		return contracts.Event{}, fmt.Errorf("hash event payload: %w", err)
	}
	e.PayloadHash = payloadHash
	e.PrevHash = log.chain

	next, err := chainStep(log.chain, e)
	if err != nil {
		return contracts.Event{}, fmt.Errorf("advance event chain: %w", err)
	}
	log.chain = next
	log.lastSeq = e.Sequence
	log.events = append(log.events, e)

	for id, ch := range log.subs {
		select {
		case ch <- e:
		default:
			// Full buffer means the consumer lost the race for good:
			// disconnect instead of delivering a stream with holes.
			delete(log.subs, id)
			close(ch)
			b.logger.Warn("subscriber lagging, disconnected",
				"session_id", e.SessionID, "subscriber", id, "seq", e.Sequence)
		}
	}

	if e.Type.TerminalEvent() {
		for id, ch := range log.subs {
			delete(log.subs, id)
			close(ch)
		}
		log.closed = true
		if b.backfill != nil {
			// Durable history survives in the store; dropping the log
			// keeps the map bounded by live sessions. A later Subscribe
			// or History rebuilds through the backfill.
			delete(b.logs, e.SessionID)
		}
	}
	return e, nil
}

// Subscribe returns a channel that first replays every event with
// sequence greater than afterSeq, then delivers live events. The
// returned cancel function is idempotent. For a session whose stream
// already ended, the channel replays and is then closed.
func (b *Bus) Subscribe(ctx context.Context, sessionID string, afterSeq int64) (<-chan contracts.Event, func(), error) {
	if sessionID == "" {
		return nil, nil, fault.ErrInvalidInput.WithMessage("subscribe without session id")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	log, err := b.sessionLocked(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	var replay []contracts.Event
	for _, e := range log.events {
		if e.Sequence > afterSeq {
			replay = append(replay, e)
		}
	}

	ch := make(chan contracts.Event, len(replay)+b.buffer)
	for _, e := range replay {
		ch <- e
	}

	if log.closed {
		close(ch)
		return ch, func() {}, nil
	}

	id := log.nextSub
	log.nextSub++
	log.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if ch, ok := log.subs[id]; ok {
			delete(log.subs, id)
			close(ch)
		}
	}
	return ch, cancel, nil
}

// History returns a copy of the session's events with sequence greater
// than afterSeq.
func (b *Bus) History(ctx context.Context, sessionID string, afterSeq int64) ([]contracts.Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	log, err := b.sessionLocked(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	var out []contracts.Event
	for _, e := range log.events {
		if e.Sequence > afterSeq {
			out = append(out, e)
		}
	}
	return out, nil
}

// LastSequence returns the highest committed sequence for the session,
// zero when it has no events.
func (b *Bus) LastSequence(sessionID string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if log, ok := b.logs[sessionID]; ok {
		return log.lastSeq
	}
	return 0
}

// ChainHead returns the cumulative hash over the session's events.
func (b *Bus) ChainHead(sessionID string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if log, ok := b.logs[sessionID]; ok {
		return log.chain
	}
	return ""
}

// sessionLocked fetches or lazily creates the session log, restoring
// history through the backfill source on first touch. Callers hold b.mu.
func (b *Bus) sessionLocked(ctx context.Context, sessionID string) (*sessionLog, error) {
	if log, ok := b.logs[sessionID]; ok {
		return log, nil
	}
	log := &sessionLog{subs: make(map[int]chan contracts.Event)}
	if b.backfill != nil {
		events, err := b.backfill.SessionEvents(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("backfill session %s: %w", sessionID, err)
		}
		for _, e := range events {
			next, err := chainStep(log.chain, e)
			if err != nil {
				return nil, fmt.Errorf("backfill session %s: %w", sessionID, err)
			}
			log.chain = next
			log.lastSeq = e.Sequence
			if e.Type.TerminalEvent() {
				log.closed = true
			}
		}
		log.events = events
	}
	// Logs restored in a terminal state are served but not cached, so
	// reads of old sessions cannot grow the map.
	if !log.closed {
		b.logs[sessionID] = log
	}
	return log, nil
}

func chainStep(prev string, e contracts.Event) (string, error) {
	return canonicalize.CanonicalHash(map[string]any{
		"session_id":   e.SessionID,
		"sequence":     e.Sequence,
		"payload_hash": e.PayloadHash,
		"prev_hash":    prev,
	})
}

// VerifyChain checks a full session history: dense sequences from 1,
// payload hashes that match payloads, and an unbroken hash chain.
func VerifyChain(events []contracts.Event) error {
	chain := ""
	for i, e := range events {
		if e.Sequence != int64(i)+1 {
			return fmt.Errorf("sequence gap at index %d: got %d, want %d", i, e.Sequence, i+1)
		}
		payloadHash, err := canonicalize.CanonicalHash(e.Payload)
		if err != nil {
			return fmt.Errorf("event %d: hash payload: %w", e.Sequence, err)
		}
		if payloadHash != e.PayloadHash {
			return fmt.Errorf("event %d: payload hash mismatch", e.Sequence)
		}
		if e.PrevHash != chain {
			return fmt.Errorf("event %d: chain broken", e.Sequence)
		}
		if chain, err = chainStep(chain, e); err != nil {
			return fmt.Errorf("event %d: %w", e.Sequence, err)
		}
	}
	return nil
}
