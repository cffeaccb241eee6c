package api

import (
	"bytes"
	"net/http"
	"sync"
	"time"
)

// storedReply is a completed mutation response held for replay under
// its Idempotency-Key.
type storedReply struct {
	Status   int
	Header   http.Header
	Body     []byte
	StoredAt time.Time
}

// IdempotencyStorer persists mutation responses by key. Implementations
// are best-effort: a miss re-executes the command, it never fails it.
type IdempotencyStorer interface {
	Check(key string) (*storedReply, bool)
	Set(key string, status int, header http.Header, body []byte)
}

// MemoryIdempotencyStore keeps replies in process memory with a TTL.
// Suitable for lite mode and tests; replays do not survive a restart.
type MemoryIdempotencyStore struct {
	mu      sync.RWMutex
	replies map[string]*storedReply
	ttl     time.Duration
}

func NewIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	s := &MemoryIdempotencyStore{
		replies: make(map[string]*storedReply),
		ttl:     ttl,
	}
	go s.sweep()
	return s
}

// sweep drops expired replies so the map stays bounded by recent keys.
func (s *MemoryIdempotencyStore) sweep() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-s.ttl)
		s.mu.Lock()
		for key, reply := range s.replies {
			if reply.StoredAt.Before(cutoff) {
				delete(s.replies, key)
			}
		}
		s.mu.Unlock()
	}
}

func (s *MemoryIdempotencyStore) Check(key string) (*storedReply, bool) {
	s.mu.RLock()
	reply, ok := s.replies[key]
	s.mu.RUnlock()
	if !ok || time.Since(reply.StoredAt) >= s.ttl {
		return nil, false
	}
	return reply, true
}

func (s *MemoryIdempotencyStore) Set(key string, status int, header http.Header, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[key] = &storedReply{
		Status:   status,
		Header:   header,
		Body:     body,
		StoredAt: time.Now(),
	}
}

// IdempotencyMiddleware gives mutating requests exactly-once semantics
// per Idempotency-Key: the first outcome is recorded, duplicates get
// the recorded response with an Idempotency-Replay marker. Only
// successes are recorded; a problem response is never replayed, so a
// corrected retry under the same key re-executes the command.
func IdempotencyMiddleware(store IdempotencyStorer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !mutating(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			key := r.Header.Get("Idempotency-Key")
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			if reply, ok := store.Check(key); ok {
				w.Header().Set("Idempotency-Replay", "true")
				for name, vals := range reply.Header {
					for _, v := range vals {
						w.Header().Add(name, v)
					}
				}
				w.WriteHeader(reply.Status)
				_, _ = w.Write(reply.Body)
				return
			}

			capture := &statusRecorder{
				ResponseWriter: w,
				status:         http.StatusOK,
				body:           &bytes.Buffer{},
			}
			next.ServeHTTP(capture, r)

			if capture.status >= 200 && capture.status < 300 {
				store.Set(key, capture.status, w.Header().Clone(), capture.body.Bytes())
			}
		})
	}
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
