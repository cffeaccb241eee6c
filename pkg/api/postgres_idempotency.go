package api

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// PostgresIdempotencyStore provides durable idempotency enforcement
// backed by PostgreSQL, surviving process restarts where the in-memory
// store cannot.
type PostgresIdempotencyStore struct {
	db  *sql.DB
	ttl time.Duration
}

// NewPostgresIdempotencyStore creates a PostgreSQL-backed idempotency store.
func NewPostgresIdempotencyStore(db *sql.DB, ttl time.Duration) *PostgresIdempotencyStore {
	return &PostgresIdempotencyStore{db: db, ttl: ttl}
}

// Check returns a stored reply if the key was seen within the TTL.
func (s *PostgresIdempotencyStore) Check(key string) (*storedReply, bool) {
	var statusCode int
	var headers []byte
	var body []byte
	var cachedAt time.Time

	err := s.db.QueryRow(
		`SELECT status_code, headers, body, cached_at FROM idempotency_keys WHERE key = $1`,
		key,
	).Scan(&statusCode, &headers, &body, &cachedAt)
	if err != nil {
		return nil, false
	}

	if time.Since(cachedAt) > s.ttl {
		_, _ = s.db.Exec(`DELETE FROM idempotency_keys WHERE key = $1`, key)
		return nil, false
	}

	hdr := make(http.Header)
	var stored map[string][]string
	if err := json.Unmarshal(headers, &stored); err == nil {
		for k, vals := range stored {
			hdr[k] = vals
		}
	}
	if hdr.Get("Content-Type") == "" {
		hdr.Set("Content-Type", "application/json")
	}

	return &storedReply{
		Status:   statusCode,
		Header:   hdr,
		Body:     body,
		StoredAt: cachedAt,
	}, true
}

// Set stores an idempotency key and its reply.
func (s *PostgresIdempotencyStore) Set(key string, status int, header http.Header, body []byte) {
	encoded, err := json.Marshal(header)
	if err != nil {
		encoded = []byte("{}")
	}
	_, err = s.db.Exec(
		`INSERT INTO idempotency_keys (key, status_code, headers, body, cached_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (key) DO UPDATE SET status_code = $2, headers = $3, body = $4, cached_at = NOW()`,
		key, status, encoded, body,
	)
	if err != nil {
		// Idempotency is best-effort; the command itself already ran.
		slog.Warn("idempotency key not persisted", "key", key, "error", err)
	}
}

// Cleanup removes idempotency keys older than the TTL.
func (s *PostgresIdempotencyStore) Cleanup() {
	_, _ = s.db.Exec(
		`DELETE FROM idempotency_keys WHERE cached_at < $1`,
		time.Now().Add(-s.ttl),
	)
}
