package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Covenant-Systems/pactum/pkg/contracts"
	"github.com/Covenant-Systems/pactum/pkg/fault"
)

// SQLStore implements Store using database/sql. It works against both
// Postgres (lib/pq) and SQLite (modernc.org/sqlite): both drivers
// accept $N placeholders. The session aggregate is stored as a JSON
// snapshot next to the columns queries filter on; events are rows in
// their own table keyed by (session_id, sequence).
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore wraps an open database handle.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

const sessionSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	stage TEXT NOT NULL,
	risk_level TEXT NOT NULL DEFAULT '',
	snapshot TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS session_events (
	session_id TEXT NOT NULL,
	sequence BIGINT NOT NULL,
	event_type TEXT NOT NULL,
	event TEXT NOT NULL,
	PRIMARY KEY (session_id, sequence)
);
`

// Init creates the schema if missing.
func (s *SQLStore) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sessionSchema); err != nil {
		return fmt.Errorf("init session schema: %w", err)
	}
	return nil
}

func (s *SQLStore) Create(ctx context.Context, sess *contracts.LifecycleSession) error {
	if sess.ID == "" {
		return fault.ErrInvalidInput.WithMessage("session has no id")
	}
	snapshot, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", sess.ID, err)
	}
	query := `
		INSERT INTO sessions (id, stage, risk_level, snapshot, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := s.db.ExecContext(ctx, query,
		sess.ID, string(sess.Stage), string(sess.RiskLevel), string(snapshot),
		sess.CreatedAt, sess.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert session %s: %w", sess.ID, err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (*contracts.LifecycleSession, error) {
	query := `SELECT snapshot FROM sessions WHERE id = $1`
	var snapshot string
	err := s.db.QueryRowContext(ctx, query, id).Scan(&snapshot)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fault.ErrNotFound.WithMessagef("session %s", id)
		}
		return nil, fmt.Errorf("select session %s: %w", id, err)
	}
	var sess contracts.LifecycleSession
	if err := json.Unmarshal([]byte(snapshot), &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &sess, nil
}

func (s *SQLStore) Save(ctx context.Context, sess *contracts.LifecycleSession) error {
	snapshot, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", sess.ID, err)
	}
	query := `
		UPDATE sessions SET stage = $1, risk_level = $2, snapshot = $3, updated_at = $4
		WHERE id = $5
	`
	res, err := s.db.ExecContext(ctx, query,
		string(sess.Stage), string(sess.RiskLevel), string(snapshot), sess.UpdatedAt, sess.ID,
	)
	if err != nil {
		return fmt.Errorf("update session %s: %w", sess.ID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session %s: rows affected: %w", sess.ID, err)
	}
	if rows == 0 {
		return fault.ErrNotFound.WithMessagef("session %s", sess.ID)
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context) ([]*contracts.LifecycleSession, error) {
	query := `SELECT snapshot FROM sessions ORDER BY created_at DESC, id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := make([]*contracts.LifecycleSession, 0)
	for rows.Next() {
		var snapshot string
		if err := rows.Scan(&snapshot); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		var sess contracts.LifecycleSession
		if err := json.Unmarshal([]byte(snapshot), &sess); err != nil {
			return nil, fmt.Errorf("decode session: %w", err)
		}
		result = append(result, &sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return result, nil
}

func (s *SQLStore) AppendEvent(ctx context.Context, e contracts.Event) error {
	if e.SessionID == "" {
		return fault.ErrInvalidInput.WithMessage("event has no session id")
	}
	encoded, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event %s/%d: %w", e.SessionID, e.Sequence, err)
	}
	query := `
		INSERT INTO session_events (session_id, sequence, event_type, event)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := s.db.ExecContext(ctx, query,
		e.SessionID, e.Sequence, string(e.Type), string(encoded),
	); err != nil {
		return fmt.Errorf("insert event %s/%d: %w", e.SessionID, e.Sequence, err)
	}
	return nil
}

func (s *SQLStore) SessionEvents(ctx context.Context, sessionID string) ([]contracts.Event, error) {
	query := `SELECT event FROM session_events WHERE session_id = $1 ORDER BY sequence`
	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list events for %s: %w", sessionID, err)
	}
	defer func() { _ = rows.Close() }()

	result := make([]contracts.Event, 0)
	for rows.Next() {
		var encoded string
		if err := rows.Scan(&encoded); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var e contracts.Event
		if err := json.Unmarshal([]byte(encoded), &e); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events for %s: %w", sessionID, err)
	}
	return result, nil
}
