package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/petrijr/gateflow/pkg/api"
)

// SQLiteStore is a SessionStore backed by SQLite.
//
// It expects an *sql.DB opened with a SQLite driver (for example,
// "modernc.org/sqlite"). The caller is responsible for importing the
// driver, e.g.:
//
//	import _ "modernc.org/sqlite"
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration

	// now is swappable in tests.
	now func() time.Time
}

var _ SessionStore = (*SQLiteStore)(nil)

// SQLiteOption configures a SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithSQLiteTTL sets the session time-to-live. Zero means no expiry.
func WithSQLiteTTL(ttl time.Duration) SQLiteOption {
	return func(s *SQLiteStore) {
		s.ttl = ttl
	}
}

// NewSQLiteStore initializes the required schema in the given database and
// returns a new SQLiteStore.
func NewSQLiteStore(db *sql.DB, opts ...SQLiteOption) (*SQLiteStore, error) {
	s := &SQLiteStore{
		db:  db,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			version INTEGER NOT NULL,
			state BLOB NOT NULL,
			expires_at INTEGER NOT NULL DEFAULT 0
		);`,
	)
	return err
}

func (s *SQLiteStore) expiresAt() int64 {
	if s.ttl <= 0 {
		return 0
	}
	return s.now().Add(s.ttl).UnixNano()
}

func (s *SQLiteStore) Get(ctx context.Context, sessionID string) (*api.ProcessState, error) {
	var (
		data      []byte
		expiresAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT state, expires_at FROM sessions WHERE id = ?`, sessionID,
	).Scan(&data, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", api.ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, err
	}
	if expiresAt > 0 && expiresAt <= s.now().UnixNano() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
		return nil, fmt.Errorf("%w: %s", api.ErrSessionNotFound, sessionID)
	}
	return DecodeState(data)
}

func (s *SQLiteStore) Put(ctx context.Context, state *api.ProcessState, expectedVersion int64) error {
	data, err := EncodeState(state)
	if err != nil {
		return err
	}

	// Evict an expired row first so a new session may reuse the id.
	_, _ = s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = ? AND expires_at > 0 AND expires_at <= ?`,
		state.SessionID, s.now().UnixNano(),
	)

	if expectedVersion == 0 {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO sessions (id, status, version, state, expires_at) VALUES (?, ?, ?, ?, ?)`,
			state.SessionID, string(state.Status), state.Version, data, s.expiresAt(),
		)
		if err != nil {
			// The only constraint on the table is the primary key.
			return fmt.Errorf("%w: %s", api.ErrDuplicateSession, state.SessionID)
		}
		return nil
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, version = ?, state = ?, expires_at = ? WHERE id = ? AND version = ?`,
		string(state.Status), state.Version, data, s.expiresAt(), state.SessionID, expectedVersion,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM sessions WHERE id = ?`, state.SessionID,
		).Scan(&exists); err == nil && exists == 0 {
			return fmt.Errorf("%w: %s", api.ErrSessionNotFound, state.SessionID)
		}
		return fmt.Errorf("%w: %s expected %d", api.ErrVersionConflict, state.SessionID, expectedVersion)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
	return err
}

func (s *SQLiteStore) List(ctx context.Context, filter SessionFilter) ([]*api.ProcessState, error) {
	query := `SELECT state FROM sessions WHERE (expires_at = 0 OR expires_at > ?)`
	args := []any{s.now().UnixNano()}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*api.ProcessState
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		st, err := DecodeState(data)
		if err != nil {
			return nil, err
		}
		result = append(result, st)
	}
	return result, rows.Err()
}
