package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/petrijr/gateflow/pkg/api"
)

// PostgresStore is a SessionStore backed by PostgreSQL.
//
// It expects an *sql.DB opened with a Postgres driver; the caller is
// responsible for importing one, e.g.:
//
//	import _ "github.com/jackc/pgx/v5/stdlib"
type PostgresStore struct {
	db  *sql.DB
	ttl time.Duration

	now func() time.Time
}

var _ SessionStore = (*PostgresStore)(nil)

// PostgresOption configures a PostgresStore.
type PostgresOption func(*PostgresStore)

// WithPostgresTTL sets the session time-to-live. Zero means no expiry.
func WithPostgresTTL(ttl time.Duration) PostgresOption {
	return func(s *PostgresStore) {
		s.ttl = ttl
	}
}

// NewPostgresStore initializes the required schema in the given database
// and returns a new PostgresStore.
func NewPostgresStore(db *sql.DB, opts ...PostgresOption) (*PostgresStore, error) {
	s := &PostgresStore{
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

func (s *PostgresStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS gateflow_sessions (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			version BIGINT NOT NULL,
			state BYTEA NOT NULL,
			expires_at BIGINT NOT NULL DEFAULT 0
		);`,
	)
	return err
}

func (s *PostgresStore) expiresAt() int64 {
	if s.ttl <= 0 {
		return 0
	}
	return s.now().Add(s.ttl).UnixNano()
}

func (s *PostgresStore) Get(ctx context.Context, sessionID string) (*api.ProcessState, error) {
	var (
		data      []byte
		expiresAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT state, expires_at FROM gateflow_sessions WHERE id = $1`, sessionID,
	).Scan(&data, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", api.ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, err
	}
	if expiresAt > 0 && expiresAt <= s.now().UnixNano() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM gateflow_sessions WHERE id = $1`, sessionID)
		return nil, fmt.Errorf("%w: %s", api.ErrSessionNotFound, sessionID)
	}
	return DecodeState(data)
}

func (s *PostgresStore) Put(ctx context.Context, state *api.ProcessState, expectedVersion int64) error {
	data, err := EncodeState(state)
	if err != nil {
		return err
	}

	_, _ = s.db.ExecContext(ctx,
		`DELETE FROM gateflow_sessions WHERE id = $1 AND expires_at > 0 AND expires_at <= $2`,
		state.SessionID, s.now().UnixNano(),
	)

	if expectedVersion == 0 {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO gateflow_sessions (id, status, version, state, expires_at) VALUES ($1, $2, $3, $4, $5)`,
			state.SessionID, string(state.Status), state.Version, data, s.expiresAt(),
		)
		if err != nil {
			if strings.Contains(err.Error(), "duplicate key") {
				return fmt.Errorf("%w: %s", api.ErrDuplicateSession, state.SessionID)
			}
			return err
		}
		return nil
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE gateflow_sessions SET status = $1, version = $2, state = $3, expires_at = $4 WHERE id = $5 AND version = $6`,
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
			`SELECT COUNT(1) FROM gateflow_sessions WHERE id = $1`, state.SessionID,
		).Scan(&exists); err == nil && exists == 0 {
			return fmt.Errorf("%w: %s", api.ErrSessionNotFound, state.SessionID)
		}
		return fmt.Errorf("%w: %s expected %d", api.ErrVersionConflict, state.SessionID, expectedVersion)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM gateflow_sessions WHERE id = $1`, sessionID)
	return err
}

func (s *PostgresStore) List(ctx context.Context, filter SessionFilter) ([]*api.ProcessState, error) {
	query := `SELECT state FROM gateflow_sessions WHERE (expires_at = 0 OR expires_at > $1)`
	args := []any{s.now().UnixNano()}
	if filter.Status != "" {
		query += ` AND status = $2`
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
