package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/petrijr/gateflow/pkg/api"
)

// RedisStore is a SessionStore backed by Redis. It uses a simple key
// structure:
//
//	<prefix>sess:<id>  => gob-encoded session record, with TTL if configured
//	<prefix>idx:all    => SET of all session IDs
//
// Expiry is Redis-native: the session key carries the configured TTL and is
// refreshed on every Put. The index is best-effort; List skips ids whose
// session key has expired and prunes them from the set.
//
// Optimistic concurrency uses WATCH on the session key: the stored version
// is re-checked inside the transaction, and a racing write aborts the
// pipeline with api.ErrVersionConflict.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ SessionStore = (*RedisStore)(nil)

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisPrefix sets the key prefix (default "gateflow:").
func WithRedisPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// WithRedisTTL sets the session time-to-live. Zero means no expiry.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// NewRedisStore creates a RedisStore on an existing client.
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client: client,
		prefix: "gateflow:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) keySession(id string) string {
	return s.prefix + "sess:" + id
}

func (s *RedisStore) keyAll() string {
	return s.prefix + "idx:all"
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (*api.ProcessState, error) {
	data, err := s.client.Get(ctx, s.keySession(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", api.ErrSessionNotFound, sessionID)
		}
		return nil, err
	}
	return DecodeState(data)
}

func (s *RedisStore) Put(ctx context.Context, state *api.ProcessState, expectedVersion int64) error {
	data, err := EncodeState(state)
	if err != nil {
		return err
	}

	key := s.keySession(state.SessionID)

	txn := func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			if expectedVersion != 0 {
				return fmt.Errorf("%w: %s", api.ErrSessionNotFound, state.SessionID)
			}
		case err != nil:
			return err
		default:
			if expectedVersion == 0 {
				return fmt.Errorf("%w: %s", api.ErrDuplicateSession, state.SessionID)
			}
			stored, err := DecodeState(cur)
			if err != nil {
				return err
			}
			if stored.Version != expectedVersion {
				return fmt.Errorf("%w: %s expected %d, stored %d",
					api.ErrVersionConflict, state.SessionID, expectedVersion, stored.Version)
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			pipe.SAdd(ctx, s.keyAll(), state.SessionID)
			return nil
		})
		return err
	}

	if err := s.client.Watch(ctx, txn, key); err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			// The key changed between WATCH and EXEC.
			return fmt.Errorf("%w: %s", api.ErrVersionConflict, state.SessionID)
		}
		return err
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.keySession(sessionID))
	pipe.SRem(ctx, s.keyAll(), sessionID)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) List(ctx context.Context, filter SessionFilter) ([]*api.ProcessState, error) {
	ids, err := s.client.SMembers(ctx, s.keyAll()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, s.keySession(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	var result []*api.ProcessState
	for i, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				// Expired session; prune the index entry.
				_ = s.client.SRem(ctx, s.keyAll(), ids[i]).Err()
				continue
			}
			return nil, err
		}
		st, err := DecodeState(data)
		if err != nil {
			return nil, err
		}
		if filter.Status != "" && st.Status != filter.Status {
			continue
		}
		result = append(result, st)
	}
	return result, nil
}
