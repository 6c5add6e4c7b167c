package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/petrijr/gateflow/pkg/api"
)

func newSQLiteStore(t *testing.T, opts ...SQLiteOption) *SQLiteStore {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := NewSQLiteStore(db, opts...)
	require.NoError(t, err)
	return store
}

func TestSQLiteStoreCRUD(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	st := testState("s1")
	st.DecisionLog = append(st.DecisionLog, api.DecisionEntry{
		Node:      "review_user_stories",
		Decision:  api.DecisionFeedback,
		Feedback:  "add acceptance criteria",
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	require.NoError(t, store.Put(ctx, st, 0))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "s1", got.SessionID)
	require.Equal(t, int64(1), got.Version)
	require.Len(t, got.DecisionLog, 1)
	require.Equal(t, "add acceptance criteria", got.DecisionLog[0].Feedback)

	require.NoError(t, store.Delete(ctx, "s1"))
	_, err = store.Get(ctx, "s1")
	require.ErrorIs(t, err, api.ErrSessionNotFound)
}

func TestSQLiteStoreVersioning(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	st := testState("s1")
	require.NoError(t, store.Put(ctx, st, 0))
	require.ErrorIs(t, store.Put(ctx, st, 0), api.ErrDuplicateSession)

	st.Version = 2
	require.NoError(t, store.Put(ctx, st, 1))

	stale := testState("s1")
	stale.Version = 2
	require.ErrorIs(t, store.Put(ctx, stale, 1), api.ErrVersionConflict)

	missing := testState("missing")
	require.ErrorIs(t, store.Put(ctx, missing, 3), api.ErrSessionNotFound)
}

func TestSQLiteStoreTTL(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	store := newSQLiteStore(t, WithSQLiteTTL(time.Hour))
	store.now = func() time.Time { return clock }

	require.NoError(t, store.Put(ctx, testState("s1"), 0))

	clock = clock.Add(59 * time.Minute)
	_, err := store.Get(ctx, "s1")
	require.NoError(t, err)

	clock = clock.Add(2 * time.Minute)
	_, err = store.Get(ctx, "s1")
	require.ErrorIs(t, err, api.ErrSessionNotFound)

	// The expired row no longer blocks a fresh session under the same id.
	require.NoError(t, store.Put(ctx, testState("s1"), 0))
}

func TestSQLiteStoreList(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	a := testState("a")
	a.Status = api.StatusAwaitingReview
	b := testState("b")
	require.NoError(t, store.Put(ctx, a, 0))
	require.NoError(t, store.Put(ctx, b, 0))

	all, err := store.List(ctx, SessionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	waiting, err := store.List(ctx, SessionFilter{Status: api.StatusAwaitingReview})
	require.NoError(t, err)
	require.Len(t, waiting, 1)
	require.Equal(t, "a", waiting[0].SessionID)
}
