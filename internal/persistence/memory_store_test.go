package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/petrijr/gateflow/pkg/api"
)

func testState(sessionID string) *api.ProcessState {
	st := api.NewProcessState(sessionID, "generate_user_stories", map[string]any{
		"project_name": "Demo",
	})
	st.Version = 1
	return st
}

func TestMemoryStoreCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	st := testState("s1")
	if err := store.Put(ctx, st, 0); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.SessionID != "s1" || got.Version != 1 || got.Payload["project_name"] != "Demo" {
		t.Fatalf("unexpected state: %+v", got)
	}

	// The store holds its own copy; mutating the returned state must not
	// reach the stored one.
	got.Payload["project_name"] = "Mutated"
	again, _ := store.Get(ctx, "s1")
	if again.Payload["project_name"] != "Demo" {
		t.Fatal("store leaked internal state")
	}

	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "s1"); !errors.Is(err, api.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
	}
}

func TestMemoryStoreVersioning(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	st := testState("s1")
	if err := store.Put(ctx, st, 0); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := store.Put(ctx, st, 0); !errors.Is(err, api.ErrDuplicateSession) {
		t.Fatalf("expected ErrDuplicateSession, got %v", err)
	}

	st.Version = 2
	if err := store.Put(ctx, st, 1); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	// Stale writer: stored version is 2 now.
	stale := testState("s1")
	stale.Version = 2
	if err := store.Put(ctx, stale, 1); !errors.Is(err, api.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	other := testState("missing")
	if err := store.Put(ctx, other, 5); !errors.Is(err, api.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestMemoryStoreTTL(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	store := NewMemoryStore(WithMemoryTTL(time.Hour))
	store.now = func() time.Time { return clock }

	if err := store.Put(ctx, testState("s1"), 0); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	clock = clock.Add(59 * time.Minute)
	if _, err := store.Get(ctx, "s1"); err != nil {
		t.Fatalf("session expired early: %v", err)
	}

	clock = clock.Add(2 * time.Minute)
	if _, err := store.Get(ctx, "s1"); !errors.Is(err, api.ErrSessionNotFound) {
		t.Fatalf("expected expiry, got %v", err)
	}

	// A new session under the expired id is a create, not a conflict.
	if err := store.Put(ctx, testState("s1"), 0); err != nil {
		t.Fatalf("recreate after expiry failed: %v", err)
	}
}

func TestMemoryStoreList(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	a := testState("a")
	a.Status = api.StatusAwaitingReview
	b := testState("b")
	c := testState("c")
	c.Status = api.StatusCompleted
	for _, st := range []*api.ProcessState{a, b, c} {
		if err := store.Put(ctx, st, 0); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	all, err := store.List(ctx, SessionFilter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(all))
	}

	waiting, err := store.List(ctx, SessionFilter{Status: api.StatusAwaitingReview})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(waiting) != 1 || waiting[0].SessionID != "a" {
		t.Fatalf("unexpected filtered listing: %+v", waiting)
	}
}
