package session

import (
	"testing"
	"time"
)

func newTestStore(ttl time.Duration) (*Store, *time.Time) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store := NewStore(ttl)
	store.now = func() time.Time { return now }
	return store, &now
}

func TestBeginReplacesActiveFlow(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(time.Minute)
	store.Begin(1, KindConfession, "awaiting_text")
	store.Begin(1, KindPromo, "awaiting_code")

	session, ok := store.Get(1)
	if !ok {
		t.Fatal("expected live session")
	}
	if session.Kind != KindPromo {
		t.Fatalf("kind = %q, a new flow must replace the old one", session.Kind)
	}
}

func TestExpiredSessionReadsAsAbsent(t *testing.T) {
	t.Parallel()

	store, now := newTestStore(time.Minute)
	store.Begin(1, KindConfession, "awaiting_text")
	*now = now.Add(time.Minute)

	if _, ok := store.Get(1); ok {
		t.Fatal("lapsed session must read as absent")
	}
	if store.Len() != 0 {
		t.Fatal("stale entry must be dropped on read")
	}
}

func TestAdvanceRefreshesTTL(t *testing.T) {
	t.Parallel()

	store, now := newTestStore(time.Minute)
	store.Begin(1, KindConfession, "awaiting_text")

	*now = now.Add(45 * time.Second)
	if !store.Advance(1, "awaiting_confirmation", map[string]string{"text": "hi"}) {
		t.Fatal("advance on a live session must succeed")
	}

	// 45s into the refreshed window: still alive, data intact.
	*now = now.Add(45 * time.Second)
	session, ok := store.Get(1)
	if !ok {
		t.Fatal("refreshed session must still be live")
	}
	if session.State != "awaiting_confirmation" || session.Data["text"] != "hi" {
		t.Fatalf("unexpected session %+v", session)
	}
}

func TestAdvanceExpired(t *testing.T) {
	t.Parallel()

	store, now := newTestStore(time.Minute)
	store.Begin(1, KindConfession, "awaiting_text")
	*now = now.Add(2 * time.Minute)

	if store.Advance(1, "next", nil) {
		t.Fatal("advance on a lapsed session must fail")
	}
}

func TestEndReportsLiveness(t *testing.T) {
	t.Parallel()

	store, now := newTestStore(time.Minute)
	store.Begin(1, KindConfession, "awaiting_text")
	if !store.End(1) {
		t.Fatal("ending a live session must report true")
	}
	store.Begin(2, KindConfession, "awaiting_text")
	*now = now.Add(2 * time.Minute)
	if store.End(2) {
		t.Fatal("ending a lapsed session must report false")
	}
	if store.End(3) {
		t.Fatal("ending a missing session must report false")
	}
}

func TestReapReturnsLapsed(t *testing.T) {
	t.Parallel()

	store, now := newTestStore(time.Minute)
	store.Begin(1, KindConfession, "awaiting_text")
	*now = now.Add(30 * time.Second)
	store.Begin(2, KindPromo, "awaiting_code")
	*now = now.Add(45 * time.Second)

	reaped := store.Reap()
	if len(reaped) != 1 || reaped[0].UserID != 1 {
		t.Fatalf("reaped %+v, want only user 1", reaped)
	}
	if _, ok := store.Get(2); !ok {
		t.Fatal("younger session must survive the reap")
	}
}

func TestSessionCopyIsolation(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(time.Minute)
	store.Begin(1, KindConfession, "awaiting_text")
	store.Advance(1, "awaiting_text", map[string]string{"text": "original"})

	session, _ := store.Get(1)
	session.Data["text"] = "mutated"

	again, _ := store.Get(1)
	if again.Data["text"] != "original" {
		t.Fatal("Get must return an isolated copy")
	}
}
