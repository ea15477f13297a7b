package sweeper

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/AMOryC91/anonym/internal/db"
	"github.com/AMOryC91/anonym/internal/session"
)

type fakeSweepStore struct {
	mu        sync.Mutex
	expiring  map[int][]db.User
	notified  map[int64]map[string]bool
	abandoned []int64
}

func newFakeSweepStore() *fakeSweepStore {
	return &fakeSweepStore{
		expiring: map[int][]db.User{},
		notified: map[int64]map[string]bool{},
	}
}

func (f *fakeSweepStore) PurgeConfessionsOlderThan(context.Context, int) (int64, error) {
	return 0, nil
}

func (f *fakeSweepStore) PurgeReportsOlderThan(context.Context, int) (int64, error) {
	return 0, nil
}

func (f *fakeSweepStore) ListVIPExpiringWithin(_ context.Context, days int) ([]db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.expiring[days], nil
}

func (f *fakeSweepStore) MarkNotified(_ context.Context, userID int64, kind string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.notified[userID] == nil {
		f.notified[userID] = map[string]bool{}
	}
	if f.notified[userID][kind] {
		return false, nil
	}
	f.notified[userID][kind] = true
	return true, nil
}

func (f *fakeSweepStore) SetConfessionDeliveryStatus(_ context.Context, confessionID int64, status db.DeliveryStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status == db.DeliveryAbandoned {
		f.abandoned = append(f.abandoned, confessionID)
	}
	return nil
}

func vipUser(id int64, until time.Time) db.User {
	return db.User{ID: id, VIPUntil: sql.NullString{String: db.FormatTime(until), Valid: true}}
}

func TestVIPExpiryNoticesDeduped(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.Local)
	store := newFakeSweepStore()
	store.expiring[7] = []db.User{
		vipUser(1, now.Add(6*24*time.Hour)),
		vipUser(2, now.Add(5*24*time.Hour)),
	}

	var pinged []int64
	s := New(store, session.NewStore(time.Minute), func(userID int64, _ int) {
		pinged = append(pinged, userID)
	}, 3)
	s.now = func() time.Time { return now }

	s.vipExpiryNotices(context.Background())
	if len(pinged) != 2 {
		t.Fatalf("pinged %v, want both users", pinged)
	}

	// A second pass within the same window must stay quiet.
	s.vipExpiryNotices(context.Background())
	if len(pinged) != 2 {
		t.Fatalf("window must fire once per user, pinged %v", pinged)
	}
}

func TestVIPExpiryNoticeSingleWindowPerSweep(t *testing.T) {
	t.Parallel()

	// A user lapsing tomorrow is inside all three windows; only the tightest
	// one may fire, with its daysLeft.
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.Local)
	store := newFakeSweepStore()
	store.expiring[7] = []db.User{vipUser(1, now.Add(12 * time.Hour))}

	var notices []int
	s := New(store, session.NewStore(time.Minute), func(_ int64, daysLeft int) {
		notices = append(notices, daysLeft)
	}, 3)
	s.now = func() time.Time { return now }

	s.vipExpiryNotices(context.Background())
	if len(notices) != 1 || notices[0] != 1 {
		t.Fatalf("notices = %v, want exactly [1]", notices)
	}
}

func TestVIPExpiryNoticesProgressThroughWindows(t *testing.T) {
	t.Parallel()

	until := time.Date(2024, 6, 10, 12, 0, 0, 0, time.Local)
	store := newFakeSweepStore()
	store.expiring[7] = []db.User{vipUser(1, until)}

	now := until.Add(-6 * 24 * time.Hour)
	var notices []int
	s := New(store, session.NewStore(time.Minute), func(_ int64, daysLeft int) {
		notices = append(notices, daysLeft)
	}, 3)
	s.now = func() time.Time { return now }

	// 6 days out: the 7-day window fires once.
	s.vipExpiryNotices(context.Background())
	s.vipExpiryNotices(context.Background())

	// 2 days out: the 3-day window takes over.
	now = until.Add(-2 * 24 * time.Hour)
	s.vipExpiryNotices(context.Background())

	// 12 hours out: the last-day window.
	now = until.Add(-12 * time.Hour)
	s.vipExpiryNotices(context.Background())

	// Already lapsed: nothing fires.
	now = until.Add(time.Hour)
	s.vipExpiryNotices(context.Background())

	want := []int{7, 3, 1}
	if len(notices) != len(want) {
		t.Fatalf("notices = %v, want %v", notices, want)
	}
	for i := range want {
		if notices[i] != want[i] {
			t.Fatalf("notices = %v, want %v", notices, want)
		}
	}
}

func TestReapAbandonsMidFlowConfession(t *testing.T) {
	t.Parallel()

	store := newFakeSweepStore()
	sessions := session.NewStore(time.Nanosecond)
	sess := sessions.Begin(5, session.KindConfession, "awaiting_confirmation")
	sess.Data["confession_id"] = "42"
	time.Sleep(time.Millisecond)

	s := New(store, sessions, func(int64, int) {}, 3)
	s.reapSessions(context.Background())

	if len(store.abandoned) != 1 || store.abandoned[0] != 42 {
		t.Fatalf("abandoned = %v, want [42]", store.abandoned)
	}
}
