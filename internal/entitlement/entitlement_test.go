package entitlement

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/AMOryC91/anonym/internal/db"
	apperrors "github.com/AMOryC91/anonym/internal/errors"
)

type fakeStore struct {
	users         map[int64]*db.User
	roles         map[int64]string
	clearBanCalls int
	clearVIPCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: map[int64]*db.User{},
		roles: map[int64]string{},
	}
}

func (f *fakeStore) GetUser(_ context.Context, userID int64) (*db.User, error) {
	user, ok := f.users[userID]
	if !ok {
		return nil, db.ErrNotFound
	}
	clone := *user
	return &clone, nil
}

func (f *fakeStore) SetBan(_ context.Context, userID int64, until string, reason string) error {
	user, ok := f.users[userID]
	if !ok {
		user = &db.User{ID: userID}
		f.users[userID] = user
	}
	user.Banned = true
	user.BanUntil = sql.NullString{String: until, Valid: until != ""}
	user.BanReason = reason
	return nil
}

func (f *fakeStore) ClearBan(_ context.Context, userID int64) error {
	f.clearBanCalls++
	if user, ok := f.users[userID]; ok {
		user.Banned = false
		user.BanUntil = sql.NullString{}
		user.BanReason = ""
	}
	return nil
}

func (f *fakeStore) SetVIPUntil(_ context.Context, userID int64, until string) error {
	user, ok := f.users[userID]
	if !ok {
		return db.ErrNotFound
	}
	user.VIPUntil = sql.NullString{String: until, Valid: true}
	return nil
}

func (f *fakeStore) ClearVIP(_ context.Context, userID int64) error {
	f.clearVIPCalls++
	if user, ok := f.users[userID]; ok {
		user.VIPUntil = sql.NullString{}
	}
	return nil
}

func (f *fakeStore) GetRole(_ context.Context, userID int64) (string, error) {
	return f.roles[userID], nil
}

func (f *fakeStore) SetRole(_ context.Context, userID int64, role string, _ int64) error {
	f.roles[userID] = role
	return nil
}

func (f *fakeStore) RemoveRole(_ context.Context, userID int64) error {
	delete(f.roles, userID)
	return nil
}

func newTestService(store *fakeStore, now time.Time, owners ...int64) *Service {
	svc := NewService(store, owners)
	svc.now = func() time.Time { return now }
	return svc
}

func TestIsBannedLazyExpiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.Local)
	store := newFakeStore()
	store.users[1] = &db.User{
		ID:       1,
		Banned:   true,
		BanUntil: sql.NullString{String: db.FormatTime(now.Add(-time.Hour)), Valid: true},
	}
	svc := newTestService(store, now)

	banned, err := svc.IsBanned(context.Background(), 1)
	if err != nil {
		t.Fatalf("is banned: %v", err)
	}
	if banned {
		t.Fatal("expected expired ban to read as not banned")
	}
	if store.clearBanCalls != 1 {
		t.Fatalf("expected exactly one reconcile, got %d", store.clearBanCalls)
	}

	// Second evaluation reads the already-cleared row, no second clear.
	banned, err = svc.IsBanned(context.Background(), 1)
	if err != nil {
		t.Fatalf("is banned: %v", err)
	}
	if banned {
		t.Fatal("expected not banned after reconcile")
	}
	if store.clearBanCalls != 1 {
		t.Fatalf("reconcile must be one-shot, got %d calls", store.clearBanCalls)
	}
}

func TestStatusIsPure(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.Local)
	store := newFakeStore()
	store.users[1] = &db.User{
		ID:       1,
		Banned:   true,
		BanUntil: sql.NullString{String: db.FormatTime(now.Add(-time.Hour)), Valid: true},
	}
	svc := newTestService(store, now)

	st, err := svc.Status(context.Background(), 1)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Banned {
		t.Fatal("expired ban should not read as banned")
	}
	if store.clearBanCalls != 0 {
		t.Fatal("pure read must not mutate")
	}
}

func TestIsBannedPermanent(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.users[1] = &db.User{ID: 1, Banned: true}
	svc := newTestService(store, time.Now())

	banned, err := svc.IsBanned(context.Background(), 1)
	if err != nil {
		t.Fatalf("is banned: %v", err)
	}
	if !banned {
		t.Fatal("null expiry with the flag set is a permanent ban")
	}
}

func TestIsBannedUnknownUser(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeStore(), time.Now())
	banned, err := svc.IsBanned(context.Background(), 404)
	if err != nil {
		t.Fatalf("is banned: %v", err)
	}
	if banned {
		t.Fatal("unknown user is not banned")
	}
}

func TestCorruptExpiriesFailClosed(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.users[1] = &db.User{
		ID:       1,
		Banned:   true,
		BanUntil: sql.NullString{String: "garbage", Valid: true},
		VIPUntil: sql.NullString{String: "also garbage", Valid: true},
	}
	svc := newTestService(store, time.Now())

	banned, err := svc.IsBanned(context.Background(), 1)
	if err != nil {
		t.Fatalf("is banned: %v", err)
	}
	if !banned {
		t.Fatal("corrupt ban expiry must keep the ban")
	}
	vip, err := svc.IsVIP(context.Background(), 1)
	if err != nil {
		t.Fatalf("is vip: %v", err)
	}
	if vip {
		t.Fatal("corrupt vip expiry must deny the privilege")
	}
}

func TestBanPermanentAndTimed(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.Local)
	store := newFakeStore()
	svc := newTestService(store, now)

	if err := svc.Ban(context.Background(), 7, 3, "spam"); err != nil {
		t.Fatalf("ban: %v", err)
	}
	user := store.users[7]
	if user == nil {
		t.Fatal("ban must upsert an unseen user")
	}
	if !user.BanUntil.Valid || user.BanUntil.String != db.FormatTime(now.AddDate(0, 0, 3)) {
		t.Fatalf("unexpected ban_until %+v", user.BanUntil)
	}

	if err := svc.Ban(context.Background(), 8, 0, "forever"); err != nil {
		t.Fatalf("ban: %v", err)
	}
	if store.users[8].BanUntil.Valid {
		t.Fatal("days=0 must encode a permanent ban with null expiry")
	}
}

func TestAddVIPDaysStacks(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.Local)
	store := newFakeStore()
	store.users[1] = &db.User{
		ID:       1,
		VIPUntil: sql.NullString{String: db.FormatTime(now.AddDate(0, 0, 10)), Valid: true},
	}
	svc := newTestService(store, now)

	if err := svc.AddVIPDays(context.Background(), 1, 5); err != nil {
		t.Fatalf("add vip days: %v", err)
	}
	want := db.FormatTime(now.AddDate(0, 0, 15))
	if got := store.users[1].VIPUntil.String; got != want {
		t.Fatalf("vip_until = %s, want %s", got, want)
	}
}

func TestAddVIPDaysFromNowWhenExpired(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.Local)
	store := newFakeStore()
	store.users[1] = &db.User{
		ID:       1,
		VIPUntil: sql.NullString{String: db.FormatTime(now.AddDate(0, 0, -2)), Valid: true},
	}
	svc := newTestService(store, now)

	if err := svc.AddVIPDays(context.Background(), 1, 5); err != nil {
		t.Fatalf("add vip days: %v", err)
	}
	want := db.FormatTime(now.AddDate(0, 0, 5))
	if got := store.users[1].VIPUntil.String; got != want {
		t.Fatalf("vip_until = %s, want %s", got, want)
	}
}

func TestAddVIPDaysUnknownUser(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeStore(), time.Now())
	err := svc.AddVIPDays(context.Background(), 404, 5)
	if !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected not found for a never-seen user, got %v", err)
	}
}

func TestRoleOrdering(t *testing.T) {
	t.Parallel()

	cases := []struct {
		role Role
		min  Role
		want bool
	}{
		{RoleIntern, RoleIntern, true},
		{RoleIntern, RoleModerator, false},
		{RoleModerator, RoleIntern, true},
		{RoleAdmin, RoleModerator, true},
		{RoleOwner, RoleAdmin, true},
		{RoleNone, RoleIntern, false},
	}
	for _, tc := range cases {
		if got := tc.role.AtLeast(tc.min); got != tc.want {
			t.Errorf("%q.AtLeast(%q) = %v, want %v", tc.role, tc.min, got, tc.want)
		}
	}
}

func TestGrantRoleOwnerOnly(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.roles[2] = string(RoleAdmin)
	svc := newTestService(store, time.Now(), 1)

	if err := svc.GrantRole(context.Background(), 2, 3, RoleModerator); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Fatalf("admin granting roles should be unauthorized, got %v", err)
	}
	if err := svc.GrantRole(context.Background(), 1, 3, RoleModerator); err != nil {
		t.Fatalf("owner grant: %v", err)
	}
	if store.roles[3] != string(RoleModerator) {
		t.Fatalf("role not persisted: %q", store.roles[3])
	}
	if err := svc.GrantRole(context.Background(), 1, 3, RoleOwner); !errors.Is(err, apperrors.ErrPolicyViolation) {
		t.Fatalf("owner role must not be grantable, got %v", err)
	}
}

func TestRevokeRoleProtectsConfiguredOwner(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := newTestService(store, time.Now(), 1, 2)

	if err := svc.RevokeRole(context.Background(), 1, 2); !errors.Is(err, apperrors.ErrPolicyViolation) {
		t.Fatalf("configured owner must not be revocable, got %v", err)
	}
}

func TestConfiguredOwnerIsOwner(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeStore(), time.Now(), 42)
	role, err := svc.RoleOf(context.Background(), 42)
	if err != nil {
		t.Fatalf("role of: %v", err)
	}
	if role != RoleOwner {
		t.Fatalf("configured owner resolved to %q", role)
	}
}
