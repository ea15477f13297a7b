package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AMOryC91/anonym/internal/db"
)

func newTestClient(t *testing.T) *sqliteClient {
	t.Helper()
	client, err := NewSQLiteClient(context.Background(), t.TempDir(), "test.db")
	if err != nil {
		t.Fatalf("open client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func seedUser(t *testing.T, client *sqliteClient, id int64, username string) {
	t.Helper()
	if err := client.UpsertUser(context.Background(), &db.User{ID: id, Username: username, FullName: "User " + username}); err != nil {
		t.Fatalf("seed user %d: %v", id, err)
	}
}

func TestUpsertUserRoundtrip(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	ctx := context.Background()
	seedUser(t, client, 1, "alice")

	// Second upsert updates in place.
	if err := client.UpsertUser(ctx, &db.User{ID: 1, Username: "alice_new", FullName: "Alice"}); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	user, err := client.GetUser(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if user.Username != "alice_new" {
		t.Fatalf("username = %q", user.Username)
	}

	// Username lookup is case-insensitive.
	if _, err := client.GetUserByUsername(ctx, "ALICE_NEW"); err != nil {
		t.Fatalf("lookup by username: %v", err)
	}
	if _, err := client.GetUser(ctx, 404); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("missing user: %v", err)
	}
}

func TestBanUpsertsUnseenUser(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	ctx := context.Background()

	if err := client.SetBan(ctx, 99, "", "spam"); err != nil {
		t.Fatalf("set ban: %v", err)
	}
	user, err := client.GetUser(ctx, 99)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !user.Banned || user.BanUntil.Valid || user.BanReason != "spam" {
		t.Fatalf("unexpected row %+v", user)
	}

	if err := client.ClearBan(ctx, 99); err != nil {
		t.Fatalf("clear: %v", err)
	}
	user, _ = client.GetUser(ctx, 99)
	if user.Banned || user.BanReason != "" {
		t.Fatalf("ban not cleared: %+v", user)
	}
}

func TestPromoActivationAtomicity(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	ctx := context.Background()
	seedUser(t, client, 1, "alice")
	seedUser(t, client, 2, "bob")
	seedUser(t, client, 3, "carol")

	if err := client.CreatePromoCode(ctx, &db.PromoCode{
		Code: "gold", Activations: 2, ActivationsLeft: 2, VIPDays: 30, CreatedBy: 1,
	}); err != nil {
		t.Fatalf("create promo: %v", err)
	}

	// Codes are case-insensitive.
	days, err := client.ActivatePromoCode(ctx, 1, "GoLd")
	if err != nil || days != 30 {
		t.Fatalf("activate: days=%d err=%v", days, err)
	}
	// Same user again: rejected before the counter is touched.
	if _, err := client.ActivatePromoCode(ctx, 1, "GOLD"); !errors.Is(err, db.ErrPromoAlreadyActivated) {
		t.Fatalf("double activation: %v", err)
	}
	if _, err := client.ActivatePromoCode(ctx, 2, "gold"); err != nil {
		t.Fatalf("second user: %v", err)
	}
	// Exhausted now.
	if _, err := client.ActivatePromoCode(ctx, 3, "gold"); !errors.Is(err, db.ErrPromoExhausted) {
		t.Fatalf("exhausted code: %v", err)
	}
	if _, err := client.ActivatePromoCode(ctx, 3, "nope"); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("unknown code: %v", err)
	}

	promo, err := client.GetPromoCode(ctx, "gold")
	if err != nil {
		t.Fatalf("get promo: %v", err)
	}
	if promo.ActivationsLeft != 0 {
		t.Fatalf("activations_left = %d", promo.ActivationsLeft)
	}
	activations, err := client.ListPromoActivations(ctx, "gold")
	if err != nil || len(activations) != 2 {
		t.Fatalf("activations = %v err=%v", activations, err)
	}
}

func TestPromoActivationGrantsVIPInSameTransaction(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	ctx := context.Background()
	seedUser(t, client, 1, "alice")
	seedUser(t, client, 2, "bob")

	if err := client.CreatePromoCode(ctx, &db.PromoCode{
		Code: "stack", Activations: 5, ActivationsLeft: 5, VIPDays: 30, CreatedBy: 1,
	}); err != nil {
		t.Fatalf("create promo: %v", err)
	}

	// Fresh grant: expiry lands ~30 days out.
	if _, err := client.ActivatePromoCode(ctx, 1, "stack"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	user, err := client.GetUser(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !user.VIPUntil.Valid {
		t.Fatal("activation must grant vip in the same transaction")
	}
	until, err := time.ParseInLocation(db.TimeLayout, user.VIPUntil.String, time.Local)
	if err != nil {
		t.Fatalf("parse vip_until %q: %v", user.VIPUntil.String, err)
	}
	if until.Before(time.Now().AddDate(0, 0, 29)) || until.After(time.Now().AddDate(0, 0, 31)) {
		t.Fatalf("vip_until = %s, want ~30 days out", user.VIPUntil.String)
	}

	// A running VIP period stacks instead of resetting.
	existing := db.FormatTime(time.Now().AddDate(0, 0, 10))
	if err := client.SetVIPUntil(ctx, 2, existing); err != nil {
		t.Fatalf("seed vip: %v", err)
	}
	if _, err := client.ActivatePromoCode(ctx, 2, "stack"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	user, _ = client.GetUser(ctx, 2)
	until, err = time.ParseInLocation(db.TimeLayout, user.VIPUntil.String, time.Local)
	if err != nil {
		t.Fatalf("parse vip_until %q: %v", user.VIPUntil.String, err)
	}
	if until.Before(time.Now().AddDate(0, 0, 39)) {
		t.Fatalf("vip_until = %s, want the 30 days stacked on the running 10", user.VIPUntil.String)
	}
}

func TestRevealStatusGuardedTransitions(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	ctx := context.Background()
	seedUser(t, client, 1, "alice")
	seedUser(t, client, 2, "bob")

	id, err := client.CreateConfession(ctx, &db.Confession{
		FromUser: 1, ToUser: 2, Text: "hi",
		RevealStatus: db.RevealNone, DeliveryStatus: db.DeliveryPending,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	moved, err := client.AdvanceRevealStatus(ctx, id, db.RevealNone, db.RevealRequested)
	if err != nil || !moved {
		t.Fatalf("first transition: moved=%v err=%v", moved, err)
	}
	// Same transition again loses the guard.
	moved, err = client.AdvanceRevealStatus(ctx, id, db.RevealNone, db.RevealRequested)
	if err != nil || moved {
		t.Fatalf("replayed transition must not move: moved=%v err=%v", moved, err)
	}
	moved, err = client.AdvanceRevealStatus(ctx, id, db.RevealRequested, db.RevealAllowed)
	if err != nil || !moved {
		t.Fatalf("answer transition: moved=%v err=%v", moved, err)
	}
	row, err := client.GetConfession(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if row.RevealStatus != db.RevealAllowed {
		t.Fatalf("reveal status = %q", row.RevealStatus)
	}
}

func TestWarningCountInTransaction(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	ctx := context.Background()
	seedUser(t, client, 1, "alice")

	for want := 1; want <= 3; want++ {
		count, err := client.AddWarning(ctx, &db.Warning{UserID: 1, AdminID: 9, Reason: "rude"})
		if err != nil {
			t.Fatalf("warning %d: %v", want, err)
		}
		if count != want {
			t.Fatalf("count = %d, want %d", count, want)
		}
	}
	if err := client.RemoveLatestWarning(ctx, 1); err != nil {
		t.Fatalf("remove latest: %v", err)
	}
	warnings, err := client.ListWarnings(ctx, 1)
	if err != nil || len(warnings) != 2 {
		t.Fatalf("warnings = %d err=%v", len(warnings), err)
	}
}

func TestBlacklistStoredLowercaseUnique(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	ctx := context.Background()

	added, err := client.AddBlacklistWord(ctx, "spam")
	if err != nil || !added {
		t.Fatalf("add: added=%v err=%v", added, err)
	}
	added, err = client.AddBlacklistWord(ctx, "spam")
	if err != nil || added {
		t.Fatalf("duplicate add: added=%v err=%v", added, err)
	}
	words, err := client.ListBlacklistWords(ctx)
	if err != nil || len(words) != 1 {
		t.Fatalf("words = %v err=%v", words, err)
	}
}

func TestWhoisGameGuards(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	ctx := context.Background()
	seedUser(t, client, 1, "alice")
	seedUser(t, client, 2, "bob")

	gameID, err := client.CreateWhoisGame(ctx, 1, "tok-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Creator cannot join their own game.
	joined, err := client.JoinWhoisGame(ctx, gameID, 1)
	if err != nil || joined {
		t.Fatalf("self join: joined=%v err=%v", joined, err)
	}
	joined, err = client.JoinWhoisGame(ctx, gameID, 2)
	if err != nil || !joined {
		t.Fatalf("join: joined=%v err=%v", joined, err)
	}
	// No longer waiting.
	joined, err = client.JoinWhoisGame(ctx, gameID, 3)
	if err != nil || joined {
		t.Fatalf("late join: joined=%v err=%v", joined, err)
	}

	for i := 0; i < 3; i++ {
		bumped, err := client.IncrementQuestionsAsked(ctx, gameID, 3)
		if err != nil || !bumped {
			t.Fatalf("question %d: bumped=%v err=%v", i+1, bumped, err)
		}
	}
	bumped, err := client.IncrementQuestionsAsked(ctx, gameID, 3)
	if err != nil || bumped {
		t.Fatalf("budget overflow: bumped=%v err=%v", bumped, err)
	}

	completed, err := client.CompleteWhoisGame(ctx, gameID, 2)
	if err != nil || !completed {
		t.Fatalf("complete: completed=%v err=%v", completed, err)
	}
	completed, err = client.CompleteWhoisGame(ctx, gameID, 1)
	if err != nil || completed {
		t.Fatalf("double complete: completed=%v err=%v", completed, err)
	}

	game, err := client.GetWhoisGameByToken(ctx, "tok-1")
	if err != nil {
		t.Fatalf("by token: %v", err)
	}
	if game.Status != db.GameCompleted || game.WinnerID != 2 {
		t.Fatalf("unexpected game %+v", game)
	}
}

func TestAdminLogListRespectsLimit(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	ctx := context.Background()

	for _, action := range []string{"ban", "unban", "warn"} {
		if err := client.AddAdminLog(ctx, &db.AdminLog{AdminID: 1, Action: action, Details: "user=5"}); err != nil {
			t.Fatalf("add log %s: %v", action, err)
		}
	}
	entries, err := client.ListAdminLogs(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len = %d, want the limit applied", len(entries))
	}
	entries, err = client.ListAdminLogs(ctx, 10)
	if err != nil || len(entries) != 3 {
		t.Fatalf("full list = %d err=%v", len(entries), err)
	}
}

func TestSettingsRoundtrip(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	ctx := context.Background()

	value, err := client.GetSetting(ctx, db.KeyMaintenanceEnabled)
	if err != nil || value != "" {
		t.Fatalf("unset key: %q err=%v", value, err)
	}
	if err := client.SetSetting(ctx, db.KeyMaintenanceEnabled, "1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := client.SetSetting(ctx, db.KeyMaintenanceEnabled, "0"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	value, err = client.GetSetting(ctx, db.KeyMaintenanceEnabled)
	if err != nil || value != "0" {
		t.Fatalf("get: %q err=%v", value, err)
	}

	toggles, err := db.LoadToggles(ctx, client)
	if err != nil {
		t.Fatalf("load toggles: %v", err)
	}
	if toggles.Maintenance {
		t.Fatal("maintenance must read as off")
	}
}

func TestAchievementAwardOnce(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	ctx := context.Background()
	seedUser(t, client, 1, "alice")

	achID, err := client.CreateAchievement(ctx, "received_10", "Received 10 confessions")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	awarded, err := client.AwardAchievement(ctx, 1, achID)
	if err != nil || !awarded {
		t.Fatalf("award: awarded=%v err=%v", awarded, err)
	}
	awarded, err = client.AwardAchievement(ctx, 1, achID)
	if err != nil || awarded {
		t.Fatalf("re-award must be a no-op: awarded=%v err=%v", awarded, err)
	}

	first, err := client.MarkNotified(ctx, 1, "vip_expiry_7")
	if err != nil || !first {
		t.Fatalf("mark notified: first=%v err=%v", first, err)
	}
	first, err = client.MarkNotified(ctx, 1, "vip_expiry_7")
	if err != nil || first {
		t.Fatalf("repeat notification must dedupe: first=%v err=%v", first, err)
	}
}

func TestCountConfessionsReceivedCountsDeliveredOnly(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	ctx := context.Background()
	seedUser(t, client, 1, "alice")
	seedUser(t, client, 2, "bob")

	delivered, err := client.CreateConfession(ctx, &db.Confession{
		FromUser: 1, ToUser: 2, Text: "a",
		RevealStatus: db.RevealNone, DeliveryStatus: db.DeliveryPending,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := client.SetConfessionDeliveryStatus(ctx, delivered, db.DeliveryDelivered); err != nil {
		t.Fatalf("mark delivered: %v", err)
	}
	if _, err := client.CreateConfession(ctx, &db.Confession{
		FromUser: 1, ToUser: 2, Text: "b",
		RevealStatus: db.RevealNone, DeliveryStatus: db.DeliveryAbandoned,
	}); err != nil {
		t.Fatalf("create abandoned: %v", err)
	}

	count, err := client.CountConfessionsReceived(ctx, 2)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, abandoned rows must not count", count)
	}
}
