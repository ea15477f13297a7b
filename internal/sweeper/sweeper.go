// Package sweeper runs the periodic hygiene jobs: purging stale confessions
// and reports, reaping idle conversation flows and queueing VIP expiry
// reminders.
package sweeper

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-co-op/gocron/v2"
	log "github.com/sirupsen/logrus"

	"github.com/AMOryC91/anonym/internal/db"
	"github.com/AMOryC91/anonym/internal/session"
)

// vipNoticeWindows are the days-before-expiry marks a reminder goes out at.
var vipNoticeWindows = []int{7, 3, 1}

type store interface {
	PurgeConfessionsOlderThan(ctx context.Context, days int) (int64, error)
	PurgeReportsOlderThan(ctx context.Context, days int) (int64, error)
	ListVIPExpiringWithin(ctx context.Context, days int) ([]db.User, error)
	MarkNotified(ctx context.Context, userID int64, kind string) (bool, error)
	SetConfessionDeliveryStatus(ctx context.Context, confessionID int64, status db.DeliveryStatus) error
}

type Sweeper struct {
	store         store
	sessions      *session.Store
	notify        func(userID int64, daysLeft int)
	retentionDays int
	scheduler     gocron.Scheduler
	now           func() time.Time
}

func New(store store, sessions *session.Store, notify func(userID int64, daysLeft int), retentionDays int) *Sweeper {
	return &Sweeper{
		store:         store,
		sessions:      sessions,
		notify:        notify,
		retentionDays: retentionDays,
		now:           time.Now,
	}
}

// Start schedules the jobs and runs them until Stop.
func (s *Sweeper) Start(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	s.scheduler = scheduler

	jobs := []struct {
		every time.Duration
		name  string
		run   func(context.Context)
	}{
		{time.Hour, "purge_confessions", s.purgeConfessions},
		{6 * time.Hour, "purge_reports", s.purgeReports},
		{time.Minute, "reap_sessions", s.reapSessions},
		{12 * time.Hour, "vip_expiry_notices", s.vipExpiryNotices},
	}
	for _, job := range jobs {
		job := job
		_, err := scheduler.NewJob(
			gocron.DurationJob(job.every),
			gocron.NewTask(func() { job.run(ctx) }),
			gocron.WithName(job.name),
		)
		if err != nil {
			return fmt.Errorf("schedule %s: %w", job.name, err)
		}
	}

	scheduler.Start()
	return nil
}

func (s *Sweeper) Stop() {
	if s.scheduler != nil {
		if err := s.scheduler.Shutdown(); err != nil {
			log.WithError(err).Error("cant shut down sweeper")
		}
	}
}

func (s *Sweeper) purgeConfessions(ctx context.Context) {
	purged, err := s.store.PurgeConfessionsOlderThan(ctx, s.retentionDays)
	if err != nil {
		log.WithError(err).Error("cant purge confessions")
		return
	}
	if purged > 0 {
		log.WithField("purged", purged).Info("stale confessions purged")
	}
}

func (s *Sweeper) purgeReports(ctx context.Context) {
	purged, err := s.store.PurgeReportsOlderThan(ctx, 30)
	if err != nil {
		log.WithError(err).Error("cant purge reports")
		return
	}
	if purged > 0 {
		log.WithField("purged", purged).Info("stale reports purged")
	}
}

// reapSessions drops idle flows and marks any confession row stuck mid-flow
// as abandoned so it never reads as deliverable.
func (s *Sweeper) reapSessions(ctx context.Context) {
	for _, reaped := range s.sessions.Reap() {
		if reaped.Kind != session.KindConfession {
			continue
		}
		raw, ok := reaped.Data["confession_id"]
		if !ok {
			continue
		}
		confessionID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		if err := s.store.SetConfessionDeliveryStatus(ctx, confessionID, db.DeliveryAbandoned); err != nil {
			log.WithError(err).WithField("confession_id", confessionID).Error("cant abandon reaped confession")
		}
	}
}

// vipExpiryNotices reminds users whose VIP lapses soon. The windows are
// nested, so each user is mapped onto the single tightest one that still
// covers their remaining time; one sweep sends at most one notice per user,
// and each window fires at most once per user, deduped through the
// notifications table.
func (s *Sweeper) vipExpiryNotices(ctx context.Context) {
	users, err := s.store.ListVIPExpiringWithin(ctx, vipNoticeWindows[0])
	if err != nil {
		log.WithError(err).Error("cant list expiring vips")
		return
	}
	now := s.now()
	for _, user := range users {
		if !user.VIPUntil.Valid {
			continue
		}
		until, err := time.ParseInLocation(db.TimeLayout, user.VIPUntil.String, time.Local)
		if err != nil {
			log.WithError(err).WithField("user_id", user.ID).Warn("corrupt vip expiry, skipping notice")
			continue
		}
		window, ok := nearestWindow(until.Sub(now))
		if !ok {
			continue
		}
		first, err := s.store.MarkNotified(ctx, user.ID, fmt.Sprintf("vip_expiry_%d", window))
		if err != nil {
			log.WithError(err).WithField("user_id", user.ID).Error("cant mark vip notice")
			continue
		}
		if !first {
			continue
		}
		s.notify(user.ID, window)
	}
}

// nearestWindow maps the remaining VIP time onto the tightest reminder mark
// that still covers it.
func nearestWindow(left time.Duration) (int, bool) {
	if left <= 0 {
		return 0, false
	}
	daysLeft := left.Hours() / 24
	for i := len(vipNoticeWindows) - 1; i >= 0; i-- {
		if daysLeft <= float64(vipNoticeWindows[i]) {
			return vipNoticeWindows[i], true
		}
	}
	return 0, false
}
