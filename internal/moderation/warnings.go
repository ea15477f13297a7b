package moderation

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/AMOryC91/anonym/internal/db"
)

// AutoBanThreshold is the warning count at which a user is permanently banned.
const AutoBanThreshold = 3

// AutoBanReason is the system reason written on threshold bans so they are
// distinguishable from manual ones.
const AutoBanReason = "automatic ban: 3 warnings"

type warningStore interface {
	AddWarning(ctx context.Context, w *db.Warning) (int, error)
	RemoveLatestWarning(ctx context.Context, userID int64) error
	ListWarnings(ctx context.Context, userID int64) ([]db.Warning, error)
}

type banner interface {
	Ban(ctx context.Context, userID int64, days int, reason string) error
}

// Warner applies warnings and escalates to a permanent ban at the threshold.
type Warner struct {
	store  warningStore
	banner banner
}

func NewWarner(store warningStore, banner banner) *Warner {
	return &Warner{store: store, banner: banner}
}

// Warn records a warning against the user. When the resulting count reaches
// the threshold the user is permanently banned with the system reason, and
// banned=true tells the caller to report the escalation distinctly.
func (w *Warner) Warn(ctx context.Context, userID, adminID int64, reason string) (banned bool, count int, err error) {
	count, err = w.store.AddWarning(ctx, &db.Warning{
		UserID:  userID,
		AdminID: adminID,
		Reason:  reason,
	})
	if err != nil {
		return false, 0, errors.WithMessage(err, "add warning")
	}
	if count < AutoBanThreshold {
		return false, count, nil
	}
	if err := w.banner.Ban(ctx, userID, 0, AutoBanReason); err != nil {
		return false, count, errors.WithMessage(err, "auto ban")
	}
	log.WithFields(log.Fields{
		"user_id":  userID,
		"admin_id": adminID,
		"count":    count,
	}).Warn("warning threshold reached, user banned")
	return true, count, nil
}

// Unwarn drops the most recent warning. It never un-bans: lifting a threshold
// ban is an explicit moderator decision.
func (w *Warner) Unwarn(ctx context.Context, userID int64) error {
	return w.store.RemoveLatestWarning(ctx, userID)
}

func (w *Warner) List(ctx context.Context, userID int64) ([]db.Warning, error) {
	return w.store.ListWarnings(ctx, userID)
}
