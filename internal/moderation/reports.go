package moderation

import (
	"context"
	stderrors "errors"

	"github.com/pkg/errors"

	"github.com/AMOryC91/anonym/internal/db"
	apperrors "github.com/AMOryC91/anonym/internal/errors"
)

type reportStore interface {
	CreateReport(ctx context.Context, confessionID, reporterID int64) (int64, error)
	GetReport(ctx context.Context, reportID int64) (*db.Report, error)
	DeleteReport(ctx context.Context, reportID int64) error
	ListReports(ctx context.Context) ([]db.Report, error)
	GetConfession(ctx context.Context, confessionID int64) (*db.Confession, error)
}

// Reports is the moderation report queue: recipients file, moderators either
// resolve with a ban or dismiss. Both outcomes consume the report.
type Reports struct {
	store  reportStore
	banner banner
}

func NewReports(store reportStore, banner banner) *Reports {
	return &Reports{store: store, banner: banner}
}

// File records a report against a delivered confession and returns its id
// together with the offending confession for relay to the report channel.
func (r *Reports) File(ctx context.Context, confessionID, reporterID int64) (int64, *db.Confession, error) {
	confession, err := r.store.GetConfession(ctx, confessionID)
	if stderrors.Is(err, db.ErrNotFound) {
		return 0, nil, apperrors.ErrNotFound
	}
	if err != nil {
		return 0, nil, errors.WithMessage(err, "get confession")
	}
	if reporterID != confession.ToUser {
		// Only the recipient of a confession can report it.
		return 0, nil, apperrors.ErrUnauthorized
	}
	reportID, err := r.store.CreateReport(ctx, confessionID, reporterID)
	if err != nil {
		return 0, nil, errors.WithMessage(err, "create report")
	}
	return reportID, confession, nil
}

// ResolveBan bans the reported confession's sender for the given number of
// days (0 is permanent) and consumes the report. Returns the banned user id.
func (r *Reports) ResolveBan(ctx context.Context, reportID int64, days int, reason string) (int64, error) {
	report, err := r.store.GetReport(ctx, reportID)
	if stderrors.Is(err, db.ErrNotFound) {
		return 0, apperrors.ErrNotFound
	}
	if err != nil {
		return 0, errors.WithMessage(err, "get report")
	}
	confession, err := r.store.GetConfession(ctx, report.ConfessionID)
	if err != nil {
		return 0, errors.WithMessage(err, "get reported confession")
	}
	if err := r.banner.Ban(ctx, confession.FromUser, days, reason); err != nil {
		return 0, errors.WithMessage(err, "ban reported sender")
	}
	if err := r.store.DeleteReport(ctx, reportID); err != nil {
		return 0, errors.WithMessage(err, "consume report")
	}
	return confession.FromUser, nil
}

// Dismiss consumes the report without sanction.
func (r *Reports) Dismiss(ctx context.Context, reportID int64) error {
	err := r.store.DeleteReport(ctx, reportID)
	if stderrors.Is(err, db.ErrNotFound) {
		return apperrors.ErrNotFound
	}
	return err
}

func (r *Reports) List(ctx context.Context) ([]db.Report, error) {
	return r.store.ListReports(ctx)
}
