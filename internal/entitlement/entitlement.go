// Package entitlement computes and mutates the ban/VIP/role status of users.
// Reads are effective-state reads: an expired ban is reported as not banned
// before the row is ever touched, and a separate idempotent reconcile clears
// it. Corrupt stored expiries resolve fail-closed: a ban stays a ban, a VIP
// grant is denied.
package entitlement

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/AMOryC91/anonym/internal/db"
	apperrors "github.com/AMOryC91/anonym/internal/errors"
)

type store interface {
	GetUser(ctx context.Context, userID int64) (*db.User, error)
	SetBan(ctx context.Context, userID int64, until string, reason string) error
	ClearBan(ctx context.Context, userID int64) error
	SetVIPUntil(ctx context.Context, userID int64, until string) error
	ClearVIP(ctx context.Context, userID int64) error
	GetRole(ctx context.Context, userID int64) (string, error)
	SetRole(ctx context.Context, userID int64, role string, grantedBy int64) error
	RemoveRole(ctx context.Context, userID int64) error
}

// Status is the effective entitlement view of one user at one instant.
type Status struct {
	Banned       bool
	BanPermanent bool
	BanUntil     time.Time
	BanReason    string
	// banExpired marks a row whose ban flag is still set but whose expiry
	// has passed; IsBanned reconciles it away.
	banExpired bool

	VIP      bool
	VIPUntil time.Time
}

type Service struct {
	store  store
	owners map[int64]struct{}
	now    func() time.Time
}

func NewService(store store, owners []int64) *Service {
	ownerSet := make(map[int64]struct{}, len(owners))
	for _, id := range owners {
		ownerSet[id] = struct{}{}
	}
	return &Service{
		store:  store,
		owners: ownerSet,
		now:    time.Now,
	}
}

// Status is the pure read path: no side effects, ever.
func (s *Service) Status(ctx context.Context, userID int64) (Status, error) {
	user, err := s.store.GetUser(ctx, userID)
	if stderrors.Is(err, db.ErrNotFound) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, errors.WithMessage(err, "get user")
	}
	return s.statusOf(user), nil
}

func (s *Service) statusOf(user *db.User) Status {
	st := Status{BanReason: user.BanReason}
	now := s.now()

	if user.Banned {
		switch {
		case !user.BanUntil.Valid:
			st.Banned = true
			st.BanPermanent = true
		default:
			until, err := time.ParseInLocation(db.TimeLayout, user.BanUntil.String, time.Local)
			if err != nil {
				// Corrupt expiry must not grant access.
				log.WithError(err).WithField("user_id", user.ID).Error("corrupt ban expiry, keeping ban")
				st.Banned = true
				st.BanPermanent = true
			} else if now.After(until) {
				st.banExpired = true
			} else {
				st.Banned = true
				st.BanUntil = until
			}
		}
	}

	if user.VIPUntil.Valid {
		until, err := time.ParseInLocation(db.TimeLayout, user.VIPUntil.String, time.Local)
		if err != nil {
			// Corrupt expiry must not grant privilege either.
			log.WithError(err).WithField("user_id", user.ID).Error("corrupt vip expiry, denying vip")
		} else if until.After(now) {
			st.VIP = true
			st.VIPUntil = until
		}
	}

	return st
}

// IsBanned reports the effective ban state and lazily clears a ban whose
// expiry has passed. The clear is idempotent; racing evaluations both end up
// with an unbanned row.
func (s *Service) IsBanned(ctx context.Context, userID int64) (bool, error) {
	st, err := s.Status(ctx, userID)
	if err != nil {
		return false, err
	}
	if st.banExpired {
		if err := s.store.ClearBan(ctx, userID); err != nil {
			log.WithError(err).WithField("user_id", userID).Error("cant clear expired ban")
		}
		return false, nil
	}
	return st.Banned, nil
}

// Ban bans the user for the given number of days; days <= 0 means permanent.
// Unseen users are upserted so moderators can pre-ban an abuser.
func (s *Service) Ban(ctx context.Context, userID int64, days int, reason string) error {
	until := ""
	if days > 0 {
		until = db.FormatTime(s.now().AddDate(0, 0, days))
	}
	return s.store.SetBan(ctx, userID, until, reason)
}

func (s *Service) Unban(ctx context.Context, userID int64) error {
	return s.store.ClearBan(ctx, userID)
}

func (s *Service) IsVIP(ctx context.Context, userID int64) (bool, error) {
	st, err := s.Status(ctx, userID)
	if err != nil {
		return false, err
	}
	return st.VIP, nil
}

// AddVIPDays extends VIP from the current expiry if it is still in the
// future, else from now. It never shortens an existing period.
func (s *Service) AddVIPDays(ctx context.Context, userID int64, days int) error {
	st, err := s.Status(ctx, userID)
	if err != nil {
		return err
	}
	base := s.now()
	if st.VIP && st.VIPUntil.After(base) {
		base = st.VIPUntil
	}
	return s.store.SetVIPUntil(ctx, userID, db.FormatTime(base.AddDate(0, 0, days)))
}

func (s *Service) RemoveVIP(ctx context.Context, userID int64) error {
	return s.store.ClearVIP(ctx, userID)
}

// RoleOf resolves the user's moderation role. Configured owners are owners
// regardless of the role table, so a damaged table cannot lock them out.
func (s *Service) RoleOf(ctx context.Context, userID int64) (Role, error) {
	if _, ok := s.owners[userID]; ok {
		return RoleOwner, nil
	}
	raw, err := s.store.GetRole(ctx, userID)
	if err != nil {
		return RoleNone, errors.WithMessage(err, "get role")
	}
	role, ok := ParseRole(raw)
	if !ok {
		return RoleNone, nil
	}
	return role, nil
}

func (s *Service) HasRole(ctx context.Context, userID int64, min Role) (bool, error) {
	role, err := s.RoleOf(ctx, userID)
	if err != nil {
		return false, err
	}
	return role.AtLeast(min), nil
}

// GrantRole assigns intern/moderator/admin. Only owners may grant, and the
// owner role itself is configuration, not grantable.
func (s *Service) GrantRole(ctx context.Context, actorID, userID int64, role Role) error {
	actorRole, err := s.RoleOf(ctx, actorID)
	if err != nil {
		return err
	}
	if actorRole != RoleOwner {
		return apperrors.ErrUnauthorized
	}
	if !role.Valid() || role == RoleOwner {
		return apperrors.ErrPolicyViolation
	}
	return s.store.SetRole(ctx, userID, string(role), actorID)
}

func (s *Service) RevokeRole(ctx context.Context, actorID, userID int64) error {
	actorRole, err := s.RoleOf(ctx, actorID)
	if err != nil {
		return err
	}
	if actorRole != RoleOwner {
		return apperrors.ErrUnauthorized
	}
	if _, ok := s.owners[userID]; ok {
		return apperrors.ErrPolicyViolation
	}
	return s.store.RemoveRole(ctx, userID)
}
