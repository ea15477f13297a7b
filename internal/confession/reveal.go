package confession

import (
	"context"
	stderrors "errors"

	"github.com/AMOryC91/anonym/internal/db"
	apperrors "github.com/AMOryC91/anonym/internal/errors"
)

// RequestReveal moves a confession from none to requested. Only the recipient
// may ask; a repeat press or a decided reveal is an illegal transition.
func (s *Service) RequestReveal(ctx context.Context, confessionID, actorID int64) error {
	confession, err := s.store.GetConfession(ctx, confessionID)
	if stderrors.Is(err, db.ErrNotFound) {
		return apperrors.ErrNotFound
	}
	if err != nil {
		return err
	}
	if actorID != confession.ToUser {
		return apperrors.ErrUnauthorized
	}
	moved, err := s.store.AdvanceRevealStatus(ctx, confessionID, db.RevealNone, db.RevealRequested)
	if err != nil {
		return err
	}
	if !moved {
		return apperrors.ErrIllegalTransition
	}
	return nil
}

// AnswerReveal settles a pending request. Only the sender decides, the answer
// is final, and a second answer loses the race on the guarded update.
func (s *Service) AnswerReveal(ctx context.Context, confessionID, actorID int64, allow bool) error {
	confession, err := s.store.GetConfession(ctx, confessionID)
	if stderrors.Is(err, db.ErrNotFound) {
		return apperrors.ErrNotFound
	}
	if err != nil {
		return err
	}
	if actorID != confession.FromUser {
		return apperrors.ErrUnauthorized
	}
	to := db.RevealDenied
	if allow {
		to = db.RevealAllowed
	}
	moved, err := s.store.AdvanceRevealStatus(ctx, confessionID, db.RevealRequested, to)
	if err != nil {
		return err
	}
	if !moved {
		return apperrors.ErrIllegalTransition
	}
	return nil
}
