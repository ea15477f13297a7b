// Package confession implements the anonymous delivery protocol: a per-sender
// composition flow, the delivery hand-off through a Courier, and the one-way
// identity reveal exchange between recipient and sender.
package confession

import (
	"context"
	stderrors "errors"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/AMOryC91/anonym/internal/db"
	apperrors "github.com/AMOryC91/anonym/internal/errors"
	"github.com/AMOryC91/anonym/internal/session"
)

// Composition states.
const (
	StateAwaitingText         = "awaiting_text"
	StateAwaitingMedia        = "awaiting_media"
	StateAwaitingConfirmation = "awaiting_confirmation"
)

const (
	dataTarget       = "target"
	dataConfessionID = "confession_id"
)

type store interface {
	CreateConfession(ctx context.Context, c *db.Confession) (int64, error)
	GetConfession(ctx context.Context, confessionID int64) (*db.Confession, error)
	SetConfessionMedia(ctx context.Context, confessionID int64, mediaType, fileID string) error
	SetConfessionMessageID(ctx context.Context, confessionID int64, messageID int) error
	SetConfessionDeliveryStatus(ctx context.Context, confessionID int64, status db.DeliveryStatus) error
	AdvanceRevealStatus(ctx context.Context, confessionID int64, from, to db.RevealStatus) (bool, error)
	DeleteConfession(ctx context.Context, confessionID int64) error
}

type textGate interface {
	CheckText(ctx context.Context, text string) (bool, string, error)
}

type vipChecker interface {
	IsVIP(ctx context.Context, userID int64) (bool, error)
}

// Courier is the outbound side of delivery. The front end implements it over
// the bot platform; tests swap it for a fake.
type Courier interface {
	DeliverConfession(ctx context.Context, c *db.Confession) (messageID int, err error)
}

type Service struct {
	store      store
	gate       textGate
	vip        vipChecker
	sessions   *session.Store
	courier    Courier
	maxText    int
	editWindow time.Duration
	now        func() time.Time
}

func NewService(store store, gate textGate, vip vipChecker, sessions *session.Store, courier Courier, maxText int, editWindow time.Duration) *Service {
	return &Service{
		store:      store,
		gate:       gate,
		vip:        vip,
		sessions:   sessions,
		courier:    courier,
		maxText:    maxText,
		editWindow: editWindow,
		now:        time.Now,
	}
}

// TextResult tells the handler where the flow went after a text submission.
// Delivered is set on the non-VIP fast path, which confirms implicitly.
type TextResult struct {
	Next         string
	Delivered    bool
	ConfessionID int64
	MessageID    int
}

// Begin opens a composition session towards the target. Confessing to oneself
// is a policy violation, not a silent no-op.
func (s *Service) Begin(ctx context.Context, senderID, targetID int64) error {
	if senderID == targetID {
		return apperrors.ErrPolicyViolation
	}
	sess := s.sessions.Begin(senderID, session.KindConfession, StateAwaitingText)
	sess.Data[dataTarget] = strconv.FormatInt(targetID, 10)
	return nil
}

// SubmitText validates and persists the confession text. The row is written
// as soon as the text passes so the edit window starts counting from here.
// VIP senders go on to attach media; everyone else delivers immediately.
func (s *Service) SubmitText(ctx context.Context, senderID int64, text string) (*TextResult, error) {
	sess, ok := s.sessions.Get(senderID)
	if !ok || sess.State != StateAwaitingText {
		return nil, apperrors.ErrIllegalTransition
	}
	if text == "" || utf8.RuneCountInString(text) > s.maxText {
		return nil, apperrors.ErrPolicyViolation
	}
	hit, word, err := s.gate.CheckText(ctx, text)
	if err != nil {
		return nil, errors.WithMessage(err, "blacklist check")
	}
	if hit {
		log.WithFields(log.Fields{"user_id": senderID, "word": word}).Info("confession text rejected by blacklist")
		return nil, apperrors.ErrPolicyViolation
	}
	targetID, err := strconv.ParseInt(sess.Data[dataTarget], 10, 64)
	if err != nil {
		return nil, errors.WithMessage(err, "corrupt session target")
	}
	isVIP, err := s.vip.IsVIP(ctx, senderID)
	if err != nil {
		return nil, errors.WithMessage(err, "vip check")
	}

	confession := &db.Confession{
		FromUser:       senderID,
		ToUser:         targetID,
		Text:           text,
		RevealStatus:   db.RevealNone,
		DeliveryStatus: db.DeliveryPending,
		IsVIPSender:    isVIP,
	}
	confession.CanEditUntil.String = db.FormatTime(s.now().Add(s.editWindow))
	confession.CanEditUntil.Valid = true
	confessionID, err := s.store.CreateConfession(ctx, confession)
	if err != nil {
		return nil, errors.WithMessage(err, "persist confession")
	}

	if !isVIP {
		// Non-VIP senders cannot attach media, so there is nothing left to
		// confirm. Deliver right away.
		messageID, err := s.deliver(ctx, confessionID)
		s.sessions.End(senderID)
		if err != nil {
			return nil, err
		}
		return &TextResult{Delivered: true, ConfessionID: confessionID, MessageID: messageID}, nil
	}

	s.sessions.Advance(senderID, StateAwaitingMedia, map[string]string{
		dataConfessionID: strconv.FormatInt(confessionID, 10),
	})
	return &TextResult{Next: StateAwaitingMedia, ConfessionID: confessionID}, nil
}

// AttachMedia accepts a single media attachment. Unknown media types report a
// policy violation so the handler can re-prompt without moving the flow.
func (s *Service) AttachMedia(ctx context.Context, senderID int64, mediaType, fileID string) error {
	switch mediaType {
	case db.MediaPhoto, db.MediaVideo, db.MediaVoice, db.MediaSticker:
	default:
		return apperrors.ErrPolicyViolation
	}
	sess, ok := s.sessions.Get(senderID)
	if !ok || sess.State != StateAwaitingMedia {
		return apperrors.ErrIllegalTransition
	}
	confessionID, err := s.sessionConfessionID(sess)
	if err != nil {
		return err
	}
	if err := s.store.SetConfessionMedia(ctx, confessionID, mediaType, fileID); err != nil {
		return errors.WithMessage(err, "attach media")
	}
	s.sessions.Advance(senderID, StateAwaitingConfirmation, nil)
	return nil
}

// SkipMedia advances a VIP flow past the media stage with nothing attached.
func (s *Service) SkipMedia(ctx context.Context, senderID int64) error {
	sess, ok := s.sessions.Get(senderID)
	if !ok || sess.State != StateAwaitingMedia {
		return apperrors.ErrIllegalTransition
	}
	s.sessions.Advance(senderID, StateAwaitingConfirmation, nil)
	return nil
}

// Confirm delivers the composed confession and closes the session.
func (s *Service) Confirm(ctx context.Context, senderID int64) (*TextResult, error) {
	sess, ok := s.sessions.Get(senderID)
	if !ok || sess.State != StateAwaitingConfirmation {
		return nil, apperrors.ErrIllegalTransition
	}
	confessionID, err := s.sessionConfessionID(sess)
	if err != nil {
		return nil, err
	}
	messageID, err := s.deliver(ctx, confessionID)
	s.sessions.End(senderID)
	if err != nil {
		return nil, err
	}
	return &TextResult{Delivered: true, ConfessionID: confessionID, MessageID: messageID}, nil
}

// Cancel abandons the flow. A row persisted at the text stage is kept but
// marked abandoned so it never counts as delivered and the sweeper can see it.
func (s *Service) Cancel(ctx context.Context, senderID int64) error {
	sess, ok := s.sessions.Get(senderID)
	if !ok {
		return apperrors.ErrIllegalTransition
	}
	defer s.sessions.End(senderID)
	if raw, ok := sess.Data[dataConfessionID]; ok {
		confessionID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return errors.WithMessage(err, "corrupt session confession id")
		}
		if err := s.store.SetConfessionDeliveryStatus(ctx, confessionID, db.DeliveryAbandoned); err != nil {
			return errors.WithMessage(err, "abandon confession")
		}
	}
	return nil
}

// Abandon marks a persisted confession abandoned without a live session. The
// session reaper uses it for flows that timed out at the confirmation stage.
func (s *Service) Abandon(ctx context.Context, confessionID int64) error {
	return s.store.SetConfessionDeliveryStatus(ctx, confessionID, db.DeliveryAbandoned)
}

// Delete removes a confession row and returns it so the caller can retract
// the delivered message best-effort.
func (s *Service) Delete(ctx context.Context, confessionID int64) (*db.Confession, error) {
	confession, err := s.store.GetConfession(ctx, confessionID)
	if stderrors.Is(err, db.ErrNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteConfession(ctx, confessionID); err != nil {
		return nil, errors.WithMessage(err, "delete confession")
	}
	return confession, nil
}

func (s *Service) deliver(ctx context.Context, confessionID int64) (int, error) {
	confession, err := s.store.GetConfession(ctx, confessionID)
	if err != nil {
		return 0, errors.WithMessage(err, "load confession")
	}
	messageID, err := s.courier.DeliverConfession(ctx, confession)
	if err != nil {
		return 0, errors.WithMessagef(apperrors.ErrDelivery, "courier: %v", err)
	}
	if err := s.store.SetConfessionMessageID(ctx, confessionID, messageID); err != nil {
		return 0, errors.WithMessage(err, "store message id")
	}
	if err := s.store.SetConfessionDeliveryStatus(ctx, confessionID, db.DeliveryDelivered); err != nil {
		return 0, errors.WithMessage(err, "mark delivered")
	}
	return messageID, nil
}

func (s *Service) sessionConfessionID(sess session.Session) (int64, error) {
	confessionID, err := strconv.ParseInt(sess.Data[dataConfessionID], 10, 64)
	if err != nil {
		return 0, errors.WithMessage(err, "corrupt session confession id")
	}
	return confessionID, nil
}
