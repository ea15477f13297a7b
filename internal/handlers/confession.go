package handlers

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/AMOryC91/anonym/internal/bot"
	"github.com/AMOryC91/anonym/internal/config"
	"github.com/AMOryC91/anonym/internal/confession"
	"github.com/AMOryC91/anonym/internal/db"
	apperrors "github.com/AMOryC91/anonym/internal/errors"
	"github.com/AMOryC91/anonym/internal/i18n"
	"github.com/AMOryC91/anonym/internal/moderation"
	"github.com/AMOryC91/anonym/internal/observability"
	"github.com/AMOryC91/anonym/internal/session"
)

// milestones are the received-confession counts that award an achievement.
var milestones = []int{10, 20, 50, 100, 500}

// Confession drives the composition flow and the post-delivery surface:
// reveal requests, reveal answers and reports.
type Confession struct {
	s        bot.Service
	svc      *confession.Service
	sessions *session.Store
	reports  *moderation.Reports
}

func NewConfession(s bot.Service, svc *confession.Service, sessions *session.Store, reports *moderation.Reports) *Confession {
	return &Confession{s: s, svc: svc, sessions: sessions, reports: reports}
}

func (h *Confession) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	if user == nil || user.IsBot {
		return true, nil
	}
	if u.CallbackQuery != nil {
		return h.handleCallback(ctx, u.CallbackQuery, user)
	}
	if chat == nil || !chat.IsPrivate() || u.Message == nil || u.Message.IsCommand() {
		return true, nil
	}

	sess, ok := h.sessions.Get(user.ID)
	if !ok || sess.Kind != session.KindConfession {
		return true, nil
	}
	lang := h.s.GetLanguage(ctx, user)

	switch sess.State {
	case confession.StateAwaitingText:
		return h.handleText(ctx, u.Message, user, lang)
	case confession.StateAwaitingMedia:
		return h.handleMedia(ctx, u.Message, user, lang)
	case confession.StateAwaitingConfirmation:
		// Only the buttons move the flow from here.
		reply(h.s.GetBot(), user.ID, i18n.Get("Use the buttons to confirm or cancel.", lang))
		return false, nil
	}
	return true, nil
}

func (h *Confession) handleText(ctx context.Context, m *api.Message, user *api.User, lang string) (bool, error) {
	b := h.s.GetBot()
	if m.Text == "" {
		reply(b, user.ID, i18n.Get("Please send the confession as text first.", lang))
		return false, nil
	}
	result, err := h.svc.SubmitText(ctx, user.ID, m.Text)
	switch {
	case stderrors.Is(err, apperrors.ErrPolicyViolation):
		reply(b, user.ID, i18n.Get("This text cannot be sent. Check the length and wording and try again.", lang))
		return false, nil
	case stderrors.Is(err, apperrors.ErrDelivery):
		reply(b, user.ID, i18n.Get("Could not deliver your confession, please try again later.", lang))
		return false, nil
	case err != nil:
		return false, errors.WithMessage(err, "submit text")
	}

	if result.Delivered {
		h.afterDelivery(ctx, result.ConfessionID)
		reply(b, user.ID, i18n.Get("Your confession was delivered anonymously!", lang))
		return false, nil
	}

	markup := api.NewInlineKeyboardMarkup(api.NewInlineKeyboardRow(
		api.NewInlineKeyboardButtonData(i18n.Get("Skip", lang), "conf:skip"),
	))
	replyMarkup(b, user.ID, i18n.Get("Attach a photo, video, voice message or sticker, or skip.", lang), markup)
	return false, nil
}

func (h *Confession) handleMedia(ctx context.Context, m *api.Message, user *api.User, lang string) (bool, error) {
	b := h.s.GetBot()
	mediaType, fileID := extractMedia(m)
	if mediaType == "" {
		// Not an attachment we accept; the flow stays where it is.
		reply(b, user.ID, i18n.Get("Attach a photo, video, voice message or sticker, or skip.", lang))
		return false, nil
	}
	if err := h.svc.AttachMedia(ctx, user.ID, mediaType, fileID); err != nil {
		if stderrors.Is(err, apperrors.ErrPolicyViolation) || stderrors.Is(err, apperrors.ErrIllegalTransition) {
			reply(b, user.ID, i18n.Get("Attach a photo, video, voice message or sticker, or skip.", lang))
			return false, nil
		}
		return false, errors.WithMessage(err, "attach media")
	}
	h.promptConfirmation(user.ID, lang)
	return false, nil
}

func (h *Confession) handleCallback(ctx context.Context, cb *api.CallbackQuery, user *api.User) (bool, error) {
	lang := h.s.GetLanguage(ctx, user)
	data := cb.Data
	switch {
	case data == "conf:skip":
		return h.onSkip(ctx, cb, user, lang)
	case data == "conf:confirm":
		return h.onConfirm(ctx, cb, user, lang)
	case data == "conf:cancel":
		return h.onCancel(ctx, cb, user, lang)
	case strings.HasPrefix(data, "reveal:req:"):
		return h.onRevealRequest(ctx, cb, user, lang, strings.TrimPrefix(data, "reveal:req:"))
	case strings.HasPrefix(data, "reveal:allow:"):
		return h.onRevealAnswer(ctx, cb, user, lang, strings.TrimPrefix(data, "reveal:allow:"), true)
	case strings.HasPrefix(data, "reveal:deny:"):
		return h.onRevealAnswer(ctx, cb, user, lang, strings.TrimPrefix(data, "reveal:deny:"), false)
	case strings.HasPrefix(data, "report:"):
		return h.onReport(ctx, cb, user, lang, strings.TrimPrefix(data, "report:"))
	}
	return true, nil
}

func (h *Confession) onSkip(ctx context.Context, cb *api.CallbackQuery, user *api.User, lang string) (bool, error) {
	if err := h.svc.SkipMedia(ctx, user.ID); err != nil {
		answerCallback(h.s.GetBot(), cb.ID, i18n.Get("This flow has expired.", lang))
		return false, nil
	}
	answerCallback(h.s.GetBot(), cb.ID, "")
	h.promptConfirmation(user.ID, lang)
	return false, nil
}

func (h *Confession) onConfirm(ctx context.Context, cb *api.CallbackQuery, user *api.User, lang string) (bool, error) {
	b := h.s.GetBot()
	result, err := h.svc.Confirm(ctx, user.ID)
	switch {
	case stderrors.Is(err, apperrors.ErrIllegalTransition):
		answerCallback(b, cb.ID, i18n.Get("This flow has expired.", lang))
		return false, nil
	case stderrors.Is(err, apperrors.ErrDelivery):
		answerCallback(b, cb.ID, i18n.Get("Could not deliver your confession, please try again later.", lang))
		return false, nil
	case err != nil:
		return false, errors.WithMessage(err, "confirm confession")
	}
	answerCallback(b, cb.ID, "")
	h.afterDelivery(ctx, result.ConfessionID)
	reply(b, user.ID, i18n.Get("Your confession was delivered anonymously!", lang))
	return false, nil
}

func (h *Confession) onCancel(ctx context.Context, cb *api.CallbackQuery, user *api.User, lang string) (bool, error) {
	b := h.s.GetBot()
	if err := h.svc.Cancel(ctx, user.ID); err != nil {
		answerCallback(b, cb.ID, i18n.Get("Nothing to cancel.", lang))
		return false, nil
	}
	answerCallback(b, cb.ID, "")
	reply(b, user.ID, i18n.Get("Cancelled.", lang))
	return false, nil
}

func (h *Confession) onRevealRequest(ctx context.Context, cb *api.CallbackQuery, user *api.User, lang, rawID string) (bool, error) {
	b := h.s.GetBot()
	confessionID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return false, nil
	}
	err = h.svc.RequestReveal(ctx, confessionID, user.ID)
	switch {
	case stderrors.Is(err, apperrors.ErrUnauthorized):
		answerCallback(b, cb.ID, i18n.Get("Only the recipient can ask this.", lang))
		return false, nil
	case stderrors.Is(err, apperrors.ErrIllegalTransition):
		answerCallback(b, cb.ID, i18n.Get("Already asked.", lang))
		return false, nil
	case stderrors.Is(err, apperrors.ErrNotFound):
		answerCallback(b, cb.ID, i18n.Get("This confession is gone.", lang))
		return false, nil
	case err != nil:
		return false, errors.WithMessage(err, "request reveal")
	}
	answerCallback(b, cb.ID, i18n.Get("The sender was asked to reveal themselves.", lang))

	row, err := h.s.GetDB().GetConfession(ctx, confessionID)
	if err != nil {
		return false, errors.WithMessage(err, "load confession")
	}
	markup := api.NewInlineKeyboardMarkup(api.NewInlineKeyboardRow(
		api.NewInlineKeyboardButtonData(i18n.Get("Reveal myself", lang), fmt.Sprintf("reveal:allow:%d", confessionID)),
		api.NewInlineKeyboardButtonData(i18n.Get("Stay anonymous", lang), fmt.Sprintf("reveal:deny:%d", confessionID)),
	))
	replyMarkup(b, row.FromUser,
		i18n.Get("The recipient of your confession wants to know who you are. Reveal yourself?", lang), markup)
	return false, nil
}

func (h *Confession) onRevealAnswer(ctx context.Context, cb *api.CallbackQuery, user *api.User, lang, rawID string, allow bool) (bool, error) {
	b := h.s.GetBot()
	confessionID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return false, nil
	}
	err = h.svc.AnswerReveal(ctx, confessionID, user.ID, allow)
	switch {
	case stderrors.Is(err, apperrors.ErrUnauthorized):
		answerCallback(b, cb.ID, i18n.Get("Only the sender decides.", lang))
		return false, nil
	case stderrors.Is(err, apperrors.ErrIllegalTransition):
		answerCallback(b, cb.ID, i18n.Get("Already decided.", lang))
		return false, nil
	case stderrors.Is(err, apperrors.ErrNotFound):
		answerCallback(b, cb.ID, i18n.Get("This confession is gone.", lang))
		return false, nil
	case err != nil:
		return false, errors.WithMessage(err, "answer reveal")
	}
	answerCallback(b, cb.ID, "")

	row, err := h.s.GetDB().GetConfession(ctx, confessionID)
	if err != nil {
		return false, errors.WithMessage(err, "load confession")
	}
	if !allow {
		reply(b, row.ToUser, i18n.Get("The sender chose to stay anonymous.", lang))
		return false, nil
	}
	sender, err := h.s.GetDB().GetUser(ctx, row.FromUser)
	if err != nil {
		return false, errors.WithMessage(err, "load sender")
	}
	identity := sender.FullName
	if sender.Username != "" {
		identity += " (@" + sender.Username + ")"
	}
	reply(b, row.ToUser, fmt.Sprintf(i18n.Get("The confession was sent by %s", lang), identity))
	return false, nil
}

func (h *Confession) onReport(ctx context.Context, cb *api.CallbackQuery, user *api.User, lang, rawID string) (bool, error) {
	b := h.s.GetBot()
	confessionID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return false, nil
	}
	reportID, row, err := h.reports.File(ctx, confessionID, user.ID)
	switch {
	case stderrors.Is(err, apperrors.ErrUnauthorized):
		answerCallback(b, cb.ID, i18n.Get("Only the recipient can report this.", lang))
		return false, nil
	case stderrors.Is(err, apperrors.ErrNotFound):
		answerCallback(b, cb.ID, i18n.Get("This confession is gone.", lang))
		return false, nil
	case err != nil:
		return false, errors.WithMessage(err, "file report")
	}
	answerCallback(b, cb.ID, i18n.Get("Report filed. Thank you.", lang))

	reportChat := config.Get().ReportChatID
	if reportChat == 0 {
		return false, nil
	}
	markup := api.NewInlineKeyboardMarkup(api.NewInlineKeyboardRow(
		api.NewInlineKeyboardButtonData("Ban 7d", fmt.Sprintf("rep:ban:%d", reportID)),
		api.NewInlineKeyboardButtonData("Dismiss", fmt.Sprintf("rep:dismiss:%d", reportID)),
	))
	text := fmt.Sprintf("Report #%d\nConfession #%d\n\n%s", reportID, row.ID, row.Text)
	replyMarkup(b, reportChat, text, markup)
	return false, nil
}

func (h *Confession) promptConfirmation(userID int64, lang string) {
	markup := api.NewInlineKeyboardMarkup(api.NewInlineKeyboardRow(
		api.NewInlineKeyboardButtonData(i18n.Get("Send", lang), "conf:confirm"),
		api.NewInlineKeyboardButtonData(i18n.Get("Cancel", lang), "conf:cancel"),
	))
	replyMarkup(h.s.GetBot(), userID, i18n.Get("Everything ready. Send it?", lang), markup)
}

// afterDelivery records metrics and awards received-count milestones.
func (h *Confession) afterDelivery(ctx context.Context, confessionID int64) {
	observability.RecordDelivery()
	client := h.s.GetDB()
	row, err := client.GetConfession(ctx, confessionID)
	if err != nil {
		return
	}
	count, err := client.CountConfessionsReceived(ctx, row.ToUser)
	if err != nil {
		return
	}
	for _, milestone := range milestones {
		if count != milestone {
			continue
		}
		ach, err := client.GetAchievementByName(ctx, fmt.Sprintf("received_%d", milestone))
		if err != nil {
			continue
		}
		if awarded, err := client.AwardAchievement(ctx, row.ToUser, ach.ID); err == nil && awarded {
			lang := h.s.GetLanguage(ctx, nil)
			reply(h.s.GetBot(), row.ToUser,
				fmt.Sprintf(i18n.Get("Achievement unlocked: %s", lang), ach.Name))
		}
	}
}

func extractMedia(m *api.Message) (mediaType, fileID string) {
	switch {
	case len(m.Photo) > 0:
		return db.MediaPhoto, m.Photo[len(m.Photo)-1].FileID
	case m.Video != nil:
		return db.MediaVideo, m.Video.FileID
	case m.Voice != nil:
		return db.MediaVoice, m.Voice.FileID
	case m.Sticker != nil:
		return db.MediaSticker, m.Sticker.FileID
	}
	return "", ""
}

func (h *Confession) getLogEntry() *log.Entry {
	return log.WithField("context", "confession")
}
