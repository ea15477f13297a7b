package handlers

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/AMOryC91/anonym/internal/bot"
	"github.com/AMOryC91/anonym/internal/config"
	"github.com/AMOryC91/anonym/internal/db"
	apperrors "github.com/AMOryC91/anonym/internal/errors"
	"github.com/AMOryC91/anonym/internal/i18n"
)

const (
	refPrefix   = "ref_"
	whoisPrefix = "whois_"

	referralBurst  = 2
	referralWindow = time.Minute
)

type confessionStarter interface {
	Begin(ctx context.Context, senderID, targetID int64) error
	Cancel(ctx context.Context, senderID int64) error
}

type whoisJoiner interface {
	Join(ctx context.Context, token string, opponentID int64) (*db.WhoisGame, error)
}

// User handles the everyday private-chat surface: start and deep links,
// profile, promo activation, emoji selection and the VIP pitch.
type User struct {
	s            bot.Service
	entitlements entitlementService
	confessions  confessionStarter
	whois        whoisJoiner

	mu        sync.Mutex
	refStarts map[int64][]time.Time
}

func NewUser(s bot.Service, entitlements entitlementService, confessions confessionStarter, whoisSvc whoisJoiner) *User {
	return &User{
		s:            s,
		entitlements: entitlements,
		confessions:  confessions,
		whois:        whoisSvc,
		refStarts:    map[int64][]time.Time{},
	}
}

func (h *User) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	if chat == nil || user == nil || u.Message == nil || user.IsBot {
		return true, nil
	}
	if !chat.IsPrivate() || !u.Message.IsCommand() {
		return true, nil
	}
	m := u.Message
	b := h.s.GetBot()
	lang := h.s.GetLanguage(ctx, user)
	entry := h.getLogEntry().WithField("user_id", user.ID)

	if err := h.touchUser(ctx, user); err != nil {
		entry.WithError(err).Warn("cant upsert user")
	}

	switch m.Command() {
	case "start":
		return h.handleStart(ctx, m, user, lang)
	case "profile":
		return h.handleProfile(ctx, user, lang)
	case "promo":
		return h.handlePromo(ctx, m, user, lang)
	case "emoji":
		return h.handleEmoji(ctx, m, user, lang)
	case "vip":
		return h.handleVIP(ctx, user, lang)
	case "cancel":
		if err := h.confessions.Cancel(ctx, user.ID); err != nil {
			reply(b, user.ID, i18n.Get("Nothing to cancel.", lang))
			return false, nil
		}
		reply(b, user.ID, i18n.Get("Cancelled.", lang))
		return false, nil
	}
	return true, nil
}

func (h *User) handleStart(ctx context.Context, m *api.Message, user *api.User, lang string) (bool, error) {
	b := h.s.GetBot()
	payload := strings.TrimSpace(m.CommandArguments())

	switch {
	case strings.HasPrefix(payload, refPrefix):
		return h.handleReferralStart(ctx, user, strings.TrimPrefix(payload, refPrefix), lang)
	case strings.HasPrefix(payload, whoisPrefix):
		return h.handleWhoisStart(ctx, user, strings.TrimPrefix(payload, whoisPrefix), lang)
	}

	link := h.referralLink(user.ID)
	text := i18n.Get("Share your link and receive anonymous confessions:", lang) + "\n" + link
	reply(b, user.ID, text)
	return false, nil
}

func (h *User) handleReferralStart(ctx context.Context, user *api.User, rawTarget, lang string) (bool, error) {
	b := h.s.GetBot()
	if !h.allowReferralStart(user.ID) {
		reply(b, user.ID, i18n.Get("Too many attempts, slow down.", lang))
		return false, nil
	}

	var targetID int64
	if _, err := fmt.Sscanf(rawTarget, "%d", &targetID); err != nil || targetID <= 0 {
		reply(b, user.ID, i18n.Get("This link is broken.", lang))
		return false, nil
	}
	if _, err := h.s.GetDB().GetUser(ctx, targetID); err != nil {
		if stderrors.Is(err, db.ErrNotFound) {
			reply(b, user.ID, i18n.Get("This link is broken.", lang))
			return false, nil
		}
		return false, errors.WithMessage(err, "resolve referral target")
	}

	subscribed, err := h.isSubscribed(ctx, user.ID)
	if err != nil {
		h.getLogEntry().WithError(err).Warn("cant check subscription")
	}
	if !subscribed {
		reply(b, user.ID, i18n.Get("Subscribe to our channel to send confessions.", lang)+
			"\nhttps://t.me/"+strings.TrimPrefix(config.Get().ChannelUsername, "@"))
		return false, nil
	}

	if err := h.confessions.Begin(ctx, user.ID, targetID); err != nil {
		if stderrors.Is(err, apperrors.ErrPolicyViolation) {
			reply(b, user.ID, i18n.Get("You cannot confess to yourself.", lang))
			return false, nil
		}
		return false, errors.WithMessage(err, "begin confession")
	}
	reply(b, user.ID, i18n.Get("Write your anonymous confession. The recipient will not know who you are.", lang))
	return false, nil
}

func (h *User) handleWhoisStart(ctx context.Context, user *api.User, token, lang string) (bool, error) {
	b := h.s.GetBot()
	game, err := h.whois.Join(ctx, token, user.ID)
	switch {
	case stderrors.Is(err, apperrors.ErrNotFound):
		reply(b, user.ID, i18n.Get("This game does not exist anymore.", lang))
		return false, nil
	case stderrors.Is(err, apperrors.ErrPolicyViolation):
		reply(b, user.ID, i18n.Get("You cannot join your own game.", lang))
		return false, nil
	case stderrors.Is(err, apperrors.ErrIllegalTransition):
		reply(b, user.ID, i18n.Get("Someone already joined this game.", lang))
		return false, nil
	case err != nil:
		return false, errors.WithMessage(err, "join whois game")
	}
	reply(b, user.ID, i18n.Get("You joined the game! Answer the questions, your identity stays hidden.", lang))
	reply(b, game.CreatorID, i18n.Get("Someone joined your game! You have 3 questions, then you must guess who it is.", lang))
	return false, nil
}

func (h *User) handleProfile(ctx context.Context, user *api.User, lang string) (bool, error) {
	b := h.s.GetBot()
	client := h.s.GetDB()

	stats, err := client.GetUserStats(ctx, user.ID)
	if err != nil {
		return false, errors.WithMessage(err, "get user stats")
	}
	status, err := h.entitlements.Status(ctx, user.ID)
	if err != nil {
		return false, errors.WithMessage(err, "get status")
	}

	var sb strings.Builder
	sb.WriteString(i18n.Get("Your profile", lang) + "\n\n")
	sb.WriteString(fmt.Sprintf(i18n.Get("Confessions received: %d", lang)+"\n", stats.Received))
	sb.WriteString(fmt.Sprintf(i18n.Get("Confessions sent: %d", lang)+"\n", stats.Sent))
	if status.VIP {
		sb.WriteString(fmt.Sprintf(i18n.Get("VIP until: %s", lang)+"\n", status.VIPUntil.Format("2006-01-02")))
	}
	achievements, err := client.ListUserAchievements(ctx, user.ID)
	if err == nil && len(achievements) > 0 {
		sb.WriteString(i18n.Get("Achievements:", lang) + "\n")
		for _, a := range achievements {
			sb.WriteString("  " + a.Name + "\n")
		}
	}
	sb.WriteString("\n" + i18n.Get("Your link:", lang) + "\n" + h.referralLink(user.ID))
	reply(b, user.ID, sb.String())
	return false, nil
}

func (h *User) handlePromo(ctx context.Context, m *api.Message, user *api.User, lang string) (bool, error) {
	b := h.s.GetBot()
	code := strings.TrimSpace(m.CommandArguments())
	if code == "" {
		reply(b, user.ID, i18n.Get("Send the promo code after the command, like /promo GOLD2024", lang))
		return false, nil
	}
	days, err := h.s.GetDB().ActivatePromoCode(ctx, user.ID, code)
	switch {
	case stderrors.Is(err, db.ErrNotFound):
		reply(b, user.ID, i18n.Get("Unknown or expired promo code.", lang))
		return false, nil
	case stderrors.Is(err, db.ErrPromoExhausted):
		reply(b, user.ID, i18n.Get("This promo code has no activations left.", lang))
		return false, nil
	case stderrors.Is(err, db.ErrPromoAlreadyActivated):
		reply(b, user.ID, i18n.Get("You already used this promo code.", lang))
		return false, nil
	case err != nil:
		return false, errors.WithMessage(err, "activate promo")
	}
	reply(b, user.ID, fmt.Sprintf(i18n.Get("Promo activated! You got %d days of VIP.", lang), days))
	return false, nil
}

func (h *User) handleEmoji(ctx context.Context, m *api.Message, user *api.User, lang string) (bool, error) {
	b := h.s.GetBot()
	emoji := strings.TrimSpace(m.CommandArguments())
	if emoji == "" {
		reply(b, user.ID, i18n.Get("Pick an emoji:", lang)+" "+strings.Join(h.availableEmojis(ctx, user.ID), " "))
		return false, nil
	}
	allowed := false
	for _, e := range h.availableEmojis(ctx, user.ID) {
		if e == emoji {
			allowed = true
			break
		}
	}
	if !allowed {
		reply(b, user.ID, i18n.Get("This emoji is not available to you.", lang))
		return false, nil
	}
	if err := h.s.GetDB().SetUserEmoji(ctx, user.ID, emoji); err != nil {
		return false, errors.WithMessage(err, "set emoji")
	}
	reply(b, user.ID, i18n.Get("Emoji saved.", lang))
	return false, nil
}

func (h *User) handleVIP(ctx context.Context, user *api.User, lang string) (bool, error) {
	b := h.s.GetBot()
	vip, err := h.entitlements.IsVIP(ctx, user.ID)
	if err != nil {
		return false, errors.WithMessage(err, "vip check")
	}
	if vip {
		reply(b, user.ID, i18n.Get("You are already a VIP. Thank you for the support!", lang))
		return false, nil
	}
	text := i18n.Get("VIP lets you attach photos, videos, voice messages and stickers, and unlocks exclusive emojis.", lang)
	if link := config.Get().VIPPaymentLink; link != "" {
		text += "\n" + link
	}
	reply(b, user.ID, text)
	return false, nil
}

func (h *User) touchUser(ctx context.Context, user *api.User) error {
	return h.s.GetDB().UpsertUser(ctx, &db.User{
		ID:       user.ID,
		Username: user.UserName,
		FullName: bot.GetFullName(user),
	})
}

func (h *User) availableEmojis(ctx context.Context, userID int64) []string {
	emojis := config.BaseEmojis
	if vip, err := h.entitlements.IsVIP(ctx, userID); err == nil && vip {
		emojis = append(append([]string{}, emojis...), config.VIPEmojis...)
	}
	return emojis
}

// allowReferralStart throttles referral deep-link starts to a small burst per
// user per window.
func (h *User) allowReferralStart(userID int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := time.Now()
	recent := h.refStarts[userID][:0]
	for _, t := range h.refStarts[userID] {
		if now.Sub(t) < referralWindow {
			recent = append(recent, t)
		}
	}
	if len(recent) >= referralBurst {
		h.refStarts[userID] = recent
		return false
	}
	h.refStarts[userID] = append(recent, now)
	return true
}

func (h *User) isSubscribed(ctx context.Context, userID int64) (bool, error) {
	channel := config.Get().ChannelUsername
	if channel == "" {
		return true, nil
	}
	member, err := h.s.GetBot().GetChatMember(api.GetChatMemberConfig{
		ChatConfigWithUser: api.ChatConfigWithUser{
			UserID:     userID,
			ChatConfig: api.ChatConfig{SuperGroupUsername: channel},
		},
	})
	if err != nil {
		// The gate is advisory: a transport failure must not lock users out.
		return true, err
	}
	switch member.Status {
	case "member", "administrator", "creator":
		return true, nil
	}
	return false, nil
}

func (h *User) referralLink(userID int64) string {
	return fmt.Sprintf("https://t.me/%s?start=%s%d", h.s.GetBot().Self.UserName, refPrefix, userID)
}

func (h *User) getLogEntry() *log.Entry {
	return log.WithField("context", "user")
}
