// Package handlers contains the update handler chain: user commands, the
// confession flow, the guessing game, the battle roster and the admin
// surface. Handlers follow the chain contract: return proceed=false once the
// update is consumed.
package handlers

import (
	"context"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"

	"github.com/AMOryC91/anonym/internal/entitlement"
)

// entitlementService is the full entitlement surface the handlers use.
type entitlementService interface {
	Status(ctx context.Context, userID int64) (entitlement.Status, error)
	IsBanned(ctx context.Context, userID int64) (bool, error)
	IsVIP(ctx context.Context, userID int64) (bool, error)
	Ban(ctx context.Context, userID int64, days int, reason string) error
	Unban(ctx context.Context, userID int64) error
	AddVIPDays(ctx context.Context, userID int64, days int) error
	RemoveVIP(ctx context.Context, userID int64) error
	RoleOf(ctx context.Context, userID int64) (entitlement.Role, error)
	HasRole(ctx context.Context, userID int64, min entitlement.Role) (bool, error)
	GrantRole(ctx context.Context, actorID, userID int64, role entitlement.Role) error
	RevokeRole(ctx context.Context, actorID, userID int64) error
}

func reply(b *api.BotAPI, chatID int64, text string) {
	msg := api.NewMessage(chatID, text)
	msg.DisableNotification = true
	if _, err := b.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Debug("cant send reply")
	}
}

func replyMarkup(b *api.BotAPI, chatID int64, text string, markup api.InlineKeyboardMarkup) {
	msg := api.NewMessage(chatID, text)
	msg.DisableNotification = true
	msg.ReplyMarkup = markup
	if _, err := b.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Debug("cant send reply")
	}
}

func answerCallback(b *api.BotAPI, callbackID, text string) {
	if _, err := b.Request(api.NewCallback(callbackID, text)); err != nil {
		log.WithError(err).Debug("cant answer callback")
	}
}
