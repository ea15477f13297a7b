package handlers

import (
	"context"
	"fmt"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"

	"github.com/AMOryC91/anonym/internal/bot"
	"github.com/AMOryC91/anonym/internal/i18n"
)

// Battle keeps the battle event roster: join once, leave, see the count.
type Battle struct {
	s bot.Service
}

func NewBattle(s bot.Service) *Battle {
	return &Battle{s: s}
}

func (h *Battle) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	if chat == nil || user == nil || u.Message == nil || user.IsBot || !chat.IsPrivate() || !u.Message.IsCommand() {
		return true, nil
	}
	b := h.s.GetBot()
	lang := h.s.GetLanguage(ctx, user)
	client := h.s.GetDB()

	switch u.Message.Command() {
	case "battle":
		if !bot.TogglesFrom(ctx).BattleEnabled {
			reply(b, user.ID, i18n.Get("The battle is currently disabled.", lang))
			return false, nil
		}
		joined, err := client.AddBattleParticipant(ctx, user.ID)
		if err != nil {
			return false, errors.WithMessage(err, "join battle")
		}
		if !joined {
			reply(b, user.ID, i18n.Get("You are already on the roster.", lang))
			return false, nil
		}
		reply(b, user.ID, i18n.Get("You joined the battle!", lang))
		return false, nil

	case "battle_leave":
		if err := client.RemoveBattleParticipant(ctx, user.ID); err != nil {
			return false, errors.WithMessage(err, "leave battle")
		}
		reply(b, user.ID, i18n.Get("You left the battle.", lang))
		return false, nil

	case "battle_count":
		participants, err := client.ListBattleParticipants(ctx)
		if err != nil {
			return false, errors.WithMessage(err, "list battle")
		}
		reply(b, user.ID, fmt.Sprintf(i18n.Get("Participants so far: %d", lang), len(participants)))
		return false, nil
	}
	return true, nil
}
