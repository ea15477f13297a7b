package bot

import (
	"context"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/AMOryC91/anonym/internal/config"
	"github.com/AMOryC91/anonym/internal/db"
)

type service struct {
	bot *api.BotAPI
	db  db.Client
}

func NewService(bot *api.BotAPI, client db.Client) *service {
	return &service{
		bot: bot,
		db:  client,
	}
}

func (s *service) GetBot() *api.BotAPI {
	return s.bot
}

func (s *service) GetDB() db.Client {
	return s.db
}

func (s *service) GetLanguage(_ context.Context, user *api.User) string {
	if user != nil && user.LanguageCode != "" {
		return user.LanguageCode
	}
	return config.Get().DefaultLanguage
}
