package handlers

import (
	"context"
	"fmt"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"

	"github.com/AMOryC91/anonym/internal/bot"
	"github.com/AMOryC91/anonym/internal/db"
	"github.com/AMOryC91/anonym/internal/i18n"
)

// Courier delivers composed confessions to their recipients over the bot
// platform, attaching the reveal-request and report buttons.
type Courier struct {
	s    bot.Service
	lang string
}

func NewCourier(s bot.Service, lang string) *Courier {
	return &Courier{s: s, lang: lang}
}

func (c *Courier) DeliverConfession(ctx context.Context, confession *db.Confession) (int, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}
	b := c.s.GetBot()

	header := i18n.Get("You have a new confession!", c.lang)
	markup := api.NewInlineKeyboardMarkup(
		api.NewInlineKeyboardRow(
			api.NewInlineKeyboardButtonData(
				i18n.Get("Who is it?", c.lang),
				fmt.Sprintf("reveal:req:%d", confession.ID),
			),
			api.NewInlineKeyboardButtonData(
				i18n.Get("Report", c.lang),
				fmt.Sprintf("report:%d", confession.ID),
			),
		),
	)

	text := header + "\n\n" + confession.Text
	var sent api.Message
	var err error
	switch confession.MediaType {
	case db.MediaPhoto:
		photo := api.NewPhoto(confession.ToUser, api.FileID(confession.MediaFileID))
		photo.Caption = text
		photo.ReplyMarkup = markup
		sent, err = b.Send(photo)
	case db.MediaVideo:
		video := api.NewVideo(confession.ToUser, api.FileID(confession.MediaFileID))
		video.Caption = text
		video.ReplyMarkup = markup
		sent, err = b.Send(video)
	case db.MediaVoice:
		voice := api.NewVoice(confession.ToUser, api.FileID(confession.MediaFileID))
		voice.Caption = text
		voice.ReplyMarkup = markup
		sent, err = b.Send(voice)
	case db.MediaSticker:
		// Stickers cannot carry captions; the text goes out first, then the
		// sticker, and the buttons ride on the text message.
		msg := api.NewMessage(confession.ToUser, text)
		msg.ReplyMarkup = markup
		sent, err = b.Send(msg)
		if err == nil {
			_, _ = b.Send(api.NewSticker(confession.ToUser, api.FileID(confession.MediaFileID)))
		}
	default:
		msg := api.NewMessage(confession.ToUser, text)
		msg.ReplyMarkup = markup
		sent, err = b.Send(msg)
	}
	if err != nil {
		return 0, errors.WithMessage(err, "send confession")
	}
	return sent.MessageID, nil
}
