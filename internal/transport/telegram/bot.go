package telegram

import (
	"context"
	"errors"
	"net/http"
	"strings"

	tele "gopkg.in/telebot.v4"

	"leadbot/internal/transport"
)

// Bot is a send-only telebot wrapper used for operator notifications
// (the Telegram log sink). It never polls for updates.
type Bot struct {
	bot *tele.Bot
}

func NewBot(token, baseURL string) (*Bot, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	b, err := tele.NewBot(tele.Settings{
		URL:     strings.TrimRight(baseURL, "/"),
		Token:   token,
		Offline: true,
		Client:  &http.Client{Timeout: DefaultTimeout},
	})
	if err != nil {
		return nil, err
	}
	return &Bot{bot: b}, nil
}

func (b *Bot) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if opt == nil {
		opt = &transport.SendOptions{}
	}
	_, err := b.bot.Send(&tele.Chat{ID: to.ChatID}, text, &tele.SendOptions{
		ParseMode:             tele.ParseMode(opt.ParseMode),
		DisableWebPagePreview: opt.DisablePreview,
		ThreadID:              to.ThreadID,
	})
	return err
}
