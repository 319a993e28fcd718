package senses

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/vthunder/nudge/internal/logging"
)

// TelegramBot is the part of *tgbotapi.BotAPI the transport needs
type TelegramBot interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSense long-polls Telegram and answers each message through the assistant
type TelegramSense struct {
	bot       TelegramBot
	responder Responder
	timeout   int
}

// NewTelegramBot connects with a bot token
func NewTelegramBot(token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	logging.Info("telegram-sense", "Connected as %s", bot.Self.UserName)
	return bot, nil
}

// NewTelegramSense creates a Telegram sense on an existing bot
func NewTelegramSense(bot TelegramBot, responder Responder) *TelegramSense {
	return &TelegramSense{bot: bot, responder: responder, timeout: 30}
}

// Run processes updates until ctx is done
func (t *TelegramSense) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = t.timeout
	updates := t.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			t.handle(upd)
		}
	}
}

func (t *TelegramSense) handle(upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	if msg.From != nil && msg.From.IsBot {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" || text == "/start" {
		return
	}

	user := TelegramUser(msg.Chat.ID)
	logging.Debug("telegram-sense", "Message from %s: %s", user, logging.Truncate(text, 50))

	reply := t.responder.Submit(user, text)
	if reply == "" {
		return
	}
	if _, err := t.bot.Send(tgbotapi.NewMessage(msg.Chat.ID, reply)); err != nil {
		logging.Warn("telegram-sense", "Reply to %s failed: %v", user, err)
	}
}

// TelegramUser returns the assistant user id for a Telegram chat
func TelegramUser(chatID int64) string {
	return "telegram:" + strconv.FormatInt(chatID, 10)
}
