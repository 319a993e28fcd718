package effectors

import (
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/vthunder/nudge/internal/outbox"
)

type fakeTelegram struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeTelegram) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func TestTelegramEffector_Deliver(t *testing.T) {
	box := outbox.New()
	tg := &fakeTelegram{}
	e := NewTelegramEffector(tg, box)

	box.Push("telegram:123", "Reminder: stretch")
	box.Push("telegram:not-a-number", "lost")
	box.Push("discord:1", "not mine")

	e.deliver()

	if len(tg.sent) != 1 || tg.sent[0].ChatID != 123 || tg.sent[0].Text != "Reminder: stretch" {
		t.Errorf("unexpected sends %+v", tg.sent)
	}
	if box.Pending("telegram:not-a-number") != 0 {
		t.Error("expected malformed user backlog dropped")
	}
	if box.Pending("discord:1") != 1 {
		t.Error("expected discord backlog untouched")
	}
}

func TestTelegramEffector_FailureRequeues(t *testing.T) {
	box := outbox.New()
	tg := &fakeTelegram{err: errors.New("timeout")}
	e := NewTelegramEffector(tg, box)
	box.Push("telegram:5", "a")
	box.Push("telegram:5", "b")

	e.deliver()
	if box.Pending("telegram:5") != 2 {
		t.Fatalf("expected backlog requeued, got %d", box.Pending("telegram:5"))
	}

	tg.err = nil
	e.deliver()
	if len(tg.sent) != 2 || tg.sent[0].Text != "a" {
		t.Errorf("expected ordered delivery, got %+v", tg.sent)
	}
}
