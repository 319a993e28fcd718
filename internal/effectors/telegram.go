package effectors

import (
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/vthunder/nudge/internal/logging"
)

// TelegramPrefix marks user ids that belong to the Telegram transport
const TelegramPrefix = "telegram:"

// TelegramSender is the part of *tgbotapi.BotAPI the effector needs
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramEffector delivers queued notifications to Telegram chats. The chat
// id is part of the user id so no routing table is needed.
type TelegramEffector struct {
	sender       TelegramSender
	queue        Queue
	pollInterval time.Duration

	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
}

// NewTelegramEffector creates a Telegram effector
func NewTelegramEffector(sender TelegramSender, queue Queue) *TelegramEffector {
	return &TelegramEffector{
		sender:       sender,
		queue:        queue,
		pollInterval: time.Second,
		stopChan:     make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start begins polling the outbox
func (e *TelegramEffector) Start() {
	go e.pollLoop()
	logging.Info("telegram-effector", "Started")
}

// Stop halts the effector and waits for the poll loop to exit
func (e *TelegramEffector) Stop() {
	e.stopOnce.Do(func() { close(e.stopChan) })
	<-e.done
}

func (e *TelegramEffector) pollLoop() {
	defer close(e.done)
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.deliver()
		}
	}
}

func (e *TelegramEffector) deliver() {
	for _, user := range e.queue.Users() {
		if !strings.HasPrefix(user, TelegramPrefix) || e.queue.Pending(user) == 0 {
			continue
		}
		chatID, err := strconv.ParseInt(strings.TrimPrefix(user, TelegramPrefix), 10, 64)
		if err != nil {
			logging.Warn("telegram-effector", "Bad chat id in %q, dropping backlog", user)
			e.queue.Drain(user)
			continue
		}

		msgs := e.queue.Drain(user)
		for i, msg := range msgs {
			if _, err := e.sender.Send(tgbotapi.NewMessage(chatID, msg)); err != nil {
				logging.Warn("telegram-effector", "Send to %s failed, requeueing %d: %v", user, len(msgs)-i, err)
				e.queue.Requeue(user, msgs[i:])
				break
			}
		}
	}
}
