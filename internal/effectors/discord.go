package effectors

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/vthunder/nudge/internal/logging"
)

// DiscordPrefix marks user ids that belong to the Discord transport
const DiscordPrefix = "discord:"

// DefaultMaxRetryDuration is how long a failing delivery is retried before
// the notifications are dropped
const DefaultMaxRetryDuration = 5 * time.Minute

const maxBackoff = 60 * time.Second

// DiscordSender is the part of *discordgo.Session the effector needs
type DiscordSender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Queue is the notification backlog the effectors drain
type Queue interface {
	Users() []string
	Pending(user string) int
	Drain(user string) []string
	Requeue(user string, texts []string)
}

type retryState struct {
	attempts  int
	firstFail time.Time
	nextRetry time.Time
}

// DiscordEffector delivers queued notifications to Discord users
type DiscordEffector struct {
	sender       DiscordSender
	queue        Queue
	routes       *Routes
	pollInterval time.Duration

	maxRetryDuration time.Duration
	retryMu          sync.Mutex
	retryStates      map[string]*retryState

	onError func(user, errMsg string)
	onRetry func(user, errMsg string, attempt int, nextRetry time.Duration)

	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
}

// NewDiscordEffector creates a Discord effector. It shares the session with
// the sense.
func NewDiscordEffector(sender DiscordSender, queue Queue, routes *Routes) *DiscordEffector {
	return &DiscordEffector{
		sender:           sender,
		queue:            queue,
		routes:           routes,
		pollInterval:     time.Second,
		maxRetryDuration: DefaultMaxRetryDuration,
		retryStates:      make(map[string]*retryState),
		stopChan:         make(chan struct{}),
		done:             make(chan struct{}),
	}
}

// SetMaxRetryDuration sets how long to keep retrying a failing user
func (e *DiscordEffector) SetMaxRetryDuration(d time.Duration) {
	e.maxRetryDuration = d
}

// SetOnError sets the callback for notifications that are dropped
func (e *DiscordEffector) SetOnError(fn func(user, errMsg string)) {
	e.onError = fn
}

// SetOnRetry sets the callback for deliveries scheduled for retry
func (e *DiscordEffector) SetOnRetry(fn func(user, errMsg string, attempt int, nextRetry time.Duration)) {
	e.onRetry = fn
}

// Start begins polling the outbox
func (e *DiscordEffector) Start() {
	go e.pollLoop()
	logging.Info("discord-effector", "Started")
}

// Stop halts the effector and waits for the poll loop to exit
func (e *DiscordEffector) Stop() {
	e.stopOnce.Do(func() { close(e.stopChan) })
	<-e.done
}

func (e *DiscordEffector) pollLoop() {
	defer close(e.done)
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.deliver(time.Now())
		}
	}
}

// deliver sends every routed Discord user's backlog
func (e *DiscordEffector) deliver(now time.Time) {
	for _, user := range e.queue.Users() {
		if !strings.HasPrefix(user, DiscordPrefix) || e.queue.Pending(user) == 0 {
			continue
		}
		channelID, ok := e.routes.Get(user)
		if !ok {
			continue // hold until the user has written to us
		}
		if !e.due(user, now) {
			continue
		}

		msgs := e.queue.Drain(user)
		for i, msg := range msgs {
			if _, err := e.sender.ChannelMessageSend(channelID, msg); err != nil {
				if e.handleSendError(user, err, now) {
					e.queue.Requeue(user, msgs[i:])
				}
				break
			}
			e.clearRetry(user)
			logging.Debug("discord-effector", "Sent to %s: %s", user, logging.Truncate(msg, 50))
		}
	}
}

func (e *DiscordEffector) due(user string, now time.Time) bool {
	e.retryMu.Lock()
	defer e.retryMu.Unlock()
	st, ok := e.retryStates[user]
	return !ok || !now.Before(st.nextRetry)
}

func (e *DiscordEffector) clearRetry(user string) {
	e.retryMu.Lock()
	delete(e.retryStates, user)
	e.retryMu.Unlock()
}

// handleSendError records a failed delivery and reports whether the
// remaining notifications should be requeued
func (e *DiscordEffector) handleSendError(user string, err error, now time.Time) bool {
	if isNonRetryableError(err) {
		e.clearRetry(user)
		logging.Warn("discord-effector", "Dropping notifications for %s: %v", user, err)
		if e.onError != nil {
			e.onError(user, err.Error())
		}
		return false
	}

	e.retryMu.Lock()
	st, ok := e.retryStates[user]
	if !ok {
		st = &retryState{firstFail: now}
		e.retryStates[user] = st
	}
	if now.Sub(st.firstFail) > e.maxRetryDuration {
		delete(e.retryStates, user)
		e.retryMu.Unlock()
		logging.Warn("discord-effector", "Giving up on %s after %v: %v", user, e.maxRetryDuration, err)
		if e.onError != nil {
			e.onError(user, err.Error())
		}
		return false
	}
	st.attempts++
	backoff := backoffFor(st.attempts)
	st.nextRetry = now.Add(backoff)
	attempt := st.attempts
	e.retryMu.Unlock()

	logging.Info("discord-effector", "Send to %s failed (attempt %d), retrying in %v: %v", user, attempt, backoff, err)
	if e.onRetry != nil {
		e.onRetry(user, err.Error(), attempt, backoff)
	}
	return true
}

// backoffFor doubles from one second, capped at a minute
func backoffFor(attempt int) time.Duration {
	d := time.Second
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

// isNonRetryableError reports client errors Discord will never accept
// (missing permissions, unknown channel)
func isNonRetryableError(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		code := restErr.Response.StatusCode
		return code >= 400 && code < 500 && code != 429
	}
	return false
}
