package outbox

import (
	"github.com/vthunder/nudge/internal/registry"
)

// Outbox is the per-user notification queue. Producers (reminder escalation,
// conflict detection) append; the single consumer for a user (web poll,
// Discord or Telegram effector, MCP poll tool) drains.
type Outbox struct {
	queues *registry.Registry[[]string]
}

// New creates an empty outbox
func New() *Outbox {
	return &Outbox{
		queues: registry.New[[]string](nil),
	}
}

// Push appends a notification for the user
func (o *Outbox) Push(user, text string) {
	o.queues.With(user, func(q *[]string) {
		*q = append(*q, text)
	})
}

// Requeue puts undelivered notifications back at the front of the user's
// queue, ahead of anything pushed since they were drained
func (o *Outbox) Requeue(user string, texts []string) {
	if len(texts) == 0 {
		return
	}
	o.queues.With(user, func(q *[]string) {
		*q = append(append([]string(nil), texts...), *q...)
	})
}

// Drain returns the user's full backlog and clears it atomically
func (o *Outbox) Drain(user string) []string {
	out := []string{}
	o.queues.Peek(user, func(q *[]string) {
		if len(*q) == 0 {
			return
		}
		out = *q
		*q = nil
	})
	return out
}

// Pending returns how many notifications are waiting for the user
func (o *Outbox) Pending(user string) int {
	n := 0
	o.queues.Peek(user, func(q *[]string) {
		n = len(*q)
	})
	return n
}

// Users returns every user that has ever received a notification
func (o *Outbox) Users() []string {
	return o.queues.Users()
}
