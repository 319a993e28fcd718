package reminder

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vthunder/nudge/internal/activity"
	"github.com/vthunder/nudge/internal/logging"
	"github.com/vthunder/nudge/internal/metrics"
	"github.com/vthunder/nudge/internal/registry"
)

// DefaultEscalationGap is the wait between the escalation steps
const DefaultEscalationGap = 15 * time.Minute

// Config holds reminder store settings
type Config struct {
	EscalationGap time.Duration
	Metrics       *metrics.Metrics
	Journal       *activity.Log
}

// Store keeps each user's reminders in insertion order and owns their state
// transitions. Every user's list has its own lock.
type Store struct {
	lists   *registry.Registry[[]*Reminder]
	sink    Notifier
	gap     time.Duration
	metrics *metrics.Metrics
	journal *activity.Log
}

// NewStore creates a reminder store that reports transitions to sink
func NewStore(sink Notifier, cfg Config) *Store {
	if cfg.EscalationGap == 0 {
		cfg.EscalationGap = DefaultEscalationGap
	}
	return &Store{
		lists:   registry.New[[]*Reminder](nil),
		sink:    sink,
		gap:     cfg.EscalationGap,
		metrics: cfg.Metrics,
		journal: cfg.Journal,
	}
}

// Add appends a new active reminder. Duplicates are allowed.
func (s *Store) Add(user, task string, due time.Time) Reminder {
	r := &Reminder{
		ID:        uuid.NewString(),
		Owner:     user,
		Task:      task,
		Due:       due,
		State:     StateActive,
		CreatedAt: time.Now(),
	}

	s.lists.With(user, func(list *[]*Reminder) {
		*list = append(*list, r)
	})
	s.metrics.ReminderCreated()

	logging.Debug("reminders", "Added %s for %s due %s", r.ID, user, due.Format(time.RFC3339))
	return *r
}

// Snooze moves the most recently added reminder to now+d and makes it active
// again. Returns false when the user has no reminders.
func (s *Store) Snooze(user string, now time.Time, d time.Duration) (Reminder, bool) {
	var snoozed Reminder
	found := false

	s.lists.Peek(user, func(list *[]*Reminder) {
		if len(*list) == 0 {
			return
		}
		r := (*list)[len(*list)-1]
		r.Due = now.Add(d)
		r.State = StateActive
		r.TriggeredAt = nil
		r.RemindedAt = nil
		snoozed = *r
		found = true
	})

	return snoozed, found
}

// Clear removes all of the user's reminders and returns how many there were
func (s *Store) Clear(user string) int {
	n := 0
	s.lists.Peek(user, func(list *[]*Reminder) {
		n = len(*list)
		*list = nil
	})
	return n
}

// Advance moves each of the user's reminders at most one step forward.
// The notification for a step is pushed before the state changes. Returns the
// number of transitions made.
func (s *Store) Advance(user string, now time.Time) int {
	var entered []activity.Entry

	s.lists.Peek(user, func(list *[]*Reminder) {
		kept := (*list)[:0]
		for _, r := range *list {
			next, keep := s.step(user, r, now)
			if next != "" {
				s.metrics.Transition(string(next))
				entered = append(entered, activity.Entry{
					Type:    activity.TypeEscalation,
					User:    user,
					Summary: r.Task,
					Source:  "reminders",
					Data:    map[string]any{"id": r.ID, "state": string(next)},
				})
			}
			if keep {
				kept = append(kept, r)
			}
		}
		// Drop references past the new length so removed reminders can be collected
		for i := len(kept); i < len(*list); i++ {
			(*list)[i] = nil
		}
		*list = kept
	})

	// Journal writes hit the database and stay outside the user lock
	for _, e := range entered {
		s.journal.Log(e)
	}
	return len(entered)
}

// step applies at most one transition. Returns the state entered ("" if none)
// and whether the reminder stays in the store.
func (s *Store) step(user string, r *Reminder, now time.Time) (State, bool) {
	switch r.State {
	case StateActive:
		if now.Before(r.Due) {
			return "", true
		}
		s.sink.Push(user, fmt.Sprintf("It's time to %s.", r.Task))
		at := now
		r.TriggeredAt = &at
		r.State = StateTriggeredOnce
		return StateTriggeredOnce, true

	case StateTriggeredOnce:
		if r.TriggeredAt == nil || now.Before(r.TriggeredAt.Add(s.gap)) {
			return "", true
		}
		s.sink.Push(user, fmt.Sprintf("Reminding you again. It's time to %s.", r.Task))
		at := now
		r.RemindedAt = &at
		r.State = StateRemindedTwice
		return StateRemindedTwice, true

	case StateRemindedTwice:
		if r.RemindedAt == nil || now.Before(r.RemindedAt.Add(s.gap)) {
			return "", true
		}
		s.sink.Push(user, fmt.Sprintf("The task %q is no longer active.", r.Task))
		logging.Debug("reminders", "Escalation finished for %s (%s)", r.ID, user)
		return StateRemoved, false
	}

	return "", true
}

// List returns copies of the user's reminders in insertion order
func (s *Store) List(user string) []Reminder {
	result := []Reminder{}
	s.lists.Peek(user, func(list *[]*Reminder) {
		for _, r := range *list {
			result = append(result, *r)
		}
	})
	return result
}

// Count returns how many reminders the user has
func (s *Store) Count(user string) int {
	n := 0
	s.lists.Peek(user, func(list *[]*Reminder) {
		n = len(*list)
	})
	return n
}

// Users returns every user that has ever had a reminder
func (s *Store) Users() []string {
	return s.lists.Users()
}
