package reminder

import "time"

// State is the escalation stage of a reminder
type State string

const (
	StateActive        State = "active"         // waiting for its due time
	StateTriggeredOnce State = "triggered_once" // first notification sent
	StateRemindedTwice State = "reminded_twice" // second notification sent
)

// StateRemoved is reported to metrics when a reminder completes its escalation.
// Removed reminders are deleted from the store, never kept in this state.
const StateRemoved State = "removed"

// Reminder is one scheduled nudge for a commitment
type Reminder struct {
	ID          string     `json:"id"`
	Owner       string     `json:"owner"`
	Task        string     `json:"task"`
	Due         time.Time  `json:"due"`
	State       State      `json:"state"`
	TriggeredAt *time.Time `json:"triggered_at,omitempty"` // set once the first notification fired
	RemindedAt  *time.Time `json:"reminded_at,omitempty"`  // set once the second notification fired
	CreatedAt   time.Time  `json:"created_at"`
}

// Notifier receives the human-readable notification for each transition
type Notifier interface {
	Push(user, text string)
}
