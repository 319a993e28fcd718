// Package dialogue resolves underspecified commitments into reminders by
// asking for the missing day or time, one question at a time.
package dialogue

import "time"

// Awaiting is what the dialogue is waiting for from the user
type Awaiting string

const (
	AwaitNone          Awaiting = "none"
	AwaitTimeAndDay    Awaiting = "time_and_day"
	AwaitDay           Awaiting = "day"
	AwaitTime          Awaiting = "time"
	AwaitMultiDayTimes Awaiting = "multi_day_times"
)

// Slot is one collected day and time
type Slot struct {
	Day    time.Time `json:"day"`
	Hour   int       `json:"hour"`
	Minute int       `json:"minute"`
}

// At returns the slot as an instant in the day's location
func (s Slot) At() time.Time {
	return time.Date(s.Day.Year(), s.Day.Month(), s.Day.Day(), s.Hour, s.Minute, 0, 0, s.Day.Location())
}

// State is a user's pending dialogue. The zero value awaits nothing.
type State struct {
	Awaiting       Awaiting    `json:"awaiting"`
	Task           string      `json:"task,omitempty"`
	PendingHour    int         `json:"pending_hour,omitempty"`
	PendingMinute  int         `json:"pending_minute,omitempty"`
	HasPendingTime bool        `json:"has_pending_time,omitempty"`
	PendingDays    []time.Time `json:"pending_days,omitempty"`
	Collected      []Slot      `json:"collected,omitempty"`
}

// Active reports whether the dialogue is waiting for an answer
func (s State) Active() bool {
	return s.Awaiting != "" && s.Awaiting != AwaitNone
}

func (s *State) reset() {
	*s = State{Awaiting: AwaitNone}
}

func (s State) clone() State {
	c := s
	c.PendingDays = append([]time.Time(nil), s.PendingDays...)
	c.Collected = append([]Slot(nil), s.Collected...)
	if c.Awaiting == "" {
		c.Awaiting = AwaitNone
	}
	return c
}
