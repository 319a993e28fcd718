package dialogue

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vthunder/nudge/internal/logging"
	"github.com/vthunder/nudge/internal/registry"
	"github.com/vthunder/nudge/internal/reminder"
	"github.com/vthunder/nudge/internal/timeparse"
	"github.com/vthunder/nudge/internal/vocab"
)

// Creator materializes reminders once a task has a due time
type Creator interface {
	Add(user, task string, due time.Time) reminder.Reminder
}

// Outcome is the result of one dialogue turn
type Outcome struct {
	Reply    string
	Created  []reminder.Reminder
	Awaiting Awaiting
}

// Engine runs one slot-filling dialogue per user
type Engine struct {
	states *registry.Registry[State]
	parser *timeparse.Parser
	tasks  *TaskExtractor
	store  Creator
}

// NewEngine creates a dialogue engine that adds finished commitments to store
func NewEngine(v *vocab.Vocabulary, store Creator) *Engine {
	if v == nil {
		v = vocab.Default()
	}
	parser := timeparse.New(v)
	return &Engine{
		states: registry.New(func() State { return State{Awaiting: AwaitNone} }),
		parser: parser,
		tasks:  NewTaskExtractor(v, parser),
		store:  store,
	}
}

// Parser returns the time parser the engine uses
func (e *Engine) Parser() *timeparse.Parser {
	return e.parser
}

// State returns a copy of the user's dialogue state
func (e *Engine) State(user string) State {
	st := State{Awaiting: AwaitNone}
	e.states.Peek(user, func(s *State) {
		st = s.clone()
	})
	return st
}

// Active reports whether the user owes the dialogue an answer
func (e *Engine) Active(user string) bool {
	return e.State(user).Active()
}

// Reset drops any pending question for the user
func (e *Engine) Reset(user string) {
	e.states.Peek(user, func(s *State) {
		s.reset()
	})
}

// Begin starts a new commitment from text, replacing any pending dialogue.
// Reminders are created right away when text names both day(s) and a time.
func (e *Engine) Begin(user, text string, now time.Time) Outcome {
	task := e.tasks.Extract(text, now)
	if task == "" {
		return Outcome{Reply: replyNoTask, Awaiting: AwaitNone}
	}

	var out Outcome
	e.states.With(user, func(s *State) {
		s.reset()
		s.Task = task
		res, err := e.parser.Parse(text, now)
		out = e.fresh(user, s, res, err, now)
	})

	logging.Debug("dialogue", "Begin %s task=%q -> %s", user, task, out.Awaiting)
	return out
}

// Handle feeds an answer into the user's pending dialogue
func (e *Engine) Handle(user, text string, now time.Time) Outcome {
	out := Outcome{Awaiting: AwaitNone}
	e.states.Peek(user, func(s *State) {
		if !s.Active() {
			return
		}
		res, err := e.parser.Parse(text, now)

		switch s.Awaiting {
		case AwaitTimeAndDay:
			out = e.fresh(user, s, res, err, now)
		case AwaitDay:
			out = e.answerDay(user, s, res, err, now)
		case AwaitTime:
			out = e.answerTime(user, s, res, err, now)
		case AwaitMultiDayTimes:
			out = e.answerPair(user, s, res, err, now)
		}
	})

	logging.Debug("dialogue", "Handle %s -> %s (%d created)", user, out.Awaiting, len(out.Created))
	return out
}

// fresh interprets a parse with no prior day or time collected
func (e *Engine) fresh(user string, s *State, res timeparse.Result, err error, now time.Time) Outcome {
	switch {
	case errors.Is(err, timeparse.ErrPast):
		s.Awaiting = AwaitTimeAndDay
		return e.ask(s, replyPast+askTimeAndDay(s.Task))
	case err != nil:
		s.Awaiting = AwaitTimeAndDay
		return e.ask(s, askTimeAndDay(s.Task))
	case res.Complete():
		at, err := res.Instants(now)
		if err != nil {
			s.Awaiting = AwaitTimeAndDay
			return e.ask(s, replyPast+askTimeAndDay(s.Task))
		}
		return e.commit(user, s, at)
	case res.HasDays() && len(res.Days) > 1:
		s.Awaiting = AwaitMultiDayTimes
		s.PendingDays = res.Days
		return e.ask(s, askPairs(s.PendingDays))
	case res.HasDays():
		s.Awaiting = AwaitTime
		s.PendingDays = res.Days
		return e.ask(s, askTime(s.PendingDays))
	default:
		s.Awaiting = AwaitDay
		s.PendingHour, s.PendingMinute, s.HasPendingTime = res.Hour, res.Minute, true
		return e.ask(s, askDay(s.PendingHour, s.PendingMinute))
	}
}

// answerDay completes a commitment whose time is known
func (e *Engine) answerDay(user string, s *State, res timeparse.Result, err error, now time.Time) Outcome {
	if res.Relative > 0 {
		return e.commit(user, s, []time.Time{now.Add(res.Relative)})
	}
	if (err != nil && !errors.Is(err, timeparse.ErrPast)) || !res.HasDays() {
		return e.ask(s, askDay(s.PendingHour, s.PendingMinute))
	}

	hour, minute := s.PendingHour, s.PendingMinute
	if res.HasTime {
		hour, minute = res.Hour, res.Minute
	}
	at, rerr := timeparse.Resolve(res.Days, hour, minute, now)
	if rerr != nil {
		return e.ask(s, replyPast+askDay(s.PendingHour, s.PendingMinute))
	}
	return e.commit(user, s, at)
}

// answerTime completes a commitment whose day is known
func (e *Engine) answerTime(user string, s *State, res timeparse.Result, err error, now time.Time) Outcome {
	if res.Relative > 0 {
		return e.commit(user, s, []time.Time{now.Add(res.Relative)})
	}
	if (err != nil && !errors.Is(err, timeparse.ErrPast)) || !res.HasTime {
		return e.ask(s, askTime(s.PendingDays))
	}

	days := s.PendingDays
	if res.HasDays() {
		days = res.Days
	}
	at, rerr := timeparse.Resolve(days, res.Hour, res.Minute, now)
	if rerr != nil {
		return e.ask(s, replyPast+askTime(s.PendingDays))
	}
	return e.commit(user, s, at)
}

// answerPair takes one or more "day at time" answers for the pending days
func (e *Engine) answerPair(user string, s *State, res timeparse.Result, err error, now time.Time) Outcome {
	note := ""
	if expire(s, now) {
		note = replyPast
	}
	switch {
	case len(s.PendingDays) == 0 && len(s.Collected) == 0:
		s.Awaiting = AwaitTimeAndDay
		return e.ask(s, replyPast+askTimeAndDay(s.Task))
	case len(s.PendingDays) == 0:
		return e.commit(user, s, collectedInstants(s))
	}

	if errors.Is(err, timeparse.ErrPast) {
		return e.ask(s, replyPast+askPairs(s.PendingDays))
	}
	if err != nil || !res.HasDays() || !res.HasTime || res.Relative > 0 {
		return e.ask(s, note+askPairs(s.PendingDays))
	}

	matched := 0
	var remaining []time.Time
	for _, d := range s.PendingDays {
		if containsDay(res.Days, d) {
			s.Collected = append(s.Collected, Slot{Day: d, Hour: res.Hour, Minute: res.Minute})
			matched++
			continue
		}
		remaining = append(remaining, d)
	}
	if matched == 0 {
		return e.ask(s, note+askPairs(s.PendingDays))
	}
	s.PendingDays = remaining

	if len(s.PendingDays) > 0 {
		last := s.Collected[len(s.Collected)-1]
		return e.ask(s, fmt.Sprintf("%sGot %s. %s", note, formatSlot(last.At()), askPairs(s.PendingDays)))
	}
	return e.commit(user, s, collectedInstants(s))
}

// expire drops pending days that are over and collected slots whose time
// has passed. A passed slot on a day that is not over goes back to the
// pending days so a later time can be given. Reports whether anything changed.
func expire(s *State, now time.Time) bool {
	today := midnight(now)
	changed := false

	var kept []Slot
	for _, slot := range s.Collected {
		if slot.At().After(now) {
			kept = append(kept, slot)
			continue
		}
		changed = true
		if !slot.Day.Before(today) {
			s.PendingDays = append(s.PendingDays, slot.Day)
		}
	}
	s.Collected = kept

	var days []time.Time
	for _, d := range s.PendingDays {
		if d.Before(today) {
			changed = true
			continue
		}
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	s.PendingDays = days
	return changed
}

func collectedInstants(s *State) []time.Time {
	at := make([]time.Time, len(s.Collected))
	for i, slot := range s.Collected {
		at[i] = slot.At()
	}
	return at
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// commit creates one reminder per instant and resets the dialogue
func (e *Engine) commit(user string, s *State, at []time.Time) Outcome {
	task := s.Task
	created := make([]reminder.Reminder, 0, len(at))
	for _, due := range at {
		created = append(created, e.store.Add(user, task, due))
	}
	s.reset()

	when := make([]string, len(at))
	for i, t := range at {
		when[i] = formatSlot(t)
	}
	return Outcome{
		Reply:    fmt.Sprintf("OK, I'll remind you to %s on %s.", task, strings.Join(when, " and ")),
		Created:  created,
		Awaiting: AwaitNone,
	}
}

func (e *Engine) ask(s *State, reply string) Outcome {
	return Outcome{Reply: reply, Awaiting: s.Awaiting}
}

func containsDay(days []time.Time, d time.Time) bool {
	for _, x := range days {
		if x.Year() == d.Year() && x.YearDay() == d.YearDay() {
			return true
		}
	}
	return false
}
