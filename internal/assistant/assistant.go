// Package assistant routes chat messages to the reminder, dialogue and
// calendar components. It is the one entry point every transport shares.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmhodges/clock"
	"github.com/vthunder/nudge/internal/activity"
	"github.com/vthunder/nudge/internal/dialogue"
	"github.com/vthunder/nudge/internal/integrations/calendar"
	"github.com/vthunder/nudge/internal/logging"
	"github.com/vthunder/nudge/internal/outbox"
	"github.com/vthunder/nudge/internal/reminder"
	"github.com/vthunder/nudge/internal/vocab"
)

const (
	// DefaultSnooze is used when "remind me again" names no duration
	DefaultSnooze = 10 * time.Minute

	// DefaultAgendaSize is how many events an agenda answer lists
	DefaultAgendaSize = 5

	// taskWordLimit is the longest message taken as a bare task
	taskWordLimit = 5

	calendarTimeout = 20 * time.Second
	agendaWindow    = 7 * 24 * time.Hour
)

// Config wires the assistant to its collaborators
type Config struct {
	Vocab     *vocab.Vocabulary
	Reminders *reminder.Store
	Outbox    *outbox.Outbox
	Calendar  calendar.Source // nil disables calendar answers
	Slots     calendar.SlotConfig
	Snooze    time.Duration
	Clock     clock.Clock
	Journal   *activity.Log

	// Location returns the user's time zone; nil means UTC for everyone
	Location func(user string) *time.Location
}

// Assistant answers chat messages
type Assistant struct {
	vocab     *vocab.Vocabulary
	reminders *reminder.Store
	outbox    *outbox.Outbox
	dialogue  *dialogue.Engine
	calendar  calendar.Source
	slots     calendar.SlotConfig
	snooze    time.Duration
	clk       clock.Clock
	journal   *activity.Log
	location  func(string) *time.Location
}

// New creates an assistant
func New(cfg Config) *Assistant {
	if cfg.Vocab == nil {
		cfg.Vocab = vocab.Default()
	}
	if cfg.Snooze <= 0 {
		cfg.Snooze = DefaultSnooze
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Location == nil {
		cfg.Location = func(string) *time.Location { return time.UTC }
	}
	return &Assistant{
		vocab:     cfg.Vocab,
		reminders: cfg.Reminders,
		outbox:    cfg.Outbox,
		dialogue:  dialogue.NewEngine(cfg.Vocab, cfg.Reminders),
		calendar:  cfg.Calendar,
		slots:     cfg.Slots,
		snooze:    cfg.Snooze,
		clk:       cfg.Clock,
		journal:   cfg.Journal,
		location:  cfg.Location,
	}
}

// Submit answers one message from user
func (a *Assistant) Submit(user, text string) string {
	return a.SubmitContext(context.Background(), user, text)
}

// SubmitContext answers one message from user. ctx bounds calendar lookups.
func (a *Assistant) SubmitContext(ctx context.Context, user, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	a.journal.LogInput(user, source(user), text)

	reply := a.route(ctx, user, text)

	a.journal.LogReply(user, reply)
	return reply
}

// Poll drains the user's pending notifications, oldest first
func (a *Assistant) Poll(user string) []string {
	return a.outbox.Drain(user)
}

// Reminders lists the user's reminders
func (a *Assistant) Reminders(user string) []reminder.Reminder {
	return a.reminders.List(user)
}

// Now returns the current time in the user's zone
func (a *Assistant) Now(user string) time.Time {
	return a.clk.Now().In(a.location(user))
}

func (a *Assistant) route(ctx context.Context, user, text string) string {
	now := a.Now(user)

	switch {
	case a.vocab.IsStop(text):
		return a.stop(user)

	case vocab.ContainsAny(text, a.vocab.Snooze):
		return a.snoozeReminder(user, text, now)

	case a.dialogue.Active(user):
		return a.converse(a.dialogue.Handle(user, text, now), user)
	}

	if _, ok := vocab.StripPrefix(text, a.vocab.Remind); ok {
		return a.converse(a.dialogue.Begin(user, text, now), user)
	}

	if a.isCalendarQuestion(text) {
		return a.answerCalendar(ctx, user, text, now)
	}

	if a.isTaskLike(text) {
		return a.converse(a.dialogue.Begin(user, text, now), user)
	}

	return DefaultReply
}

// stop clears every reminder and any half-finished dialogue
func (a *Assistant) stop(user string) string {
	wasActive := a.dialogue.Active(user)
	a.dialogue.Reset(user)

	n := a.reminders.Clear(user)
	if n == 0 {
		if wasActive {
			return replyCancelled
		}
		return DefaultReply
	}

	a.journal.Log(activity.Entry{
		Type:    activity.TypeStop,
		User:    user,
		Summary: fmt.Sprintf("cleared %d reminders", n),
		Data:    map[string]any{"count": n},
	})
	logging.Info("assistant", "Cleared %d reminders for %s", n, user)
	return replyStopped
}

// snoozeReminder pushes the latest reminder back by the requested or default delay
func (a *Assistant) snoozeReminder(user, text string, now time.Time) string {
	d := a.snooze
	if res, err := a.dialogue.Parser().Parse(text, now); err == nil && res.Relative > 0 {
		d = res.Relative
	}

	r, ok := a.reminders.Snooze(user, now, d)
	if !ok {
		return DefaultReply
	}

	a.journal.Log(activity.Entry{
		Type:    activity.TypeSnooze,
		User:    user,
		Summary: r.Task,
		Data:    map[string]any{"id": r.ID, "due": r.Due.Format(time.RFC3339)},
	})
	return replySnoozed(r.Task, r.Due)
}

// converse records the reminders a dialogue turn created
func (a *Assistant) converse(out dialogue.Outcome, user string) string {
	for _, r := range out.Created {
		a.journal.Log(activity.Entry{
			Type:    activity.TypeReminder,
			User:    user,
			Summary: r.Task,
			Data:    map[string]any{"id": r.ID, "due": r.Due.Format(time.RFC3339)},
		})
	}
	return out.Reply
}

func (a *Assistant) isCalendarQuestion(text string) bool {
	if vocab.ContainsAny(text, a.vocab.Free) {
		return true
	}
	if !vocab.ContainsAny(text, a.vocab.Calendar) {
		return false
	}
	return strings.Contains(text, "?") || vocab.ContainsAny(text, a.vocab.Question)
}

// isTaskLike matches short imperative messages such as "call mom"
func (a *Assistant) isTaskLike(text string) bool {
	if strings.Contains(text, "?") {
		return false
	}
	if _, question := vocab.StripPrefix(text, a.vocab.Question); question {
		return false
	}
	return len(strings.Fields(text)) <= taskWordLimit
}

func (a *Assistant) answerCalendar(ctx context.Context, user, text string, now time.Time) string {
	if vocab.ContainsAny(text, a.vocab.Free) {
		slots, err := a.FreeSlots(ctx, user)
		if err != nil {
			return a.calendarFailure(user, err)
		}
		if len(slots) == 0 {
			return replyNoSlots
		}
		return replySlots(slots)
	}

	events, err := a.Agenda(ctx, user, DefaultAgendaSize)
	if err != nil {
		return a.calendarFailure(user, err)
	}
	if len(events) == 0 {
		return replyEmptyAgenda
	}
	return replyAgenda(events, now.Location())
}

func (a *Assistant) calendarFailure(user string, err error) string {
	if errors.Is(err, calendar.ErrNotConnected) {
		return replyNoCalendar
	}
	logging.Warn("assistant", "Calendar lookup for %s failed: %v", user, err)
	a.journal.LogError(user, "calendar lookup failed", err)
	return replyCalendarErr
}

// FreeSlots suggests free workday hours for user in their time zone
func (a *Assistant) FreeSlots(ctx context.Context, user string) ([]calendar.Slot, error) {
	if a.calendar == nil {
		return nil, calendar.ErrNotConnected
	}
	now := a.Now(user)
	days := a.slots.Days
	if days == 0 {
		days = 7
	}

	ctx, cancel := context.WithTimeout(ctx, calendarTimeout)
	defer cancel()
	events, err := a.calendar.FetchEvents(ctx, user, now, now.AddDate(0, 0, days+1))
	if err != nil {
		return nil, fmt.Errorf("fetch calendar: %w", err)
	}
	return calendar.FreeSlots(events, now, a.slots), nil
}

// Agenda returns up to n upcoming events for user
func (a *Assistant) Agenda(ctx context.Context, user string, n int) ([]calendar.Event, error) {
	if a.calendar == nil {
		return nil, calendar.ErrNotConnected
	}
	now := a.Now(user)

	ctx, cancel := context.WithTimeout(ctx, calendarTimeout)
	defer cancel()
	events, err := a.calendar.FetchEvents(ctx, user, now, now.Add(agendaWindow))
	if err != nil {
		return nil, fmt.Errorf("fetch calendar: %w", err)
	}

	var out []calendar.Event
	for _, e := range events {
		if e.RSVP == calendar.RSVPDeclined {
			continue
		}
		out = append(out, e)
		if len(out) == n {
			break
		}
	}
	return out, nil
}

// source names the transport from the user id prefix
func source(user string) string {
	if i := strings.IndexByte(user, ':'); i > 0 {
		return user[:i]
	}
	return "direct"
}
