package senses

import (
	"context"
	"fmt"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vthunder/nudge/internal/activity"
	"github.com/vthunder/nudge/internal/integrations/calendar"
	"github.com/vthunder/nudge/internal/logging"
	"github.com/vthunder/nudge/internal/metrics"
	"github.com/vthunder/nudge/internal/registry"
)

const (
	// DefaultLookahead is how far ahead the calendar is scanned for conflicts
	DefaultLookahead = 14 * 24 * time.Hour

	// DefaultFetchTimeout bounds a single calendar fetch
	DefaultFetchTimeout = 20 * time.Second

	// DefaultMaxReported caps the remembered conflicts per user
	DefaultMaxReported = 4096
)

// ConflictKey identifies a reported (invitation, accepted meeting) pair
type ConflictKey struct {
	PendingID  string
	AcceptedID string
}

// Notifier receives conflict notifications
type Notifier interface {
	Push(user, text string)
}

// watchState is one user's diff baseline and dedup memory
type watchState struct {
	snapshot map[string]calendar.Event // nil until the first successful poll
	polledAt time.Time

	// reported maps each surfaced conflict to the time both its events
	// have ended; past that it can never recur and is forgotten
	reported *lru.Cache[ConflictKey, time.Time]
}

// CalendarSense watches users' calendars and reports each new overlap between
// an unanswered invitation and an accepted meeting exactly once
type CalendarSense struct {
	source       calendar.Source
	sink         Notifier
	lookahead    time.Duration
	fetchTimeout time.Duration
	maxReported  int
	metrics      *metrics.Metrics
	journal      *activity.Log

	states *registry.Registry[*watchState]
}

// CalendarConfig holds configuration for the calendar sense
type CalendarConfig struct {
	Source       calendar.Source
	Lookahead    time.Duration
	FetchTimeout time.Duration
	MaxReported  int
	Metrics      *metrics.Metrics
	Journal      *activity.Log
}

// NewCalendarSense creates a new calendar sense that pushes to sink
func NewCalendarSense(cfg CalendarConfig, sink Notifier) *CalendarSense {
	if cfg.Lookahead == 0 {
		cfg.Lookahead = DefaultLookahead
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.MaxReported == 0 {
		cfg.MaxReported = DefaultMaxReported
	}

	c := &CalendarSense{
		source:       cfg.Source,
		sink:         sink,
		lookahead:    cfg.Lookahead,
		fetchTimeout: cfg.FetchTimeout,
		maxReported:  cfg.MaxReported,
		metrics:      cfg.Metrics,
		journal:      cfg.Journal,
	}
	c.states = registry.New(c.newState)
	return c
}

func (c *CalendarSense) newState() *watchState {
	cache, err := lru.New[ConflictKey, time.Time](c.maxReported)
	if err != nil {
		// Only possible for a non-positive size
		panic(fmt.Sprintf("calendar-sense: %v", err))
	}
	return &watchState{reported: cache}
}

// Watch registers a user for conflict checks. Idempotent.
func (c *CalendarSense) Watch(user string) {
	c.states.With(user, func(**watchState) {})
}

// Users returns every watched user
func (c *CalendarSense) Users() []string {
	return c.states.Users()
}

// Check runs one conflict detection cycle for user. The fetch happens outside
// any lock; a failed fetch leaves the previous snapshot in place and is
// returned for the caller to log.
func (c *CalendarSense) Check(ctx context.Context, user string, now time.Time) error {
	c.Watch(user)

	fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	events, err := c.source.FetchEvents(fetchCtx, user, now, now.Add(c.lookahead))
	if err != nil {
		c.metrics.FetchFailed()
		return fmt.Errorf("fetch calendar for %s: %w", user, err)
	}

	fresh := make(map[string]calendar.Event, len(events))
	for _, e := range events {
		fresh[e.ID] = e
	}

	var found []conflict
	c.states.With(user, func(sp **watchState) {
		st := *sp
		baseline := st.snapshot == nil

		// The snapshot is a diff baseline and is replaced, never merged
		st.snapshot = fresh
		st.polledAt = now

		c.forgetEnded(st, now)
		if baseline {
			logging.Debug("calendar-sense", "Baseline for %s: %d events", user, len(fresh))
			return
		}

		for _, cf := range detect(events) {
			if st.reported.Contains(cf.key()) {
				continue
			}
			st.reported.Add(cf.key(), laterEnd(cf.pending, cf.accepted))
			found = append(found, cf)
		}
	})

	// Notifications go out after the swap so the user lock is never held
	// while another component's lock is taken
	for _, cf := range found {
		c.sink.Push(user, cf.message())
		c.metrics.ConflictReported()
		c.journal.Log(activity.Entry{
			Type:    activity.TypeConflict,
			User:    user,
			Summary: fmt.Sprintf("%s conflicts with %s", cf.pending.Summary, cf.accepted.Summary),
			Source:  "calendar",
			Data: map[string]any{
				"pending_id":  cf.pending.ID,
				"accepted_id": cf.accepted.ID,
			},
		})
		logging.Info("calendar-sense", "Conflict for %s: %s vs %s", user,
			logging.Truncate(cf.pending.Summary, 40), logging.Truncate(cf.accepted.Summary, 40))
	}
	return nil
}

// forgetEnded drops reported conflicts whose events are both over
func (c *CalendarSense) forgetEnded(st *watchState, now time.Time) {
	for _, key := range st.reported.Keys() {
		if end, ok := st.reported.Peek(key); ok && !end.After(now) {
			st.reported.Remove(key)
		}
	}
}

// Snapshot returns a copy of the user's last fetched events, sorted by start
func (c *CalendarSense) Snapshot(user string) ([]calendar.Event, bool) {
	var events []calendar.Event
	have := false
	c.states.Peek(user, func(sp **watchState) {
		st := *sp
		if st.snapshot == nil {
			return
		}
		have = true
		for _, e := range st.snapshot {
			events = append(events, e)
		}
	})
	sort.Slice(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})
	return events, have
}

// Reported returns how many conflicts are remembered for user
func (c *CalendarSense) Reported(user string) int {
	n := 0
	c.states.Peek(user, func(sp **watchState) {
		n = (*sp).reported.Len()
	})
	return n
}

type conflict struct {
	pending  calendar.Event
	accepted calendar.Event
}

func (cf conflict) key() ConflictKey {
	return ConflictKey{PendingID: cf.pending.ID, AcceptedID: cf.accepted.ID}
}

func (cf conflict) message() string {
	return fmt.Sprintf("New activity in your calendar:\nYou have a meeting %q at %s on %s.\nIt conflicts with the invitation %q at %s.",
		cf.accepted.Summary,
		cf.accepted.Start.Format("15:04"),
		cf.accepted.Start.Format("2006-01-02"),
		cf.pending.Summary,
		cf.pending.Start.Format("15:04"))
}

// Conflicts returns every overlapping (invitation, accepted meeting) pair in
// events, in the order the invitations appear
func Conflicts(events []calendar.Event) []ConflictKey {
	found := detect(events)
	keys := make([]ConflictKey, len(found))
	for i, cf := range found {
		keys[i] = cf.key()
	}
	return keys
}

func detect(events []calendar.Event) []conflict {
	var accepted, pending []calendar.Event
	for _, e := range events {
		switch e.RSVP {
		case calendar.RSVPAccepted:
			accepted = append(accepted, e)
		case calendar.RSVPNeedsAction:
			pending = append(pending, e)
		}
	}

	var found []conflict
	for _, p := range pending {
		for _, a := range accepted {
			if p.ID != a.ID && calendar.Overlaps(p, a) {
				found = append(found, conflict{pending: p, accepted: a})
			}
		}
	}
	return found
}

func laterEnd(a, b calendar.Event) time.Time {
	if a.End.After(b.End) {
		return a.End
	}
	return b.End
}
