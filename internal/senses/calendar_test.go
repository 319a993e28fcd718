package senses

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vthunder/nudge/internal/integrations/calendar"
	"github.com/vthunder/nudge/internal/outbox"
)

// Monday 2 March 2026, 08:00
var now = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func ev(id string, startHour, endHour int, rsvp calendar.RSVP) calendar.Event {
	return calendar.Event{
		ID:      id,
		Summary: "Event " + id,
		Start:   time.Date(2026, 3, 2, startHour, 0, 0, 0, time.UTC),
		End:     time.Date(2026, 3, 2, endHour, 0, 0, 0, time.UTC),
		RSVP:    rsvp,
	}
}

func newSense(src calendar.Source) (*CalendarSense, *outbox.Outbox) {
	box := outbox.New()
	return NewCalendarSense(CalendarConfig{Source: src}, box), box
}

func TestCalendarSense_FirstPollIsBaseline(t *testing.T) {
	src := calendar.NewMemorySource()
	src.Set("u", []calendar.Event{
		ev("standup", 10, 11, calendar.RSVPAccepted),
		ev("invite", 10, 12, calendar.RSVPNeedsAction),
	})
	sense, box := newSense(src)

	if err := sense.Check(context.Background(), "u", now); err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if n := box.Pending("u"); n != 0 {
		t.Errorf("Expected no notifications on the baseline poll, got %d", n)
	}
	if events, ok := sense.Snapshot("u"); !ok || len(events) != 2 {
		t.Errorf("Expected baseline snapshot of 2 events, got %d (%v)", len(events), ok)
	}
}

func TestCalendarSense_ReportsNewConflictOnce(t *testing.T) {
	src := calendar.NewMemorySource()
	src.Set("u", []calendar.Event{ev("standup", 10, 11, calendar.RSVPAccepted)})
	sense, box := newSense(src)
	ctx := context.Background()

	sense.Check(ctx, "u", now) // baseline

	src.Set("u", []calendar.Event{
		ev("standup", 10, 11, calendar.RSVPAccepted),
		ev("invite", 10, 12, calendar.RSVPNeedsAction),
		ev("later", 14, 15, calendar.RSVPNeedsAction), // no overlap
	})
	if err := sense.Check(ctx, "u", now.Add(time.Minute)); err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	msgs := box.Drain("u")
	if len(msgs) != 1 {
		t.Fatalf("Expected 1 conflict notification, got %d: %v", len(msgs), msgs)
	}
	if !strings.Contains(msgs[0], "Event standup") || !strings.Contains(msgs[0], "Event invite") {
		t.Errorf("Expected both events in notification, got %q", msgs[0])
	}

	// Unchanged calendar: nothing new
	if err := sense.Check(ctx, "u", now.Add(2*time.Minute)); err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if n := box.Pending("u"); n != 0 {
		t.Errorf("Expected idempotent detection, got %d new notifications", n)
	}
	if sense.Reported("u") != 1 {
		t.Errorf("Expected 1 remembered conflict, got %d", sense.Reported("u"))
	}
}

func TestCalendarSense_BoundariesAndRSVP(t *testing.T) {
	src := calendar.NewMemorySource()
	src.Set("u", nil)
	sense, box := newSense(src)
	ctx := context.Background()
	sense.Check(ctx, "u", now)

	src.Set("u", []calendar.Event{
		ev("a", 10, 11, calendar.RSVPAccepted),
		ev("touching", 11, 12, calendar.RSVPNeedsAction), // back to back
		ev("tentative", 10, 11, calendar.RSVPTentative),  // not pending
		ev("declined", 10, 11, calendar.RSVPDeclined),    // not pending
	})
	sense.Check(ctx, "u", now)

	if n := box.Pending("u"); n != 0 {
		t.Errorf("Expected no conflicts, got %d: %v", n, box.Drain("u"))
	}
}

func TestCalendarSense_FetchFailureKeepsSnapshot(t *testing.T) {
	src := calendar.NewMemorySource()
	src.Set("u", []calendar.Event{ev("standup", 10, 11, calendar.RSVPAccepted)})
	sense, box := newSense(src)
	ctx := context.Background()
	sense.Check(ctx, "u", now)

	boom := errors.New("provider down")
	src.Fail("u", boom)
	if err := sense.Check(ctx, "u", now); !errors.Is(err, boom) {
		t.Fatalf("Expected wrapped fetch error, got %v", err)
	}
	if events, ok := sense.Snapshot("u"); !ok || len(events) != 1 {
		t.Errorf("Expected previous snapshot kept, got %v", events)
	}

	// Recovery: the conflict is detected on the next good poll, not lost
	src.Fail("u", nil)
	src.Set("u", []calendar.Event{
		ev("standup", 10, 11, calendar.RSVPAccepted),
		ev("invite", 10, 11, calendar.RSVPNeedsAction),
	})
	if err := sense.Check(ctx, "u", now); err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if n := box.Pending("u"); n != 1 {
		t.Errorf("Expected 1 notification after recovery, got %d", n)
	}
}

// slowSource blocks until the context is done
type slowSource struct{}

func (slowSource) FetchEvents(ctx context.Context, user string, start, end time.Time) ([]calendar.Event, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestCalendarSense_FetchTimeout(t *testing.T) {
	sense := NewCalendarSense(CalendarConfig{Source: slowSource{}, FetchTimeout: 10 * time.Millisecond}, outbox.New())

	err := sense.Check(context.Background(), "u", now)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestCalendarSense_ForgetsEndedConflicts(t *testing.T) {
	src := calendar.NewMemorySource()
	src.Set("u", nil)
	sense, box := newSense(src)
	ctx := context.Background()
	sense.Check(ctx, "u", now)

	src.Set("u", []calendar.Event{
		ev("standup", 10, 11, calendar.RSVPAccepted),
		ev("invite", 10, 12, calendar.RSVPNeedsAction),
	})
	sense.Check(ctx, "u", now)
	box.Drain("u")
	if sense.Reported("u") != 1 {
		t.Fatalf("Expected 1 remembered conflict")
	}

	// After both events end the key is evicted
	src.Set("u", nil)
	sense.Check(ctx, "u", time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC))
	if sense.Reported("u") != 0 {
		t.Errorf("Expected ended conflict forgotten, got %d", sense.Reported("u"))
	}
}

func TestCalendarSense_MaxReportedBound(t *testing.T) {
	src := calendar.NewMemorySource()
	src.Set("u", nil)
	box := outbox.New()
	sense := NewCalendarSense(CalendarConfig{Source: src, MaxReported: 2}, box)
	ctx := context.Background()
	sense.Check(ctx, "u", now)

	src.Set("u", []calendar.Event{
		ev("meeting", 9, 17, calendar.RSVPAccepted),
		ev("i1", 10, 11, calendar.RSVPNeedsAction),
		ev("i2", 11, 12, calendar.RSVPNeedsAction),
		ev("i3", 12, 13, calendar.RSVPNeedsAction),
	})
	sense.Check(ctx, "u", now)

	if n := box.Pending("u"); n != 3 {
		t.Errorf("Expected 3 notifications, got %d", n)
	}
	if sense.Reported("u") != 2 {
		t.Errorf("Expected remembered conflicts capped at 2, got %d", sense.Reported("u"))
	}
}

func TestConflicts(t *testing.T) {
	keys := Conflicts([]calendar.Event{
		ev("a", 10, 11, calendar.RSVPAccepted),
		ev("b", 13, 14, calendar.RSVPAccepted),
		ev("p", 10, 14, calendar.RSVPNeedsAction),
	})
	if len(keys) != 2 {
		t.Fatalf("Expected 2 conflicts, got %v", keys)
	}
	if keys[0] != (ConflictKey{PendingID: "p", AcceptedID: "a"}) {
		t.Errorf("Unexpected first key %+v", keys[0])
	}
}
