package calendar

import (
	"fmt"
	"strings"
	"time"
)

// RSVP is a user's response to an invitation
type RSVP string

const (
	RSVPNeedsAction RSVP = "needsAction"
	RSVPTentative   RSVP = "tentative"
	RSVPAccepted    RSVP = "accepted"
	RSVPDeclined    RSVP = "declined"
)

// NormalizeRSVP maps a provider response status onto the fixed set. Both
// Google and Microsoft Graph vocabularies are understood, in any case.
// Unknown values count as not yet answered.
func NormalizeRSVP(status string) RSVP {
	switch strings.ToLower(status) {
	case "accepted", "yes", "organizer":
		return RSVPAccepted
	case "tentative", "tentativelyaccepted", "maybe":
		return RSVPTentative
	case "declined", "no":
		return RSVPDeclined
	}
	// needsAction, notResponded, none
	return RSVPNeedsAction
}

// Event is a calendar entry as seen by one user
type Event struct {
	ID        string    `json:"id"`
	Summary   string    `json:"summary"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	AllDay    bool      `json:"all_day"`
	RSVP      RSVP      `json:"rsvp"`
	Organizer string    `json:"organizer,omitempty"`
	Location  string    `json:"location,omitempty"`
}

// Overlaps reports whether two events share any time. Intervals are
// half-open, so back-to-back events do not overlap.
func Overlaps(a, b Event) bool {
	return a.Start.Before(b.End) && a.End.After(b.Start)
}

// Duration returns the event duration
func (e *Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// FormatEventSummary returns a human-readable summary of an event
func (e *Event) FormatEventSummary() string {
	timeStr := e.Start.Format("Mon 2 Jan 15:04")
	if e.AllDay {
		timeStr = e.Start.Format("Mon 2 Jan") + " (all day)"
	}

	summary := fmt.Sprintf("%s - %s", timeStr, e.Summary)
	if e.Location != "" {
		summary += fmt.Sprintf(" @ %s", e.Location)
	}
	if e.RSVP == RSVPNeedsAction {
		summary += " (not answered)"
	}
	return summary
}
