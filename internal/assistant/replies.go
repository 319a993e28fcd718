package assistant

import (
	"fmt"
	"strings"
	"time"

	"github.com/vthunder/nudge/internal/integrations/calendar"
)

// DefaultReply introduces the assistant when a message matches no intent
const DefaultReply = "I take care of the things you shouldn't have to spend time on, " +
	"like reminding you to call mom, finding gaps in your calendar " +
	"and telling you when meetings clash.\n" +
	"I'm ready for the next task."

const (
	replyStopped     = "OK, that task is no longer active."
	replyCancelled   = "OK, forget it."
	replyNoCalendar  = "I can't see your calendar yet."
	replyCalendarErr = "I couldn't reach your calendar right now. Try again in a moment."
	replyNoSlots     = "I couldn't find a free hour in the coming week."
	replyEmptyAgenda = "Nothing on your calendar in the coming week."
)

func replySnoozed(task string, due time.Time) string {
	return fmt.Sprintf("OK, I'll remind you again to %s at %s.", task, due.Format("15:04"))
}

func replySlots(slots []calendar.Slot) string {
	var b strings.Builder
	b.WriteString("You're free:")
	for _, s := range slots {
		fmt.Fprintf(&b, "\n- %s %s-%s", s.Start.Format("Monday 2 January"), s.Start.Format("15:04"), s.End.Format("15:04"))
	}
	return b.String()
}

func replyAgenda(events []calendar.Event, loc *time.Location) string {
	var b strings.Builder
	b.WriteString("Coming up:")
	for _, e := range events {
		e.Start = e.Start.In(loc)
		fmt.Fprintf(&b, "\n- %s", e.FormatEventSummary())
	}
	return b.String()
}
