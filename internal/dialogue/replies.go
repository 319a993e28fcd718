package dialogue

import (
	"fmt"
	"strings"
	"time"
)

const (
	replyNoTask = "What should I remind you about?"
	replyPast   = "That time has already passed. "
)

func askTimeAndDay(task string) string {
	return fmt.Sprintf("When should I remind you to %s? Tell me a time and day.", task)
}

func askTime(days []time.Time) string {
	return fmt.Sprintf("What time on %s?", formatDays(days))
}

func askDay(hour, minute int) string {
	return fmt.Sprintf("Which day at %02d:%02d?", hour, minute)
}

func askPairs(days []time.Time) string {
	return fmt.Sprintf("What time on %s? Answer one day at a time, like \"%s at 08:00\".",
		formatDays(days), strings.ToLower(days[0].Weekday().String()))
}

func formatDays(days []time.Time) string {
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = d.Format("Monday 2 January")
	}
	return strings.Join(names, " and ")
}

func formatSlot(t time.Time) string {
	return t.Format("Monday 2 January at 15:04")
}
