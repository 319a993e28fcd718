package calendar

import (
	"sort"
	"time"
)

// SlotConfig bounds the free-slot search
type SlotConfig struct {
	DayStart int           // first hour of the workday (default 9)
	DayEnd   int           // hour the workday ends (default 17)
	Length   time.Duration // slot length (default 1h)
	Days     int           // days to scan (default 7)
	Limit    int           // slots to return (default 3)
}

func (c SlotConfig) withDefaults() SlotConfig {
	if c.DayStart == 0 && c.DayEnd == 0 {
		c.DayStart, c.DayEnd = 9, 17
	}
	if c.Length == 0 {
		c.Length = time.Hour
	}
	if c.Days == 0 {
		c.Days = 7
	}
	if c.Limit == 0 {
		c.Limit = 3
	}
	return c
}

// Slot is a free interval
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Busy reports whether an event blocks time for the slot finder. Accepted
// and tentative timed events do; all-day, declined and unanswered ones do not.
func Busy(e Event) bool {
	if e.AllDay {
		return false
	}
	return e.RSVP == RSVPAccepted || e.RSVP == RSVPTentative
}

// FreeSlots suggests free workday slots at or after from, in from's location.
// Each day is walked from the workday start; every gap between busy events
// long enough for a slot yields one slot at its start.
func FreeSlots(events []Event, from time.Time, cfg SlotConfig) []Slot {
	cfg = cfg.withDefaults()

	var busy []Event
	for _, e := range events {
		if Busy(e) {
			busy = append(busy, e)
		}
	}
	sort.Slice(busy, func(i, j int) bool {
		return busy[i].Start.Before(busy[j].Start)
	})

	var slots []Slot
	add := func(start time.Time) bool {
		slots = append(slots, Slot{Start: start, End: start.Add(cfg.Length)})
		return len(slots) >= cfg.Limit
	}

	loc := from.Location()
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)
	for d := 0; d < cfg.Days; d++ {
		date := day.AddDate(0, 0, d)
		dayStart := time.Date(date.Year(), date.Month(), date.Day(), cfg.DayStart, 0, 0, 0, loc)
		dayEnd := time.Date(date.Year(), date.Month(), date.Day(), cfg.DayEnd, 0, 0, 0, loc)

		cursor := dayStart
		if cursor.Before(from) {
			cursor = from
		}
		for _, b := range busy {
			if !b.End.After(dayStart) || !b.Start.Before(dayEnd) {
				continue
			}
			if !cursor.Add(cfg.Length).After(b.Start) && !cursor.Add(cfg.Length).After(dayEnd) {
				if add(cursor) {
					return slots
				}
			}
			if b.End.After(cursor) {
				cursor = b.End
			}
		}
		if !cursor.Add(cfg.Length).After(dayEnd) {
			if add(cursor) {
				return slots
			}
		}
	}
	return slots
}
