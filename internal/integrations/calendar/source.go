package calendar

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNotConnected is returned for users without a calendar
var ErrNotConnected = errors.New("calendar: user has no connected calendar")

// Source supplies a user's events in [start, end)
type Source interface {
	FetchEvents(ctx context.Context, user string, start, end time.Time) ([]Event, error)
}

// MemorySource serves events from memory and can be told to fail for a
// user. Tests use it in place of a provider.
type MemorySource struct {
	mu     sync.RWMutex
	events map[string][]Event
	errs   map[string]error
	calls  map[string]int
}

// NewMemorySource creates an empty in-memory source
func NewMemorySource() *MemorySource {
	return &MemorySource{
		events: make(map[string][]Event),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

// Set replaces the user's calendar
func (m *MemorySource) Set(user string, events []Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[user] = append([]Event(nil), events...)
}

// Fail makes the next fetches for user return err; nil clears it
func (m *MemorySource) Fail(user string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, user)
		return
	}
	m.errs[user] = err
}

// Calls returns how many times the user's calendar was fetched
func (m *MemorySource) Calls(user string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[user]
}

// FetchEvents returns the user's events that overlap [start, end), sorted by start
func (m *MemorySource) FetchEvents(ctx context.Context, user string, start, end time.Time) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.calls[user]++
	events, ok := m.events[user]
	err := m.errs[user]
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotConnected
	}

	window := Event{Start: start, End: end}
	var result []Event
	for _, e := range events {
		if Overlaps(e, window) {
			result = append(result, e)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Start.Before(result[j].Start)
	})
	return result, nil
}
