// Package scheduler drives the background work: reminder escalation and
// calendar conflict checks for every known user on a fixed period.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmhodges/clock"
	"github.com/vthunder/nudge/internal/activity"
	"github.com/vthunder/nudge/internal/integrations/calendar"
	"github.com/vthunder/nudge/internal/logging"
	"github.com/vthunder/nudge/internal/metrics"
)

// DefaultPeriod is the tick interval
const DefaultPeriod = 30 * time.Second

// Reminders is the reminder store as seen by the scheduler
type Reminders interface {
	Users() []string
	Advance(user string, now time.Time) int
}

// Conflicts is the conflict watcher as seen by the scheduler
type Conflicts interface {
	Users() []string
	Check(ctx context.Context, user string, now time.Time) error
}

// Config holds scheduler settings
type Config struct {
	Period  time.Duration
	Clock   clock.Clock
	Metrics *metrics.Metrics
	Journal *activity.Log
}

// Scheduler runs the combined tick
type Scheduler struct {
	reminders Reminders
	conflicts Conflicts // nil when no calendar is configured
	period    time.Duration
	clk       clock.Clock
	metrics   *metrics.Metrics
	journal   *activity.Log
}

// Report summarizes one tick
type Report struct {
	Transitions int // reminder notifications queued
	Checked     int // calendars checked successfully
	Failures    int // users whose work failed this tick
}

// New creates a scheduler. conflicts may be nil.
func New(reminders Reminders, conflicts Conflicts, cfg Config) *Scheduler {
	if cfg.Period <= 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	return &Scheduler{
		reminders: reminders,
		conflicts: conflicts,
		period:    cfg.Period,
		clk:       cfg.Clock,
		metrics:   cfg.Metrics,
		journal:   cfg.Journal,
	}
}

// Run ticks once immediately and then every period until ctx is cancelled.
// A tick in progress when ctx is cancelled runs to completion and no further
// tick starts. The period is measured on the injected clock from the end of
// the previous tick.
func (s *Scheduler) Run(ctx context.Context) error {
	logging.Info("scheduler", "Started (period=%v)", s.period)

	timer := s.clk.NewTimer(s.period)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			break
		}
		s.Tick(context.WithoutCancel(ctx))
		if ctx.Err() != nil {
			break
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(s.period)

		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	}
	logging.Info("scheduler", "Stopped")
	return nil
}

// Tick advances every user's reminders and checks every watched calendar.
// Users are processed sequentially; one user's failure never stops the rest.
func (s *Scheduler) Tick(ctx context.Context) Report {
	start := s.clk.Now()
	var rep Report

	for _, user := range s.reminders.Users() {
		n, err := s.advance(user)
		if err != nil {
			rep.Failures++
			s.fail(user, "reminder advance failed", err)
			continue
		}
		rep.Transitions += n
	}

	if s.conflicts != nil {
		for _, user := range s.conflicts.Users() {
			err := s.check(ctx, user)
			switch {
			case err == nil:
				rep.Checked++
			case errors.Is(err, calendar.ErrNotConnected):
				logging.Debug("scheduler", "No calendar for %s", user)
			default:
				rep.Failures++
				s.fail(user, "calendar check failed", err)
			}
		}
	}

	s.metrics.ObserveTick(s.clk.Now().Sub(start))
	if rep.Transitions > 0 || rep.Failures > 0 {
		logging.Debug("scheduler", "Tick: %d transitions, %d calendars, %d failures",
			rep.Transitions, rep.Checked, rep.Failures)
	}
	return rep
}

func (s *Scheduler) advance(user string) (n int, err error) {
	defer recoverInto(&err)
	return s.reminders.Advance(user, s.clk.Now()), nil
}

func (s *Scheduler) check(ctx context.Context, user string) (err error) {
	defer recoverInto(&err)
	return s.conflicts.Check(ctx, user, s.clk.Now())
}

func (s *Scheduler) fail(user, summary string, err error) {
	logging.Warn("scheduler", "%s for %s: %v", summary, user, err)
	s.journal.LogError(user, summary, err)
}

func recoverInto(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("panic: %v", r)
	}
}
