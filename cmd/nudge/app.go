package main

import (
	"fmt"

	"github.com/vthunder/nudge/internal/activity"
	"github.com/vthunder/nudge/internal/assistant"
	"github.com/vthunder/nudge/internal/config"
	"github.com/vthunder/nudge/internal/integrations/calendar"
	"github.com/vthunder/nudge/internal/logging"
	"github.com/vthunder/nudge/internal/metrics"
	"github.com/vthunder/nudge/internal/outbox"
	"github.com/vthunder/nudge/internal/reminder"
	"github.com/vthunder/nudge/internal/senses"
	"github.com/vthunder/nudge/internal/vocab"
)

// app holds the components every subcommand shares
type app struct {
	cfg       *config.Config
	journal   *activity.Log
	metrics   *metrics.Metrics
	outbox    *outbox.Outbox
	reminders *reminder.Store
	source    calendar.Source // nil without credentials
	watcher   *senses.CalendarSense
	assistant *assistant.Assistant
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	v := vocab.Default()
	if cfg.VocabFile != "" {
		if v, err = vocab.Load(cfg.VocabFile); err != nil {
			return nil, err
		}
	}

	journal, err := activity.Open(cfg.ActivityDriver, cfg.ActivityDB)
	if err != nil {
		return nil, fmt.Errorf("open activity journal: %w", err)
	}

	a := &app{
		cfg:     cfg,
		journal: journal,
		metrics: metrics.Default(),
		outbox:  outbox.New(),
	}
	a.reminders = reminder.NewStore(a.outbox, reminder.Config{
		EscalationGap: cfg.EscalationGap,
		Metrics:       a.metrics,
		Journal:       journal,
	})

	if cfg.CalendarCredentials != "" {
		client, err := calendar.NewClient(calendar.Config{
			CredentialsFile: cfg.CalendarCredentials,
			Timeout:         cfg.FetchTimeout,
		})
		if err != nil {
			journal.Close()
			return nil, fmt.Errorf("calendar client: %w", err)
		}
		a.source = calendar.NewGoogleSource(client, cfg.Calendars())
		logging.Info("main", "Google Calendar connected for %d users", len(cfg.Calendars()))
	}

	if a.source != nil {
		a.watcher = senses.NewCalendarSense(senses.CalendarConfig{
			Source:       a.source,
			Lookahead:    cfg.Lookahead,
			FetchTimeout: cfg.FetchTimeout,
			Metrics:      a.metrics,
			Journal:      journal,
		}, a.outbox)
		for user := range cfg.Calendars() {
			a.watcher.Watch(user)
		}
	}

	a.assistant = assistant.New(assistant.Config{
		Vocab:     v,
		Reminders: a.reminders,
		Outbox:    a.outbox,
		Calendar:  a.source,
		Snooze:    cfg.Snooze,
		Journal:   journal,
		Location:  cfg.Location,
	})
	return a, nil
}

func (a *app) close() {
	if err := a.journal.Close(); err != nil {
		logging.Warn("main", "Closing activity journal: %v", err)
	}
}
