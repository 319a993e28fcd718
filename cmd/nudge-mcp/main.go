// nudge-mcp exposes the assistant as MCP tools over stdio. It runs its own
// scheduler so reminders escalate while the client is connected.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"github.com/vthunder/nudge/internal/activity"
	"github.com/vthunder/nudge/internal/assistant"
	"github.com/vthunder/nudge/internal/config"
	"github.com/vthunder/nudge/internal/integrations/calendar"
	"github.com/vthunder/nudge/internal/logging"
	"github.com/vthunder/nudge/internal/mcp/tools"
	"github.com/vthunder/nudge/internal/metrics"
	"github.com/vthunder/nudge/internal/outbox"
	"github.com/vthunder/nudge/internal/reminder"
	"github.com/vthunder/nudge/internal/scheduler"
	"github.com/vthunder/nudge/internal/senses"
	"github.com/vthunder/nudge/internal/vocab"
)

func main() {
	// zap writes to stderr so stdout stays clean for JSON-RPC
	if err := run(); err != nil {
		logging.Error("nudge-mcp", "%v", err)
		logging.Sync()
		os.Exit(1)
	}
	logging.Sync()
}

// run serves until stdin closes. Everything it opens is released before it
// returns, whether or not serving failed.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	v := vocab.Default()
	if cfg.VocabFile != "" {
		if v, err = vocab.Load(cfg.VocabFile); err != nil {
			return fmt.Errorf("vocabulary: %w", err)
		}
	}

	journal, err := activity.Open(cfg.ActivityDriver, cfg.ActivityDB)
	if err != nil {
		logging.Warn("nudge-mcp", "Activity journal unavailable: %v", err)
		journal = nil
	}
	defer journal.Close()

	m := metrics.Default()
	box := outbox.New()
	store := reminder.NewStore(box, reminder.Config{
		EscalationGap: cfg.EscalationGap,
		Metrics:       m,
		Journal:       journal,
	})

	var source calendar.Source
	if cfg.CalendarCredentials != "" {
		client, err := calendar.NewClient(calendar.Config{
			CredentialsFile: cfg.CalendarCredentials,
			Timeout:         cfg.FetchTimeout,
		})
		if err != nil {
			logging.Warn("nudge-mcp", "Calendar disabled: %v", err)
		} else {
			source = calendar.NewGoogleSource(client, cfg.Calendars())
		}
	}

	a := assistant.New(assistant.Config{
		Vocab:     v,
		Reminders: store,
		Outbox:    box,
		Calendar:  source,
		Snooze:    cfg.Snooze,
		Journal:   journal,
		Location:  cfg.Location,
	})

	conflicts := conflictWatcher(cfg, source, box, m, journal)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	sched := scheduler.New(store, conflicts, scheduler.Config{
		Period:  cfg.TickPeriod,
		Metrics: m,
		Journal: journal,
	})
	go sched.Run(ctx)

	s := server.NewMCPServer(
		"nudge",
		"1.0.0",
		server.WithToolCapabilities(true),
	)
	tools.RegisterAll(s, &tools.Dependencies{
		Assistant:   a,
		ActivityLog: journal,
		DefaultUser: cfg.MCPUser,
	})

	logging.Info("nudge-mcp", "Serving MCP over stdio")
	if err := server.ServeStdio(s); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// conflictWatcher watches every configured calendar. Without a source it
// returns a nil interface so the scheduler skips conflict checks.
func conflictWatcher(cfg *config.Config, source calendar.Source, sink senses.Notifier, m *metrics.Metrics, journal *activity.Log) scheduler.Conflicts {
	if source == nil {
		return nil
	}
	watcher := senses.NewCalendarSense(senses.CalendarConfig{
		Source:       source,
		Lookahead:    cfg.Lookahead,
		FetchTimeout: cfg.FetchTimeout,
		Metrics:      m,
		Journal:      journal,
	}, sink)
	for user := range cfg.Calendars() {
		watcher.Watch(user)
	}
	return watcher
}
