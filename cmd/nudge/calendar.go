package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/vthunder/nudge/internal/activity"
	"github.com/vthunder/nudge/internal/integrations/calendar"
	"github.com/vthunder/nudge/internal/senses"
)

var errNoCalendar = errors.New("no calendar configured: set GOOGLE_CALENDAR_CREDENTIALS_FILE and NUDGE_USERS_FILE")

func conflictsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "conflicts <user>",
		Short: "List unanswered invitations that overlap accepted meetings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			if a.source == nil {
				return errNoCalendar
			}

			user := args[0]
			now := time.Now().In(a.cfg.Location(user))
			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.FetchTimeout)
			defer cancel()

			events, err := a.source.FetchEvents(ctx, user, now, now.Add(a.cfg.Lookahead))
			if err != nil {
				return fmt.Errorf("fetch calendar: %w", err)
			}
			byID := make(map[string]calendar.Event, len(events))
			for _, e := range events {
				byID[e.ID] = e
			}

			keys := senses.Conflicts(events)
			out := cmd.OutOrStdout()
			if len(keys) == 0 {
				fmt.Fprintln(out, "No conflicts.")
				return nil
			}
			for _, k := range keys {
				p, acc := byID[k.PendingID], byID[k.AcceptedID]
				fmt.Fprintf(out, "%s\n  clashes with %s\n", p.FormatEventSummary(), acc.FormatEventSummary())
			}
			return nil
		},
	}
}

func slotsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "slots <user>",
		Short: "Suggest free one-hour workday slots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			if a.source == nil {
				return errNoCalendar
			}

			slots, err := a.assistant.FreeSlots(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(slots) == 0 {
				fmt.Fprintln(out, "No free slots in the coming week.")
			}
			for _, s := range slots {
				fmt.Fprintf(out, "%s - %s\n", s.Start.Format("Mon 2 Jan 15:04"), s.End.Format("15:04"))
			}
			return nil
		},
	}
}

func activityError(user, summary, errMsg string) activity.Entry {
	return activity.Entry{
		Type:    activity.TypeError,
		User:    user,
		Summary: summary,
		Source:  "discord",
		Data:    map[string]any{"error": errMsg},
	}
}
