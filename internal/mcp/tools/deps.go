// Package tools exposes the assistant as MCP tools.
package tools

import (
	"context"

	"github.com/vthunder/nudge/internal/activity"
	"github.com/vthunder/nudge/internal/integrations/calendar"
	"github.com/vthunder/nudge/internal/reminder"
)

// Assistant is the part of the assistant the tools call
type Assistant interface {
	SubmitContext(ctx context.Context, user, text string) string
	Poll(user string) []string
	Reminders(user string) []reminder.Reminder
	FreeSlots(ctx context.Context, user string) ([]calendar.Slot, error)
}

// Dependencies holds all services that MCP tools may need.
// Optional fields may be nil.
type Dependencies struct {
	Assistant Assistant

	// Optional services
	ActivityLog *activity.Log

	// DefaultUser is used when a call names no user
	DefaultUser string
}
