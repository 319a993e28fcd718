package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/vthunder/nudge/internal/activity"
	"github.com/vthunder/nudge/internal/integrations/calendar"
	"github.com/vthunder/nudge/internal/logging"
)

const defaultActivityLimit = 20

// RegisterAll registers all MCP tools with the given server and dependencies.
func RegisterAll(s *server.MCPServer, deps *Dependencies) {
	s.AddTool(submitMessageTool(), deps.handleSubmitMessage)
	s.AddTool(pollNotificationsTool(), deps.handlePollNotifications)
	s.AddTool(listRemindersTool(), deps.handleListReminders)
	s.AddTool(findFreeSlotsTool(), deps.handleFindFreeSlots)

	if deps.ActivityLog != nil {
		s.AddTool(recentActivityTool(), deps.handleRecentActivity)
		s.AddTool(searchActivityTool(), deps.handleSearchActivity)
	}
}

func userParam() mcp.ToolOption {
	return mcp.WithString("user",
		mcp.Description("User id, e.g. discord:1234 or telegram:5678. Default: the server's configured user"),
	)
}

func (d *Dependencies) user(args map[string]any) (string, error) {
	user, _ := args["user"].(string)
	if user == "" {
		user = d.DefaultUser
	}
	if user == "" {
		return "", errors.New("user is required (none provided and no default configured)")
	}
	return user, nil
}

func arguments(req mcp.CallToolRequest) map[string]any {
	args, _ := req.Params.Arguments.(map[string]any)
	if args == nil {
		args = map[string]any{}
	}
	return args
}

// --- chat ---

func submitMessageTool() mcp.Tool {
	return mcp.NewTool("submit_message",
		mcp.WithDescription("Send a chat message to the assistant as the user and return its reply. Use this to create reminders (\"remind me to call mom tomorrow at 15\"), answer its follow-up questions, snooze or stop reminders, and ask about the calendar."),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("The message text"),
		),
		userParam(),
	)
}

func (d *Dependencies) handleSubmitMessage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(req)
	message, _ := args["message"].(string)
	if strings.TrimSpace(message) == "" {
		return mcp.NewToolResultError("message is required"), nil
	}
	user, err := d.user(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	logging.Debug("mcp", "submit_message %s: %s", user, logging.Truncate(message, 50))
	return mcp.NewToolResultText(d.Assistant.SubmitContext(ctx, user, message)), nil
}

func pollNotificationsTool() mcp.Tool {
	return mcp.NewTool("poll_notifications",
		mcp.WithDescription("Fetch and clear the user's pending notifications: due reminders and calendar conflicts, oldest first."),
		userParam(),
	)
}

func (d *Dependencies) handlePollNotifications(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	user, err := d.user(arguments(req))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	msgs := d.Assistant.Poll(user)
	if len(msgs) == 0 {
		return mcp.NewToolResultText("No notifications."), nil
	}
	return mcp.NewToolResultText(strings.Join(msgs, "\n\n")), nil
}

// --- reminders and calendar ---

func listRemindersTool() mcp.Tool {
	return mcp.NewTool("list_reminders",
		mcp.WithDescription("List the user's active reminders with their due time and escalation state, as JSON."),
		userParam(),
	)
}

func (d *Dependencies) handleListReminders(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	user, err := d.user(arguments(req))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	list := d.Assistant.Reminders(user)
	if len(list) == 0 {
		return mcp.NewToolResultText("No reminders."), nil
	}
	return jsonResult(list)
}

func findFreeSlotsTool() mcp.Tool {
	return mcp.NewTool("find_free_slots",
		mcp.WithDescription("Suggest the next free one-hour workday slots in the user's calendar."),
		userParam(),
	)
}

func (d *Dependencies) handleFindFreeSlots(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	user, err := d.user(arguments(req))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	slots, err := d.Assistant.FreeSlots(ctx, user)
	if errors.Is(err, calendar.ErrNotConnected) {
		return mcp.NewToolResultError(fmt.Sprintf("no calendar connected for %s", user)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read calendar: %v", err)), nil
	}
	if len(slots) == 0 {
		return mcp.NewToolResultText("No free slots in the coming week."), nil
	}

	var b strings.Builder
	for _, s := range slots {
		fmt.Fprintf(&b, "%s - %s\n", s.Start.Format("Mon 2 Jan 15:04"), s.End.Format("15:04"))
	}
	return mcp.NewToolResultText(strings.TrimSuffix(b.String(), "\n")), nil
}

// --- activity ---

func recentActivityTool() mcp.Tool {
	return mcp.NewTool("recent_activity",
		mcp.WithDescription("Show recent journal entries: messages, replies, reminders, escalations and conflicts."),
		mcp.WithString("user",
			mcp.Description("Only this user's entries. Default: everyone"),
		),
		mcp.WithString("type",
			mcp.Description("Only this entry type: input, reply, reminder, escalation, snooze, stop, conflict, error"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum entries to return. Default: 20"),
		),
	)
}

func (d *Dependencies) handleRecentActivity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(req)
	limit := defaultActivityLimit
	if l, ok := args["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}
	user, _ := args["user"].(string)
	typ, _ := args["type"].(string)

	var entries []activity.Entry
	var err error
	switch {
	case user != "":
		entries, err = d.ActivityLog.ByUser(user, limit)
	case typ != "":
		entries, err = d.ActivityLog.ByType(activity.Type(typ), limit)
	default:
		entries, err = d.ActivityLog.Recent(limit)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read activity: %v", err)), nil
	}
	return activityResult(entries), nil
}

func searchActivityTool() mcp.Tool {
	return mcp.NewTool("search_activity",
		mcp.WithDescription("Search journal entries whose summary contains the query (case-insensitive)."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Text to look for"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum entries to return. Default: 20"),
		),
	)
}

func (d *Dependencies) handleSearchActivity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(req)
	query, _ := args["query"].(string)
	if query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}
	limit := defaultActivityLimit
	if l, ok := args["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}

	entries, err := d.ActivityLog.Search(query, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to search activity: %v", err)), nil
	}
	return activityResult(entries), nil
}

func activityResult(entries []activity.Entry) *mcp.CallToolResult {
	if len(entries) == 0 {
		return mcp.NewToolResultText("No activity.")
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s [%s] %s: %s\n", e.Timestamp.Format("2006-01-02 15:04"), e.Type, e.User, logging.Truncate(e.Summary, 120))
	}
	return mcp.NewToolResultText(strings.TrimSuffix(b.String(), "\n"))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
