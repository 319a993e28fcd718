// Package config loads runtime settings from .env, the environment and an
// optional YAML users file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/vthunder/nudge/internal/logging"
	"gopkg.in/yaml.v3"
)

// User is one entry of the users file
type User struct {
	Calendar string `yaml:"calendar"` // calendar id, usually the user's email
	Timezone string `yaml:"timezone"` // IANA zone, e.g. Europe/Stockholm
}

// Config holds all runtime settings
type Config struct {
	HTTPAddr  string
	StatePath string

	ActivityDriver string // "sqlite3" (cgo) or "sqlite" (pure Go)
	ActivityDB     string

	TickPeriod    time.Duration
	Lookahead     time.Duration
	EscalationGap time.Duration
	Snooze        time.Duration
	FetchTimeout  time.Duration

	DiscordToken   string
	DiscordChannel string
	TelegramToken  string

	CalendarCredentials string
	VocabFile           string
	UsersFile           string
	Timezone            string // default zone for users without one
	MCPUser             string // user id for MCP calls that name none

	Users map[string]User

	locations map[string]*time.Location
	fallback  *time.Location
}

// Load reads .env (if present), then the environment, then the users file
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logging.Debug("config", "No .env file found, using environment variables")
	} else {
		logging.Info("config", "Loaded .env file")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a config from getenv and loads the users file it names
func FromEnv(getenv func(string) string) (*Config, error) {
	str := func(key, def string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return def
	}

	c := &Config{
		HTTPAddr:            str("NUDGE_HTTP_ADDR", ":8080"),
		StatePath:           str("NUDGE_STATE_PATH", "state"),
		ActivityDriver:      str("NUDGE_ACTIVITY_DRIVER", "sqlite3"),
		DiscordToken:        getenv("DISCORD_TOKEN"),
		DiscordChannel:      getenv("DISCORD_CHANNEL_ID"),
		TelegramToken:       getenv("TELEGRAM_TOKEN"),
		CalendarCredentials: getenv("GOOGLE_CALENDAR_CREDENTIALS_FILE"),
		VocabFile:           getenv("NUDGE_VOCAB_FILE"),
		UsersFile:           getenv("NUDGE_USERS_FILE"),
		Timezone:            str("NUDGE_TIMEZONE", "UTC"),
		MCPUser:             str("NUDGE_MCP_USER", "mcp:default"),
	}
	c.ActivityDB = str("NUDGE_ACTIVITY_DB", filepath.Join(c.StatePath, "activity.db"))

	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"NUDGE_TICK", 30 * time.Second, &c.TickPeriod},
		{"NUDGE_LOOKAHEAD", 14 * 24 * time.Hour, &c.Lookahead},
		{"NUDGE_ESCALATION_GAP", 15 * time.Minute, &c.EscalationGap},
		{"NUDGE_SNOOZE", 10 * time.Minute, &c.Snooze},
		{"NUDGE_FETCH_TIMEOUT", 20 * time.Second, &c.FetchTimeout},
	}
	for _, d := range durations {
		*d.dst = d.def
		v := getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("invalid %s %q: must be a positive duration", d.key, v)
		}
		*d.dst = parsed
	}

	fallback, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid NUDGE_TIMEZONE: %w", err)
	}
	c.fallback = fallback

	if c.UsersFile != "" {
		if err := c.loadUsers(c.UsersFile); err != nil {
			return nil, err
		}
	}
	return c, nil
}

type usersFile struct {
	Users map[string]User `yaml:"users"`
}

func (c *Config) loadUsers(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read users file: %w", err)
	}
	var f usersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse users file: %w", err)
	}

	c.Users = f.Users
	c.locations = make(map[string]*time.Location, len(f.Users))
	for id, u := range f.Users {
		if u.Timezone == "" {
			continue
		}
		loc, err := time.LoadLocation(u.Timezone)
		if err != nil {
			return fmt.Errorf("user %s: invalid timezone: %w", id, err)
		}
		c.locations[id] = loc
	}
	logging.Info("config", "Loaded %d users from %s", len(f.Users), path)
	return nil
}

// Location returns the user's time zone, falling back to the default
func (c *Config) Location(user string) *time.Location {
	if loc, ok := c.locations[user]; ok {
		return loc
	}
	if c.fallback == nil {
		return time.UTC
	}
	return c.fallback
}

// Calendars maps user ids to calendar ids for users that have one
func (c *Config) Calendars() map[string]string {
	out := make(map[string]string)
	for id, u := range c.Users {
		if u.Calendar != "" {
			out[id] = u.Calendar
		}
	}
	return out
}
