package senses

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/vthunder/nudge/internal/logging"
)

// Responder answers one user message
type Responder interface {
	Submit(user, text string) string
}

// DiscordSense listens to Discord and answers each message through the assistant
type DiscordSense struct {
	session   *discordgo.Session
	channelID string
	botID     string
	responder Responder
	onRoute   func(user, channelID string)
}

// DiscordConfig holds Discord connection settings
type DiscordConfig struct {
	Token     string
	ChannelID string // optional: only listen here
}

// NewDiscordSense creates a new Discord sense. onRoute is told which channel
// each user last wrote from so notifications can follow them.
func NewDiscordSense(cfg DiscordConfig, responder Responder, onRoute func(user, channelID string)) (*DiscordSense, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	sense := &DiscordSense{
		session:   session,
		channelID: cfg.ChannelID,
		responder: responder,
		onRoute:   onRoute,
	}

	session.AddHandler(sense.handleMessage)

	// We only need message content
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent

	return sense, nil
}

// Start connects to Discord and begins listening
func (d *DiscordSense) Start() error {
	if err := d.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	// Get bot's user ID for self-filtering
	d.botID = d.session.State.User.ID
	logging.Info("discord-sense", "Connected as %s", d.session.State.User.Username)

	return nil
}

// Stop disconnects from Discord
func (d *DiscordSense) Stop() error {
	return d.session.Close()
}

// Session returns the underlying Discord session (for sharing with effector)
func (d *DiscordSense) Session() *discordgo.Session {
	return d.session
}

func (d *DiscordSense) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	reply := d.process(m)
	if reply == "" {
		return
	}
	if _, err := s.ChannelMessageSend(m.ChannelID, reply); err != nil {
		logging.Warn("discord-sense", "Reply to %s failed: %v", m.ChannelID, err)
	}
}

// process filters a message and returns the reply to send, if any
func (d *DiscordSense) process(m *discordgo.MessageCreate) string {
	if m.Author == nil || m.Author.Bot || m.Author.ID == d.botID {
		return ""
	}

	// Only process messages from configured channel (if set)
	if d.channelID != "" && m.ChannelID != d.channelID {
		return ""
	}

	text := strings.TrimSpace(d.stripMention(m.Content))
	if text == "" {
		return ""
	}

	user := DiscordUser(m.Author.ID)
	if d.onRoute != nil {
		d.onRoute(user, m.ChannelID)
	}

	logging.Debug("discord-sense", "Message from %s: %s", user, logging.Truncate(text, 50))
	return d.responder.Submit(user, text)
}

// stripMention removes a leading mention of the bot
func (d *DiscordSense) stripMention(content string) string {
	if d.botID == "" {
		return content
	}
	for _, prefix := range []string{"<@" + d.botID + ">", "<@!" + d.botID + ">"} {
		if strings.HasPrefix(content, prefix) {
			return content[len(prefix):]
		}
	}
	return content
}

// DiscordUser returns the assistant user id for a Discord author
func DiscordUser(authorID string) string {
	return "discord:" + authorID
}
