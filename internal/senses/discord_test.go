package senses

import (
	"testing"

	"github.com/bwmarrin/discordgo"
)

type echoResponder struct {
	users []string
	texts []string
}

func (r *echoResponder) Submit(user, text string) string {
	r.users = append(r.users, user)
	r.texts = append(r.texts, text)
	return "ok: " + text
}

func message(authorID, channelID, content string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		ChannelID: channelID,
		Content:   content,
		Author:    &discordgo.User{ID: authorID},
	}}
}

func TestDiscordSense_Process(t *testing.T) {
	r := &echoResponder{}
	routes := map[string]string{}
	d := &DiscordSense{
		botID:     "bot",
		responder: r,
		onRoute:   func(user, ch string) { routes[user] = ch },
	}

	if got := d.process(message("42", "c1", "remind me to call mom")); got != "ok: remind me to call mom" {
		t.Errorf("unexpected reply %q", got)
	}
	if r.users[0] != "discord:42" {
		t.Errorf("expected discord:42, got %s", r.users[0])
	}
	if routes["discord:42"] != "c1" {
		t.Errorf("expected route to c1, got %v", routes)
	}

	if got := d.process(message("bot", "c1", "echo")); got != "" {
		t.Error("expected own messages ignored")
	}
	if got := d.process(message("42", "c1", "<@bot> stop")); got != "ok: stop" {
		t.Errorf("expected mention stripped, got %q", got)
	}
	if got := d.process(message("42", "c1", "<@bot>   ")); got != "" {
		t.Error("expected empty message ignored")
	}
}

func TestDiscordSense_ChannelFilter(t *testing.T) {
	r := &echoResponder{}
	d := &DiscordSense{botID: "bot", channelID: "home", responder: r}

	d.process(message("42", "elsewhere", "hello"))
	d.process(message("42", "home", "hello"))

	if len(r.texts) != 1 {
		t.Errorf("expected only the configured channel, got %d messages", len(r.texts))
	}
}

func TestDiscordSense_IgnoresBots(t *testing.T) {
	r := &echoResponder{}
	d := &DiscordSense{botID: "bot", responder: r}
	m := message("other-bot", "c", "hi")
	m.Author.Bot = true

	if d.process(m) != "" || len(r.texts) != 0 {
		t.Error("expected bot authors ignored")
	}
}
