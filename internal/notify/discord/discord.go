// Package discord implements the notify Adapter over the Discord API.
package discord

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/quorumhq/quorum/internal/notify"
)

// session abstracts the discordgo methods we use, enabling test mocks.
type session interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	Close() error
}

// Adapter posts Quorum events to a Discord channel.
type Adapter struct {
	session   session
	channelID string
}

// New builds a Discord adapter from a bot token and target channel ID.
func New(token, channelID string) (*Adapter, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: new session: %w", err)
	}
	return &Adapter{session: s, channelID: channelID}, nil
}

// Send posts one event as an embed.
func (a *Adapter) Send(ctx context.Context, ev notify.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := a.session.ChannelMessageSendEmbed(a.channelID, eventToEmbed(ev))
	if err != nil {
		return fmt.Errorf("discord: send embed: %w", err)
	}
	return nil
}

// Close shuts down the underlying session.
func (a *Adapter) Close() error {
	return a.session.Close()
}

// eventToEmbed converts an Event to a Discord embed.
func eventToEmbed(ev notify.Event) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       ev.Title,
		Description: ev.Body,
		Color:       parseColor(ev.Color),
	}
	for _, f := range ev.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Short,
		})
	}
	return embed
}

// parseColor converts a "#rrggbb" hint to Discord's integer color.
func parseColor(hex string) int {
	hex = strings.TrimPrefix(hex, "#")
	n, err := strconv.ParseInt(hex, 16, 32)
	if err != nil {
		return 0
	}
	return int(n)
}
