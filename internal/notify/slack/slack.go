// Package slack implements the notify Adapter over the Slack Web API.
package slack

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"

	"github.com/quorumhq/quorum/internal/notify"
)

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Adapter posts Quorum events to a Slack channel.
type Adapter struct {
	client  slackClient
	channel string
}

// New builds a Slack adapter from a bot token and target channel.
func New(token, channel string) *Adapter {
	return &Adapter{
		client:  slackapi.New(token),
		channel: channel,
	}
}

// Send posts one event as an attachment-formatted message.
func (a *Adapter) Send(ctx context.Context, ev notify.Event) error {
	att := eventToAttachment(ev)
	_, _, err := a.client.PostMessageContext(ctx, a.channel, slackapi.MsgOptionAttachments(att))
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

// Close is a no-op: the Web API client holds no connection.
func (a *Adapter) Close() error { return nil }

// eventToAttachment converts an Event to a Slack Attachment.
func eventToAttachment(ev notify.Event) slackapi.Attachment {
	att := slackapi.Attachment{
		Title: ev.Title,
		Text:  ev.Body,
		Color: ev.Color,
	}
	for _, f := range ev.Fields {
		att.Fields = append(att.Fields, slackapi.AttachmentField{
			Title: f.Name,
			Value: f.Value,
			Short: f.Short,
		})
	}
	return att
}
