// Package slackconn connects the bot to Slack via Socket Mode.
package slackconn

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/halobot-io/halobot/internal/attachment"
	"github.com/halobot-io/halobot/internal/connector"
)

// Config holds Slack connector configuration.
type Config struct {
	BotToken string   // xoxb-... Bot User OAuth Token
	AppToken string   // xapp-... App-Level Token (for Socket Mode)
	Channels []string // Optional: only respond in these channels (empty = all)
}

// Connector implements connector.Connector for Slack via Socket Mode.
type Connector struct {
	api     *slack.Client
	socket  *socketmode.Client
	config  Config
	handler connector.InboundHandler
	logger  *slog.Logger
	cancel  context.CancelFunc
	botID   string
}

// New creates a new Slack connector.
func New(cfg Config, handler connector.InboundHandler, logger *slog.Logger) (*Connector, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("slack: bot_token is required")
	}
	if cfg.AppToken == "" {
		return nil, fmt.Errorf("slack: app_token is required (Socket Mode)")
	}

	if logger == nil {
		logger = slog.Default()
	}

	api := slack.New(cfg.BotToken, slack.OptionAppLevelToken(cfg.AppToken))

	// Test auth and get bot user ID
	authResp, err := api.AuthTest()
	if err != nil {
		return nil, fmt.Errorf("slack: auth test: %w", err)
	}

	logger.Info("slack bot authorized", "user", authResp.User, "team", authResp.Team)

	socket := socketmode.New(api)

	return &Connector{
		api:     api,
		socket:  socket,
		config:  cfg,
		handler: handler,
		logger:  logger,
		botID:   authResp.UserID,
	}, nil
}

func (c *Connector) Name() string { return "slack" }

// Start begins listening for events via Socket Mode. Blocks until context is cancelled.
func (c *Connector) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	go c.handleEvents(ctx)

	c.logger.Info("slack connector started (socket mode)")
	return c.socket.RunContext(ctx)
}

// Stop gracefully shuts down the connector.
func (c *Connector) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

func (c *Connector) handleEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-c.socket.Events:
			if event.Type != socketmode.EventTypeEventsAPI {
				continue
			}
			eventsAPIEvent, ok := event.Data.(slackevents.EventsAPIEvent)
			if !ok {
				continue
			}
			c.socket.Ack(*event.Request)

			switch ev := eventsAPIEvent.InnerEvent.Data.(type) {
			case *slackevents.MessageEvent:
				c.handleMessage(ctx, ev)
			case *slackevents.AppMentionEvent:
				c.handleMention(ctx, ev)
			}
		}
	}
}

func (c *Connector) handleMessage(ctx context.Context, ev *slackevents.MessageEvent) {
	// Ignore bot messages (including our own)
	if ev.BotID != "" || ev.User == "" || ev.User == c.botID {
		return
	}
	// File shares arrive with a subtype; other subtypes (edits,
	// deletes) are not turns.
	if ev.SubType != "" && ev.SubType != "file_share" {
		return
	}
	if !c.isAllowedChannel(ev.Channel) {
		return
	}

	descriptors := c.collectAttachments(ev.Files)
	if ev.Text == "" && len(descriptors) == 0 {
		return
	}

	c.deliver(ctx, ev.User, ev.Channel, ev.ThreadTimeStamp, ev.Text, descriptors)
}

func (c *Connector) handleMention(ctx context.Context, ev *slackevents.AppMentionEvent) {
	if ev.User == c.botID {
		return
	}

	text := StripMention(ev.Text, c.botID)
	if text == "" {
		return
	}

	c.deliver(ctx, ev.User, ev.Channel, ev.ThreadTimeStamp, text, nil)
}

func (c *Connector) deliver(ctx context.Context, user, channel, threadTS, text string, descriptors []attachment.Descriptor) {
	// Thread replies keep their own conversation
	chatID := channel
	if threadTS != "" {
		chatID = channel + ":" + threadTS
	}

	inbound := connector.InboundMessage{
		Channel:     c.Name(),
		SenderID:    user,
		ChatID:      chatID,
		Text:        text,
		Attachments: descriptors,
	}

	reply, err := c.handler(ctx, inbound)
	if err != nil {
		c.logger.Error("slack inbound handler error", "channel", channel, "user", user, "error", err)
		reply = connector.FailureNotice
	}
	if reply == "" {
		return
	}

	opts := []slack.MsgOption{slack.MsgOptionText(reply, false)}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}
	if _, _, err := c.api.PostMessage(channel, opts...); err != nil {
		c.logger.Error("slack send failed", "channel", channel, "error", err)
	}
}

// collectAttachments maps shared files to descriptors. Slack's private
// file URLs require the bot token on download.
func (c *Connector) collectAttachments(files []slackevents.File) []attachment.Descriptor {
	if len(files) == 0 {
		return nil
	}

	header := http.Header{"Authorization": {"Bearer " + c.config.BotToken}}

	out := make([]attachment.Descriptor, 0, len(files))
	for _, f := range files {
		if f.URLPrivateDownload == "" {
			continue
		}
		name := f.Name
		if name == "" {
			name = f.ID
		}
		out = append(out, attachment.Descriptor{
			Filename: name,
			URL:      f.URLPrivateDownload,
			Header:   header,
		})
	}
	return out
}

func (c *Connector) isAllowedChannel(channel string) bool {
	if len(c.config.Channels) == 0 {
		return true
	}
	for _, ch := range c.config.Channels {
		if ch == channel {
			return true
		}
	}
	return false
}

// StripMention removes the <@BOTID> mention from message text.
func StripMention(text, botID string) string {
	mention := fmt.Sprintf("<@%s>", botID)
	text = strings.Replace(text, mention, "", 1)
	return strings.TrimSpace(text)
}
