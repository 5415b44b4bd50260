// Package telegram connects the bot to Telegram via long polling.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/halobot-io/halobot/internal/attachment"
	"github.com/halobot-io/halobot/internal/connector"
)

// Config holds Telegram connector configuration.
type Config struct {
	Token     string  // Bot token from @BotFather
	AllowFrom []int64 // Allowed Telegram user IDs (empty = allow all)
}

// Connector implements connector.Connector for Telegram.
type Connector struct {
	bot      *tgbotapi.BotAPI
	config   Config
	handler  connector.InboundHandler
	resetter connector.Resetter
	logger   *slog.Logger
	cancel   context.CancelFunc
}

// New creates a new Telegram connector.
func New(cfg Config, handler connector.InboundHandler, resetter connector.Resetter, logger *slog.Logger) (*Connector, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram: init bot: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("telegram bot authorized", "username", bot.Self.UserName)

	return &Connector{
		bot:      bot,
		config:   cfg,
		handler:  handler,
		resetter: resetter,
		logger:   logger,
	}, nil
}

func (c *Connector) Name() string { return "telegram" }

// Start begins long-polling for updates. Blocks until context is cancelled.
func (c *Connector) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := c.bot.GetUpdatesChan(u)

	c.logger.Info("telegram connector started", "bot", c.bot.Self.UserName)

	for {
		select {
		case update := <-updates:
			if update.Message == nil {
				continue
			}
			c.handleUpdate(ctx, update.Message)

		case <-ctx.Done():
			c.bot.StopReceivingUpdates()
			c.logger.Info("telegram connector stopped")
			return ctx.Err()
		}
	}
}

// Stop gracefully shuts down the connector.
func (c *Connector) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

func (c *Connector) handleUpdate(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID

	// Access control
	if len(c.config.AllowFrom) > 0 && !allowed(c.config.AllowFrom, userID) {
		c.logger.Warn("unauthorized user", "user_id", userID, "username", msg.From.UserName)
		return
	}

	if msg.IsCommand() {
		c.handleCommand(msg)
		return
	}

	text := msg.Text
	if text == "" && msg.Caption != "" {
		text = msg.Caption
	}

	descriptors := c.collectAttachments(msg)
	if text == "" && len(descriptors) == 0 {
		return
	}

	// Typing indicator while the LLM thinks
	c.bot.Send(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))

	inbound := connector.InboundMessage{
		Channel:     c.Name(),
		SenderID:    strconv.FormatInt(userID, 10),
		ChatID:      strconv.FormatInt(chatID, 10),
		Text:        text,
		Attachments: descriptors,
	}

	reply, err := c.handler(ctx, inbound)
	if err != nil {
		c.logger.Error("inbound handler error", "chat_id", chatID, "error", err)
		reply = connector.FailureNotice
	}
	c.send(chatID, reply)
}

// collectAttachments turns photos and image documents into attachment
// descriptors with direct download URLs.
func (c *Connector) collectAttachments(msg *tgbotapi.Message) []attachment.Descriptor {
	var out []attachment.Descriptor

	if len(msg.Photo) > 0 {
		// Telegram sends several resolutions; the last is the largest.
		photo := msg.Photo[len(msg.Photo)-1]
		if url, err := c.bot.GetFileDirectURL(photo.FileID); err == nil {
			out = append(out, attachment.Descriptor{
				Filename: "photo_" + photo.FileUniqueID + ".jpg",
				URL:      url,
			})
		} else {
			c.logger.Warn("photo url lookup failed", "error", err)
		}
	}

	if msg.Document != nil {
		if url, err := c.bot.GetFileDirectURL(msg.Document.FileID); err == nil {
			name := msg.Document.FileName
			if name == "" {
				name = "file"
			}
			out = append(out, attachment.Descriptor{Filename: name, URL: url})
		} else {
			c.logger.Warn("document url lookup failed", "error", err)
		}
	}

	return out
}

func (c *Connector) handleCommand(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		c.send(chatID, "Hi! I'm your IT support assistant. Describe your issue and I'll help you file a ticket.")

	case "new":
		key := connector.SessionKey(c.Name(), strconv.FormatInt(chatID, 10))
		if c.resetter != nil && c.resetter.Reset(key) {
			c.send(chatID, "Started a new conversation. What can I help you with?")
		} else {
			c.send(chatID, "Nothing to reset. What can I help you with?")
		}

	case "help":
		help := strings.Join([]string{
			"Available commands:",
			"/start - Start the bot",
			"/new - Start a new conversation",
			"/help - Show this help message",
			"",
			"Describe your IT issue to get started. You can attach screenshots.",
		}, "\n")
		c.send(chatID, help)

	default:
		c.send(chatID, "Unknown command. Try /help.")
	}
}

func (c *Connector) send(chatID int64, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := c.bot.Send(msg); err != nil {
		c.logger.Error("telegram send failed", "chat_id", chatID, "error", err)
	}
}

func allowed(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
