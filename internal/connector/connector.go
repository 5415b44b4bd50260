// Package connector defines the interface between chat platforms and
// the bot. Each connector translates its platform's message and file
// model into InboundMessage and relays the bot's reply back itself.
package connector

import (
	"context"

	"github.com/halobot-io/halobot/internal/attachment"
)

// Connector is the interface for external messaging platforms.
type Connector interface {
	// Name returns the connector type (e.g., "telegram", "slack").
	Name() string
	// Start begins listening for inbound messages. Blocks until context is cancelled.
	Start(ctx context.Context) error
	// Stop gracefully shuts down the connector.
	Stop() error
}

// InboundMessage is one user turn received from an external platform.
type InboundMessage struct {
	Channel     string // connector name
	SenderID    string // platform-specific sender identifier
	ChatID      string // platform-specific conversation identifier
	Text        string
	Attachments []attachment.Descriptor
}

// InboundHandler processes one turn and returns the reply to send
// back. Connectors deliver turns for a single chat one at a time; the
// session is not safe for concurrent turns.
type InboundHandler func(ctx context.Context, msg InboundMessage) (string, error)

// Resetter clears a conversation's session, for "start over" commands.
type Resetter interface {
	Reset(key string) bool
}

// SessionKey builds the bot session key for a chat.
func SessionKey(channel, chatID string) string {
	return channel + ":" + chatID
}

// FailureNotice is sent when a turn cannot be processed at all (e.g.
// the ITSM credential exchange failed).
const FailureNotice = "Sorry, something went wrong on our side. Please try again later."
