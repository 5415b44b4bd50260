package provider

import (
	"context"

	"github.com/halobot-io/halobot/pkg/protocol"
)

// Provider is the abstraction over LLM APIs. The bot treats the model as an
// opaque text oracle: a full message history in, one assistant reply out.
type Provider interface {
	Chat(ctx context.Context, req protocol.ChatRequest) (*protocol.ChatResponse, error)
	Name() string
}
