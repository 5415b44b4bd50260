package bot

import (
	"time"

	"github.com/halobot-io/halobot/internal/attachment"
	"github.com/halobot-io/halobot/internal/ticket"
	"github.com/halobot-io/halobot/pkg/protocol"
)

// Phase is the conversation state.
type Phase int

const (
	// PhaseIdle: normal conversation; the LLM is gathering information.
	PhaseIdle Phase = iota
	// PhaseAwaitingConfirmation: a draft ticket is pending and the next
	// user turn is interpreted as a confirm/cancel decision.
	PhaseAwaitingConfirmation
)

func (p Phase) String() string {
	if p == PhaseAwaitingConfirmation {
		return "awaiting_confirmation"
	}
	return "idle"
}

// Session is the per-conversation state container. It is not safe for
// concurrent mutation; Bot's per-conversation turn lock serializes
// access.
//
// Invariant: PendingTicket != nil exactly when Phase is
// PhaseAwaitingConfirmation.
type Session struct {
	Phase              Phase
	History            []protocol.ChatMessage // system prompt first
	PendingTicket      *ticket.Draft
	PendingAttachments []attachment.File
	Token              string // Halo bearer token, fetched once per session
	LastActive         time.Time
}

// newSession seeds a session with the system prompt.
func newSession(systemPrompt string) *Session {
	return &Session{
		Phase: PhaseIdle,
		History: []protocol.ChatMessage{
			{Role: protocol.RoleSystem, Content: systemPrompt},
		},
		LastActive: time.Now(),
	}
}

// corrupted reports an invariant violation between phase and draft.
func (s *Session) corrupted() bool {
	return (s.Phase == PhaseAwaitingConfirmation) != (s.PendingTicket != nil)
}
