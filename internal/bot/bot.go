// Package bot holds the conversation state machine that mediates
// between free-form LLM output and the strict Halo ticket schema.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/halobot-io/halobot/internal/attachment"
	"github.com/halobot-io/halobot/internal/halo"
	"github.com/halobot-io/halobot/internal/journal"
	"github.com/halobot-io/halobot/internal/provider"
	"github.com/halobot-io/halobot/internal/ticket"
	"github.com/halobot-io/halobot/pkg/protocol"
)

const replyMaxTokens = 2000

// Gateway is the slice of the Halo client the orchestrator needs.
type Gateway interface {
	AcquireToken(ctx context.Context) (string, error)
	Submit(ctx context.Context, t any, token string) (halo.SubmissionResult, error)
}

// Bot drives support conversations. Sessions are keyed by
// "channel:chatID". The map mutex guards only lookup and insertion;
// a per-key turn lock serializes whole turns, so concurrent inbound
// messages for one conversation (possible on the REST channel) are
// processed one at a time.
type Bot struct {
	Provider     provider.Provider
	Gateway      Gateway
	Fetcher      attachment.Fetcher
	Journal      journal.Store // optional
	Logger       *slog.Logger
	SystemPrompt string

	mu       sync.Mutex
	sessions map[string]*Session
	turns    map[string]*sync.Mutex
}

// New creates a Bot with the default system prompt.
func New(prov provider.Provider, gw Gateway, fetcher attachment.Fetcher, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		Provider:     prov,
		Gateway:      gw,
		Fetcher:      fetcher,
		Logger:       logger,
		SystemPrompt: DefaultSystemPrompt,
		sessions:     make(map[string]*Session),
		turns:        make(map[string]*sync.Mutex),
	}
}

// Process handles one inbound turn and returns the single outbound
// reply. An error return means the turn could not be handled at all
// (today: token acquisition failure) and the connector should relay a
// generic failure notice.
func (b *Bot) Process(ctx context.Context, channel, chatID, text string, attachments []attachment.Descriptor) (string, error) {
	key := channel + ":" + chatID
	turn := b.turnLock(key)
	turn.Lock()
	defer turn.Unlock()

	sess := b.session(key)
	sess.LastActive = time.Now()

	// A session must hold a gateway credential before anything else;
	// without one no ticket can ever be filed, so failure here aborts
	// the turn rather than degrading.
	if sess.Token == "" {
		token, err := b.Gateway.AcquireToken(ctx)
		if err != nil {
			return "", fmt.Errorf("bot: acquire halo token: %w", err)
		}
		sess.Token = token
	}

	if sess.corrupted() {
		b.Logger.Error("session state corrupted, resetting",
			"session", key,
			"phase", sess.Phase.String(),
			"has_draft", sess.PendingTicket != nil,
		)
		b.Reset(key)
		sess = b.session(key)
		sess.LastActive = time.Now()
	}

	if sess.Phase == PhaseAwaitingConfirmation {
		return b.handleConfirmation(ctx, key, channel, chatID, sess, text)
	}
	return b.handleIdle(ctx, key, sess, text, attachments)
}

// Reset discards a session entirely. The next turn starts fresh,
// including a new token fetch. Returns whether a session existed.
func (b *Bot) Reset(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.sessions[key]
	delete(b.sessions, key)
	return ok
}

// SessionCount returns the number of live sessions.
func (b *Bot) SessionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}

func (b *Bot) session(key string) *Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	sess, ok := b.sessions[key]
	if !ok {
		sess = newSession(b.SystemPrompt)
		b.sessions[key] = sess
	}
	return sess
}

// turnLock returns the serialization lock for a conversation. Locks
// outlive Reset so a turn racing a reset still finishes before the
// next one starts; the janitor drops them with the expired session.
func (b *Bot) turnLock(key string) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.turns[key]
	if !ok {
		l = &sync.Mutex{}
		b.turns[key] = l
	}
	return l
}

// handleConfirmation resolves the confirm/cancel handshake. Ticket
// creation is the only irreversible action in the system and happens
// exactly here, gated on an explicit Affirm.
func (b *Bot) handleConfirmation(ctx context.Context, key, channel, chatID string, sess *Session, text string) (string, error) {
	switch Classify(text) {
	case Affirm:
		draft := sess.PendingTicket
		token := sess.Token
		// Phase leaves AwaitingConfirmation no matter how submission
		// goes; a second affirm can never double-file.
		b.Reset(key)

		res, err := b.Gateway.Submit(ctx, draft, token)
		if err != nil {
			b.Logger.Error("ticket submission failed", "session", key, "error", err)
			return "Failed to submit the ticket. Please try again.", nil
		}
		if !res.Success {
			b.Logger.Warn("ticket rejected by halo", "session", key, "message", res.Message)
			return res.Message, nil
		}

		b.Logger.Info("ticket submitted", "session", key, "ticket_id", res.TicketID)
		b.journal(journal.Record{
			TicketID: res.TicketID,
			Summary:  draft.Summary,
			Channel:  channel,
			ChatID:   chatID,
		})
		return submittedPrefix + "\n\n" + res.Message, nil

	case Reject:
		b.Reset(key)
		b.Logger.Info("ticket cancelled", "session", key)
		return cancelledMessage, nil

	default:
		// Ambiguous: re-prompt, consume nothing.
		return reconfirmPrompt, nil
	}
}

// handleIdle runs the normal conversation flow: normalize attachments,
// consult the LLM with the full history, and watch the reply for a
// ticket payload.
func (b *Bot) handleIdle(ctx context.Context, key string, sess *Session, text string, attachments []attachment.Descriptor) (string, error) {
	files, err := attachment.Normalize(ctx, b.Fetcher, attachments)
	if err != nil {
		var uerr *attachment.UserError
		if errors.As(err, &uerr) {
			// Validation failure short-circuits before the LLM; no
			// history mutation so the user can simply re-send.
			b.Logger.Info("attachment rejected", "session", key, "reason", uerr.Message)
			return uerr.Message, nil
		}
		return "", fmt.Errorf("bot: normalize attachments: %w", err)
	}

	userMessage := composeUserMessage(text, files)
	if userMessage == "" {
		return rephrasePrompt, nil
	}

	// The turn is committed to history only after the oracle answers,
	// so a failed call leaves the session exactly as it was.
	messages := append(append([]protocol.ChatMessage{}, sess.History...),
		protocol.ChatMessage{Role: protocol.RoleUser, Content: userMessage})

	resp, err := b.Provider.Chat(ctx, protocol.ChatRequest{
		Messages:  messages,
		MaxTokens: replyMaxTokens,
	})
	if err != nil {
		b.Logger.Error("llm call failed", "session", key, "error", err)
		return oracleApology, nil
	}
	reply := resp.Content

	sess.History = append(messages, protocol.ChatMessage{Role: protocol.RoleAssistant, Content: reply})
	if len(files) > 0 {
		sess.PendingAttachments = files
	}

	if !ticket.HasSentinel(reply) {
		return reply, nil
	}

	draft, outcome, perr := ticket.Extract(reply)
	switch outcome {
	case ticket.Found:
		draft.DetailsHTML = attachment.MergeIntoDetails(draft.DetailsHTML, sess.PendingAttachments)
		sess.PendingTicket = draft
		sess.Phase = PhaseAwaitingConfirmation
		b.Logger.Info("ticket drafted",
			"session", key,
			"summary", draft.Summary,
			"type", draft.TicketTypeID,
			"attachments", len(sess.PendingAttachments),
		)
		return ticket.SummaryBefore(reply) + "\n\n" + confirmPrompt, nil

	case ticket.Malformed:
		// The payload is between the LLM and us; the user just sees
		// the reply as conversation.
		b.Logger.Warn("ticket payload failed to parse", "session", key, "error", perr)
		return reply, nil

	default:
		return reply, nil
	}
}

// composeUserMessage builds the effective user turn: raw text, a
// synthesized file note when text is empty, or both.
func composeUserMessage(text string, files []attachment.File) string {
	text = strings.TrimSpace(text)
	if len(files) == 0 {
		return text
	}

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Filename
	}
	note := fmt.Sprintf("[User attached %d file(s): %s]", len(files), strings.Join(names, ", "))

	if text == "" {
		return note
	}
	return text + "\n\n" + note
}

func (b *Bot) journal(r journal.Record) {
	if b.Journal == nil {
		return
	}
	if err := b.Journal.Save(r); err != nil {
		b.Logger.Error("journal write failed", "error", err)
	}
}
