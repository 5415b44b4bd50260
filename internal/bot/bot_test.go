package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/halobot-io/halobot/internal/attachment"
	"github.com/halobot-io/halobot/internal/halo"
	"github.com/halobot-io/halobot/internal/journal"
	"github.com/halobot-io/halobot/internal/ticket"
	"github.com/halobot-io/halobot/pkg/protocol"
)

// mockProvider returns a scripted sequence of replies.
type mockProvider struct {
	replies []string
	err     error
	calls   []protocol.ChatRequest
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Chat(_ context.Context, req protocol.ChatRequest) (*protocol.ChatResponse, error) {
	m.calls = append(m.calls, req)
	if m.err != nil {
		return nil, m.err
	}
	idx := len(m.calls) - 1
	if idx >= len(m.replies) {
		return nil, fmt.Errorf("mock: no reply for call %d", idx)
	}
	return &protocol.ChatResponse{Content: m.replies[idx]}, nil
}

// mockGateway records token and submission traffic.
type mockGateway struct {
	tokenErr    error
	tokenCalls  int
	submitted   []*ticket.Draft
	submitErr   error
	result      halo.SubmissionResult
}

func (m *mockGateway) AcquireToken(_ context.Context) (string, error) {
	m.tokenCalls++
	if m.tokenErr != nil {
		return "", m.tokenErr
	}
	return "tok", nil
}

func (m *mockGateway) Submit(_ context.Context, t any, token string) (halo.SubmissionResult, error) {
	if token != "tok" {
		return halo.SubmissionResult{}, fmt.Errorf("wrong token %q", token)
	}
	m.submitted = append(m.submitted, t.(*ticket.Draft))
	if m.submitErr != nil {
		return halo.SubmissionResult{}, m.submitErr
	}
	return m.result, nil
}

// mockFetcher serves fixed bytes for every descriptor.
type mockFetcher struct {
	data []byte
}

func (m *mockFetcher) Fetch(_ context.Context, _ attachment.Descriptor) ([]byte, error) {
	return m.data, nil
}

// memJournal is an in-memory journal.Store.
type memJournal struct {
	records []journal.Record
}

func (j *memJournal) Save(r journal.Record) error { j.records = append(j.records, r); return nil }
func (j *memJournal) List(int) ([]journal.Record, error) { return j.records, nil }
func (j *memJournal) Close() error                       { return nil }

const ticketReply = `Let me summarize your request.

📋 Ticket Summary
Type: Incident
Title: VPN outage

READY_TO_CREATE_TICKET

json[{
 "summary": "VPN outage",
 "details_html": "<table><tr><td>Name:</td><td>Ana</td></tr></table><p>VPN down</p>",
 "tickettype_id": 1,
 "team_id": 45,
 "user_id": 16404,
 "customfields": [{"id": 165, "value": "4"}, {"id": 166, "value": "1"}]
}]`

func newTestBot(prov *mockProvider, gw *mockGateway) *Bot {
	b := New(prov, gw, &mockFetcher{data: []byte{1, 2, 3}}, slog.Default())
	return b
}

// checkInvariant fails the test if any session violates the
// phase/draft invariant.
func checkInvariant(t *testing.T, b *Bot) {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, sess := range b.sessions {
		if sess.corrupted() {
			t.Errorf("session %s violates invariant: phase=%v draft=%v", key, sess.Phase, sess.PendingTicket != nil)
		}
	}
}

func TestProcess_PlainConversation(t *testing.T) {
	prov := &mockProvider{replies: []string{"Could you describe the issue?"}}
	gw := &mockGateway{}
	b := newTestBot(prov, gw)

	reply, err := b.Process(context.Background(), "api", "c1", "I need help", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "Could you describe the issue?" {
		t.Errorf("reply = %q", reply)
	}
	if gw.tokenCalls != 1 {
		t.Errorf("token fetched %d times", gw.tokenCalls)
	}
	checkInvariant(t, b)

	// History: system, user, assistant.
	sess := b.session("api:c1")
	if len(sess.History) != 3 {
		t.Fatalf("history length = %d", len(sess.History))
	}
	if sess.History[0].Role != protocol.RoleSystem {
		t.Error("system prompt must lead the history")
	}
	if sess.History[1].Content != "I need help" {
		t.Errorf("user turn = %q", sess.History[1].Content)
	}
}

func TestProcess_TokenCachedAcrossTurns(t *testing.T) {
	prov := &mockProvider{replies: []string{"a", "b"}}
	gw := &mockGateway{}
	b := newTestBot(prov, gw)

	b.Process(context.Background(), "api", "c1", "one", nil)
	b.Process(context.Background(), "api", "c1", "two", nil)

	if gw.tokenCalls != 1 {
		t.Errorf("token must be fetched once per session, got %d", gw.tokenCalls)
	}
}

func TestProcess_TokenFailureAbortsTurn(t *testing.T) {
	prov := &mockProvider{replies: []string{"unused"}}
	gw := &mockGateway{tokenErr: errors.New("auth down")}
	b := newTestBot(prov, gw)

	_, err := b.Process(context.Background(), "api", "c1", "hello", nil)
	if err == nil {
		t.Fatal("expected error when token acquisition fails")
	}
	if len(prov.calls) != 0 {
		t.Error("LLM must not be consulted without a token")
	}
}

func TestProcess_TicketFlow_Affirm(t *testing.T) {
	prov := &mockProvider{replies: []string{ticketReply}}
	gw := &mockGateway{result: halo.SubmissionResult{Success: true, TicketID: 777, Message: "Ticket created successfully with ID #777"}}
	b := newTestBot(prov, gw)
	jr := &memJournal{}
	b.Journal = jr

	reply, err := b.Process(context.Background(), "telegram", "42", "my VPN is down, I'm Ana, ana@example.com", nil)
	if err != nil {
		t.Fatalf("turn 1: %v", err)
	}
	if strings.Contains(reply, ticket.Sentinel) {
		t.Error("sentinel must never reach the user")
	}
	if !strings.Contains(reply, "Ticket Summary") || !strings.Contains(reply, confirmPrompt) {
		t.Errorf("reply = %q", reply)
	}
	sess := b.session("telegram:42")
	if sess.Phase != PhaseAwaitingConfirmation {
		t.Fatalf("phase = %v", sess.Phase)
	}
	checkInvariant(t, b)

	reply, err = b.Process(context.Background(), "telegram", "42", "yes please", nil)
	if err != nil {
		t.Fatalf("turn 2: %v", err)
	}
	if !strings.Contains(reply, submittedPrefix) || !strings.Contains(reply, "#777") {
		t.Errorf("reply = %q", reply)
	}
	if len(gw.submitted) != 1 {
		t.Fatalf("expected 1 submission, got %d", len(gw.submitted))
	}
	if gw.submitted[0].Summary != "VPN outage" {
		t.Errorf("submitted summary = %q", gw.submitted[0].Summary)
	}
	checkInvariant(t, b)

	// Journal.
	if len(jr.records) != 1 || jr.records[0].TicketID != 777 || jr.records[0].Channel != "telegram" {
		t.Errorf("journal records = %+v", jr.records)
	}

	// The session was cleared: a second "yes" is just conversation in
	// a fresh Idle session, never a resubmission.
	prov.replies = append(prov.replies, "How else can I help?")
	if _, err := b.Process(context.Background(), "telegram", "42", "yes", nil); err != nil {
		t.Fatalf("turn 3: %v", err)
	}
	if len(gw.submitted) != 1 {
		t.Error("session clear must make a second affirm impossible")
	}
	if gw.tokenCalls != 2 {
		t.Errorf("fresh session must fetch a fresh token, got %d calls", gw.tokenCalls)
	}
}

func TestProcess_TicketFlow_Reject(t *testing.T) {
	prov := &mockProvider{replies: []string{ticketReply}}
	gw := &mockGateway{}
	b := newTestBot(prov, gw)

	b.Process(context.Background(), "api", "c1", "vpn is down", nil)
	reply, err := b.Process(context.Background(), "api", "c1", "no thanks", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != cancelledMessage {
		t.Errorf("reply = %q", reply)
	}
	if len(gw.submitted) != 0 {
		t.Error("rejected ticket must not be submitted")
	}
	if b.SessionCount() != 0 {
		t.Error("session must be cleared on rejection")
	}
}

func TestProcess_TicketFlow_Ambiguous(t *testing.T) {
	prov := &mockProvider{replies: []string{ticketReply}}
	gw := &mockGateway{}
	b := newTestBot(prov, gw)

	b.Process(context.Background(), "api", "c1", "vpn is down", nil)
	reply, err := b.Process(context.Background(), "api", "c1", "maybe later", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != reconfirmPrompt {
		t.Errorf("reply = %q", reply)
	}

	// No state mutation: still awaiting, draft intact, no LLM call.
	sess := b.session("api:c1")
	if sess.Phase != PhaseAwaitingConfirmation || sess.PendingTicket == nil {
		t.Error("ambiguous reply must not consume the decision")
	}
	if len(prov.calls) != 1 {
		t.Errorf("LLM calls = %d", len(prov.calls))
	}
	checkInvariant(t, b)
}

func TestProcess_SubmissionFailureRelayedAndCleared(t *testing.T) {
	prov := &mockProvider{replies: []string{ticketReply}}
	gw := &mockGateway{result: halo.SubmissionResult{Success: false, Message: "Failed to create ticket: 400 - team_id is invalid"}}
	b := newTestBot(prov, gw)

	b.Process(context.Background(), "api", "c1", "vpn is down", nil)
	reply, err := b.Process(context.Background(), "api", "c1", "yes", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(reply, "400") || !strings.Contains(reply, "team_id is invalid") {
		t.Errorf("failure diagnostics must be relayed, got %q", reply)
	}
	if b.SessionCount() != 0 {
		t.Error("session must be cleared regardless of submission outcome")
	}
}

func TestProcess_OracleFailureLeavesStateUnchanged(t *testing.T) {
	prov := &mockProvider{err: errors.New("upstream 503")}
	gw := &mockGateway{}
	b := newTestBot(prov, gw)

	// Seed a session with one successful turn first.
	prov.err = nil
	prov.replies = []string{"Tell me more."}
	b.Process(context.Background(), "api", "c1", "hello", nil)
	prov.err = errors.New("upstream 503")

	descriptors := []attachment.Descriptor{{Filename: "shot.png", URL: "https://files/shot.png"}}
	reply, err := b.Process(context.Background(), "api", "c1", "my mouse broke", descriptors)
	if err != nil {
		t.Fatalf("oracle failure must degrade, not error: %v", err)
	}
	if reply != oracleApology {
		t.Errorf("reply = %q", reply)
	}

	// The failed turn was not committed: history still 3 entries,
	// phase still Idle, no attachments stashed, so the user can retry
	// verbatim.
	sess := b.session("api:c1")
	if len(sess.History) != 3 {
		t.Errorf("history length = %d, failed turn must not be recorded", len(sess.History))
	}
	if sess.Phase != PhaseIdle {
		t.Errorf("phase = %v", sess.Phase)
	}
	if len(sess.PendingAttachments) != 0 {
		t.Errorf("failed turn stashed %d attachments", len(sess.PendingAttachments))
	}
}

func TestProcess_MalformedPayloadDegradesToPlainText(t *testing.T) {
	reply := "Here you go. READY_TO_CREATE_TICKET json[{\"summary\": broken}]"
	prov := &mockProvider{replies: []string{reply}}
	gw := &mockGateway{}
	b := newTestBot(prov, gw)

	got, err := b.Process(context.Background(), "api", "c1", "vpn down", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != reply {
		t.Errorf("malformed payload must fall back to the verbatim reply, got %q", got)
	}
	sess := b.session("api:c1")
	if sess.Phase != PhaseIdle || sess.PendingTicket != nil {
		t.Error("malformed payload must not open a confirmation phase")
	}
	checkInvariant(t, b)
}

func TestProcess_AttachmentErrorShortCircuits(t *testing.T) {
	prov := &mockProvider{replies: []string{"unused"}}
	gw := &mockGateway{}
	b := newTestBot(prov, gw)

	reply, err := b.Process(context.Background(), "api", "c1", "", []attachment.Descriptor{
		{Filename: "report.pdf", URL: "http://x/1"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(reply, ".pdf") {
		t.Errorf("reply = %q", reply)
	}
	if len(prov.calls) != 0 {
		t.Error("normalizer failure must short-circuit before the LLM")
	}
	// No history mutation beyond the seeded system prompt.
	sess := b.session("api:c1")
	if len(sess.History) != 1 {
		t.Errorf("history length = %d", len(sess.History))
	}
}

func TestProcess_AttachmentsMergedIntoDraft(t *testing.T) {
	prov := &mockProvider{replies: []string{ticketReply}}
	gw := &mockGateway{result: halo.SubmissionResult{Success: true, Message: "ok"}}
	b := newTestBot(prov, gw)

	_, err := b.Process(context.Background(), "api", "c1", "my VPN is down", []attachment.Descriptor{
		{Filename: "diagram.png", URL: "http://x/1"},
	})
	if err != nil {
		t.Fatalf("turn 1: %v", err)
	}

	// The user turn carries the synthesized file note.
	userTurn := prov.calls[0].Messages[1].Content
	if !strings.Contains(userTurn, "my VPN is down") || !strings.Contains(userTurn, "[User attached 1 file(s): diagram.png]") {
		t.Errorf("user turn = %q", userTurn)
	}

	// The pending draft has the attachment merged right after the
	// user-info table.
	sess := b.session("api:c1")
	html := sess.PendingTicket.DetailsHTML
	tableEnd := strings.Index(html, "</table>")
	img := strings.Index(html, "diagram.png")
	desc := strings.Index(html, "<p>VPN down</p>")
	if !(tableEnd >= 0 && tableEnd < img && img < desc) {
		t.Errorf("attachment not anchored after the table: %q", html)
	}

	if _, err := b.Process(context.Background(), "api", "c1", "yes", nil); err != nil {
		t.Fatalf("turn 2: %v", err)
	}
	if !strings.Contains(gw.submitted[0].DetailsHTML, "diagram.png") {
		t.Error("submitted ticket must include the attachment HTML")
	}
}

func TestProcess_FileOnlyMessageSynthesizesNote(t *testing.T) {
	prov := &mockProvider{replies: []string{"Thanks for the screenshot!"}}
	gw := &mockGateway{}
	b := newTestBot(prov, gw)

	_, err := b.Process(context.Background(), "api", "c1", "", []attachment.Descriptor{
		{Filename: "screen.png", URL: "http://x/1"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	userTurn := prov.calls[0].Messages[1].Content
	if userTurn != "[User attached 1 file(s): screen.png]" {
		t.Errorf("user turn = %q", userTurn)
	}
}

func TestProcess_EmptyTurnReprompts(t *testing.T) {
	prov := &mockProvider{}
	gw := &mockGateway{}
	b := newTestBot(prov, gw)

	reply, err := b.Process(context.Background(), "api", "c1", "   ", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != rephrasePrompt {
		t.Errorf("reply = %q", reply)
	}
	if len(prov.calls) != 0 {
		t.Error("empty turn must not reach the LLM")
	}
}

func TestProcess_CorruptedSessionResets(t *testing.T) {
	prov := &mockProvider{replies: []string{"How can I help?"}}
	gw := &mockGateway{}
	b := newTestBot(prov, gw)

	// Force the invariant violation: confirmation phase with no draft.
	sess := b.session("api:c1")
	sess.Token = "tok"
	sess.Phase = PhaseAwaitingConfirmation
	sess.PendingTicket = nil

	reply, err := b.Process(context.Background(), "api", "c1", "hello", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "How can I help?" {
		t.Errorf("reply = %q", reply)
	}
	checkInvariant(t, b)
	if got := b.session("api:c1").Phase; got != PhaseIdle {
		t.Errorf("phase after reset = %v", got)
	}
}

func TestReset(t *testing.T) {
	prov := &mockProvider{replies: []string{"hi"}}
	gw := &mockGateway{}
	b := newTestBot(prov, gw)

	b.Process(context.Background(), "api", "c1", "hello", nil)
	if !b.Reset("api:c1") {
		t.Error("expected existing session")
	}
	if b.Reset("api:c1") {
		t.Error("expected session to be gone")
	}
}

func TestProcess_ConcurrentTurnsSerialized(t *testing.T) {
	const turns = 8
	replies := make([]string, turns)
	for i := range replies {
		replies[i] = fmt.Sprintf("reply %d", i)
	}
	prov := &mockProvider{replies: replies}
	gw := &mockGateway{}
	b := newTestBot(prov, gw)

	// The REST channel can deliver overlapping posts for one
	// conversation; the bot must run them one at a time.
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := b.Process(context.Background(), "api", "c1", fmt.Sprintf("message %d", i), nil); err != nil {
				t.Errorf("turn %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	sess := b.session("api:c1")
	if len(sess.History) != 1+2*turns {
		t.Errorf("history length = %d, want %d", len(sess.History), 1+2*turns)
	}
	if gw.tokenCalls != 1 {
		t.Errorf("token fetched %d times, want 1", gw.tokenCalls)
	}
	// Each oracle call must have seen every earlier turn committed:
	// system prompt plus one user/assistant pair per prior turn plus
	// the current user message.
	for i, call := range prov.calls {
		if got, want := len(call.Messages), 2*i+2; got != want {
			t.Errorf("call %d carried %d messages, want %d", i, got, want)
		}
	}
	checkInvariant(t, b)
}
