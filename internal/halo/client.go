// Package halo is the client for the Halo ITSM API: an OAuth
// client-credentials token exchange and a tickets endpoint.
package halo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config holds Halo API endpoints and credentials.
type Config struct {
	AuthURL      string // token endpoint
	TicketURL    string // tickets endpoint
	WebBaseURL   string // portal base URL for user-facing ticket links, optional
	ClientID     string
	ClientSecret string
}

// Client talks to the Halo ITSM API. Tokens are acquired on demand and
// cached by the caller (per conversation session); the client itself is
// stateless and safe for concurrent use.
type Client struct {
	cfg    Config
	client *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.client = c }
}

// New creates a Halo client.
func New(cfg Config, opts ...Option) *Client {
	cl := &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(cl)
	}
	return cl
}

// SubmissionResult is the outcome of a ticket submission. Message is
// user-facing, including the failure diagnostics on non-success.
type SubmissionResult struct {
	Success  bool   `json:"success"`
	TicketID int    `json:"ticket_id,omitempty"`
	Message  string `json:"message"`
}

// AcquireToken exchanges client credentials for a bearer token. A
// non-2xx status is an error: without a token no ticket can ever be
// filed, so this is the one call allowed to abort the turn.
func (c *Client) AcquireToken(ctx context.Context) (string, error) {
	form := url.Values{
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"grant_type":    {"client_credentials"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("halo: create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("halo: token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("halo: read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("halo: token request failed (status %d): %s", resp.StatusCode, string(body))
	}

	var tok struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("halo: parse token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("halo: token response has no access_token")
	}
	return tok.AccessToken, nil
}

// Submit posts a one-element batch containing the ticket. HTTP 200/201/
// 202 is success; anything else is a failure whose message carries the
// status and raw body for diagnostics. Never retries.
func (c *Client) Submit(ctx context.Context, ticket any, token string) (SubmissionResult, error) {
	payload, err := json.Marshal([]any{ticket})
	if err != nil {
		return SubmissionResult{}, fmt.Errorf("halo: marshal ticket: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TicketURL, bytes.NewReader(payload))
	if err != nil {
		return SubmissionResult{}, fmt.Errorf("halo: create ticket request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return SubmissionResult{}, fmt.Errorf("halo: ticket request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return SubmissionResult{}, fmt.Errorf("halo: read ticket response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
	default:
		return SubmissionResult{
			Success: false,
			Message: fmt.Sprintf("Failed to create ticket: %d - %s", resp.StatusCode, string(body)),
		}, nil
	}

	var created struct {
		ID int `json:"id"`
	}
	// The response body is informational; a created ticket without a
	// parseable ID is still a success.
	_ = json.Unmarshal(body, &created)

	if created.ID != 0 {
		msg := fmt.Sprintf("Ticket created successfully with ID #%d", created.ID)
		if c.cfg.WebBaseURL != "" {
			msg += fmt.Sprintf("\n\nView your ticket progress: %s/ticket?id=%d&showmenu=true",
				strings.TrimRight(c.cfg.WebBaseURL, "/"), created.ID)
		}
		return SubmissionResult{Success: true, TicketID: created.ID, Message: msg}, nil
	}
	return SubmissionResult{Success: true, Message: "Ticket created successfully!"}, nil
}
