package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/halobot-io/halobot/pkg/protocol"
)

const defaultAzureAPIVersion = "2024-06-01"

// AzureProvider implements Provider for Azure OpenAI deployments.
// Azure routes by deployment name rather than model, and authenticates
// with an "api-key" header instead of a Bearer token.
type AzureProvider struct {
	client     *http.Client
	endpoint   string // https://<resource>.openai.azure.com
	deployment string
	apiVersion string
	apiKey     string
}

// AzureOption configures an AzureProvider.
type AzureOption func(*AzureProvider)

// WithAzureAPIVersion overrides the api-version query parameter.
func WithAzureAPIVersion(v string) AzureOption {
	return func(p *AzureProvider) { p.apiVersion = v }
}

// WithAzureHTTPClient sets a custom HTTP client.
func WithAzureHTTPClient(c *http.Client) AzureOption {
	return func(p *AzureProvider) { p.client = c }
}

// NewAzure creates a provider for an Azure OpenAI deployment.
func NewAzure(endpoint, deployment, apiKey string, opts ...AzureOption) *AzureProvider {
	p := &AzureProvider{
		client:     &http.Client{Timeout: 120 * time.Second},
		endpoint:   strings.TrimRight(endpoint, "/"),
		deployment: deployment,
		apiVersion: defaultAzureAPIVersion,
		apiKey:     apiKey,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *AzureProvider) Name() string { return "azure" }

func (p *AzureProvider) Chat(ctx context.Context, req protocol.ChatRequest) (*protocol.ChatResponse, error) {
	body := chatCompletionsRequest{
		Messages: req.Messages,
	}
	// Newer Azure API versions reject max_tokens in favor of
	// max_completion_tokens.
	if req.MaxTokens > 0 {
		body.MaxCompletionTokens = &req.MaxTokens
	}
	if req.Temperature > 0 {
		body.Temperature = &req.Temperature
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("azure: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		p.endpoint, p.deployment, p.apiVersion)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("azure: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("azure: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("azure: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("azure: api error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var ccResp chatCompletionsResponse
	if err := json.Unmarshal(respBody, &ccResp); err != nil {
		return nil, fmt.Errorf("azure: unmarshal response: %w", err)
	}

	return ccResp.toChatResponse()
}
