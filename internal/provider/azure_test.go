package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/halobot-io/halobot/pkg/protocol"
)

func TestAzureChat_DeploymentURL(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery

		if r.Header.Get("api-key") != "azure-key" {
			t.Error("missing api-key header")
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("azure provider must not send a Bearer token")
		}

		var req chatCompletionsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.MaxCompletionTokens == nil || *req.MaxCompletionTokens != 2000 {
			t.Error("expected max_completion_tokens 2000")
		}

		resp := chatCompletionsResponse{
			Choices: []chatCompletionsChoice{{
				Message: protocol.ChatMessage{Role: "assistant", Content: "How can I help?"},
			}},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p := NewAzure(srv.URL+"/", "support-gpt", "azure-key")

	got, err := p.Chat(context.Background(), protocol.ChatRequest{
		Messages:  []protocol.ChatMessage{{Role: "user", Content: "Hi"}},
		MaxTokens: 2000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Content != "How can I help?" {
		t.Errorf("unexpected content %q", got.Content)
	}
	if gotPath != "/openai/deployments/support-gpt/chat/completions" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if !strings.Contains(gotQuery, "api-version=") {
		t.Errorf("api-version missing from query %q", gotQuery)
	}
}

func TestAzureChat_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "deployment not found", http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewAzure(srv.URL, "missing", "azure-key")

	_, err := p.Chat(context.Background(), protocol.ChatRequest{
		Messages: []protocol.ChatMessage{{Role: "user", Content: "Hi"}},
	})
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error should carry the status code, got %v", err)
	}
}
