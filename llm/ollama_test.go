package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestNormalizeHost(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"localhost", "http://localhost:11434"},
		{"localhost:8080", "http://localhost:8080"},
		{"http://remote:11434", "http://remote:11434"},
		{"https://ollama.example.com:443", "https://ollama.example.com:443"},
		{"http://remote:11434/", "http://remote:11434"},
		{"host.docker.internal", "http://host.docker.internal:11434"},
		{"", "http://host.docker.internal:11434"},
	}

	for _, tt := range tests {
		if got := normalizeHost(tt.in); got != tt.want {
			t.Errorf("normalizeHost(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestChat(t *testing.T) {
	var gotReq ollamaRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s, want /api/chat", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, `{"model":"phi4","message":{"role":"assistant","content":"hello"},"done":true,"done_reason":"stop","prompt_eval_count":10,"eval_count":5}`)
	}))
	defer server.Close()

	o := NewOllama(WithHost(server.URL), WithModel("phi4"))

	resp, err := o.Chat(context.Background(), &ChatRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: "be terse"},
			{Role: RoleUser, Content: "hi"},
		},
		Format: map[string]any{"type": "object"},
	})
	if err != nil {
		t.Fatalf("Chat error: %v", err)
	}

	if resp.Content != "hello" {
		t.Errorf("content = %q, want hello", resp.Content)
	}
	if resp.PromptTokens != 10 || resp.OutputTokens != 5 {
		t.Errorf("tokens = %d/%d, want 10/5", resp.PromptTokens, resp.OutputTokens)
	}

	if gotReq.Model != "phi4" {
		t.Errorf("request model = %q, want phi4", gotReq.Model)
	}
	if gotReq.Stream {
		t.Error("request should not be streaming")
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" {
		t.Errorf("unexpected messages: %+v", gotReq.Messages)
	}
	if gotReq.Format == nil {
		t.Error("format schema not forwarded")
	}
}

func TestChatRetriesOnBusy(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("retry-after", "1")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"model":"phi4","message":{"role":"assistant","content":"ok"},"done":true}`)
	}))
	defer server.Close()

	o := NewOllama(WithHost(server.URL))

	resp, err := o.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Chat error: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("content = %q, want ok", resp.Content)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestChatAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	o := NewOllama(WithHost(server.URL))

	if _, err := o.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	}); err == nil {
		t.Error("expected error for 404 response")
	}
}

func TestChatOllamaError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":"model \"phi4\" not found"}`)
	}))
	defer server.Close()

	o := NewOllama(WithHost(server.URL))

	if _, err := o.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	}); err == nil {
		t.Error("expected error for in-band ollama error")
	}
}

func TestChatStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		json.NewDecoder(r.Body).Decode(&req)
		if !req.Stream {
			t.Error("request should be streaming")
		}
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"hel"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"lo"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true,"prompt_eval_count":3,"eval_count":2}`)
	}))
	defer server.Close()

	o := NewOllama(WithHost(server.URL))

	events, err := o.ChatStream(context.Background(), &ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("ChatStream error: %v", err)
	}

	var content string
	var done bool
	for ev := range events {
		switch ev.Type {
		case StreamEventContentDelta:
			content += ev.Delta
		case StreamEventDone:
			done = true
			if ev.PromptTokens != 3 || ev.OutputTokens != 2 {
				t.Errorf("tokens = %d/%d, want 3/2", ev.PromptTokens, ev.OutputTokens)
			}
		case StreamEventError:
			t.Fatalf("stream error: %v", ev.Error)
		}
	}

	if content != "hello" {
		t.Errorf("content = %q, want hello", content)
	}
	if !done {
		t.Error("no done event received")
	}
}

func TestPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("path = %s, want /api/tags", r.URL.Path)
		}
		fmt.Fprint(w, `{"models":[]}`)
	}))
	defer server.Close()

	o := NewOllama(WithHost(server.URL))
	if err := o.Ping(context.Background()); err != nil {
		t.Errorf("Ping error: %v", err)
	}
}

func TestPingUnreachable(t *testing.T) {
	o := NewOllama(WithHost("http://127.0.0.1:1"))
	if err := o.Ping(context.Background()); err == nil {
		t.Error("expected error for unreachable host")
	}
}
