package llm

import "context"

// LLM is the interface for chat model backends.
type LLM interface {
	// Chat sends a request and returns the complete response.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// ChatStream sends a request and returns a channel of streaming events.
	ChatStream(ctx context.Context, req *ChatRequest) (<-chan StreamEvent, error)
}

// Message represents a conversation message.
type Message struct {
	Role    Role
	Content string
}

// Role identifies the message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ChatRequest is a model-agnostic chat request.
type ChatRequest struct {
	// Messages is the conversation so far, system message included.
	Messages []Message

	// Format, when non-nil, is a JSON schema the model output must match.
	Format map[string]any

	// Temperature overrides the backend default when non-nil.
	Temperature *float64
}

// ChatResponse is the response from a chat call.
type ChatResponse struct {
	// Content is the text response.
	Content string

	// Model is the model that produced the response.
	Model string

	// Token counts as reported by the backend.
	PromptTokens int
	OutputTokens int

	// Latency in milliseconds.
	LatencyMs int64

	// DoneReason indicates why generation stopped ("stop", "length", ...).
	DoneReason string
}

// StreamEvent is an event from streaming generation.
type StreamEvent struct {
	// Type of event.
	Type StreamEventType

	// Delta is new content for ContentDelta events.
	Delta string

	// Error if something went wrong.
	Error error

	// PromptTokens and OutputTokens are set on the Done event.
	PromptTokens int
	OutputTokens int
}

// StreamEventType categorizes stream events.
type StreamEventType string

const (
	StreamEventContentDelta StreamEventType = "content_delta"
	StreamEventDone         StreamEventType = "done"
	StreamEventError        StreamEventType = "error"
)
