package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// OllamaLLM is an LLM implementation using the Ollama chat API.
type OllamaLLM struct {
	host       string
	httpClient *http.Client
	model      string
}

// OllamaOption configures the Ollama client.
type OllamaOption func(*OllamaLLM)

// WithHost sets the API base URL.
func WithHost(host string) OllamaOption {
	return func(o *OllamaLLM) {
		o.host = normalizeHost(host)
	}
}

// WithModel sets the default model.
func WithModel(model string) OllamaOption {
	return func(o *OllamaLLM) {
		o.model = model
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) OllamaOption {
	return func(o *OllamaLLM) {
		o.httpClient = client
	}
}

// Default Ollama configuration values
const (
	DefaultOllamaTimeout = 5 * time.Minute
	DefaultOllamaModel   = "phi4"
	DefaultOllamaHost    = "host.docker.internal"
	defaultOllamaPort    = "11434"
)

// NewOllama creates a new Ollama chat client. The host defaults to the
// OLLAMA_HOST environment variable, then to host.docker.internal:11434.
func NewOllama(opts ...OllamaOption) *OllamaLLM {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = DefaultOllamaHost
	}

	o := &OllamaLLM{
		host: normalizeHost(host),
		httpClient: &http.Client{
			Timeout: DefaultOllamaTimeout,
		},
		model: DefaultOllamaModel,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// normalizeHost accepts a bare hostname, host:port, or full URL and returns a
// base URL without a trailing slash.
func normalizeHost(host string) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		host = DefaultOllamaHost
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	// Append the default port when the authority has none.
	rest := host[strings.Index(host, "://")+3:]
	if !strings.Contains(rest, ":") {
		host += ":" + defaultOllamaPort
	}
	return host
}

// ollamaRequest is the API request format.
type ollamaRequest struct {
	Model    string         `json:"model"`
	Messages []ollamaMsg    `json:"messages"`
	Format   map[string]any `json:"format,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
	Stream   bool           `json:"stream"`
}

type ollamaMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ollamaResponse is the API response format. Streaming responses reuse it
// with partial message content per line.
type ollamaResponse struct {
	Model   string `json:"model"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error"`
}

// Ping makes a minimal API call to verify the server is reachable.
func (o *OllamaLLM) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", o.host+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not reach Ollama at %s: %w", o.host, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Ollama at %s returned status %d", o.host, resp.StatusCode)
	}
	return nil
}

// Host returns the base URL the client talks to.
func (o *OllamaLLM) Host() string { return o.host }

// Chat sends a request and returns the complete response.
func (o *OllamaLLM) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	oreq := o.buildRequest(req, false)

	resp, err := o.doRequest(ctx, oreq)
	if err != nil {
		return nil, err
	}

	return &ChatResponse{
		Content:      resp.Message.Content,
		Model:        resp.Model,
		PromptTokens: resp.PromptEvalCount,
		OutputTokens: resp.EvalCount,
		LatencyMs:    time.Since(start).Milliseconds(),
		DoneReason:   resp.DoneReason,
	}, nil
}

// ChatStream sends a request and returns a channel of streaming events.
// Ollama streams newline-delimited JSON objects, one per token batch.
func (o *OllamaLLM) ChatStream(ctx context.Context, req *ChatRequest) (<-chan StreamEvent, error) {
	oreq := o.buildRequest(req, true)

	eventCh := make(chan StreamEvent, 100)

	go func() {
		defer close(eventCh)

		const maxRetries = 5
		for attempt := 0; attempt <= maxRetries; attempt++ {
			httpReq, err := o.createHTTPRequest(ctx, oreq)
			if err != nil {
				eventCh <- StreamEvent{Type: StreamEventError, Error: err}
				return
			}

			httpResp, err := o.httpClient.Do(httpReq)
			if err != nil {
				eventCh <- StreamEvent{Type: StreamEventError, Error: err}
				return
			}

			if httpResp.StatusCode == http.StatusOK {
				o.parseNDJSON(httpResp.Body, eventCh)
				httpResp.Body.Close()
				return
			}

			body, _ := io.ReadAll(httpResp.Body)
			httpResp.Body.Close()

			// Retry on 429 (rate limit) and 503 (model loading).
			if retryableStatus(httpResp.StatusCode) && attempt < maxRetries {
				wait := retryAfterDelay(httpResp, attempt)
				slog.Warn("ollama busy (stream), retrying", "status", httpResp.StatusCode, "attempt", attempt+1, "wait", wait)
				select {
				case <-time.After(wait):
					continue
				case <-ctx.Done():
					eventCh <- StreamEvent{Type: StreamEventError, Error: ctx.Err()}
					return
				}
			}

			eventCh <- StreamEvent{
				Type:  StreamEventError,
				Error: fmt.Errorf("API error %d: %s", httpResp.StatusCode, string(body)),
			}
			return
		}

		eventCh <- StreamEvent{Type: StreamEventError, Error: fmt.Errorf("max retries exceeded")}
	}()

	return eventCh, nil
}

func (o *OllamaLLM) buildRequest(req *ChatRequest, stream bool) *ollamaRequest {
	oreq := &ollamaRequest{
		Model:  o.model,
		Format: req.Format,
		Stream: stream,
	}

	for _, msg := range req.Messages {
		oreq.Messages = append(oreq.Messages, ollamaMsg{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	if req.Temperature != nil {
		oreq.Options = map[string]any{"temperature": *req.Temperature}
	}

	return oreq
}

func (o *OllamaLLM) createHTTPRequest(ctx context.Context, req *ollamaRequest) (*http.Request, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", o.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")

	return httpReq, nil
}

func (o *OllamaLLM) doRequest(ctx context.Context, req *ollamaRequest) (*ollamaResponse, error) {
	const maxRetries = 5

	for attempt := 0; attempt <= maxRetries; attempt++ {
		httpReq, err := o.createHTTPRequest(ctx, req)
		if err != nil {
			return nil, err
		}

		httpResp, err := o.httpClient.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("http request: %w", err)
		}

		body, err := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}

		if httpResp.StatusCode == http.StatusOK {
			var resp ollamaResponse
			if err := json.Unmarshal(body, &resp); err != nil {
				return nil, fmt.Errorf("unmarshal response: %w", err)
			}
			if resp.Error != "" {
				return nil, fmt.Errorf("ollama error: %s", resp.Error)
			}
			return &resp, nil
		}

		// Retry on 429 (rate limit) and 503 (model loading).
		if retryableStatus(httpResp.StatusCode) && attempt < maxRetries {
			wait := retryAfterDelay(httpResp, attempt)
			slog.Warn("ollama busy, retrying", "status", httpResp.StatusCode, "attempt", attempt+1, "wait", wait)
			select {
			case <-time.After(wait):
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		return nil, fmt.Errorf("API error %d: %s", httpResp.StatusCode, string(body))
	}

	return nil, fmt.Errorf("max retries exceeded")
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable
}

// retryAfterDelay returns how long to wait before retrying a rejected request.
// It respects the retry-after header if present, otherwise uses exponential backoff.
func retryAfterDelay(resp *http.Response, attempt int) time.Duration {
	if ra := resp.Header.Get("retry-after"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	// Exponential backoff: 5s, 10s, 20s, 40s, 60s
	wait := time.Duration(5<<uint(attempt)) * time.Second
	if wait > 60*time.Second {
		wait = 60 * time.Second
	}
	return wait
}

func (o *OllamaLLM) parseNDJSON(reader io.Reader, eventCh chan<- StreamEvent) {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var chunk ollamaResponse
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			eventCh <- StreamEvent{Type: StreamEventError, Error: fmt.Errorf("decode stream chunk: %w", err)}
			return
		}

		if chunk.Error != "" {
			eventCh <- StreamEvent{Type: StreamEventError, Error: fmt.Errorf("ollama error: %s", chunk.Error)}
			return
		}

		if chunk.Message.Content != "" {
			eventCh <- StreamEvent{Type: StreamEventContentDelta, Delta: chunk.Message.Content}
		}

		if chunk.Done {
			eventCh <- StreamEvent{
				Type:         StreamEventDone,
				PromptTokens: chunk.PromptEvalCount,
				OutputTokens: chunk.EvalCount,
			}
			return
		}
	}

	if err := scanner.Err(); err != nil {
		eventCh <- StreamEvent{Type: StreamEventError, Error: err}
	}
}
