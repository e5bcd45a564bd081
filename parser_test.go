package banklens

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/banklens/banklens/llm"
)

const modelJSON = `{
  "account_holder": {"name": "Jane Doe", "account_number": "XX1234"},
  "transactions": [
    {"date": "01-01-2024", "amount": 1000.00, "currency": "INR", "type": "CREDIT", "description": "SALARY ACME CORP", "balance": 1000.00},
    {"date": "02-01-2024", "amount": 250.50, "currency": "INR", "type": "DEBIT", "description": "UPI/412345678901/groceries/shop@okicici", "balance": 749.50}
  ]
}`

// fakeExtractor returns canned text per path.
type fakeExtractor struct {
	texts map[string]string
	err   error
}

func (f *fakeExtractor) Extract(ctx context.Context, path string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	text, ok := f.texts[path]
	if !ok {
		return "", fmt.Errorf("no such file %s", path)
	}
	return text, nil
}

// fakeLLM returns a canned response and records the last request.
type fakeLLM struct {
	content string
	err     error
	lastReq *llm.ChatRequest
}

func (f *fakeLLM) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{Content: f.content, Model: "phi4"}, nil
}

func (f *fakeLLM) ChatStream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamEvent, error) {
	ch := make(chan llm.StreamEvent, 2)
	ch <- llm.StreamEvent{Type: llm.StreamEventContentDelta, Delta: f.content}
	ch <- llm.StreamEvent{Type: llm.StreamEventDone}
	close(ch)
	return ch, nil
}

func TestParseText(t *testing.T) {
	backend := &fakeLLM{content: modelJSON}
	p := NewParser(&fakeExtractor{}, backend)

	stmt, err := p.ParseText(context.Background(), "some statement text")
	if err != nil {
		t.Fatalf("ParseText error: %v", err)
	}

	if stmt.AccountHolder.Name != "Jane Doe" {
		t.Errorf("holder name = %q, want Jane Doe", stmt.AccountHolder.Name)
	}
	if stmt.AccountHolder.AccountNumber != "XX1234" {
		t.Errorf("account number = %q, want XX1234", stmt.AccountHolder.AccountNumber)
	}
	if len(stmt.Transactions) != 2 {
		t.Fatalf("got %d transactions, want 2", len(stmt.Transactions))
	}
	if stmt.Transactions[1].Description != "groceries" {
		t.Errorf("description = %q, want %q", stmt.Transactions[1].Description, "groceries")
	}
	if len(stmt.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", stmt.Warnings)
	}

	// The request must carry the structured output constraint and the
	// statement text.
	if backend.lastReq.Format == nil {
		t.Error("request missing format schema")
	}
	if len(backend.lastReq.Messages) != 2 || backend.lastReq.Messages[1].Content != "some statement text" {
		t.Errorf("unexpected messages: %+v", backend.lastReq.Messages)
	}
}

func TestParseTextCodeFences(t *testing.T) {
	p := NewParser(&fakeExtractor{}, &fakeLLM{content: "```json\n" + modelJSON + "\n```"})

	stmt, err := p.ParseText(context.Background(), "text")
	if err != nil {
		t.Fatalf("ParseText error: %v", err)
	}
	if len(stmt.Transactions) != 2 {
		t.Errorf("got %d transactions, want 2", len(stmt.Transactions))
	}
}

func TestParseTextWrappedResponse(t *testing.T) {
	wrapped := fmt.Sprintf(`{"transactions": %s}`, modelJSON)
	p := NewParser(&fakeExtractor{}, &fakeLLM{content: wrapped})

	stmt, err := p.ParseText(context.Background(), "text")
	if err != nil {
		t.Fatalf("ParseText error: %v", err)
	}
	if len(stmt.Transactions) != 2 {
		t.Errorf("got %d transactions, want 2", len(stmt.Transactions))
	}
	if stmt.AccountHolder.Name != "Jane Doe" {
		t.Errorf("holder name = %q, want Jane Doe", stmt.AccountHolder.Name)
	}
}

func TestParseTextDropsBadTransactions(t *testing.T) {
	content := `{
  "account_holder": {"name": "Jane Doe", "account_number": "XX1234"},
  "transactions": [
    {"date": "01-01-2024", "amount": 1000.00, "currency": "INR", "type": "CREDIT", "description": "salary", "balance": 1000.00},
    {"date": "02-01-2024", "currency": "INR", "type": "DEBIT", "description": "amount missing", "balance": 900.00}
  ]
}`
	p := NewParser(&fakeExtractor{}, &fakeLLM{content: content})

	stmt, err := p.ParseText(context.Background(), "text")
	if err != nil {
		t.Fatalf("ParseText error: %v", err)
	}
	if len(stmt.Transactions) != 1 {
		t.Fatalf("got %d transactions, want 1", len(stmt.Transactions))
	}

	found := false
	for _, w := range stmt.Warnings {
		if strings.Contains(w, "dropped") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a dropped transaction warning, got %v", stmt.Warnings)
	}
}

func TestParseTextEmpty(t *testing.T) {
	p := NewParser(&fakeExtractor{}, &fakeLLM{content: modelJSON})

	if _, err := p.ParseText(context.Background(), "   \n "); !errors.Is(err, ErrNoText) {
		t.Errorf("expected ErrNoText, got %v", err)
	}
}

func TestParseTextInvalidJSON(t *testing.T) {
	p := NewParser(&fakeExtractor{}, &fakeLLM{content: "I could not parse the statement."})

	if _, err := p.ParseText(context.Background(), "text"); err == nil {
		t.Error("expected error for non-JSON model output")
	}
}

func TestParseTextModelError(t *testing.T) {
	p := NewParser(&fakeExtractor{}, &fakeLLM{err: errors.New("connection refused")})

	if _, err := p.ParseText(context.Background(), "text"); err == nil {
		t.Error("expected error when the model call fails")
	}
}

func TestExtractTextJoinsInOrder(t *testing.T) {
	ex := &fakeExtractor{texts: map[string]string{
		"a.pdf": "first page",
		"b.pdf": "second page",
	}}
	p := NewParser(ex, &fakeLLM{content: modelJSON})

	text, err := p.ExtractText(context.Background(), []string{"a.pdf", "b.pdf"})
	if err != nil {
		t.Fatalf("ExtractText error: %v", err)
	}
	if text != "first page\nsecond page" {
		t.Errorf("text = %q", text)
	}
}

func TestExtractTextPropagatesErrors(t *testing.T) {
	p := NewParser(&fakeExtractor{err: errors.New("boom")}, &fakeLLM{})

	if _, err := p.ExtractText(context.Background(), []string{"a.pdf"}); err == nil {
		t.Error("expected extraction error")
	}
}

func TestParseNoFiles(t *testing.T) {
	p := NewParser(&fakeExtractor{}, &fakeLLM{content: modelJSON})

	if _, err := p.Parse(context.Background(), nil); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
	}
	for _, tt := range tests {
		if got := stripCodeFences(tt.in); got != tt.want {
			t.Errorf("stripCodeFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
