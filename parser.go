package banklens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banklens/banklens/extract"
	"github.com/banklens/banklens/llm"
)

// ErrNoText is returned when extraction produced no usable text.
var ErrNoText = errors.New("no text extracted from input")

// maxConcurrentExtracts bounds per-file extraction within a single Parse call.
const maxConcurrentExtracts = 4

// Parser runs the full extraction pipeline: PDF text extraction, a
// schema-constrained LLM call, decoding, normalization, and validation.
type Parser struct {
	extractor extract.Extractor
	llm       llm.LLM
}

// NewParser creates a Parser from an extractor and a chat backend.
func NewParser(ex extract.Extractor, backend llm.LLM) *Parser {
	return &Parser{extractor: ex, llm: backend}
}

// ExtractText extracts and concatenates the text of all given PDFs, in input
// order. Files are extracted concurrently.
func (p *Parser) ExtractText(ctx context.Context, paths []string) (string, error) {
	texts := make([]string, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentExtracts)

	for i, path := range paths {
		g.Go(func() error {
			text, err := p.extractor.Extract(gctx, path)
			if err != nil {
				return fmt.Errorf("extract %s: %w", path, err)
			}
			texts[i] = text
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return "", err
	}

	return strings.Join(texts, "\n"), nil
}

// Parse extracts text from the given PDFs and parses it into a Statement.
func (p *Parser) Parse(ctx context.Context, paths []string) (*Statement, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no input files")
	}

	text, err := p.ExtractText(ctx, paths)
	if err != nil {
		return nil, err
	}

	stmt, err := p.ParseText(ctx, text)
	if err != nil {
		return nil, err
	}
	stmt.SourceFiles = paths
	return stmt, nil
}

// ParseText sends statement text to the model and builds a Statement from
// the structured response.
func (p *Parser) ParseText(ctx context.Context, text string) (*Statement, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoText
	}

	start := time.Now()
	resp, err := p.llm.Chat(ctx, &llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: SystemPrompt},
			{Role: llm.RoleUser, Content: text},
		},
		Format: ResponseSchema(),
	})
	if err != nil {
		return nil, fmt.Errorf("model call: %w", err)
	}

	slog.Debug("model call finished",
		"model", resp.Model,
		"prompt_tokens", resp.PromptTokens,
		"output_tokens", resp.OutputTokens,
		"latency_ms", time.Since(start).Milliseconds(),
	)

	raw, err := decodeModelOutput(resp.Content)
	if err != nil {
		return nil, err
	}

	stmt := &Statement{
		AccountHolder: AccountHolder{
			Name:          strings.TrimSpace(raw.AccountHolder.Name),
			AccountNumber: strings.TrimSpace(raw.AccountHolder.AccountNumber),
		},
		CreatedAt: time.Now().UTC(),
	}

	for i, rt := range raw.Transactions {
		tx, warnings, err := NormalizeTransaction(
			rt.Date, rt.Amount.String(), rt.Currency, rt.Type, rt.Description, rt.Balance.String())
		if err != nil {
			stmt.Warnings = append(stmt.Warnings, fmt.Sprintf("transaction %d dropped: %v", i+1, err))
			continue
		}
		stmt.Warnings = append(stmt.Warnings, warnings...)
		stmt.Transactions = append(stmt.Transactions, tx)
	}

	stmt.Warnings = append(stmt.Warnings, ValidateStatement(stmt)...)
	return stmt, nil
}

// rawStatement mirrors the model output schema before normalization.
type rawStatement struct {
	AccountHolder struct {
		Name          string `json:"name"`
		AccountNumber string `json:"account_number"`
	} `json:"account_holder"`
	Transactions []rawTransaction `json:"transactions"`
}

type rawTransaction struct {
	Date        string      `json:"date"`
	Amount      json.Number `json:"amount"`
	Currency    string      `json:"currency"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Balance     json.Number `json:"balance"`
}

// decodeModelOutput parses model output into a rawStatement. It tolerates
// markdown code fences and a wrapping {"transactions": {...}} object, both of
// which smaller models emit despite the schema constraint.
func decodeModelOutput(content string) (*rawStatement, error) {
	content = stripCodeFences(content)
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("empty model response")
	}

	var raw rawStatement
	if err := unmarshalStrictNumbers(content, &raw); err == nil && len(raw.Transactions) > 0 {
		return &raw, nil
	}

	var wrapped struct {
		Transactions rawStatement `json:"transactions"`
	}
	if err := unmarshalStrictNumbers(content, &wrapped); err == nil && len(wrapped.Transactions.Transactions) > 0 {
		return &wrapped.Transactions, nil
	}

	// Retry the direct form to surface its error (and accept an empty but
	// well-formed statement).
	if err := unmarshalStrictNumbers(content, &raw); err != nil {
		return nil, fmt.Errorf("model response is not valid JSON: %w", err)
	}
	return &raw, nil
}

// unmarshalStrictNumbers decodes with json.Number so amounts never round-trip
// through float64.
func unmarshalStrictNumbers(content string, v any) error {
	dec := json.NewDecoder(strings.NewReader(content))
	dec.UseNumber()
	return dec.Decode(v)
}

// stripCodeFences removes a surrounding ```json ... ``` block if present.
func stripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if i := strings.IndexByte(trimmed, '\n'); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	if i := strings.LastIndex(trimmed, "```"); i >= 0 {
		trimmed = trimmed[:i]
	}
	return strings.TrimSpace(trimmed)
}
