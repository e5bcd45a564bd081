// Package banklens turns bank statement PDFs into structured transaction data.
//
// Banklens extracts text from statement PDFs, sends it to an LLM with a JSON
// schema constraint, and returns normalized, validated transactions. It
// provides:
//
//   - Pluggable PDF text extraction (pdftotext or a dockerized converter)
//   - An Ollama chat client with schema-constrained output and retries
//   - Normalization of dates, amounts, currencies, and descriptions
//   - Running-balance and chronology validation with per-statement warnings
//   - A persistence layer, HTTP API, and scheduler in the serve package
//
// # Quick Start
//
// Parse a statement from the command line:
//
//	banklens parse statement.pdf
//
// Or programmatically:
//
//	parser := banklens.NewParser(
//	    extract.NewCommand("pdftotext"),
//	    llm.NewOllama(llm.WithModel("phi4")),
//	)
//	stmt, err := parser.Parse(ctx, []string{"statement.pdf"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, tx := range stmt.Transactions {
//	    fmt.Println(tx.Date, tx.Type, tx.Amount, tx.Description)
//	}
//
// # Architecture
//
// The main components are:
//
//   - Statement/Transaction: the parsed domain model with decimal amounts
//   - Parser: the extract -> LLM -> decode -> normalize -> validate pipeline
//   - extract.Extractor: interface for PDF-to-text backends
//   - llm.LLM: interface for chat model backends (Ollama provided)
//   - serve.Server: HTTP API with uploads, SSE events, and a SQLite store
//
// # Thread Safety
//
// Parser is safe for concurrent use; each Parse call is independent.
package banklens
