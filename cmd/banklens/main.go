// Package main provides the banklens CLI.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banklens/banklens"
	"github.com/banklens/banklens/extract"
	"github.com/banklens/banklens/llm"
	"github.com/banklens/banklens/serve"
)

var (
	version = "dev"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "parse":
		parseCmd(args)
	case "serve":
		serveCmd(args)
	case "validate":
		validateCmd(args)
	case "check":
		checkCmd(args)
	case "version":
		fmt.Printf("banklens %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Banklens - Bank Statement Parsing

Usage:
  banklens <command> [options]

Commands:
  parse     Parse statement PDFs into structured JSON
  serve     Run the REST API server
  validate  Check the configuration and print the effective settings
  check     Re-check a parsed statement JSON file
  version   Print version information
  help      Show this help message

Examples:
  banklens parse statement.pdf -o statement.json
  banklens parse statement.pdf --text
  banklens serve --addr :3001
  banklens validate --config banklens.yaml
  banklens check statement.json

Run 'banklens <command> --help' for more information on a command.`)
}

// newBackend builds the chat client from config and warns early when the
// server is unreachable, so connection problems surface before a long parse.
func newBackend(cfg banklens.Config) *llm.OllamaLLM {
	backend := llm.NewOllama(
		llm.WithHost(cfg.Ollama.Host),
		llm.WithModel(cfg.Ollama.Model),
		llm.WithHTTPClient(&http.Client{Timeout: cfg.Ollama.Timeout}),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := backend.Ping(ctx); err != nil {
		slog.Warn("ollama not reachable, parses will fail until it is", "error", err)
	}

	return backend
}

func newParser(cfg banklens.Config) *banklens.Parser {
	return banklens.NewParser(extract.New(cfg.Extract), newBackend(cfg))
}

// parseCmd parses one or more statement PDFs and prints the result as JSON.
func parseCmd(args []string) {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	output := fs.String("o", "", "Write JSON to file instead of stdout")
	textOnly := fs.Bool("text", false, "Print the extracted text only, skip the model call")
	fromText := fs.String("from-text", "", "Parse an already-extracted text file instead of PDFs")
	configPath := fs.String("config", "", "Path to banklens.yaml")
	timeout := fs.Duration("timeout", 10*time.Minute, "Maximum parse time")
	model := fs.String("model", "", "Override the configured model")
	host := fs.String("host", "", "Override the configured Ollama host")

	fs.Usage = func() {
		fmt.Println(`Usage: banklens parse <statement.pdf> [more.pdf ...] [options]

Parse bank statement PDFs into structured JSON.

Options:`)
		fs.PrintDefaults()
		fmt.Println(`
Examples:
  banklens parse statement.pdf
  banklens parse jan.pdf feb.pdf -o q1.json
  banklens parse statement.pdf --text
  banklens parse --from-text extracted.txt --model phi4`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if *fromText == "" && fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: no PDF files specified")
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := banklens.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *model != "" {
		cfg.Ollama.Model = *model
	}
	if *host != "" {
		cfg.Ollama.Host = *host
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// Text-only mode: extract and print, no model involved.
	if *textOnly {
		if fs.NArg() < 1 {
			fmt.Fprintln(os.Stderr, "Error: --text requires PDF files")
			os.Exit(1)
		}
		extractor := extract.New(cfg.Extract)
		p := banklens.NewParser(extractor, nil)
		text, err := p.ExtractText(ctx, fs.Args())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(text)
		return
	}

	parser := newParser(cfg)

	var stmt *banklens.Statement
	if *fromText != "" {
		data, err := os.ReadFile(*fromText)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", *fromText, err)
			os.Exit(1)
		}
		stmt, err = parser.ParseText(ctx, string(data))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	} else {
		stmt, err = parser.Parse(ctx, fs.Args())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	for _, w := range stmt.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}

	data, err := json.MarshalIndent(stmt, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding result: %v\n", err)
		os.Exit(1)
	}

	if *output != "" {
		if err := os.WriteFile(*output, append(data, '\n'), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", *output, err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %d transactions to %s\n", len(stmt.Transactions), *output)
		return
	}

	fmt.Println(string(data))
}

// serveCmd runs the REST API server until interrupted.
func serveCmd(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", "", "Listen address (overrides config)")
	dbPath := fs.String("db", "", "SQLite database path (overrides config)")
	configPath := fs.String("config", "", "Path to banklens.yaml")

	fs.Usage = func() {
		fmt.Println(`Usage: banklens serve [options]

Run the banklens REST API server.

Options:`)
		fs.PrintDefaults()
		fmt.Println(`
Examples:
  banklens serve
  banklens serve --addr :8080 --db /var/lib/banklens/banklens.db`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, err := banklens.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dbPath != "" {
		cfg.Server.DBPath = *dbPath
	}

	if err := banklens.EnsureHome(); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating home directory: %v\n", err)
		os.Exit(1)
	}

	srv := serve.New(newParser(cfg), serve.Config{
		Addr:            cfg.Server.Addr,
		DBPath:          cfg.Server.DBPath,
		InboxDir:        banklens.InboxPath(),
		Workers:         cfg.Workers,
		RetentionMaxAge: cfg.Retention.MaxAge,
		RetentionCron:   cfg.Retention.Cron,
		TelegramToken:   cfg.Telegram.Token,
		TelegramChatID:  cfg.Telegram.ChatID,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// validateCmd loads the configuration and echoes the effective settings.
func validateCmd(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to banklens.yaml")

	fs.Usage = func() {
		fmt.Println(`Usage: banklens validate [options]

Load the configuration (file, defaults, and environment overrides) and
print the effective settings.

Options:`)
		fs.PrintDefaults()
		fmt.Println(`
Examples:
  banklens validate
  banklens validate --config banklens.yaml`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, err := banklens.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Server:")
	fmt.Printf("  addr: %s\n", cfg.Server.Addr)
	fmt.Printf("  db: %s\n", cfg.Server.DBPath)
	fmt.Println("Ollama:")
	fmt.Printf("  host: %s\n", cfg.Ollama.Host)
	fmt.Printf("  model: %s\n", cfg.Ollama.Model)
	fmt.Printf("  timeout: %s\n", cfg.Ollama.Timeout)
	fmt.Println("Extract:")
	backend := cfg.Extract.Backend
	if backend == "" {
		backend = extract.BackendCommand
	}
	fmt.Printf("  backend: %s\n", backend)
	if backend == extract.BackendDocker {
		fmt.Printf("  image: %s\n", cfg.Extract.Image)
	} else {
		fmt.Printf("  pdftotext: %s\n", cfg.Extract.Pdftotext)
	}
	fmt.Println("Retention:")
	if cfg.Retention.MaxAge > 0 {
		fmt.Printf("  max_age: %s\n", cfg.Retention.MaxAge)
		fmt.Printf("  cron: %s\n", cfg.Retention.Cron)
	} else {
		fmt.Println("  disabled")
	}
	fmt.Println("Telegram:")
	if cfg.Telegram.Token != "" {
		fmt.Printf("  chat_id: %d\n", cfg.Telegram.ChatID)
	} else {
		fmt.Println("  disabled")
	}
	fmt.Printf("Workers: %d\n", cfg.Workers)

	fmt.Println("\nValid.")
}

// checkCmd re-runs validation on a parsed statement JSON file.
func checkCmd(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	verbose := fs.Bool("verbose", false, "Show the statement summary")

	fs.Usage = func() {
		fmt.Println(`Usage: banklens check <statement.json> [options]

Re-check a parsed statement JSON file for chronology and balance
continuity problems.

Options:`)
		fs.PrintDefaults()
		fmt.Println(`
Examples:
  banklens check statement.json
  banklens check statement.json --verbose`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: no statement.json file specified")
		fs.Usage()
		os.Exit(1)
	}

	file := fs.Arg(0)
	data, err := os.ReadFile(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", file, err)
		os.Exit(1)
	}

	var stmt banklens.Statement
	if err := json.Unmarshal(data, &stmt); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing %s: %v\n", file, err)
		os.Exit(1)
	}

	// Rebuild parsed dates, which don't survive the JSON round trip.
	for i := range stmt.Transactions {
		date, parsed, err := banklens.NormalizeDate(stmt.Transactions[i].Date)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: transaction %d: %v\n", i+1, err)
			continue
		}
		stmt.Transactions[i].Date = date
		stmt.Transactions[i].ParsedDate = parsed
	}

	warnings := banklens.ValidateStatement(&stmt)

	if *verbose {
		fmt.Printf("File: %s\n", file)
		fmt.Printf("Holder: %s (%s)\n", stmt.AccountHolder.Name, stmt.AccountHolder.AccountNumber)
		fmt.Printf("Transactions: %d\n", len(stmt.Transactions))
		credits, debits := stmt.Totals()
		fmt.Printf("Credits: %s  Debits: %s\n", credits.String(), debits.String())
		fmt.Println()
	}

	if len(warnings) == 0 {
		fmt.Printf("Valid: %s\n", file)
		return
	}

	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	os.Exit(1)
}
