package serve

import (
	"time"

	"github.com/banklens/banklens"
)

// Store persists statements, their transactions, lifecycle events, and
// scheduled jobs.
type Store interface {
	// Init creates tables if they don't exist.
	Init() error

	// Close closes the store.
	Close() error

	// InsertStatement records a newly uploaded statement.
	InsertStatement(rec StatementRecord) error

	// UpdateStatementStatus sets the status and optional error of a statement.
	UpdateStatementStatus(id, status, errMsg string) error

	// SaveResult stores a completed parse: holder, warnings, transactions,
	// and the extracted text, and marks the statement completed.
	SaveResult(id string, stmt *banklens.Statement, extractedText string) error

	// GetStatement returns a statement record by ID.
	GetStatement(id string) (*StatementRecord, error)

	// ListStatements returns recent statements, newest first.
	ListStatements(limit int) ([]StatementRecord, error)

	// DeleteStatement removes a statement and its transactions and events.
	DeleteStatement(id string) error

	// ListTransactions returns a statement's transactions in statement order.
	ListTransactions(id string) ([]banklens.Transaction, error)

	// GetExtractedText returns the raw extracted text for a statement.
	GetExtractedText(id string) (string, error)

	// InsertEvent records a lifecycle event.
	InsertEvent(e StoreEvent) error

	// ListEvents returns recent events, newest first.
	ListEvents(limit int) ([]StoreEvent, error)

	// UpsertScheduledJob creates or replaces a scheduled job.
	UpsertScheduledJob(job ScheduledJob) error

	// DeleteScheduledJob removes a scheduled job by name.
	DeleteScheduledJob(name string) error

	// ListScheduledJobs returns all scheduled jobs.
	ListScheduledJobs() ([]ScheduledJob, error)

	// PurgeOlderThan deletes finished statements created before cutoff and
	// returns their IDs so callers can remove the uploaded files.
	PurgeOlderThan(cutoff time.Time) ([]string, error)

	// Stats returns aggregate counts.
	Stats() (StoreStats, error)
}

// StatementRecord is the persisted representation of a statement job.
type StatementRecord struct {
	ID            string     `json:"id"`
	Status        string     `json:"status"`
	Files         []string   `json:"files"`
	HolderName    string     `json:"holder_name,omitempty"`
	HolderAccount string     `json:"holder_account,omitempty"`
	TxCount       int        `json:"transaction_count"`
	Warnings      []string   `json:"warnings,omitempty"`
	Error         string     `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// StoreEvent is a persisted statement lifecycle event.
type StoreEvent struct {
	ID          int64     `json:"id"`
	Type        string    `json:"type"`
	StatementID string    `json:"statement_id"`
	Timestamp   time.Time `json:"timestamp"`
	Error       string    `json:"error,omitempty"`
}

// ScheduledJob is a persisted recurring purge job.
type ScheduledJob struct {
	Name      string    `json:"name"`
	Cron      string    `json:"cron"`
	MaxAge    string    `json:"max_age"` // Go duration string, e.g. "720h"
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

// StoreStats holds aggregate counts for the stats endpoint.
type StoreStats struct {
	ByStatus          map[string]int `json:"by_status"`
	TotalStatements   int            `json:"total_statements"`
	TotalTransactions int            `json:"total_transactions"`
}
