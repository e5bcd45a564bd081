package serve

import (
	"time"

	"github.com/banklens/banklens"
)

// --- API Response Types ---

// UploadResponse is returned when statement PDFs are accepted for parsing.
type UploadResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Files  int    `json:"files"`
}

// StatementDetailResponse includes the parsed transactions.
type StatementDetailResponse struct {
	StatementRecord
	Transactions []banklens.Transaction `json:"transactions"`
}

// StatsResponse contains aggregate metrics.
type StatsResponse struct {
	TotalStatements   int            `json:"total_statements"`
	TotalTransactions int            `json:"total_transactions"`
	ByStatus          map[string]int `json:"by_status"`
	Workers           int            `json:"workers"`
	Uptime            string         `json:"uptime"`
}

// ScheduleRequest is the request to create a purge schedule.
type ScheduleRequest struct {
	Name    string `json:"name"`
	Cron    string `json:"cron"`
	MaxAge  string `json:"max_age"`
	Enabled *bool  `json:"enabled,omitempty"`
}

// ErrorResponse is returned on API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// BrokerEvent is an event sent via SSE.
type BrokerEvent struct {
	Type        string    `json:"type"`
	StatementID string    `json:"statement_id,omitempty"`
	Error       string    `json:"error,omitempty"`
	Data        any       `json:"data,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
