package serve

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/banklens/banklens"
)

// SQLiteStore implements Store using modernc.org/sqlite (pure Go).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Enable WAL mode for concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Init creates the schema tables.
func (s *SQLiteStore) Init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS statements (
		id             TEXT PRIMARY KEY,
		status         TEXT NOT NULL DEFAULT 'queued',
		files          TEXT NOT NULL DEFAULT '[]',
		holder_name    TEXT NOT NULL DEFAULT '',
		holder_account TEXT NOT NULL DEFAULT '',
		tx_count       INTEGER NOT NULL DEFAULT 0,
		warnings       TEXT NOT NULL DEFAULT '[]',
		error          TEXT NOT NULL DEFAULT '',
		extracted_text TEXT NOT NULL DEFAULT '',
		created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		completed_at   DATETIME
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		statement_id TEXT NOT NULL,
		seq          INTEGER NOT NULL,
		date         TEXT NOT NULL DEFAULT '',
		amount       TEXT NOT NULL DEFAULT '0',
		currency     TEXT NOT NULL DEFAULT '',
		type         TEXT NOT NULL DEFAULT '',
		description  TEXT NOT NULL DEFAULT '',
		balance      TEXT NOT NULL DEFAULT '0'
	);

	CREATE TABLE IF NOT EXISTS events (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		type         TEXT NOT NULL,
		statement_id TEXT NOT NULL DEFAULT '',
		timestamp    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		error        TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS scheduled_jobs (
		name       TEXT PRIMARY KEY,
		cron       TEXT NOT NULL,
		max_age    TEXT NOT NULL DEFAULT '',
		enabled    INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_statement ON transactions(statement_id, seq);
	CREATE INDEX IF NOT EXISTS idx_events_statement ON events(statement_id);
	CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_statements_created ON statements(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InsertStatement records a newly uploaded statement.
func (s *SQLiteStore) InsertStatement(rec StatementRecord) error {
	filesJSON, _ := json.Marshal(rec.Files)
	_, err := s.db.Exec(
		`INSERT INTO statements (id, status, files, created_at) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.Status, string(filesJSON), rec.CreatedAt,
	)
	return err
}

// UpdateStatementStatus sets the status and optional error of a statement.
// Terminal statuses also set completed_at.
func (s *SQLiteStore) UpdateStatementStatus(id, status, errMsg string) error {
	if status == banklens.StatusCompleted || status == banklens.StatusFailed {
		_, err := s.db.Exec(
			`UPDATE statements SET status = ?, error = ?, completed_at = ? WHERE id = ?`,
			status, errMsg, time.Now().UTC(), id,
		)
		return err
	}
	_, err := s.db.Exec(
		`UPDATE statements SET status = ?, error = ? WHERE id = ?`,
		status, errMsg, id,
	)
	return err
}

// SaveResult stores a completed parse inside a transaction.
func (s *SQLiteStore) SaveResult(id string, stmt *banklens.Statement, extractedText string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	warningsJSON, _ := json.Marshal(stmt.Warnings)
	if _, err := tx.Exec(
		`UPDATE statements
		 SET status = ?, holder_name = ?, holder_account = ?, tx_count = ?,
		     warnings = ?, extracted_text = ?, completed_at = ?, error = ''
		 WHERE id = ?`,
		banklens.StatusCompleted, stmt.AccountHolder.Name, stmt.AccountHolder.AccountNumber,
		len(stmt.Transactions), string(warningsJSON), extractedText, time.Now().UTC(), id,
	); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM transactions WHERE statement_id = ?`, id); err != nil {
		return err
	}

	for i, t := range stmt.Transactions {
		if _, err := tx.Exec(
			`INSERT INTO transactions (statement_id, seq, date, amount, currency, type, description, balance)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, i, t.Date, t.Amount.String(), t.Currency, string(t.Type), t.Description, t.Balance.String(),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetStatement returns a statement record by ID.
func (s *SQLiteStore) GetStatement(id string) (*StatementRecord, error) {
	row := s.db.QueryRow(
		`SELECT id, status, files, holder_name, holder_account, tx_count, warnings, error, created_at, completed_at
		 FROM statements WHERE id = ?`, id,
	)
	rec, err := scanStatement(row)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListStatements returns recent statements, newest first.
func (s *SQLiteStore) ListStatements(limit int) ([]StatementRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, status, files, holder_name, holder_account, tx_count, warnings, error, created_at, completed_at
		 FROM statements ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []StatementRecord
	for rows.Next() {
		rec, err := scanStatement(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStatement(row rowScanner) (*StatementRecord, error) {
	var rec StatementRecord
	var filesJSON, warningsJSON string
	var completedAt sql.NullTime
	if err := row.Scan(
		&rec.ID, &rec.Status, &filesJSON, &rec.HolderName, &rec.HolderAccount,
		&rec.TxCount, &warningsJSON, &rec.Error, &rec.CreatedAt, &completedAt,
	); err != nil {
		return nil, err
	}
	json.Unmarshal([]byte(filesJSON), &rec.Files)
	json.Unmarshal([]byte(warningsJSON), &rec.Warnings)
	if completedAt.Valid {
		rec.CompletedAt = &completedAt.Time
	}
	return &rec, nil
}

// DeleteStatement removes a statement, its transactions, and its events.
func (s *SQLiteStore) DeleteStatement(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM statements WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	if _, err := tx.Exec(`DELETE FROM transactions WHERE statement_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM events WHERE statement_id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// ListTransactions returns a statement's transactions in statement order.
func (s *SQLiteStore) ListTransactions(id string) ([]banklens.Transaction, error) {
	rows, err := s.db.Query(
		`SELECT date, amount, currency, type, description, balance
		 FROM transactions WHERE statement_id = ? ORDER BY seq ASC`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []banklens.Transaction
	for rows.Next() {
		var t banklens.Transaction
		var amount, typ, balance string
		if err := rows.Scan(&t.Date, &amount, &t.Currency, &typ, &t.Description, &balance); err != nil {
			return nil, err
		}
		t.Amount, _ = decimal.NewFromString(amount)
		t.Balance, _ = decimal.NewFromString(balance)
		t.Type = banklens.TransactionType(typ)
		if parsed, err := time.Parse(banklens.CanonicalDateLayout, t.Date); err == nil {
			t.ParsedDate = parsed
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// GetExtractedText returns the raw extracted text for a statement.
func (s *SQLiteStore) GetExtractedText(id string) (string, error) {
	var text string
	err := s.db.QueryRow(`SELECT extracted_text FROM statements WHERE id = ?`, id).Scan(&text)
	return text, err
}

// InsertEvent records a lifecycle event.
func (s *SQLiteStore) InsertEvent(e StoreEvent) error {
	_, err := s.db.Exec(
		`INSERT INTO events (type, statement_id, timestamp, error) VALUES (?, ?, ?, ?)`,
		e.Type, e.StatementID, e.Timestamp, e.Error,
	)
	return err
}

// ListEvents returns recent events, newest first.
func (s *SQLiteStore) ListEvents(limit int) ([]StoreEvent, error) {
	rows, err := s.db.Query(
		`SELECT id, type, statement_id, timestamp, error
		 FROM events ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []StoreEvent
	for rows.Next() {
		var e StoreEvent
		if err := rows.Scan(&e.ID, &e.Type, &e.StatementID, &e.Timestamp, &e.Error); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// UpsertScheduledJob creates or replaces a scheduled job.
func (s *SQLiteStore) UpsertScheduledJob(job ScheduledJob) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO scheduled_jobs (name, cron, max_age, enabled, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		job.Name, job.Cron, job.MaxAge, job.Enabled, job.CreatedAt,
	)
	return err
}

// DeleteScheduledJob removes a scheduled job by name.
func (s *SQLiteStore) DeleteScheduledJob(name string) error {
	res, err := s.db.Exec(`DELETE FROM scheduled_jobs WHERE name = ?`, name)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListScheduledJobs returns all scheduled jobs.
func (s *SQLiteStore) ListScheduledJobs() ([]ScheduledJob, error) {
	rows, err := s.db.Query(
		`SELECT name, cron, max_age, enabled, created_at FROM scheduled_jobs ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []ScheduledJob
	for rows.Next() {
		var j ScheduledJob
		if err := rows.Scan(&j.Name, &j.Cron, &j.MaxAge, &j.Enabled, &j.CreatedAt); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// PurgeOlderThan deletes finished statements created before cutoff and
// returns their IDs.
func (s *SQLiteStore) PurgeOlderThan(cutoff time.Time) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT id FROM statements WHERE created_at < ? AND status IN (?, ?)`,
		cutoff, banklens.StatusCompleted, banklens.StatusFailed,
	)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, id := range ids {
		if err := s.DeleteStatement(id); err != nil && err != sql.ErrNoRows {
			return ids, err
		}
	}
	return ids, nil
}

// Stats returns aggregate counts.
func (s *SQLiteStore) Stats() (StoreStats, error) {
	stats := StoreStats{ByStatus: make(map[string]int)}

	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM statements GROUP BY status`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return stats, err
		}
		stats.ByStatus[status] = count
		stats.TotalStatements += count
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	err = s.db.QueryRow(`SELECT COUNT(*) FROM transactions`).Scan(&stats.TotalTransactions)
	return stats, err
}
