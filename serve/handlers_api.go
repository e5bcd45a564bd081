package serve

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/banklens/banklens"
)

// handleListStatements returns recent statements, newest first.
func (s *Server) handleListStatements(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit", v)
			return
		}
		limit = n
	}

	recs, err := s.store.ListStatements(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list statements", err.Error())
		return
	}
	if recs == nil {
		recs = []StatementRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// handleGetStatement returns a statement with its transactions.
func (s *Server) handleGetStatement(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	rec, err := s.store.GetStatement(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "statement not found", id)
			return
		}
		writeError(w, http.StatusInternalServerError, "get statement", err.Error())
		return
	}

	txns, err := s.store.ListTransactions(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list transactions", err.Error())
		return
	}
	if txns == nil {
		txns = []banklens.Transaction{}
	}

	writeJSON(w, http.StatusOK, StatementDetailResponse{
		StatementRecord: *rec,
		Transactions:    txns,
	})
}

// handleGetText returns the raw extracted text of a completed statement.
func (s *Server) handleGetText(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	text, err := s.store.GetExtractedText(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "statement not found", id)
			return
		}
		writeError(w, http.StatusInternalServerError, "get extracted text", err.Error())
		return
	}
	if text == "" {
		writeError(w, http.StatusNotFound, "no extracted text", "statement has not been processed yet")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(text))
}

// handleDownload returns the parsed statement as a downloadable JSON file.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	rec, err := s.store.GetStatement(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "statement not found", id)
			return
		}
		writeError(w, http.StatusInternalServerError, "get statement", err.Error())
		return
	}
	if rec.Status != banklens.StatusCompleted {
		writeError(w, http.StatusConflict, "statement not completed", rec.Status)
		return
	}

	txns, err := s.store.ListTransactions(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list transactions", err.Error())
		return
	}

	stmt := banklens.Statement{
		ID: rec.ID,
		AccountHolder: banklens.AccountHolder{
			Name:          rec.HolderName,
			AccountNumber: rec.HolderAccount,
		},
		Transactions: txns,
		Warnings:     rec.Warnings,
		SourceFiles:  rec.Files,
		CreatedAt:    rec.CreatedAt,
	}

	data, err := json.MarshalIndent(stmt, "", "  ")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode statement", err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="statement-%s.json"`, id))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// handleDeleteStatement removes a statement, its transactions, and its
// uploaded files.
func (s *Server) handleDeleteStatement(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.store.DeleteStatement(id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "statement not found", id)
			return
		}
		writeError(w, http.StatusInternalServerError, "delete statement", err.Error())
		return
	}

	os.RemoveAll(filepath.Join(s.cfg.InboxDir, id))

	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// handleStats returns aggregate service metrics.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stats", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, StatsResponse{
		TotalStatements:   stats.TotalStatements,
		TotalTransactions: stats.TotalTransactions,
		ByStatus:          stats.ByStatus,
		Workers:           s.cfg.Workers,
		Uptime:            time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// handleRecentEvents returns persisted lifecycle events, newest first.
func (s *Server) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit", v)
			return
		}
		limit = n
	}

	events, err := s.store.ListEvents(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list events", err.Error())
		return
	}
	if events == nil {
		events = []StoreEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

// handleListSchedules returns all purge schedules.
func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sched.ListJobs())
}

// handleCreateSchedule creates or replaces a purge schedule.
func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Name == "" || req.Cron == "" || req.MaxAge == "" {
		writeError(w, http.StatusBadRequest, "missing fields", "name, cron, and max_age are required")
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	job := ScheduledJob{
		Name:      req.Name,
		Cron:      req.Cron,
		MaxAge:    req.MaxAge,
		Enabled:   enabled,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.sched.AddJob(job); err != nil {
		writeError(w, http.StatusBadRequest, "invalid schedule", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, job)
}

// handleDeleteSchedule removes a purge schedule by name.
func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	if err := s.sched.RemoveJob(name); err != nil {
		writeError(w, http.StatusNotFound, "schedule not found", name)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"deleted": name})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Details: details})
}
