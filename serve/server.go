package serve

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/banklens/banklens"
)

// Config holds server configuration.
type Config struct {
	Addr     string
	DBPath   string
	InboxDir string
	Workers  int

	// RetentionMaxAge > 0 enables the built-in purge job.
	RetentionMaxAge time.Duration
	RetentionCron   string

	TelegramToken  string
	TelegramChatID int64
}

// Server is the HTTP server for the banklens REST API.
type Server struct {
	parser    *banklens.Parser
	broker    *EventBroker
	store     Store
	pool      *Pool
	sched     *Scheduler
	cfg       Config
	startedAt time.Time
}

// New creates a new Server.
func New(parser *banklens.Parser, cfg Config) *Server {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Server{
		parser: parser,
		broker: NewEventBroker(),
		cfg:    cfg,
	}
}

// Start initializes the store, starts the worker pool and scheduler,
// registers routes, and listens for HTTP requests. It blocks until ctx is
// cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.startedAt = time.Now()

	if err := os.MkdirAll(s.cfg.InboxDir, 0o755); err != nil {
		return fmt.Errorf("create inbox: %w", err)
	}

	// Initialize SQLite store.
	store, err := NewSQLiteStore(s.cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	s.store = store
	if err := store.Init(); err != nil {
		return fmt.Errorf("init database: %w", err)
	}

	// Worker pool.
	s.pool = NewPool(s.parser, s.store, s.broker, s.cfg.Workers)

	// Optional Telegram notifier.
	var notifier *Notifier
	if s.cfg.TelegramToken != "" {
		notifier, err = NewNotifier(s.cfg.TelegramToken, s.cfg.TelegramChatID, s.store)
		if err != nil {
			slog.Warn("telegram notifier init failed, notifications disabled", "error", err)
		} else {
			s.pool.SetNotify(notifier.NotifyStatement)
		}
	}

	// Scheduler with persisted jobs plus the built-in retention job.
	s.sched = NewScheduler(s.store, s.broker, s.cfg.InboxDir)
	if err := s.sched.Restore(); err != nil {
		slog.Warn("scheduler restore failed", "error", err)
	}
	s.configureRetention()

	poolDone := make(chan struct{})
	go func() {
		s.pool.Start(ctx)
		close(poolDone)
	}()
	go s.sched.Start(ctx)
	if notifier != nil {
		go notifier.Start(ctx)
	}

	// Re-enqueue statements interrupted by a previous shutdown.
	s.recoverPending()

	// Build router.
	mux := http.NewServeMux()
	s.registerRoutes(mux)

	srv := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: corsMiddleware(mux),
	}

	// Start server in goroutine.
	errCh := make(chan error, 1)
	go func() {
		slog.Info("banklens serve started", "addr", s.cfg.Addr)
		fmt.Printf("API: http://localhost%s/api/statements\n", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or error.
	select {
	case <-ctx.Done():
		slog.Info("shutting down server")
	case err := <-errCh:
		return err
	}

	// Close broker first — this closes all SSE subscriber channels,
	// unblocking their handlers so the HTTP server can drain cleanly.
	s.broker.Close()

	// Graceful shutdown with 5s timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// Let in-flight parses finish before closing the store.
	select {
	case <-poolDone:
	case <-time.After(30 * time.Second):
		slog.Warn("worker pool did not drain in time")
	}

	if err := store.Close(); err != nil {
		slog.Error("store close error", "error", err)
	}

	return nil
}

// retentionJobName is the scheduled job driven by the retention config
// section, as opposed to operator-created schedules.
const retentionJobName = "retention"

// configureRetention syncs the built-in retention job with the config. An
// enabled config replaces any persisted copy; a disabled config removes it,
// so turning retention off survives restarts.
func (s *Server) configureRetention() {
	if s.cfg.RetentionMaxAge <= 0 {
		if err := s.sched.RemoveJob(retentionJobName); err == nil {
			slog.Info("retention disabled, removed persisted job")
		}
		return
	}

	cronExpr := s.cfg.RetentionCron
	if cronExpr == "" {
		cronExpr = "0 3 * * *"
	}
	if err := s.sched.AddJob(ScheduledJob{
		Name:      retentionJobName,
		Cron:      cronExpr,
		MaxAge:    s.cfg.RetentionMaxAge.String(),
		Enabled:   true,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		slog.Warn("retention job setup failed", "error", err)
	}
}

// registerRoutes adds all API routes to the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/statements", s.handleUpload)
	mux.HandleFunc("GET /api/statements", s.handleListStatements)
	mux.HandleFunc("GET /api/statements/{id}", s.handleGetStatement)
	mux.HandleFunc("GET /api/statements/{id}/text", s.handleGetText)
	mux.HandleFunc("GET /api/statements/{id}/download", s.handleDownload)
	mux.HandleFunc("DELETE /api/statements/{id}", s.handleDeleteStatement)

	mux.HandleFunc("GET /api/stats", s.handleStats)

	mux.HandleFunc("GET /api/schedules", s.handleListSchedules)
	mux.HandleFunc("POST /api/schedules", s.handleCreateSchedule)
	mux.HandleFunc("DELETE /api/schedules/{name}", s.handleDeleteSchedule)

	// SSE, plus the persisted backlog for clients that connect late.
	mux.HandleFunc("GET /api/events", s.handleSSE)
	mux.HandleFunc("GET /api/events/recent", s.handleRecentEvents)
}

// recoverPending requeues statements left queued by a previous run and fails
// ones that were mid-parse when the process died.
func (s *Server) recoverPending() {
	recs, err := s.store.ListStatements(1000)
	if err != nil {
		slog.Warn("pending statement recovery failed", "error", err)
		return
	}
	for _, rec := range recs {
		switch rec.Status {
		case banklens.StatusQueued:
			if err := s.pool.Enqueue(rec.ID); err != nil {
				slog.Warn("requeue failed", "id", rec.ID, "error", err)
			}
		case banklens.StatusProcessing:
			s.store.UpdateStatementStatus(rec.ID, banklens.StatusFailed, "interrupted by restart")
		}
	}
}

// corsMiddleware adds permissive CORS headers for development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
