package serve

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banklens/banklens"
)

const jobQueueSize = 128

// Pool processes queued statements with a bounded number of workers.
type Pool struct {
	parser  *banklens.Parser
	store   Store
	broker  *EventBroker
	workers int
	jobs    chan string

	// notify is called with the final record after a statement finishes.
	// Nil when no notifier is configured.
	notify func(rec StatementRecord)
}

// NewPool creates a worker pool. workers bounds concurrent parses.
func NewPool(parser *banklens.Parser, store Store, broker *EventBroker, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		parser:  parser,
		store:   store,
		broker:  broker,
		workers: workers,
		jobs:    make(chan string, jobQueueSize),
	}
}

// SetNotify registers a completion callback. Must be called before Start.
func (p *Pool) SetNotify(fn func(rec StatementRecord)) {
	p.notify = fn
}

// Enqueue adds a statement to the processing queue.
func (p *Pool) Enqueue(id string) error {
	select {
	case p.jobs <- id:
		return nil
	default:
		return fmt.Errorf("processing queue full")
	}
}

// Start runs the pool until ctx is cancelled, then waits for in-flight
// parses to finish. Parses run on a context detached from ctx so that
// shutdown drains accepted work instead of failing it mid-flight; the model
// client's own timeout still bounds each parse.
func (p *Pool) Start(ctx context.Context) {
	var g errgroup.Group
	g.SetLimit(p.workers)

	workCtx := context.WithoutCancel(ctx)

	slog.Info("worker pool started", "workers", p.workers)

	for {
		select {
		case <-ctx.Done():
			g.Wait()
			slog.Info("worker pool stopped")
			return
		case id := <-p.jobs:
			g.Go(func() error {
				p.process(workCtx, id)
				return nil
			})
		}
	}
}

// process parses one statement end to end and records the outcome.
func (p *Pool) process(ctx context.Context, id string) {
	rec, err := p.store.GetStatement(id)
	if err != nil {
		slog.Error("worker: statement lookup failed", "id", id, "error", err)
		return
	}

	if err := p.store.UpdateStatementStatus(id, banklens.StatusProcessing, ""); err != nil {
		slog.Warn("worker: status update failed", "id", id, "error", err)
	}
	p.emit("statement.processing", id, "")

	start := time.Now()
	text, err := p.parser.ExtractText(ctx, rec.Files)
	if err != nil {
		p.fail(id, fmt.Errorf("extraction: %w", err))
		return
	}

	stmt, err := p.parser.ParseText(ctx, text)
	if err != nil {
		p.fail(id, err)
		return
	}
	stmt.ID = id
	stmt.SourceFiles = rec.Files

	if err := p.store.SaveResult(id, stmt, text); err != nil {
		p.fail(id, fmt.Errorf("persist result: %w", err))
		return
	}

	slog.Info("statement parsed",
		"id", id,
		"transactions", len(stmt.Transactions),
		"warnings", len(stmt.Warnings),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	p.emit("statement.completed", id, "")
	p.notifyFinal(id)
}

func (p *Pool) fail(id string, err error) {
	slog.Error("statement parse failed", "id", id, "error", err)
	if uerr := p.store.UpdateStatementStatus(id, banklens.StatusFailed, err.Error()); uerr != nil {
		slog.Warn("worker: status update failed", "id", id, "error", uerr)
	}
	p.emit("statement.failed", id, err.Error())
	p.notifyFinal(id)
}

func (p *Pool) notifyFinal(id string) {
	if p.notify == nil {
		return
	}
	if rec, err := p.store.GetStatement(id); err == nil {
		p.notify(*rec)
	}
}

func (p *Pool) emit(typ, id, errMsg string) {
	now := time.Now()
	p.broker.Publish(BrokerEvent{
		Type:        typ,
		StatementID: id,
		Error:       errMsg,
		Timestamp:   now,
	})
	if err := p.store.InsertEvent(StoreEvent{
		Type:        typ,
		StatementID: id,
		Timestamp:   now,
		Error:       errMsg,
	}); err != nil {
		slog.Warn("worker: event insert failed", "type", typ, "id", id, "error", err)
	}
}
