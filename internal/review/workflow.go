// Package review manages the human expert review lifecycle for executions:
// request, poll until terminal, apply the refined output to the record that
// originated the request.
package review

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agenthubhq/agenthub-cli/internal/debuglog"
	"github.com/agenthubhq/agenthub-cli/internal/execution"
)

// RequestError is a review request rejected before or by the backend,
// carrying a message fit for display.
type RequestError struct {
	Message string
}

func (e *RequestError) Error() string {
	return e.Message
}

// Locator resolves execution records by id. Reviews always attribute by
// id; "most recent" would misattribute when turns overlap.
type Locator interface {
	ByID(id string) *execution.Record
}

// Config tunes the polling loop.
type Config struct {
	PollInterval time.Duration `mapstructure:"-"`

	// MaxConsecutiveFailures caps transient poll errors before the status
	// is declared unknown. MaxPolls caps the loop overall; 0 disables the
	// total cap.
	MaxConsecutiveFailures int `mapstructure:"max_consecutive_failures"`
	MaxPolls               int `mapstructure:"max_polls"`
}

// DefaultConfig returns the default polling configuration: a 5 second
// interval, one minute of tolerated consecutive failures, one hour total.
func DefaultConfig() Config {
	return Config{
		PollInterval:           5 * time.Second,
		MaxConsecutiveFailures: 12,
		MaxPolls:               720,
	}
}

// Workflow drives review state for the records a Locator can resolve.
// Transitions only ever move forward along the review graph; repeated
// terminal observations are no-ops.
type Workflow struct {
	backend Backend
	locator Locator
	cfg     Config

	store    execution.Store
	logger   *debuglog.Logger
	onUpdate func(*execution.Record)

	mu       sync.Mutex
	inflight map[string]bool
	pollers  map[string]*Poller
}

// New creates a workflow over the given backend and record locator.
func New(backend Backend, locator Locator, cfg Config) *Workflow {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	return &Workflow{
		backend:  backend,
		locator:  locator,
		cfg:      cfg,
		inflight: make(map[string]bool),
		pollers:  make(map[string]*Poller),
	}
}

// SetStore attaches a store so review transitions persist.
func (w *Workflow) SetStore(store execution.Store) {
	w.store = store
}

// SetLogger attaches a debug logger.
func (w *Workflow) SetLogger(logger *debuglog.Logger) {
	w.logger = logger
}

// OnUpdate registers a callback invoked after each applied transition,
// with the mutated record. Display layers re-derive rendered text here.
func (w *Workflow) OnUpdate(fn func(*execution.Record)) {
	w.onUpdate = fn
}

// Request submits a review request for the execution. Allowed only from
// the none and rejected states; anything else is refused client-side
// before any network call, which keeps at most one request outstanding
// per execution.
func (w *Workflow) Request(ctx context.Context, executionID, note string, priority execution.Priority) error {
	record := w.locator.ByID(executionID)
	if record == nil {
		return &RequestError{Message: fmt.Sprintf("unknown execution %s", executionID)}
	}

	w.mu.Lock()
	if w.inflight[executionID] {
		w.mu.Unlock()
		return &RequestError{Message: "review request already in flight"}
	}
	if status := record.ReviewStatus; status != execution.ReviewNone && status != execution.ReviewRejected {
		w.mu.Unlock()
		return &RequestError{Message: "review already requested or completed"}
	}
	w.inflight[executionID] = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		delete(w.inflight, executionID)
		w.mu.Unlock()
	}()

	if err := w.backend.RequestReview(ctx, executionID, note, priority); err != nil {
		// Status is unchanged on failure; the caller may retry.
		w.logger.LogReview(executionID, "request_failed", err.Error())
		return err
	}

	w.mu.Lock()
	record.AdvanceReview(execution.ReviewPending)
	record.ReviewNote = note
	if priority != "" {
		record.Priority = priority
	}
	record.ReviewRequestedAt = time.Now()
	w.mu.Unlock()

	w.persist(ctx, record)
	w.logger.LogReview(executionID, "requested", note)
	w.notify(record)
	return nil
}

// StartPolling begins the poll loop for an execution. The loop is
// single-flight per id: a second call while a loop is live returns the
// existing handle, and a stale (finished) loop is replaced.
func (w *Workflow) StartPolling(ctx context.Context, executionID string) *Poller {
	w.mu.Lock()
	defer w.mu.Unlock()
	if existing := w.pollers[executionID]; existing != nil {
		select {
		case <-existing.Done():
			// Stale timer from an earlier cycle; clear before starting anew.
			delete(w.pollers, executionID)
		default:
			return existing
		}
	}
	p := newPoller()
	w.pollers[executionID] = p
	go w.poll(ctx, executionID, p)
	return p
}

// Refresh performs one immediate status fetch and applies it, outside any
// running loop. It may move an unknown-status record back onto the graph.
func (w *Workflow) Refresh(ctx context.Context, executionID string) (execution.ReviewStatus, error) {
	update, err := w.backend.FetchExecution(ctx, executionID)
	if err != nil {
		return "", err
	}
	w.apply(ctx, executionID, update)
	if record := w.locator.ByID(executionID); record != nil {
		return record.ReviewStatus, nil
	}
	return update.ReviewStatus, nil
}

// poll runs the fixed-interval loop: fetch, apply, stop on terminal state.
// Transient failures are logged and retried on the next tick; sustained
// failure or exhaustion marks the review status unknown.
func (w *Workflow) poll(ctx context.Context, executionID string, p *Poller) {
	defer close(p.done)
	defer w.clearPoller(executionID, p)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	consecutive := 0
	total := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-ticker.C:
		}

		record := w.locator.ByID(executionID)
		if record == nil {
			return
		}
		if record.ReviewStatus.Terminal() || record.ReviewStatus == execution.ReviewUnknown {
			return
		}

		total++
		update, err := w.backend.FetchExecution(ctx, executionID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			consecutive++
			w.logger.LogReview(executionID, "poll_failed", err.Error())
			if consecutive >= w.cfg.MaxConsecutiveFailures {
				w.markUnknown(ctx, executionID, "sustained poll failures")
				return
			}
			continue
		}
		consecutive = 0

		if w.apply(ctx, executionID, update) {
			return
		}
		if w.cfg.MaxPolls > 0 && total >= w.cfg.MaxPolls {
			w.markUnknown(ctx, executionID, "poll budget exhausted")
			return
		}
	}
}

// apply folds an observed backend state into the record, returning true
// once a terminal state has been observed (whether or not it changed
// anything — repeats are no-ops).
func (w *Workflow) apply(ctx context.Context, executionID string, update *execution.ReviewUpdate) bool {
	record := w.locator.ByID(executionID)
	if record == nil {
		return true
	}

	w.mu.Lock()
	var changed bool
	switch update.ReviewStatus {
	case execution.ReviewCompleted:
		changed = record.AdvanceReview(execution.ReviewCompleted)
		if changed {
			record.RefinedOutput = update.RefinedOutput
			record.ReviewResponseNote = update.ReviewResponseNote
			record.ReviewedAt = time.Now()
		}
	case execution.ReviewRejected:
		changed = record.AdvanceReview(execution.ReviewRejected)
		if changed {
			record.ReviewResponseNote = update.ReviewResponseNote
			record.ReviewedAt = time.Now()
		}
	case execution.ReviewInProgress:
		changed = record.AdvanceReview(execution.ReviewInProgress)
	}
	terminal := update.ReviewStatus.Terminal()
	w.mu.Unlock()

	if changed {
		w.persist(ctx, record)
		w.logger.LogReview(executionID, "transition", string(record.ReviewStatus))
		w.notify(record)
	}
	return terminal
}

// markUnknown gives up on polling without claiming an outcome: the
// review's actual state is unconfirmed and a later Refresh may resolve it.
func (w *Workflow) markUnknown(ctx context.Context, executionID, reason string) {
	record := w.locator.ByID(executionID)
	if record == nil {
		return
	}
	w.mu.Lock()
	changed := record.AdvanceReview(execution.ReviewUnknown)
	w.mu.Unlock()
	if changed {
		w.persist(ctx, record)
		w.logger.LogReview(executionID, "status_unknown", reason)
		w.notify(record)
	}
}

func (w *Workflow) clearPoller(executionID string, p *Poller) {
	w.mu.Lock()
	if w.pollers[executionID] == p {
		delete(w.pollers, executionID)
	}
	w.mu.Unlock()
}

func (w *Workflow) persist(ctx context.Context, record *execution.Record) {
	if w.store == nil {
		return
	}
	if err := w.store.UpdateReview(ctx, record); err != nil {
		w.logger.LogReview(record.ID, "persist_failed", err.Error())
	}
}

func (w *Workflow) notify(record *execution.Record) {
	if w.onUpdate != nil {
		w.onUpdate(record)
	}
}
