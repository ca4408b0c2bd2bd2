package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/seantiz/simcbot/internal/delivery"
	"github.com/seantiz/simcbot/internal/executor"
	"github.com/seantiz/simcbot/internal/model"
	"github.com/seantiz/simcbot/internal/profile"
	"github.com/seantiz/simcbot/internal/store"
)

const (
	// deliverTimeout bounds a single delivery, independent of shutdown.
	deliverTimeout = 30 * time.Second

	// maxFailureText keeps error replies within a chat message.
	maxFailureText = 1900

	// maxStoredLines caps the output kept in history per job.
	maxStoredLines = 2000

	// ShutdownText is sent to submitters whose jobs never started.
	ShutdownText = "The bot is shutting down, your simulation was not run. Please resubmit later."
)

var (
	// ErrClosed is returned by Enqueue once the worker is shutting down.
	ErrClosed = errors.New("queue is closed")

	// ErrRunning is returned when Run is called on a worker that is already
	// running.
	ErrRunning = errors.New("worker already running")
)

// Renderer builds the simulation input for a job.
type Renderer interface {
	Render(job *model.Job) string
}

// Executor runs the simulation executable on a profile file.
type Executor interface {
	Run(ctx context.Context, executable, inputPath string, timeout time.Duration, onLine func(string)) (executor.Result, error)
}

// Config wires a Worker to its collaborators. Store may be nil.
type Config struct {
	Renderer   Renderer
	Executor   Executor
	Deliverer  delivery.Deliverer
	Store      store.Store
	Logger     *slog.Logger
	Executable string
	Timeout    time.Duration
	KeepFiles  bool
}

// Snapshot is a point-in-time view of the queue.
type Snapshot struct {
	Current *model.Job   `json:"current"`
	Pending []*model.Job `json:"pending"`
}

// Empty reports whether nothing is executing or waiting.
func (s Snapshot) Empty() bool {
	return s.Current == nil && len(s.Pending) == 0
}

// Worker serializes job execution.
type Worker struct {
	cfg    Config
	logger *slog.Logger
	events *broker

	mu      sync.Mutex
	pending []*model.Job
	current *model.Job
	closed  bool
	running bool
	abort   context.CancelFunc

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

// NewWorker creates an idle worker. Call Run to start dispatching.
func NewWorker(cfg Config) *Worker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = executor.DefaultTimeout
	}
	return &Worker{
		cfg:    cfg,
		logger: cfg.Logger,
		events: newBroker(),
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Enqueue appends job to the pending list and returns the number of jobs
// ahead of it, including the one executing.
func (w *Worker) Enqueue(job *model.Job) (int, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return 0, ErrClosed
	}
	ahead := len(w.pending)
	if w.current != nil {
		ahead++
	}
	w.pending = append(w.pending, job)
	queuePending.Set(float64(len(w.pending)))
	w.mu.Unlock()

	w.events.publish(Event{Type: EventQueued, JobID: job.ID, Position: ahead + 1})

	select {
	case w.wake <- struct{}{}:
	default:
	}

	w.logger.Info("job queued",
		"job_id", job.ID,
		"submitter", job.Submitter.ID,
		"display_name", job.DisplayName,
		"mode", job.Mode,
		"ahead", ahead,
	)
	return ahead, nil
}

// Snapshot returns the executing job and a copy of the pending list.
func (w *Worker) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	pending := make([]*model.Job, len(w.pending))
	copy(pending, w.pending)
	return Snapshot{Current: w.current, Pending: pending}
}

// Lookup finds a live job. Position is 0 for the executing job and 1-based
// for pending jobs.
func (w *Worker) Lookup(id string) (job *model.Job, position int, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.current != nil && w.current.ID == id {
		return w.current, 0, true
	}
	for i, j := range w.pending {
		if j.ID == id {
			return j, i + 1, true
		}
	}
	return nil, 0, false
}

// Subscribe streams events for jobID until the job finishes. The returned
// function releases the subscription.
func (w *Worker) Subscribe(jobID string) (<-chan Event, func()) {
	return w.events.subscribe(jobID)
}

// Run dispatches jobs until Shutdown is called or ctx is cancelled.
// Cancelling ctx aborts the executing job; Shutdown lets it finish.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return ErrRunning
	}
	w.running = true
	runCtx, cancel := context.WithCancel(ctx)
	w.abort = cancel
	w.mu.Unlock()

	defer close(w.done)
	defer cancel()

	w.logger.Info("worker started", "executable", w.cfg.Executable, "timeout", w.cfg.Timeout)

	for {
		select {
		case <-w.stop:
			w.drain(runCtx)
			return nil
		case <-runCtx.Done():
			w.drain(runCtx)
			return runCtx.Err()
		default:
		}

		job := w.dequeue()
		if job == nil {
			select {
			case <-w.stop:
			case <-runCtx.Done():
			case <-w.wake:
			}
			continue
		}

		w.process(runCtx, job)
	}
}

// Shutdown stops accepting jobs and waits for the executing job to finish.
// If ctx expires first the executing job is aborted. Pending jobs are
// dropped and their submitters notified.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	running := w.running
	close(w.stop)
	w.mu.Unlock()

	if !running {
		w.drain(ctx)
		return nil
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.mu.Lock()
		abort := w.abort
		w.mu.Unlock()
		abort()
		<-w.done
		return ctx.Err()
	}
}

// dequeue moves the head of pending into current in one step so that a
// Snapshot never sees the job twice or not at all.
func (w *Worker) dequeue() *model.Job {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.pending) == 0 {
		return nil
	}
	job := w.pending[0]
	w.pending[0] = nil
	w.pending = w.pending[1:]
	w.current = job

	queuePending.Set(float64(len(w.pending)))
	queueExecuting.Set(1)
	return job
}

func (w *Worker) clearCurrent() {
	w.mu.Lock()
	w.current = nil
	w.mu.Unlock()
	queueExecuting.Set(0)
}

// process runs one job to a terminal state. It never returns an error: every
// failure is reported to the submitter and recorded.
func (w *Worker) process(ctx context.Context, job *model.Job) {
	start := time.Now().UTC()
	rec := model.NewRecord(job, model.StatusRunning)
	rec.StartedAt = &start

	logger := w.logger.With("job_id", job.ID, "display_name", job.DisplayName, "mode", job.Mode)
	logger.Info("job started")
	w.events.publish(Event{Type: EventRunning, JobID: job.ID})

	defer w.cleanup(job)

	text := w.cfg.Renderer.Render(job)
	path, err := profile.Persist(job, text)
	if err != nil {
		w.finish(ctx, logger, job, rec, fmt.Errorf("write profile: %w", err), nil)
		return
	}

	if err := os.MkdirAll(filepath.Dir(job.OutputPath), 0o755); err != nil {
		w.finish(ctx, logger, job, rec, fmt.Errorf("create report dir: %w", err), nil)
		return
	}

	var lines []string
	res, err := w.cfg.Executor.Run(ctx, w.cfg.Executable, path, w.cfg.Timeout, func(line string) {
		if len(lines) < maxStoredLines {
			lines = append(lines, line)
		}
		w.events.publish(Event{Type: EventOutput, JobID: job.ID, Line: line})
	})
	if err != nil {
		w.finish(ctx, logger, job, rec, err, lines)
		return
	}
	logger.Debug("simulation finished", "duration_ms", res.DurationMS)

	dctx, cancel := deliverContext(ctx)
	err = w.cfg.Deliverer.DeliverReport(dctx, job, job.OutputPath)
	cancel()
	if err != nil {
		err = fmt.Errorf("deliver report: %w", err)
	}
	w.finish(ctx, logger, job, rec, err, lines)
}

// finish delivers the failure text when err is non-nil, records the outcome
// and ends the job's event stream.
func (w *Worker) finish(ctx context.Context, logger *slog.Logger, job *model.Job, rec *model.JobRecord, err error, lines []string) {
	if err != nil {
		dctx, cancel := deliverContext(ctx)
		if nerr := w.cfg.Deliverer.DeliverText(dctx, job, FailureText(err)); nerr != nil {
			logger.Error("failed to deliver error text", "error", nerr)
		}
		cancel()
	}

	now := time.Now().UTC()
	dur := int(now.Sub(*rec.StartedAt).Milliseconds())
	rec.FinishedAt = &now
	rec.DurationMS = &dur
	rec.Status = model.StatusCompleted
	if err != nil {
		rec.Status = model.StatusFailed
		rec.Error = err.Error()
	}

	w.record(logger, rec, lines)
	w.clearCurrent()

	jobsTotal.WithLabelValues(string(job.Mode), rec.Status).Inc()
	jobDuration.WithLabelValues(string(job.Mode)).Observe(float64(dur) / 1000)

	if err != nil {
		logger.Warn("job failed", "duration_ms", dur, "error", err)
		w.events.close(Event{Type: EventFailed, JobID: job.ID, Error: err.Error()})
		return
	}
	logger.Info("job completed", "duration_ms", dur)
	w.events.close(Event{Type: EventCompleted, JobID: job.ID})
}

// drain drops every pending job and tells each submitter.
func (w *Worker) drain(ctx context.Context) {
	w.mu.Lock()
	w.closed = true
	dropped := w.pending
	w.pending = nil
	w.mu.Unlock()
	queuePending.Set(0)

	for _, job := range dropped {
		dctx, cancel := deliverContext(ctx)
		if err := w.cfg.Deliverer.DeliverText(dctx, job, ShutdownText); err != nil {
			w.logger.Error("failed to notify dropped job", "job_id", job.ID, "error", err)
		}
		cancel()

		rec := model.NewRecord(job, model.StatusDropped)
		now := time.Now().UTC()
		rec.FinishedAt = &now
		w.record(w.logger, rec, nil)

		jobsTotal.WithLabelValues(string(job.Mode), model.StatusDropped).Inc()
		w.events.close(Event{Type: EventDropped, JobID: job.ID})
	}

	if len(dropped) > 0 {
		w.logger.Info("pending jobs dropped", "count", len(dropped))
	}
}

func (w *Worker) record(logger *slog.Logger, rec *model.JobRecord, lines []string) {
	if w.cfg.Store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := w.cfg.Store.RecordJob(ctx, rec); err != nil {
		logger.Error("failed to record job", "error", err)
	}
	if err := w.cfg.Store.InsertLogLines(ctx, rec.ID, lines); err != nil {
		logger.Error("failed to store output", "error", err)
	}
}

// cleanup removes the per-job profile and report files.
func (w *Worker) cleanup(job *model.Job) {
	if w.cfg.KeepFiles {
		return
	}
	for _, p := range []string{job.ProfilePath, job.OutputPath} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			w.logger.Warn("failed to remove job file", "job_id", job.ID, "path", p, "error", err)
		}
	}
}

// deliverContext detaches delivery from worker cancellation so a finished
// job is still reported during shutdown.
func deliverContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), deliverTimeout)
}

// FailureText formats err for the submitter. Process failures carry the
// executable's own output; the tail is kept when it is too long.
func FailureText(err error) string {
	msg := err.Error()
	var perr *executor.ProcessError
	if errors.As(err, &perr) {
		if out := strings.TrimSpace(perr.Output); out != "" {
			msg = out
		}
	}
	if len(msg) > maxFailureText {
		cut := len(msg) - maxFailureText
		for cut < len(msg) && !utf8.RuneStart(msg[cut]) {
			cut++
		}
		msg = "..." + msg[cut:]
	}
	return "ERROR: " + msg
}
