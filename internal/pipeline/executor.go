package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/videoforge/videoforge/internal/job"
)

// ErrQueueFull is returned when the admission queue cannot take another job.
var ErrQueueFull = errors.New("job queue full")

// Recorder receives terminal job snapshots for durable bookkeeping. Failures
// are logged, never propagated; the live record has already been committed.
type Recorder interface {
	RecordFinished(ctx context.Context, j *job.Job) error
}

// Executor owns the worker pool. Jobs are admitted FIFO; when all workers are
// busy a job waits in the store with status queued. Each job runs its stages
// sequentially in one goroutine.
type Executor struct {
	store    job.Store
	stages   []Stage
	recorder Recorder
	workDir  string
	workers  int
	queue    chan uuid.UUID

	mu      sync.Mutex
	cancels map[uuid.UUID]context.CancelFunc
}

func NewExecutor(store job.Store, stages []Stage, recorder Recorder, workDir string, workers, queueCapacity int) (*Executor, error) {
	if workers <= 0 {
		workers = 1
	}
	if queueCapacity <= 0 {
		queueCapacity = 256
	}
	var total int
	for _, s := range stages {
		total += s.Weight()
	}
	if total != 100 {
		return nil, fmt.Errorf("stage weights must sum to 100, got %d", total)
	}
	return &Executor{
		store:    store,
		stages:   stages,
		recorder: recorder,
		workDir:  workDir,
		workers:  workers,
		queue:    make(chan uuid.UUID, queueCapacity),
		cancels:  make(map[uuid.UUID]context.CancelFunc),
	}, nil
}

// Start launches the worker pool. Workers exit when ctx is cancelled.
func (e *Executor) Start(ctx context.Context) {
	for i := 0; i < e.workers; i++ {
		go e.worker(ctx)
	}
	slog.Info("pipeline workers started", "workers", e.workers)
}

// Submit creates the job record and queues it for execution.
func (e *Executor) Submit(spec job.Spec) (*job.Job, error) {
	j := e.store.Create(spec)
	select {
	case e.queue <- j.ID:
		return j, nil
	default:
		e.store.Fail(j.ID, "job queue full")
		return nil, ErrQueueFull
	}
}

// Cancel requests cooperative cancellation. A queued job fails immediately; a
// processing job has its context cancelled and stops at the next stage
// boundary or fetch attempt. Returns false if the job is unknown or terminal.
func (e *Executor) Cancel(id uuid.UUID) bool {
	j, err := e.store.Get(id)
	if err != nil || j.Terminal() {
		return false
	}

	e.mu.Lock()
	cancel, running := e.cancels[id]
	e.mu.Unlock()

	if running {
		cancel()
		return true
	}
	// Still queued; the worker will observe the terminal state and skip it.
	e.store.Fail(id, "cancelled")
	return true
}

func (e *Executor) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-e.queue:
			e.runJob(ctx, id)
		}
	}
}

func (e *Executor) runJob(ctx context.Context, id uuid.UUID) {
	j, err := e.store.Get(id)
	if err != nil {
		slog.Error("queued job missing from store", "job_id", id)
		return
	}
	if j.Terminal() {
		// Cancelled while waiting for a worker slot.
		return
	}

	jobCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancels[id] = cancel
	e.mu.Unlock()
	defer func() {
		cancel()
		e.mu.Lock()
		delete(e.cancels, id)
		e.mu.Unlock()
	}()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in pipeline", "job_id", id, "error", r)
			e.store.Fail(id, fmt.Sprintf("internal error: %v", r))
			e.record(id)
		}
	}()

	workDir := filepath.Join(e.workDir, id.String())
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		e.store.Fail(id, fmt.Sprintf("workspace setup: %v", err))
		e.record(id)
		return
	}
	defer os.RemoveAll(workDir)

	p := &Project{JobID: id, Spec: j.Spec, WorkDir: workDir}

	doneWeight := 0
	for i, stage := range e.stages {
		if jobCtx.Err() != nil {
			e.store.Fail(id, "cancelled")
			e.record(id)
			return
		}

		eta := e.etaFrom(i, 0)
		e.store.Update(id, doneWeight, stage.Label(), eta)

		// Stages may report progress from concurrent goroutines; the mutex
		// keeps the clamp and the store write atomic so updates stay ordered.
		var progressMu sync.Mutex
		lastPct := 0
		progress := func(pct int, detail string) {
			progressMu.Lock()
			defer progressMu.Unlock()
			if pct < lastPct {
				pct = lastPct
			}
			if pct > 100 {
				pct = 100
			}
			lastPct = pct
			overall := doneWeight + stage.Weight()*pct/100
			step := stage.Label()
			if detail != "" {
				step = fmt.Sprintf("%s (%s)", stage.Label(), detail)
			}
			e.store.Update(id, overall, step, e.etaFrom(i, pct))
		}

		if err := stage.Run(jobCtx, p, progress); err != nil {
			if jobCtx.Err() != nil {
				e.store.Fail(id, "cancelled")
			} else {
				e.store.Fail(id, fmt.Sprintf("%s: %v", stage.Name(), err))
			}
			e.record(id)
			slog.Warn("pipeline failed", "job_id", id, "stage", stage.Name(), "error", err)
			return
		}
		doneWeight += stage.Weight()
	}

	scenes := 0
	if p.Plan != nil {
		scenes = len(p.Plan.Scenes)
	}
	e.store.Complete(id, job.Result{
		BundleURL:   p.Uploaded.URL,
		ExpiresAt:   p.Uploaded.ExpiresAt,
		ScenesCount: scenes,
		ClipsCount:  len(p.Clips),
		ImagesCount: len(p.Images),
	})
	e.record(id)
	slog.Info("pipeline completed", "job_id", id,
		"scenes", scenes, "clips", len(p.Clips), "images", len(p.Images))
}

// etaFrom estimates remaining seconds given the current stage index and its
// intra-stage percent.
func (e *Executor) etaFrom(stageIdx, pct int) int {
	eta := e.stages[stageIdx].EstimateSeconds() * (100 - pct) / 100
	for _, s := range e.stages[stageIdx+1:] {
		eta += s.EstimateSeconds()
	}
	return eta
}

func (e *Executor) record(id uuid.UUID) {
	if e.recorder == nil {
		return
	}
	j, err := e.store.Get(id)
	if err != nil {
		return
	}
	if err := e.recorder.RecordFinished(context.Background(), j); err != nil {
		slog.Error("recording finished job", "job_id", id, "error", err)
	}
}
