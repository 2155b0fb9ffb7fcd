package job

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("job not found")

// Store is the live job state interface. Mutations on the same job are
// serialized; different jobs proceed in parallel. Readers always get a
// committed snapshot, never a record mid-write.
type Store interface {
	Create(spec Spec) *Job
	Update(id uuid.UUID, progress int, step string, etaSeconds int)
	Complete(id uuid.UUID, result Result)
	Fail(id uuid.UUID, message string)
	Get(id uuid.UUID) (*Job, error)
}

// Notifier receives a snapshot after every committed change.
type Notifier interface {
	Notify(j *Job)
}

type entry struct {
	mu  sync.Mutex
	job *Job
}

// MemoryStore keeps all job records in memory. Durability across restarts is
// intentionally out of scope.
type MemoryStore struct {
	mu       sync.RWMutex
	jobs     map[uuid.UUID]*entry
	notifier Notifier
	now      func() time.Time
}

func NewMemoryStore(notifier Notifier) *MemoryStore {
	return &MemoryStore{
		jobs:     make(map[uuid.UUID]*entry),
		notifier: notifier,
		now:      time.Now,
	}
}

// Create inserts a fresh queued record and returns its snapshot.
func (s *MemoryStore) Create(spec Spec) *Job {
	j := &Job{
		ID:        uuid.New(),
		Status:    StatusQueued,
		Progress:  0,
		CreatedAt: s.now().UTC(),
		Spec:      spec,
	}

	s.mu.Lock()
	s.jobs[j.ID] = &entry{job: j}
	s.mu.Unlock()

	s.notify(j.clone())
	return j.clone()
}

// Update replaces progress/step/eta. Updates against a terminal record or with
// a progress value lower than the current one are rejected with a warning.
func (s *MemoryStore) Update(id uuid.UUID, progress int, step string, etaSeconds int) {
	e, ok := s.entry(id)
	if !ok {
		slog.Warn("update for unknown job", "job_id", id)
		return
	}

	e.mu.Lock()
	j := e.job
	if j.Terminal() {
		e.mu.Unlock()
		slog.Warn("update rejected: job is terminal", "job_id", id, "status", j.Status)
		return
	}
	if progress < j.Progress {
		e.mu.Unlock()
		slog.Warn("update rejected: progress would decrease",
			"job_id", id, "current", j.Progress, "proposed", progress)
		return
	}
	if progress > 100 {
		progress = 100
	}
	if etaSeconds < 0 {
		etaSeconds = 0
	}
	j.Status = StatusProcessing
	j.Progress = progress
	j.CurrentStep = step
	j.EtaSeconds = etaSeconds
	snap := j.clone()
	e.mu.Unlock()

	s.notify(snap)
}

// Complete marks the job completed with progress 100 and the given result.
func (s *MemoryStore) Complete(id uuid.UUID, result Result) {
	e, ok := s.entry(id)
	if !ok {
		slog.Warn("complete for unknown job", "job_id", id)
		return
	}

	e.mu.Lock()
	j := e.job
	if j.Terminal() {
		e.mu.Unlock()
		slog.Warn("complete rejected: job is terminal", "job_id", id, "status", j.Status)
		return
	}
	now := s.now().UTC()
	j.Status = StatusCompleted
	j.Progress = 100
	j.EtaSeconds = 0
	j.Result = &result
	j.Error = nil
	j.CompletedAt = &now
	snap := j.clone()
	e.mu.Unlock()

	s.notify(snap)
}

// Fail marks the job failed, freezing progress at its last value.
func (s *MemoryStore) Fail(id uuid.UUID, message string) {
	e, ok := s.entry(id)
	if !ok {
		slog.Warn("fail for unknown job", "job_id", id)
		return
	}

	e.mu.Lock()
	j := e.job
	if j.Terminal() {
		e.mu.Unlock()
		slog.Warn("fail rejected: job is terminal", "job_id", id, "status", j.Status)
		return
	}
	now := s.now().UTC()
	j.Status = StatusFailed
	j.EtaSeconds = 0
	j.Error = &message
	j.Result = nil
	j.CompletedAt = &now
	snap := j.clone()
	e.mu.Unlock()

	s.notify(snap)
}

// Get returns a snapshot of the record, or ErrNotFound.
func (s *MemoryStore) Get(id uuid.UUID) (*Job, error) {
	e, ok := s.entry(id)
	if !ok {
		return nil, ErrNotFound
	}
	e.mu.Lock()
	snap := e.job.clone()
	e.mu.Unlock()
	return snap, nil
}

func (s *MemoryStore) entry(id uuid.UUID) (*entry, bool) {
	s.mu.RLock()
	e, ok := s.jobs[id]
	s.mu.RUnlock()
	return e, ok
}

func (s *MemoryStore) notify(j *Job) {
	if s.notifier != nil {
		s.notifier.Notify(j)
	}
}
