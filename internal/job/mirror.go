package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/videoforge/videoforge/internal/cache"
)

const mirrorTimeout = 2 * time.Second

// CacheMirror is a Notifier that writes every job status into Redis before
// passing the snapshot on, so status survives a restart of the in-memory
// store and can be inspected out of band. Mirror failures are logged and
// swallowed; delivery to the inner notifier always proceeds.
type CacheMirror struct {
	cache cache.Cache
	next  Notifier
	ttl   time.Duration
}

func NewCacheMirror(c cache.Cache, next Notifier, ttl time.Duration) *CacheMirror {
	return &CacheMirror{cache: c, next: next, ttl: ttl}
}

func (m *CacheMirror) Notify(j *Job) {
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()

	if err := m.cache.SetJobStatus(ctx, j.ID, j.Status, m.ttl); err != nil {
		slog.Warn("job status mirror failed", "job_id", j.ID, "error", err)
	}
	if m.next != nil {
		m.next.Notify(j)
	}
}
