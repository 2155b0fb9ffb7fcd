// Package job holds the job model and the in-memory job store. The store is
// the single source of truth for live job state; both the polling API and the
// event stream read from it.
package job

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Spec is a validated job submission.
type Spec struct {
	Script   string  `json:"script"`
	Duration float64 `json:"duration"`
	Title    string  `json:"title"`
}

// Result describes the finished artifact bundle. The bundle URL and expiry are
// opaque values handed back by the storage layer.
type Result struct {
	BundleURL   string    `json:"bundle_url"`
	ExpiresAt   time.Time `json:"expires_at"`
	ScenesCount int       `json:"scenes_count"`
	ClipsCount  int       `json:"clips_count"`
	ImagesCount int       `json:"images_count"`
}

// Job is one submitted unit of pipeline work. Exactly one of Result/Error is
// set once the job reaches a terminal status.
type Job struct {
	ID          uuid.UUID  `json:"id"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress"`
	CurrentStep string     `json:"current_step"`
	EtaSeconds  int        `json:"eta_seconds"`
	Error       *string    `json:"error,omitempty"`
	Result      *Result    `json:"result,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Spec Spec `json:"-"`
}

// Terminal reports whether the job has reached a final status.
func (j *Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// clone returns a snapshot safe to hand to readers.
func (j *Job) clone() *Job {
	c := *j
	if j.Error != nil {
		e := *j.Error
		c.Error = &e
	}
	if j.Result != nil {
		r := *j.Result
		c.Result = &r
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
