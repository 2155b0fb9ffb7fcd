// Package pipeline runs a job's ordered stages inside a bounded worker pool,
// turning per-stage progress into the job's overall progress.
package pipeline

import (
	"context"

	"github.com/google/uuid"

	"github.com/videoforge/videoforge/internal/export"
	"github.com/videoforge/videoforge/internal/job"
	"github.com/videoforge/videoforge/internal/planner"
	"github.com/videoforge/videoforge/internal/storage"
)

// ProgressFn reports intra-stage progress in percent (0-100) with a short
// human-readable detail ("7 of 15 clips fetched"). Values are clamped and
// must not decrease within a stage.
type ProgressFn func(percent int, detail string)

// Stage is one weighted unit of pipeline work. Weights of a pipeline's stages
// sum to 100; the executor maps intra-stage progress through them.
type Stage interface {
	Name() string
	Label() string
	Weight() int
	// EstimateSeconds is the rough wall-clock estimate used for job etas.
	EstimateSeconds() int
	Run(ctx context.Context, p *Project, progress ProgressFn) error
}

// Project is the working state a job accumulates as its stages run. It is
// owned by the single goroutine executing the job.
type Project struct {
	JobID   uuid.UUID
	Spec    job.Spec
	WorkDir string

	Plan   *planner.Plan
	Clips  []export.Item
	Images []export.Item
	// Unsourced lists scenes whose clip download failed for reasons that do
	// not indicate credential trouble; the imaging stage covers them.
	Unsourced []planner.Scene
	Timeline  *export.Timeline
	Uploaded  storage.Uploaded
}
