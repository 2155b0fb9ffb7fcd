// Package catalog keeps a durable record of finished projects in Postgres.
// Live job state lives in the in-memory job store; the catalog is written
// once per job, on its terminal transition.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("project not found")

// Project is one finished (completed or failed) pipeline run.
type Project struct {
	ID          uuid.UUID  `db:"id"           json:"id"`
	Title       string     `db:"title"        json:"title"`
	Status      string     `db:"status"       json:"status"`
	ScenesCount int        `db:"scenes_count" json:"scenes_count"`
	ClipsCount  int        `db:"clips_count"  json:"clips_count"`
	ImagesCount int        `db:"images_count" json:"images_count"`
	BundleURL   *string    `db:"bundle_url"   json:"bundle_url,omitempty"`
	Error       *string    `db:"error"        json:"error,omitempty"`
	CreatedAt   time.Time  `db:"created_at"   json:"created_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// Store is the catalog data access interface.
type Store interface {
	Ping(ctx context.Context) error
	CreateProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, id uuid.UUID) (*Project, error)
	ListProjects(ctx context.Context, limit, offset int) ([]*Project, int, error)
}
