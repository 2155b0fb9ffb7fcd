package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/videoforge/videoforge/internal/job"
)

// PostgresStore implements Store using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) CreateProject(ctx context.Context, p *Project) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO projects (id, title, status, scenes_count, clips_count, images_count, bundle_url, error, created_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO NOTHING`,
		p.ID, p.Title, p.Status, p.ScenesCount, p.ClipsCount, p.ImagesCount,
		p.BundleURL, p.Error, p.CreatedAt, p.CompletedAt)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetProject(ctx context.Context, id uuid.UUID) (*Project, error) {
	var p Project
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, status, scenes_count, clips_count, images_count, bundle_url, error, created_at, completed_at
		 FROM projects WHERE id = $1`, id,
	).Scan(&p.ID, &p.Title, &p.Status, &p.ScenesCount, &p.ClipsCount, &p.ImagesCount,
		&p.BundleURL, &p.Error, &p.CreatedAt, &p.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) ListProjects(ctx context.Context, limit, offset int) ([]*Project, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM projects`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count projects: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, title, status, scenes_count, clips_count, images_count, bundle_url, error, created_at, completed_at
		 FROM projects ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Title, &p.Status, &p.ScenesCount, &p.ClipsCount, &p.ImagesCount,
			&p.BundleURL, &p.Error, &p.CreatedAt, &p.CompletedAt); err != nil {
			return nil, 0, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, &p)
	}
	return projects, total, rows.Err()
}

// RecordFinished converts a terminal job snapshot into a catalog row. It
// satisfies the pipeline's Recorder interface.
func (s *PostgresStore) RecordFinished(ctx context.Context, j *job.Job) error {
	p := &Project{
		ID:          j.ID,
		Title:       j.Spec.Title,
		Status:      j.Status,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt,
		CompletedAt: j.CompletedAt,
	}
	if p.Title == "" {
		p.Title = "Untitled"
	}
	if j.Result != nil {
		p.ScenesCount = j.Result.ScenesCount
		p.ClipsCount = j.Result.ClipsCount
		p.ImagesCount = j.Result.ImagesCount
		p.BundleURL = &j.Result.BundleURL
	}
	return s.CreateProject(ctx, p)
}

var _ Store = (*PostgresStore)(nil)
