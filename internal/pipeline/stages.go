package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/videoforge/videoforge/internal/cookiepool"
	"github.com/videoforge/videoforge/internal/export"
	"github.com/videoforge/videoforge/internal/fetch"
	"github.com/videoforge/videoforge/internal/planner"
	"github.com/videoforge/videoforge/internal/render"
	"github.com/videoforge/videoforge/internal/storage"
)

// BreakdownStage asks the planner to split the script into scenes.
type BreakdownStage struct {
	Provider planner.Provider
	W        int
	Estimate int
}

func (s *BreakdownStage) Name() string         { return "breakdown" }
func (s *BreakdownStage) Label() string        { return "Analyzing script" }
func (s *BreakdownStage) Weight() int          { return s.W }
func (s *BreakdownStage) EstimateSeconds() int { return s.Estimate }

func (s *BreakdownStage) Run(ctx context.Context, p *Project, progress ProgressFn) error {
	plan, err := s.Provider.BreakDown(ctx, p.Spec.Script, p.Spec.Duration)
	if err != nil {
		return fmt.Errorf("script breakdown: %w", err)
	}
	if p.Spec.Title != "" {
		plan.Title = p.Spec.Title
	}
	p.Plan = plan
	progress(100, fmt.Sprintf("%d scenes planned", len(plan.Scenes)))
	return nil
}

// SourcingStage downloads the best candidate clip for every scene through the
// cookie pool, several scenes at a time. Credential exhaustion fails the
// stage; a scene whose candidates are simply gone is left for imaging.
type SourcingStage struct {
	Fetcher     *fetch.Fetcher
	MaxAttempts int
	Concurrency int
	W           int
	Estimate    int
}

func (s *SourcingStage) Name() string         { return "sourcing" }
func (s *SourcingStage) Label() string        { return "Sourcing clips" }
func (s *SourcingStage) Weight() int          { return s.W }
func (s *SourcingStage) EstimateSeconds() int { return s.Estimate }

func (s *SourcingStage) Run(ctx context.Context, p *Project, progress ProgressFn) error {
	outDir := filepath.Join(p.WorkDir, "clips")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating clips dir: %w", err)
	}

	concurrency := s.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	type sceneResult struct {
		scene planner.Scene
		path  string
		err   error
	}

	total := len(p.Plan.Scenes)
	results := make([]sceneResult, total)
	sem := make(chan struct{}, concurrency)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		done int
	)
	for i, scene := range p.Plan.Scenes {
		wg.Add(1)
		go func(i int, scene planner.Scene) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			path, err := s.fetchScene(ctx, scene, outDir)
			results[i] = sceneResult{scene: scene, path: path, err: err}

			mu.Lock()
			done++
			n := done
			mu.Unlock()
			progress(n*100/total, fmt.Sprintf("%d of %d clips fetched", n, total))
		}(i, scene)
	}
	wg.Wait()

	for _, r := range results {
		switch {
		case r.err == nil && r.path != "":
			p.Clips = append(p.Clips, export.Item{
				SceneNumber: r.scene.Number,
				Kind:        export.KindVideo,
				Path:        r.path,
				Duration:    r.scene.Duration,
			})
		case errors.Is(r.err, cookiepool.ErrPoolExhausted), errors.Is(r.err, fetch.ErrFetchFailed):
			return fmt.Errorf("clip sourcing: %w", r.err)
		case r.err != nil && errors.Is(r.err, context.Canceled):
			return r.err
		default:
			// No candidates, or targets gone: fall back to a generated image.
			slog.Info("scene left unsourced", "job_id", p.JobID, "scene", r.scene.Number, "reason", r.err)
			p.Unsourced = append(p.Unsourced, r.scene)
		}
	}
	return nil
}

var errNoCandidates = errors.New("no candidate clips")

func (s *SourcingStage) fetchScene(ctx context.Context, scene planner.Scene, outDir string) (string, error) {
	if len(scene.CandidateURLs) == 0 {
		return "", errNoCandidates
	}
	var lastErr error
	for _, u := range scene.CandidateURLs {
		path, err := s.Fetcher.Fetch(ctx, u, outDir, s.MaxAttempts)
		if err == nil {
			return path, nil
		}
		// Exhaustion means no scene can be fetched; stop ranking candidates.
		if errors.Is(err, cookiepool.ErrPoolExhausted) || errors.Is(err, fetch.ErrFetchFailed) {
			return "", err
		}
		lastErr = err
	}
	return "", lastErr
}

// ImagingStage generates a still image for every scene sourcing left behind.
type ImagingStage struct {
	Generator render.Generator
	W         int
	Estimate  int
}

func (s *ImagingStage) Name() string         { return "imaging" }
func (s *ImagingStage) Label() string        { return "Generating images" }
func (s *ImagingStage) Weight() int          { return s.W }
func (s *ImagingStage) EstimateSeconds() int { return s.Estimate }

func (s *ImagingStage) Run(ctx context.Context, p *Project, progress ProgressFn) error {
	if len(p.Unsourced) == 0 {
		progress(100, "no images needed")
		return nil
	}

	outDir := filepath.Join(p.WorkDir, "images")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating images dir: %w", err)
	}

	total := len(p.Unsourced)
	for i, scene := range p.Unsourced {
		if err := ctx.Err(); err != nil {
			return err
		}
		prompt := scene.ImagePrompt
		if prompt == "" {
			prompt = scene.Description
		}
		path, err := s.Generator.Generate(ctx, prompt, outDir)
		if err != nil {
			return fmt.Errorf("image generation for scene %d: %w", scene.Number, err)
		}
		p.Images = append(p.Images, export.Item{
			SceneNumber: scene.Number,
			Kind:        export.KindImage,
			Path:        path,
			Duration:    scene.Duration,
		})
		progress((i+1)*100/total, fmt.Sprintf("%d of %d images generated", i+1, total))
	}
	return nil
}

// AssemblyStage builds the timeline from sourced clips and generated images.
type AssemblyStage struct {
	FrameRate int
	Width     int
	Height    int
	W         int
	Estimate  int
}

func (s *AssemblyStage) Name() string         { return "assembly" }
func (s *AssemblyStage) Label() string        { return "Assembling timeline" }
func (s *AssemblyStage) Weight() int          { return s.W }
func (s *AssemblyStage) EstimateSeconds() int { return s.Estimate }

func (s *AssemblyStage) Run(ctx context.Context, p *Project, progress ProgressFn) error {
	items := make([]export.Item, 0, len(p.Clips)+len(p.Images))
	items = append(items, p.Clips...)
	items = append(items, p.Images...)
	if len(items) == 0 {
		return errors.New("timeline assembly: no media for any scene")
	}

	p.Timeline = &export.Timeline{
		ProjectName: p.Plan.Title,
		FrameRate:   s.FrameRate,
		Width:       s.Width,
		Height:      s.Height,
		Items:       items,
	}
	progress(100, fmt.Sprintf("%d timeline entries", len(items)))
	return nil
}

// ExportStage writes the editor project files and uploads the bundle.
type ExportStage struct {
	Uploader storage.Uploader
	W        int
	Estimate int
}

func (s *ExportStage) Name() string         { return "export" }
func (s *ExportStage) Label() string        { return "Exporting project" }
func (s *ExportStage) Weight() int          { return s.W }
func (s *ExportStage) EstimateSeconds() int { return s.Estimate }

func (s *ExportStage) Run(ctx context.Context, p *Project, progress ProgressFn) error {
	bundleDir := filepath.Join(p.WorkDir, "bundle")
	if _, err := export.WriteBundle(bundleDir, p.Timeline); err != nil {
		return fmt.Errorf("project export: %w", err)
	}
	progress(50, "project files written")

	uploaded, err := s.Uploader.UploadBundle(ctx, p.JobID.String(), bundleDir)
	if err != nil {
		return fmt.Errorf("bundle upload: %w", err)
	}
	p.Uploaded = uploaded
	progress(100, "bundle uploaded")
	return nil
}
