package render

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/videoforge/videoforge/internal/config"
)

// FluxGenerator calls a hosted Flux image endpoint that accepts a JSON prompt
// and returns raw PNG bytes.
type FluxGenerator struct {
	cfg    config.FluxConfig
	client *http.Client
}

func NewFluxGenerator(cfg config.FluxConfig) *FluxGenerator {
	return &FluxGenerator{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (g *FluxGenerator) Name() string { return "flux" }

func (g *FluxGenerator) Generate(ctx context.Context, prompt, outDir string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"prompt": prompt,
		"width":  g.cfg.Width,
		"height": g.cfg.Height,
	})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneratorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrGeneratorUnavailable, resp.StatusCode)
	}

	name := fmt.Sprintf("%x.png", sha1.Sum([]byte(prompt)))
	path := filepath.Join(outDir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating image file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", fmt.Errorf("writing image: %w", err)
	}
	return path, nil
}

var _ Generator = (*FluxGenerator)(nil)
