// Package render generates fallback still images for scenes that could not be
// sourced from real footage.
package render

import (
	"context"
	"errors"
	"fmt"

	"github.com/videoforge/videoforge/internal/config"
)

var ErrGeneratorUnavailable = errors.New("image generator unavailable")

// Generator produces one image for a text prompt and writes it to outDir,
// returning the file path.
type Generator interface {
	Generate(ctx context.Context, prompt, outDir string) (string, error)
	Name() string
}

// NewGenerator builds the Generator selected by configuration.
func NewGenerator(cfg config.RenderConfig) (Generator, error) {
	switch cfg.Provider {
	case "flux":
		return NewFluxGenerator(cfg.Flux), nil
	case "mock":
		return NewMockGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown image provider %q: must be one of flux, mock", cfg.Provider)
	}
}
