// Package planner turns a raw script into a production plan: a titled list of
// scenes with target durations and candidate source clips.
package planner

import (
	"context"
	"errors"
	"fmt"

	"github.com/videoforge/videoforge/internal/config"
)

var (
	ErrProviderUnavailable = errors.New("planner provider unavailable")
	ErrInvalidResponse     = errors.New("planner returned invalid response")
)

// Scene is one ordered shot of the plan. CandidateURLs come ranked best-first;
// the sourcing stage tries them in order.
type Scene struct {
	Number        int      `json:"scene_number"`
	Description   string   `json:"scene_description"`
	Duration      float64  `json:"duration"`
	CandidateURLs []string `json:"candidate_urls"`
	ImagePrompt   string   `json:"image_prompt"`
}

// Plan is the full breakdown of a script.
type Plan struct {
	Title         string  `json:"title"`
	TotalDuration float64 `json:"total_duration"`
	Scenes        []Scene `json:"scenes"`
}

// Provider is the script-analysis interface. Never call a concrete backend
// directly; always inject this interface.
type Provider interface {
	// BreakDown analyzes script and produces a plan targeting duration seconds.
	BreakDown(ctx context.Context, script string, duration float64) (*Plan, error)
	// Name returns the provider identifier (e.g., "openai", "mock").
	Name() string
}

// NewProvider builds the Provider selected by configuration.
func NewProvider(cfg config.PlannerConfig) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIProvider(cfg.OpenAI), nil
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown planner provider %q: must be one of openai, mock", cfg.Provider)
	}
}
