package planner

import (
	"context"
	"fmt"
	"strings"
)

// MockProvider satisfies Provider for tests and local development. It splits
// the script into paragraph-sized scenes deterministically.
type MockProvider struct {
	BreakDownFunc func(ctx context.Context, script string, duration float64) (*Plan, error)
}

func NewMockProvider() *MockProvider { return &MockProvider{} }

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) BreakDown(ctx context.Context, script string, duration float64) (*Plan, error) {
	if m.BreakDownFunc != nil {
		return m.BreakDownFunc(ctx, script, duration)
	}

	paragraphs := strings.Split(strings.TrimSpace(script), "\n\n")
	if len(paragraphs) == 0 || paragraphs[0] == "" {
		paragraphs = []string{script}
	}

	per := duration / float64(len(paragraphs))
	plan := &Plan{
		Title:         "Untitled",
		TotalDuration: duration,
	}
	for i, p := range paragraphs {
		desc := strings.TrimSpace(p)
		if len(desc) > 80 {
			desc = desc[:80]
		}
		plan.Scenes = append(plan.Scenes, Scene{
			Number:      i + 1,
			Description: desc,
			Duration:    per,
			ImagePrompt: fmt.Sprintf("cinematic still, %s", desc),
		})
	}
	return plan, nil
}

var _ Provider = (*MockProvider)(nil)
