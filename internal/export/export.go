// Package export writes editor project files for an assembled timeline:
// a Premiere-compatible XMEML document and a CapCut draft_content.json.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const (
	KindVideo = "video"
	KindImage = "image"
)

// Item is one timeline entry, either a sourced clip or a generated image.
type Item struct {
	SceneNumber int     `json:"scene_number"`
	Kind        string  `json:"kind"`
	Path        string  `json:"path"`
	Duration    float64 `json:"duration"`
}

// Timeline is the assembled cut handed to the exporters.
type Timeline struct {
	ProjectName string
	FrameRate   int
	Width       int
	Height      int
	Items       []Item
}

// Sorted returns the items ordered by scene number.
func (t *Timeline) Sorted() []Item {
	items := make([]Item, len(t.Items))
	copy(items, t.Items)
	sort.Slice(items, func(i, j int) bool { return items[i].SceneNumber < items[j].SceneNumber })
	return items
}

// TotalDuration is the timeline length in seconds.
func (t *Timeline) TotalDuration() float64 {
	var sum float64
	for _, it := range t.Items {
		sum += it.Duration
	}
	return sum
}

// WriteBundle writes all project files into dir and returns their paths.
func WriteBundle(dir string, t *Timeline) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating bundle dir: %w", err)
	}

	premierePath := filepath.Join(dir, "project.xml")
	if err := WritePremiereXML(premierePath, t); err != nil {
		return nil, fmt.Errorf("premiere export: %w", err)
	}

	capcutPath := filepath.Join(dir, "draft_content.json")
	if err := WriteCapCutDraft(capcutPath, t); err != nil {
		return nil, fmt.Errorf("capcut export: %w", err)
	}

	return []string{premierePath, capcutPath}, nil
}
