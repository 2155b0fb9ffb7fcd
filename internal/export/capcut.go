package export

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// CapCut draft_content.json structures, matching the CapCut 5.x draft layout.

type capcutDraft struct {
	DraftFold     string          `json:"draft_fold"`
	DraftID       string          `json:"draft_id"`
	DraftName     string          `json:"draft_name"`
	DraftTimeline capcutTimeline  `json:"draft_timeline"`
	Materials     capcutMaterials `json:"materials"`
	Platform      string          `json:"platform"`
	Version       string          `json:"version"`
}

type capcutTimeline struct {
	Duration   int64            `json:"duration"`
	FPS        int              `json:"fps"`
	Tracks     []capcutTrack    `json:"tracks"`
	Resolution capcutResolution `json:"video_target_resolution"`
}

type capcutResolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type capcutTrack struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Segments []capcutSegment `json:"segments"`
}

type capcutSegment struct {
	ID              string          `json:"id"`
	MaterialID      string          `json:"material_id"`
	TargetTimerange capcutTimerange `json:"target_timerange"`
	SourceTimerange capcutTimerange `json:"source_timerange"`
	Speed           float64         `json:"speed"`
	Volume          float64         `json:"volume"`
}

type capcutTimerange struct {
	Start    int64 `json:"start"`
	Duration int64 `json:"duration"`
}

type capcutMaterials struct {
	Videos []capcutMaterial `json:"videos"`
	Images []capcutMaterial `json:"images"`
}

type capcutMaterial struct {
	ID       string `json:"id"`
	Path     string `json:"path"`
	Type     string `json:"type"`
	Duration int64  `json:"duration"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// WriteCapCutDraft renders the timeline as a CapCut draft file. CapCut
// timeranges are in microseconds.
func WriteCapCutDraft(path string, t *Timeline) error {
	items := t.Sorted()

	materials := capcutMaterials{}
	var segments []capcutSegment
	var cursor int64

	for _, it := range items {
		dur := int64(it.Duration * 1e6)
		mat := capcutMaterial{
			ID:       uuid.NewString(),
			Path:     it.Path,
			Duration: dur,
			Width:    t.Width,
			Height:   t.Height,
		}
		if it.Kind == KindImage {
			mat.Type = "photo"
			materials.Images = append(materials.Images, mat)
		} else {
			mat.Type = "video"
			materials.Videos = append(materials.Videos, mat)
		}

		segments = append(segments, capcutSegment{
			ID:              uuid.NewString(),
			MaterialID:      mat.ID,
			TargetTimerange: capcutTimerange{Start: cursor, Duration: dur},
			SourceTimerange: capcutTimerange{Start: 0, Duration: dur},
			Speed:           1.0,
			Volume:          1.0,
		})
		cursor += dur
	}

	draft := capcutDraft{
		DraftFold: t.ProjectName,
		DraftID:   uuid.NewString(),
		DraftName: t.ProjectName,
		DraftTimeline: capcutTimeline{
			Duration:   cursor,
			FPS:        t.FrameRate,
			Tracks:     []capcutTrack{{ID: uuid.NewString(), Type: "video", Segments: segments}},
			Resolution: capcutResolution{Width: t.Width, Height: t.Height},
		},
		Materials: materials,
		Platform:  "windows",
		Version:   "5.0.0",
	}

	out, err := json.MarshalIndent(draft, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling draft: %w", err)
	}
	return os.WriteFile(path, out, 0o644)
}
