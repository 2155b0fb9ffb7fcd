package export_test

import (
	"encoding/json"
	"encoding/xml"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/videoforge/videoforge/internal/export"
)

func sampleTimeline() *export.Timeline {
	return &export.Timeline{
		ProjectName: "Test Project",
		FrameRate:   30,
		Width:       1920,
		Height:      1080,
		Items: []export.Item{
			{SceneNumber: 3, Kind: export.KindImage, Path: "/media/still.png", Duration: 4},
			{SceneNumber: 1, Kind: export.KindVideo, Path: "/media/intro.mp4", Duration: 10},
			{SceneNumber: 2, Kind: export.KindVideo, Path: "/media/middle.mp4", Duration: 6},
		},
	}
}

func TestTimeline_SortedByScene(t *testing.T) {
	tl := sampleTimeline()

	items := tl.Sorted()
	require.Len(t, items, 3)
	assert.Equal(t, 1, items[0].SceneNumber)
	assert.Equal(t, 2, items[1].SceneNumber)
	assert.Equal(t, 3, items[2].SceneNumber)

	// Sorting must not reorder the original slice.
	assert.Equal(t, 3, tl.Items[0].SceneNumber)
}

func TestTimeline_TotalDuration(t *testing.T) {
	tl := sampleTimeline()
	assert.InDelta(t, 20.0, tl.TotalDuration(), 0.001)
}

func TestWriteBundle_WritesBothProjectFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bundle")

	paths, err := export.WriteBundle(dir, sampleTimeline())
	require.NoError(t, err)
	require.Len(t, paths, 2)

	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
	assert.Equal(t, "project.xml", filepath.Base(paths[0]))
	assert.Equal(t, "draft_content.json", filepath.Base(paths[1]))
}

func TestWritePremiereXML_StructureAndFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project.xml")
	require.NoError(t, export.WritePremiereXML(path, sampleTimeline()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(raw)

	assert.Contains(t, content, "<!DOCTYPE xmeml>")
	assert.Contains(t, content, `<xmeml version="5">`)
	assert.Contains(t, content, "<name>Test Project</name>")
	assert.Contains(t, content, "<name>Main Timeline</name>")
	assert.Contains(t, content, "<timebase>30</timebase>")
	// 20 seconds at 30fps.
	assert.Contains(t, content, "<duration>600</duration>")
	assert.Contains(t, content, "file://localhost//media/intro.mp4")

	// It must stay well-formed XML.
	var doc struct {
		XMLName xml.Name `xml:"xmeml"`
	}
	assert.NoError(t, xml.Unmarshal(raw, &doc))
}

func TestWritePremiereXML_TimelineEntriesAreContiguous(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project.xml")
	require.NoError(t, export.WritePremiereXML(path, sampleTimeline()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc struct {
		Project struct {
			Children struct {
				Sequence struct {
					Entries []struct {
						Start int `xml:"start"`
						End   int `xml:"end"`
					} `xml:"media>video>track>clipitem"`
				} `xml:"sequence"`
			} `xml:"children"`
		} `xml:"project"`
	}
	require.NoError(t, xml.Unmarshal(raw, &doc))

	entries := doc.Project.Children.Sequence.Entries
	require.Len(t, entries, 3)
	assert.Equal(t, 0, entries[0].Start)
	for i := 1; i < len(entries); i++ {
		assert.Equal(t, entries[i-1].End, entries[i].Start, "entry %d must start where %d ends", i, i-1)
	}
}

func TestWriteCapCutDraft_MicrosecondTimeranges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "draft_content.json")
	require.NoError(t, export.WriteCapCutDraft(path, sampleTimeline()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var draft struct {
		DraftName     string `json:"draft_name"`
		DraftTimeline struct {
			Duration int64 `json:"duration"`
			FPS      int   `json:"fps"`
			Tracks   []struct {
				Type     string `json:"type"`
				Segments []struct {
					MaterialID      string `json:"material_id"`
					TargetTimerange struct {
						Start    int64 `json:"start"`
						Duration int64 `json:"duration"`
					} `json:"target_timerange"`
				} `json:"segments"`
			} `json:"tracks"`
		} `json:"draft_timeline"`
		Materials struct {
			Videos []struct {
				ID   string `json:"id"`
				Type string `json:"type"`
			} `json:"videos"`
			Images []struct {
				ID   string `json:"id"`
				Type string `json:"type"`
			} `json:"images"`
		} `json:"materials"`
		Platform string `json:"platform"`
		Version  string `json:"version"`
	}
	require.NoError(t, json.Unmarshal(raw, &draft))

	assert.Equal(t, "Test Project", draft.DraftName)
	assert.Equal(t, int64(20_000_000), draft.DraftTimeline.Duration)
	assert.Equal(t, 30, draft.DraftTimeline.FPS)
	assert.Equal(t, "windows", draft.Platform)
	assert.Equal(t, "5.0.0", draft.Version)

	require.Len(t, draft.Materials.Videos, 2)
	require.Len(t, draft.Materials.Images, 1)
	assert.Equal(t, "video", draft.Materials.Videos[0].Type)
	assert.Equal(t, "photo", draft.Materials.Images[0].Type)

	require.Len(t, draft.DraftTimeline.Tracks, 1)
	segs := draft.DraftTimeline.Tracks[0].Segments
	require.Len(t, segs, 3)
	// Scene order with contiguous microsecond ranges: 10s, 6s, 4s.
	assert.Equal(t, int64(0), segs[0].TargetTimerange.Start)
	assert.Equal(t, int64(10_000_000), segs[0].TargetTimerange.Duration)
	assert.Equal(t, int64(10_000_000), segs[1].TargetTimerange.Start)
	assert.Equal(t, int64(16_000_000), segs[2].TargetTimerange.Start)

	// Every segment references a declared material.
	known := map[string]bool{}
	for _, m := range draft.Materials.Videos {
		known[m.ID] = true
	}
	for _, m := range draft.Materials.Images {
		known[m.ID] = true
	}
	for _, s := range segs {
		assert.True(t, known[s.MaterialID])
	}
}

func TestWriteCapCutDraft_EmptyTimeline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "draft_content.json")
	tl := &export.Timeline{ProjectName: "Empty", FrameRate: 30, Width: 1920, Height: 1080}

	require.NoError(t, export.WriteCapCutDraft(path, tl))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var draft map[string]any
	require.NoError(t, json.Unmarshal(raw, &draft))
	assert.EqualValues(t, 0, draft["draft_timeline"].(map[string]any)["duration"])
}
