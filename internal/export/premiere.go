package export

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// XMEML v5 subset understood by Premiere's import. Structure mirrors the
// Final Cut interchange format: a media bin per kind plus one sequence.

type xmeml struct {
	XMLName xml.Name     `xml:"xmeml"`
	Version int          `xml:"version,attr"`
	Project xmemlProject `xml:"project"`
}

type xmemlProject struct {
	Name     string        `xml:"name"`
	Children xmemlChildren `xml:"children"`
}

type xmemlChildren struct {
	Bins     []xmemlBin    `xml:"bin"`
	Sequence xmemlSequence `xml:"sequence"`
}

type xmemlBin struct {
	Name  string      `xml:"name"`
	Clips []xmemlClip `xml:"children>clip"`
}

type xmemlClip struct {
	ID       string    `xml:"id,attr"`
	Name     string    `xml:"name"`
	Duration int       `xml:"duration"`
	Rate     xmemlRate `xml:"rate"`
	File     xmemlFile `xml:"media>video>track>clipitem>file"`
}

type xmemlRate struct {
	Timebase int `xml:"timebase"`
}

type xmemlFile struct {
	ID      string `xml:"id,attr"`
	Name    string `xml:"name"`
	PathURL string `xml:"pathurl"`
	Width   int    `xml:"media>video>samplecharacteristics>width"`
	Height  int    `xml:"media>video>samplecharacteristics>height"`
}

type xmemlSequence struct {
	Name     string          `xml:"name"`
	Duration int             `xml:"duration"`
	Rate     xmemlRate       `xml:"rate"`
	Track    []xmemlSeqEntry `xml:"media>video>track>clipitem"`
}

type xmemlSeqEntry struct {
	ID    string `xml:"id,attr"`
	Name  string `xml:"name"`
	Start int    `xml:"start"`
	End   int    `xml:"end"`
	In    int    `xml:"in"`
	Out   int    `xml:"out"`
}

// WritePremiereXML renders the timeline as an XMEML project file.
func WritePremiereXML(path string, t *Timeline) error {
	items := t.Sorted()

	clipBin := xmemlBin{Name: "Clips"}
	imageBin := xmemlBin{Name: "Images"}
	seq := xmemlSequence{
		Name:     "Main Timeline",
		Duration: frames(t.TotalDuration(), t.FrameRate),
		Rate:     xmemlRate{Timebase: t.FrameRate},
	}

	cursor := 0
	for i, it := range items {
		dur := frames(it.Duration, t.FrameRate)
		clip := xmemlClip{
			ID:       fmt.Sprintf("clip-%d", i+1),
			Name:     fmt.Sprintf("Scene %03d", it.SceneNumber),
			Duration: dur,
			Rate:     xmemlRate{Timebase: t.FrameRate},
			File: xmemlFile{
				ID:      fmt.Sprintf("file-%d", i+1),
				Name:    filepath.Base(it.Path),
				PathURL: "file://localhost/" + strings.ReplaceAll(it.Path, "\\", "/"),
				Width:   t.Width,
				Height:  t.Height,
			},
		}
		if it.Kind == KindImage {
			imageBin.Clips = append(imageBin.Clips, clip)
		} else {
			clipBin.Clips = append(clipBin.Clips, clip)
		}

		seq.Track = append(seq.Track, xmemlSeqEntry{
			ID:    fmt.Sprintf("timeline-%d", i+1),
			Name:  clip.Name,
			Start: cursor,
			End:   cursor + dur,
			In:    0,
			Out:   dur,
		})
		cursor += dur
	}

	doc := xmeml{
		Version: 5,
		Project: xmemlProject{
			Name: t.ProjectName,
			Children: xmemlChildren{
				Bins:     []xmemlBin{clipBin, imageBin},
				Sequence: seq,
			},
		},
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling xmeml: %w", err)
	}

	content := xml.Header + "<!DOCTYPE xmeml>\n" + string(out) + "\n"
	return os.WriteFile(path, []byte(content), 0o644)
}

func frames(seconds float64, rate int) int {
	return int(seconds * float64(rate))
}
