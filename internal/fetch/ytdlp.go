package fetch

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"path/filepath"
	"strings"
)

// Stderr fragments yt-dlp emits when a cookie is blocked by the provider's
// anti-bot checks, as opposed to the target being gone or private.
var blockedMarkers = []string{
	"sign in to confirm you're not a bot",
	"confirm your age",
	"http error 429",
	"access denied",
	"account cookies are no longer valid",
}

var notFoundMarkers = []string{
	"video unavailable",
	"this video is not available",
	"http error 404",
	"private video",
	"has been removed",
}

// YtDlp runs the yt-dlp binary for a single download attempt with one cookie
// file. Output files are keyed by the video id so repeated downloads of the
// same target reuse one path.
type YtDlp struct {
	// Binary is the yt-dlp executable; defaults to "yt-dlp" on PATH.
	Binary string
	// Format is the yt-dlp format selector.
	Format string
}

func NewYtDlp() *YtDlp {
	return &YtDlp{Binary: "yt-dlp", Format: "best[ext=mp4]"}
}

func (y *YtDlp) Download(ctx context.Context, target, cookiePath, outDir string) (string, error) {
	if _, err := url.ParseRequestURI(target); err != nil {
		return "", fmt.Errorf("%w: %q", ErrBadTarget, target)
	}

	outTemplate := filepath.Join(outDir, "%(id)s.%(ext)s")
	args := []string{
		"--no-progress",
		"--no-playlist",
		"-f", y.Format,
		"-o", outTemplate,
		"--print", "after_move:filepath",
	}
	if cookiePath != "" {
		args = append(args, "--cookies", cookiePath)
	}
	args = append(args, target)

	cmd := exec.CommandContext(ctx, y.Binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", classify(stderr.String(), err)
	}

	path := strings.TrimSpace(stdout.String())
	if path == "" {
		return "", fmt.Errorf("yt-dlp produced no output path for %q", target)
	}
	return path, nil
}

// classify maps yt-dlp stderr to the fetcher's failure kinds.
func classify(stderr string, err error) error {
	s := strings.ToLower(stderr)
	for _, m := range blockedMarkers {
		if strings.Contains(s, m) {
			return fmt.Errorf("%w: %s", ErrBlocked, firstLine(stderr))
		}
	}
	for _, m := range notFoundMarkers {
		if strings.Contains(s, m) {
			return fmt.Errorf("%w: %s", ErrTargetNotFound, firstLine(stderr))
		}
	}
	return fmt.Errorf("yt-dlp: %w: %s", err, firstLine(stderr))
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
