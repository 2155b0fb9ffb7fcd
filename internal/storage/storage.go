// Package storage uploads finished artifact bundles and hands back
// time-limited download URLs. The rest of the system treats the URL and
// expiry as opaque values.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/videoforge/videoforge/internal/config"
)

// Uploaded describes a stored bundle.
type Uploaded struct {
	URL       string
	ExpiresAt time.Time
}

// Uploader stores a local bundle directory under a key and returns a
// time-limited download URL for it.
type Uploader interface {
	UploadBundle(ctx context.Context, key, dir string) (Uploaded, error)
}

// NewUploader builds the Uploader selected by configuration.
func NewUploader(cfg config.StorageConfig) (Uploader, error) {
	switch cfg.Backend {
	case "s3":
		return NewS3Uploader(cfg.S3)
	case "fs":
		return NewFSUploader(cfg.FS.Dir, cfg.FS.URLTTL), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q: must be one of s3, fs", cfg.Backend)
	}
}
