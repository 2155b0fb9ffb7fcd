package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FSUploader zips bundles into a local directory. Used for development and
// tests; the "URL" is a file path.
type FSUploader struct {
	dir    string
	urlTTL time.Duration
}

func NewFSUploader(dir string, urlTTL time.Duration) *FSUploader {
	if urlTTL <= 0 {
		urlTTL = 24 * time.Hour
	}
	return &FSUploader{dir: dir, urlTTL: urlTTL}
}

func (u *FSUploader) UploadBundle(ctx context.Context, key, dir string) (Uploaded, error) {
	if err := os.MkdirAll(u.dir, 0o755); err != nil {
		return Uploaded{}, fmt.Errorf("creating storage dir: %w", err)
	}

	dest := filepath.Join(u.dir, key+".zip")
	f, err := os.Create(dest)
	if err != nil {
		return Uploaded{}, fmt.Errorf("creating bundle zip: %w", err)
	}
	defer f.Close()

	if err := zipDir(f, dir); err != nil {
		return Uploaded{}, fmt.Errorf("zipping bundle: %w", err)
	}

	return Uploaded{
		URL:       "file://" + dest,
		ExpiresAt: time.Now().UTC().Add(u.urlTTL),
	}, nil
}

var _ Uploader = (*FSUploader)(nil)
