package storage

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/videoforge/videoforge/internal/config"
)

// S3Uploader zips the bundle directory, uploads it to one S3 object, and
// presigns a GET URL for it.
type S3Uploader struct {
	client   *s3.Client
	presign  *s3.PresignClient
	uploader *manager.Uploader
	bucket   string
	urlTTL   time.Duration
}

func NewS3Uploader(cfg config.S3Config) (*S3Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	client := s3.NewFromConfig(aws.Config{Region: cfg.Region}, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.AccessKey != "" {
			o.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		}
	})

	return &S3Uploader{
		client:   client,
		presign:  s3.NewPresignClient(client),
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		urlTTL:   cfg.URLTTL,
	}, nil
}

func (u *S3Uploader) UploadBundle(ctx context.Context, key, dir string) (Uploaded, error) {
	var buf bytes.Buffer
	if err := zipDir(&buf, dir); err != nil {
		return Uploaded{}, fmt.Errorf("zipping bundle: %w", err)
	}

	objectKey := key + ".zip"
	_, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/zip"),
	})
	if err != nil {
		return Uploaded{}, fmt.Errorf("uploading bundle: %w", err)
	}

	presigned, err := u.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(objectKey),
	}, s3.WithPresignExpires(u.urlTTL))
	if err != nil {
		return Uploaded{}, fmt.Errorf("presigning bundle url: %w", err)
	}

	return Uploaded{
		URL:       presigned.URL,
		ExpiresAt: time.Now().UTC().Add(u.urlTTL),
	}, nil
}

func zipDir(w io.Writer, dir string) error {
	zw := zip.NewWriter(w)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		f, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(f, src)
		return err
	})
	if err != nil {
		return err
	}
	return zw.Close()
}

var _ Uploader = (*S3Uploader)(nil)
