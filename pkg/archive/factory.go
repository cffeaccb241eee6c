package archive

import (
	"context"
	"fmt"
)

// Backend selects an archive storage implementation.
type Backend string

const (
	BackendFS  Backend = "fs"
	BackendS3  Backend = "s3"
	BackendGCS Backend = "gcs"
)

// GCSConfig configures the GCS archive backend.
type GCSConfig struct {
	Bucket string
	Prefix string
}

// Config selects and configures the archive backend.
type Config struct {
	Backend Backend
	Dir     string
	S3      S3Config
	GCS     GCSConfig
}

// NewStore builds the configured blob store. An empty backend means
// filesystem.
func NewStore(ctx context.Context, cfg Config) (BlobStore, error) {
	switch cfg.Backend {
	case BackendFS, "":
		dir := cfg.Dir
		if dir == "" {
			dir = "data/archive"
		}
		return NewFileStore(dir)
	case BackendS3:
		if cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("s3 archive backend needs a bucket")
		}
		if cfg.S3.Region == "" {
			cfg.S3.Region = "us-east-1"
		}
		return NewS3Store(ctx, cfg.S3)
	case BackendGCS:
		if cfg.GCS.Bucket == "" {
			return nil, fmt.Errorf("gcs archive backend needs a bucket")
		}
		return newGCSStore(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Backend)
	}
}
