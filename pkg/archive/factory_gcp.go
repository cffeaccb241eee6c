//go:build gcp

package archive

import "context"

func newGCSStore(ctx context.Context, cfg GCSConfig) (BlobStore, error) {
	return NewGCSStore(ctx, cfg)
}
