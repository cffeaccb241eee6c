//go:build !gcp

package archive

import (
	"context"
	"fmt"
)

func newGCSStore(ctx context.Context, cfg GCSConfig) (BlobStore, error) {
	return nil, fmt.Errorf("gcs archive backend is not compiled in (build with -tags gcp)")
}
