package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Backend names accepted by NewStore.
const (
	BackendDisk = "disk"
	BackendS3   = "s3"
)

// NewStore returns the Media Store for backend: a directory on local disk or the S3 recordings bucket.
func NewStore(ctx context.Context, backend, dir string, s3cfg S3Config, logger *zap.Logger) (Store, error) {
	switch backend {
	case BackendDisk, "":
		return NewDisk(dir, logger)
	case BackendS3:
		if s3cfg.RecordingsBucket == "" {
			return nil, fmt.Errorf("s3 media backend needs a recordings bucket")
		}
		return NewS3(ctx, s3cfg, logger)
	default:
		return nil, fmt.Errorf("unknown media backend %q", backend)
	}
}
