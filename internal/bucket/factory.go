package bucket

import (
	"context"
	"fmt"

	"ft-go/internal/config"
	"ft-go/internal/ft"
)

// NewBucketFromConfig creates a Bucket implementation based on the run mode:
// development mode gets the filesystem bucket, otherwise an S3 bucket
// identifier must be configured. An explicit type of "memory" forces the
// in-memory backend. Fails with ft.ErrStoreUnconfigured when neither a
// bucket identifier nor development mode is set.
func NewBucketFromConfig(ctx context.Context, mode string, cfg config.BucketConfig, clock ft.Clock) (ft.Bucket, error) {
	tokens := ft.NewTokenIssuer([]byte(cfg.TokenSecret), clock)

	switch {
	case cfg.Type == "memory":
		return NewMemoryBucket(cfg.BaseURL, cfg.SignedURLTTL(), tokens, clock), nil
	case mode == config.ModeDevelopment:
		if cfg.LocalRoot == "" {
			return nil, fmt.Errorf("filesystem bucket requires local_root to be set")
		}
		return NewFilesystemBucket(cfg.LocalRoot, cfg.BaseURL, cfg.SignedURLTTL(), tokens, clock)
	case cfg.S3Bucket != "":
		return NewS3Bucket(ctx, cfg)
	default:
		return nil, ft.ErrStoreUnconfigured
	}
}
