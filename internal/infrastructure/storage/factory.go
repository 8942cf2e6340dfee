package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/groceryshare/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// ArtifactStore is what the retention and vetting services need from storage
type ArtifactStore interface {
	UploadURL(ctx context.Context, ref, contentType string) (string, time.Time, error)
	Delete(ctx context.Context, ref string) error
	Exists(ctx context.Context, ref string) (bool, error)
}

// New builds the store selected by storage.driver
func New(ctx context.Context, cfg *config.StorageConfig, logger *zap.Logger) (ArtifactStore, error) {
	switch cfg.Driver {
	case "s3":
		store, err := NewS3ArtifactStore(ctx, cfg, WithLogger(logger))
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case "local", "":
		return NewLocalArtifactStore(cfg.LocalRoot)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

var (
	_ ArtifactStore = (*S3ArtifactStore)(nil)
	_ ArtifactStore = (*LocalArtifactStore)(nil)
)
