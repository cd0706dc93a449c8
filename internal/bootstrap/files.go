package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sagenius/agency-crm/config"
	"github.com/sagenius/agency-crm/internal/domain/shared"
	"github.com/sagenius/agency-crm/internal/infrastructure/filestorage"
)

// NewUploader builds the document uploader on the configured backend.
// The returned close function is never nil.
func NewUploader(ctx context.Context, cfg *config.Config, clock shared.Clock, log *slog.Logger) (*filestorage.Uploader, func(), error) {
	switch cfg.Files.Backend {
	case config.FilesGCS:
		log.Info("document storage: gcs", "bucket", cfg.Files.Bucket)
		backend, err := filestorage.NewGCSBackend(ctx, cfg.Files.Bucket)
		if err != nil {
			return nil, func() {}, fmt.Errorf("open gcs bucket: %w", err)
		}
		closeFn := func() {
			if err := backend.Close(); err != nil {
				log.Warn("gcs client close failed", "error", err)
			}
		}
		return filestorage.NewUploader(backend, clock), closeFn, nil

	default:
		log.Info("document storage: local", "root", cfg.Files.LocalRoot)
		backend, err := filestorage.NewLocalBackend(cfg.Files.LocalRoot, cfg.Files.BaseURL)
		if err != nil {
			return nil, func() {}, fmt.Errorf("open local storage: %w", err)
		}
		return filestorage.NewUploader(backend, clock), func() {}, nil
	}
}
