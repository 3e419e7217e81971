package services

import (
	"context"
	"fmt"
	"log/slog"
	"mime/multipart"

	"vidhub/internal/lib/logger/sl"
	"vidhub/internal/storage"
	filestorage "vidhub/internal/storage/filestorage"
)

// Uploader pushes a staged local file to the object store and returns the
// hosted URL.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// MediaService stages a multipart upload on local disk, hands it to the
// object store and always removes the staged copy.
type MediaService struct {
	log      *slog.Logger
	staging  filestorage.FileStorage
	uploader Uploader
	maxSize  int64
}

func NewMediaService(log *slog.Logger, staging filestorage.FileStorage, uploader Uploader, maxSize int64) *MediaService {
	return &MediaService{
		log:      log,
		staging:  staging,
		uploader: uploader,
		maxSize:  maxSize,
	}
}

func (s *MediaService) UploadImage(ctx context.Context, file *multipart.FileHeader) (string, error) {
	const op = "media_service.UploadImage"

	log := s.log.With(slog.String("op", op))

	if file == nil {
		return "", fmt.Errorf("%s: %w", op, storage.ErrFileRequired)
	}
	if s.maxSize > 0 && file.Size > s.maxSize {
		return "", fmt.Errorf("%s: %w", op, storage.ErrFileTooLarge)
	}

	relPath, size, err := s.staging.Save(ctx, file, "staging")
	if err != nil {
		log.Error("failed to stage file", sl.Err(err))

		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		if err := s.staging.Delete(ctx, relPath); err != nil {
			log.Warn("failed to remove staged file", sl.Err(err))
		}
	}()

	url, err := s.uploader.Upload(ctx, s.staging.GetFullPath(relPath))
	if err != nil {
		log.Error("failed to upload file", sl.Err(err),
			slog.String("filename", file.Filename),
			slog.Int64("size", size),
		)

		return "", fmt.Errorf("%s: %w", op, err)
	}

	return url, nil
}
