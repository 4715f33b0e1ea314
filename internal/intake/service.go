package intake

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cuongbtq/file-pipeline/internal/config"
	"github.com/cuongbtq/file-pipeline/internal/job"
	"github.com/google/uuid"
)

// ReceivedFile is the transport-layer handle for an upload whose bytes have
// already been written to a temporary path. The intake service never looks
// at the HTTP request itself.
type ReceivedFile struct {
	TmpPath     string
	Name        string
	Size        int64
	ContentType string
	Code        TransportCode
}

// Service validates incoming files, stages them and registers the job.
type Service struct {
	store   job.Store
	queue   job.Queue
	storage config.StorageConfig
	limits  config.UploadConfig
	logger  *slog.Logger
}

// NewService creates an intake service on an established store and queue.
func NewService(store job.Store, queue job.Queue, storage config.StorageConfig, limits config.UploadConfig, logger *slog.Logger) *Service {
	return &Service{
		store:   store,
		queue:   queue,
		storage: storage,
		limits:  limits,
		logger:  logger,
	}
}

// Accept validates the received file and, on success, stages it under a
// tracking-id-derived name, creates the queued job record and publishes the
// descriptor. The side effects are strictly ordered: an orphaned staged file
// is sweepable, an enqueued descriptor without a record is not.
//
// The returned error is a *job.ValidationError for rejections and wraps
// job.ErrStoreUnavailable for dependency failures.
func (s *Service) Accept(ctx context.Context, file ReceivedFile) (string, error) {
	if err := s.validate(file); err != nil {
		s.logger.Info("Upload rejected",
			slog.String("name", file.Name),
			slog.Int64("size", file.Size),
			slog.String("reason", err.Error()),
		)
		return "", err
	}

	trackingID := NewTrackingID()
	stagedPath := filepath.Join(s.storage.StagingDir, trackingID+normalizedExt(file.Name))

	if err := moveFile(file.TmpPath, stagedPath); err != nil {
		s.logger.Error("Failed to stage uploaded file",
			slog.String("tracking_id", trackingID),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("failed to store uploaded file: %w", err)
	}

	rec := job.NewRecord(trackingID, stagedPath, time.Now().UTC())
	if err := s.store.Create(ctx, rec); err != nil {
		s.logger.Error("Failed to create job record",
			slog.String("tracking_id", trackingID),
			slog.String("error", err.Error()),
		)
		return "", err
	}

	desc := &job.Descriptor{TrackingID: trackingID, FilePath: stagedPath}
	if err := s.queue.Push(ctx, desc); err != nil {
		s.logger.Error("Failed to enqueue job",
			slog.String("tracking_id", trackingID),
			slog.String("error", err.Error()),
		)
		return "", err
	}

	s.logger.Info("Upload accepted",
		slog.String("tracking_id", trackingID),
		slog.String("name", file.Name),
		slog.Int64("size", file.Size),
	)

	return trackingID, nil
}

// NewTrackingID returns a fresh globally-unique tracking id.
func NewTrackingID() string {
	return "job_" + uuid.NewString()
}

// normalizedExt returns the lowercased extension of name including the dot,
// or "" when name has none. The extension has already passed the allow-list
// by the time this runs, so it is safe to reuse in the staged filename.
func normalizedExt(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// moveFile renames src to dst, falling back to copy-and-remove when the two
// paths live on different filesystems (the transport's tmp dir usually
// does).
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	return copyFile(src, dst)
}

// copyFile copies src to dst and removes src. A partially written dst is
// removed on any failure, so staging never holds a truncated file.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}

	return os.Remove(src)
}
