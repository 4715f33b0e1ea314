package worker

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cuongbtq/file-pipeline/internal/job"
)

const maxLineBytes = 1 << 20

// handle drives one claimed job to a terminal state. Every error path ends
// in the job record, not in the caller: a bad job must never take the loop
// down with it.
func (w *Worker) handle(ctx context.Context, desc *job.Descriptor) {
	logger := w.logger.With(slog.String("tracking_id", desc.TrackingID))

	rec, err := w.store.Get(ctx, desc.TrackingID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			logger.Error("Claimed descriptor has no job record, discarding")
		} else {
			logger.Error("Failed to load job record",
				slog.String("error", err.Error()),
			)
		}
		return
	}

	// The processing write must land before any work starts so Status
	// reflects reality even if this process dies mid-file. A redelivered
	// descriptor for an already-claimed job is skipped here.
	if err := rec.MarkProcessing(time.Now().UTC()); err != nil {
		logger.Warn("Skipping descriptor for already-claimed job",
			slog.String("status", string(rec.Status)),
		)
		return
	}
	if err := w.store.Update(ctx, rec); err != nil {
		logger.Error("Failed to mark job processing",
			slog.String("error", err.Error()),
		)
		return
	}

	logger.Info("Processing job",
		slog.String("file", filepath.Base(rec.FilePath)),
	)

	lineCount, safeMsg, procErr := w.streamLines(ctx, rec, logger)
	if procErr != nil {
		w.fail(ctx, rec, safeMsg, procErr, logger)
		return
	}

	processedPath := filepath.Join(w.storage.ProcessedDir, filepath.Base(rec.FilePath))
	if err := os.Rename(rec.FilePath, processedPath); err != nil {
		w.fail(ctx, rec, "failed to move file to processed location", err, logger)
		return
	}

	if err := rec.MarkCompleted(time.Now().UTC(), lineCount, processedPath); err != nil {
		logger.Error("Refusing illegal completion transition",
			slog.String("error", err.Error()),
		)
		return
	}
	if err := w.store.Update(ctx, rec); err != nil {
		logger.Error("Job completed but terminal record write failed",
			slog.String("error", err.Error()),
		)
		return
	}

	logger.Info("Job completed",
		slog.Int64("line_count", lineCount),
	)
}

// streamLines counts the data lines of the staged file without ever holding
// the whole file in memory. Blank lines are not counted. Every
// progressInterval lines the advisory progress field is flushed to the
// store; those writes may fail or be dropped without affecting the count.
//
// The returned safe message is what gets recorded in the job record on
// failure; the error itself carries the details for the logs.
func (w *Worker) streamLines(ctx context.Context, rec *job.Record, logger *slog.Logger) (int64, string, error) {
	f, err := os.Open(rec.FilePath)
	if err != nil {
		return 0, "staged file is missing or unreadable", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var count int64
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		count++

		if count%w.progressInterval == 0 {
			if err := rec.SetProgress(count); err == nil {
				if err := w.store.Update(ctx, rec); err != nil {
					logger.Warn("Dropping progress update",
						slog.String("error", err.Error()),
					)
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return count, "error while reading file", err
	}

	return count, "", nil
}

// fail records the terminal failed state. Moving the file to the failed
// directory is best-effort: a failed move never blocks the record write.
func (w *Worker) fail(ctx context.Context, rec *job.Record, safeMsg string, cause error, logger *slog.Logger) {
	failedPath := ""
	dest := filepath.Join(w.storage.FailedDir, filepath.Base(rec.FilePath))
	if err := os.Rename(rec.FilePath, dest); err == nil {
		failedPath = dest
	} else {
		logger.Warn("Failed to move file to failed location",
			slog.String("error", err.Error()),
		)
	}

	if err := rec.MarkFailed(time.Now().UTC(), safeMsg, failedPath); err != nil {
		logger.Error("Refusing illegal failure transition",
			slog.String("error", err.Error()),
		)
		return
	}
	if err := w.store.Update(ctx, rec); err != nil {
		logger.Error("Failed to write terminal failed record",
			slog.String("error", err.Error()),
		)
	}

	logger.Error("Job failed",
		slog.String("reason", safeMsg),
		slog.String("error", cause.Error()),
	)
}
