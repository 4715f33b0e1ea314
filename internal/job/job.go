package job

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a job. Transitions are forward-only:
// queued -> processing -> completed|failed.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Record is the authoritative state document for one job, held in the Job
// Store. FilePath always points at the file's current location (staging,
// then processed or failed) and is never exposed outside the process.
//
// Fields that are only valid in some states are pointers: Progress exists
// only while processing, StartedAt from the claim onward, ProcessedAt and
// LineCount only on completion. All mutation after creation goes through the
// Mark/SetProgress methods so illegal combinations cannot be written.
type Record struct {
	TrackingID  string     `db:"tracking_id"`
	FilePath    string     `db:"file_path"`
	Status      Status     `db:"status"`
	Progress    *int64     `db:"progress"`
	CreatedAt   time.Time  `db:"created_at"`
	StartedAt   *time.Time `db:"started_at"`
	ProcessedAt *time.Time `db:"processed_at"`
	LineCount   *int64     `db:"line_count"`
	Error       string     `db:"error_message"`
}

// NewRecord creates a queued record for a freshly staged file.
func NewRecord(trackingID, filePath string, now time.Time) *Record {
	return &Record{
		TrackingID: trackingID,
		FilePath:   filePath,
		Status:     StatusQueued,
		CreatedAt:  now,
	}
}

// MarkProcessing transitions queued -> processing and stamps StartedAt.
func (r *Record) MarkProcessing(now time.Time) error {
	if r.Status != StatusQueued {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, StatusProcessing)
	}
	r.Status = StatusProcessing
	r.StartedAt = &now
	return nil
}

// SetProgress records an advisory line count while processing.
func (r *Record) SetProgress(lines int64) error {
	if r.Status != StatusProcessing {
		return fmt.Errorf("%w: progress on %s job", ErrInvalidTransition, r.Status)
	}
	r.Progress = &lines
	return nil
}

// MarkCompleted transitions processing -> completed. filePath is the file's
// final location in the processed directory.
func (r *Record) MarkCompleted(now time.Time, lineCount int64, filePath string) error {
	if r.Status != StatusProcessing {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, StatusCompleted)
	}
	r.Status = StatusCompleted
	r.ProcessedAt = &now
	r.LineCount = &lineCount
	r.FilePath = filePath
	r.Progress = nil
	return nil
}

// MarkFailed transitions a non-terminal record to failed. filePath is the
// file's location after the best-effort move to the failed directory; pass
// the empty string to leave the recorded path unchanged (move failed or the
// file is gone).
func (r *Record) MarkFailed(now time.Time, errMsg, filePath string) error {
	if r.Status.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, StatusFailed)
	}
	r.Status = StatusFailed
	r.ProcessedAt = &now
	r.Error = errMsg
	if filePath != "" {
		r.FilePath = filePath
	}
	r.Progress = nil
	return nil
}
