package status

import (
	"context"
	"log/slog"
	"time"

	"github.com/cuongbtq/file-pipeline/internal/job"
)

// View is the externally visible projection of a job record. It carries
// everything the record does except the server-side file path.
type View struct {
	TrackingID  string     `json:"tracking_id"`
	Status      job.Status `json:"status"`
	Progress    *int64     `json:"progress,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	LineCount   *int64     `json:"line_count,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Service is the read-only job lookup.
type Service struct {
	store  job.Store
	logger *slog.Logger
}

func NewService(store job.Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
	}
}

// Lookup returns the redacted record for a tracking id. It returns
// job.ErrJobNotFound for unknown ids; callers distinguish a blank id
// themselves, before calling. Reads are not synchronized with the worker,
// so the result may trail reality by one poll interval.
func (s *Service) Lookup(ctx context.Context, trackingID string) (*View, error) {
	rec, err := s.store.Get(ctx, trackingID)
	if err != nil {
		return nil, err
	}

	return &View{
		TrackingID:  rec.TrackingID,
		Status:      rec.Status,
		Progress:    rec.Progress,
		CreatedAt:   rec.CreatedAt,
		StartedAt:   rec.StartedAt,
		ProcessedAt: rec.ProcessedAt,
		LineCount:   rec.LineCount,
		Error:       rec.Error,
	}, nil
}
