package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/file-pipeline/internal/job"
	"github.com/cuongbtq/file-pipeline/shared/postgresql"
	"github.com/jmoiron/sqlx"
)

// Postgres implements job.Store on a PostgreSQL jobs table. Update rewrites
// every mutable column, so callers get set-with-overwrite semantics and are
// expected to read-modify-write.
type Postgres struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgres creates a Postgres store on an established client.
func NewPostgres(pg *postgresql.Client, logger *slog.Logger) *Postgres {
	return &Postgres{
		db:     pg.GetDB(),
		logger: logger,
	}
}

func (s *Postgres) Get(ctx context.Context, trackingID string) (*job.Record, error) {
	query := `
		SELECT tracking_id, file_path, status, progress,
		       created_at, started_at, processed_at, line_count, error_message
		FROM jobs
		WHERE tracking_id = $1
	`

	var rec job.Record
	err := s.db.GetContext(ctx, &rec, query, trackingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, job.ErrJobNotFound
		}
		return nil, fmt.Errorf("%w: failed to get job: %v", job.ErrStoreUnavailable, err)
	}

	return &rec, nil
}

func (s *Postgres) Create(ctx context.Context, rec *job.Record) error {
	query := `
		INSERT INTO jobs (
			tracking_id, file_path, status, progress,
			created_at, started_at, processed_at, line_count, error_message
		) VALUES (
			:tracking_id, :file_path, :status, :progress,
			:created_at, :started_at, :processed_at, :line_count, :error_message
		)
	`

	if _, err := s.db.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("%w: failed to create job: %v", job.ErrStoreUnavailable, err)
	}

	s.logger.Debug("Job record created",
		slog.String("tracking_id", rec.TrackingID),
	)
	return nil
}

func (s *Postgres) Update(ctx context.Context, rec *job.Record) error {
	query := `
		UPDATE jobs
		SET file_path     = :file_path,
		    status        = :status,
		    progress      = :progress,
		    started_at    = :started_at,
		    processed_at  = :processed_at,
		    line_count    = :line_count,
		    error_message = :error_message
		WHERE tracking_id = :tracking_id
	`

	result, err := s.db.NamedExecContext(ctx, query, rec)
	if err != nil {
		return fmt.Errorf("%w: failed to update job: %v", job.ErrStoreUnavailable, err)
	}

	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return job.ErrJobNotFound
	}

	s.logger.Debug("Job record updated",
		slog.String("tracking_id", rec.TrackingID),
		slog.String("status", string(rec.Status)),
	)
	return nil
}
