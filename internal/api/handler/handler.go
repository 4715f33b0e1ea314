package handler

import (
	"log/slog"

	"github.com/cuongbtq/file-pipeline/internal/intake"
	"github.com/cuongbtq/file-pipeline/internal/status"
	"github.com/cuongbtq/file-pipeline/shared/postgresql"
	"github.com/cuongbtq/file-pipeline/shared/rabbitmq"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger       *slog.Logger
	Intake       *intake.Service
	Status       *status.Service
	DBClient     *postgresql.Client
	RabbitClient *rabbitmq.Client
}

// UploadHandler handles upload and status HTTP requests
type UploadHandler struct {
	logger *slog.Logger
	intake *intake.Service
	status *status.Service
}

// NewUploadHandler creates a new UploadHandler instance
func NewUploadHandler(deps *Dependencies) *UploadHandler {
	return &UploadHandler{
		logger: deps.Logger,
		intake: deps.Intake,
		status: deps.Status,
	}
}
