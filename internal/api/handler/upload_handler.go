package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/cuongbtq/file-pipeline/internal/intake"
	"github.com/cuongbtq/file-pipeline/internal/job"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Upload handles POST /api/v1/uploads
// Decodes the multipart upload into a ReceivedFile handle and hands it to
// the intake service. Everything past the multipart boundary is intake's
// job, including the decision to reject.
func (h *UploadHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.logger.Info("Upload without file field", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "no file was uploaded",
		})
		return
	}

	// Spill the bytes to a private tmp path; intake takes ownership of the
	// file from here. The deferred remove is a no-op once intake stages it.
	tmpPath := filepath.Join(os.TempDir(), "upload-"+uuid.NewString())
	code := intake.TransportOK
	if err := c.SaveUploadedFile(fileHeader, tmpPath); err != nil {
		h.logger.Error("Failed to save uploaded file", slog.String("error", err.Error()))
		code = intake.TransportWriteFailed
	}
	defer os.Remove(tmpPath)

	received := intake.ReceivedFile{
		TmpPath:     tmpPath,
		Name:        fileHeader.Filename,
		Size:        fileHeader.Size,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Code:        code,
	}

	trackingID, err := h.intake.Accept(c.Request.Context(), received)
	if err != nil {
		var vErr *job.ValidationError
		switch {
		case errors.As(err, &vErr):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": vErr.Message,
			})
		case errors.Is(err, job.ErrStoreUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error": "service temporarily unavailable, retry later",
			})
		default:
			h.logger.Error("Upload failed", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "failed to accept upload",
			})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"tracking_id": trackingID,
	})
}

// GetStatus handles GET /api/v1/uploads/:tracking_id
// Returns the job record with the server file path stripped.
func (h *UploadHandler) GetStatus(c *gin.Context) {
	trackingID := strings.TrimSpace(c.Param("tracking_id"))
	if trackingID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "tracking_id is required",
		})
		return
	}

	view, err := h.status.Lookup(c.Request.Context(), trackingID)
	if err != nil {
		switch {
		case errors.Is(err, job.ErrJobNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error": "unknown tracking id",
			})
		case errors.Is(err, job.ErrStoreUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error": "service temporarily unavailable, retry later",
			})
		default:
			h.logger.Error("Status lookup failed",
				slog.String("tracking_id", trackingID),
				slog.String("error", err.Error()),
			)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "failed to look up job",
			})
		}
		return
	}

	c.JSON(http.StatusOK, view)
}
