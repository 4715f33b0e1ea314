package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuongbtq/file-pipeline/internal/config"
	"github.com/cuongbtq/file-pipeline/internal/intake"
	"github.com/cuongbtq/file-pipeline/internal/job"
	"github.com/cuongbtq/file-pipeline/internal/job/jobtest"
	"github.com/cuongbtq/file-pipeline/internal/status"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*gin.Engine, *jobtest.MemStore, *jobtest.MemQueue) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	base := t.TempDir()
	storage := config.StorageConfig{
		StagingDir:   filepath.Join(base, "staging"),
		ProcessedDir: filepath.Join(base, "processed"),
		FailedDir:    filepath.Join(base, "failed"),
	}
	require.NoError(t, storage.EnsureDirs())

	limits := config.UploadConfig{
		MaxFileSize:       1 << 20,
		AllowedTypes:      []string{"text/csv", "text/plain"},
		AllowedExtensions: []string{"csv", "txt"},
	}

	store := jobtest.NewMemStore()
	queue := jobtest.NewMemQueue(16)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := NewUploadHandler(&Dependencies{
		Logger: logger,
		Intake: intake.NewService(store, queue, storage, limits, logger),
		Status: status.NewService(store, logger),
	})

	r := gin.New()
	r.POST("/api/v1/uploads", h.Upload)
	r.GET("/api/v1/uploads/:tracking_id", h.GetStatus)
	return r, store, queue
}

// multipartBody builds a multipart form with one "file" part carrying the
// given filename, declared content type and body.
func multipartBody(t *testing.T, fieldName, fileName, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="`+fieldName+`"; filename="`+fileName+`"`)
	header.Set("Content-Type", contentType)

	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return &buf, w.FormDataContentType()
}

func TestUploadHandler_Upload(t *testing.T) {
	router, store, queue := newTestRouter(t)

	body, contentType := multipartBody(t, "file", "data.csv", "text/csv", []byte("a,b\n1,2\n"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	trackingID := resp["tracking_id"]
	require.NotEmpty(t, trackingID)

	stored, err := store.Get(context.Background(), trackingID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusQueued, stored.Status)
	assert.Equal(t, 1, queue.Len())
}

func TestUploadHandler_Upload_NoFileField(t *testing.T) {
	router, store, _ := newTestRouter(t)

	body, contentType := multipartBody(t, "attachment", "data.csv", "text/csv", []byte("a,b\n"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "no file was uploaded")
	assert.Equal(t, 0, store.Len())
}

func TestUploadHandler_Upload_Rejected(t *testing.T) {
	router, store, queue := newTestRouter(t)

	body, contentType := multipartBody(t, "file", "data.exe", "text/csv", []byte("MZ"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "file extension is not allowed")
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, 0, queue.Len())
}

func TestUploadHandler_GetStatus(t *testing.T) {
	router, store, _ := newTestRouter(t)

	r := job.NewRecord("job_abc", "/data/staging/job_abc.csv", time.Now().UTC())
	require.NoError(t, store.Create(context.Background(), r))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/uploads/job_abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var view map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "job_abc", view["tracking_id"])
	assert.Equal(t, "queued", view["status"])
	assert.NotContains(t, view, "file_path")
}

func TestUploadHandler_GetStatus_NotFound(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/uploads/job_missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown tracking id")
}

func TestUploadHandler_GetStatus_BlankID(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/uploads/%20", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "tracking_id is required")
}
