package intake

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cuongbtq/file-pipeline/internal/job"
	"github.com/gabriel-vasile/mimetype"
)

// TransportCode is the upload outcome reported by the transport layer.
type TransportCode int

const (
	TransportOK TransportCode = iota
	TransportPartial
	TransportNoFile
	TransportTooLarge
	TransportWriteFailed
)

func (c TransportCode) message() string {
	switch c {
	case TransportPartial:
		return "the file was only partially uploaded"
	case TransportNoFile:
		return "no file was uploaded"
	case TransportTooLarge:
		return "the uploaded file exceeds the allowed size"
	case TransportWriteFailed:
		return "failed to write the uploaded file to disk"
	default:
		return "unknown upload error"
	}
}

// validate applies the intake acceptance rules in order: transport outcome,
// size cap, extension allow-list, declared content type, then a magic-byte
// sniff of the actual bytes. A file whose content does not match an allowed
// type is rejected even when its declared type and extension look right.
func (s *Service) validate(file ReceivedFile) error {
	if file.Code != TransportOK {
		return job.NewValidationError(file.Code.message())
	}

	if file.Size > s.limits.MaxFileSize {
		return job.NewValidationError("file exceeds the maximum allowed size")
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(file.Name), "."))
	if ext == "" || !s.extensionAllowed(ext) {
		return job.NewValidationError("file extension is not allowed")
	}

	if !s.typeAllowed(file.ContentType) {
		return job.NewValidationError("file type is not allowed")
	}

	detected, err := mimetype.DetectFile(file.TmpPath)
	if err != nil {
		return fmt.Errorf("failed to inspect uploaded file: %w", err)
	}
	if !s.detectedAllowed(detected) {
		return job.NewValidationError("file content does not match an allowed type")
	}

	return nil
}

func (s *Service) extensionAllowed(ext string) bool {
	for _, allowed := range s.limits.AllowedExtensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

func (s *Service) typeAllowed(contentType string) bool {
	// Declared types may carry parameters ("text/csv; charset=utf-8").
	declared := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	for _, allowed := range s.limits.AllowedTypes {
		if declared == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

// detectedAllowed matches the sniffed type against the allow-list using the
// detector's own hierarchy, so text/csv content also satisfies text/plain.
func (s *Service) detectedAllowed(detected *mimetype.MIME) bool {
	for _, allowed := range s.limits.AllowedTypes {
		if detected.Is(allowed) {
			return true
		}
	}
	for mt := detected.Parent(); mt != nil; mt = mt.Parent() {
		for _, allowed := range s.limits.AllowedTypes {
			if mt.Is(allowed) {
				return true
			}
		}
	}
	return false
}
