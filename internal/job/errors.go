package job

import "errors"

var (
	// ErrJobNotFound is returned when no record exists for a tracking id.
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidTransition is returned when a status change would move a
	// record backwards or mutate a terminal record.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrStoreUnavailable marks failures reaching the job store or queue.
	// Callers surface these as retryable; they never indicate a bad job.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ValidationError is a user-facing intake rejection. The message is safe to
// return to clients: it never contains server paths.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a ValidationError with the given message.
func NewValidationError(msg string) error {
	return &ValidationError{Message: msg}
}
