package shared

import "errors"

// Sentinel errors shared by the domain packages and mapped to HTTP statuses by httpx.
var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates the request failed input validation.
	ErrValidation = errors.New("validation failed")
	// ErrForbidden indicates the actor lacks the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrUnavailable indicates the backing store could not serve the request.
	ErrUnavailable = errors.New("storage unavailable")
	// ErrConflict indicates a duplicate or already processed request.
	ErrConflict = errors.New("conflict")
)

// ValidationError reports malformed or missing input; nothing was written.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// StorageError reports that the backing store failed or rejected a write.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "storage " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is matches ErrUnavailable.
func (e *StorageError) Is(target error) bool {
	return target == ErrUnavailable
}
