package services

import "errors"

var (
	// ErrInvalidInput matches every *ValidationError.
	ErrInvalidInput = errors.New("invalid input")

	ErrInvalidImage    = errors.New("uploaded file is not a supported image")
	ErrImageTooLarge   = errors.New("image exceeds the maximum upload size")
	ErrUploadsDisabled = errors.New("image uploads are not configured")
	ErrImageNotFound   = errors.New("project has no stored image")
)

// ValidationError reports a rejected request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
