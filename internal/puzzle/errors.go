package puzzle

import (
	"errors"
	"fmt"
)

var (
	// ErrPersistence wraps a save failure that outlasted the retry budget
	ErrPersistence = errors.New("failed to persist puzzle")
	ErrNotFound    = errors.New("puzzle not found")
	ErrClosed      = errors.New("puzzle service is closed")
)

// ValidationError rejects a request before any job is created
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
