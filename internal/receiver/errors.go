package receiver

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when the shared secret does not match.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrBadRequest is matched by every *ValidationError.
	ErrBadRequest = errors.New("bad request")
	// ErrInternal covers storage and delivery failures.
	ErrInternal = errors.New("internal error")
)

// ValidationError names the payload field that was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// Is makes a ValidationError match ErrBadRequest.
func (e *ValidationError) Is(target error) bool {
	return target == ErrBadRequest
}

// internalError wraps cause so it matches ErrInternal while keeping it
// reachable for logging.
func internalError(msg string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrInternal, msg, cause)
}
