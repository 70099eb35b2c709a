package remote

import (
	"errors"
	"fmt"
)

// Sentinel errors for status codes callers branch on.
var (
	ErrNotFound     = errors.New("remote: not found")
	ErrUnauthorized = errors.New("remote: unauthorized")
)

// TransportError wraps network-level failures (connection refused, timeout,
// bad gateway). These are retried; validation failures are not.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("remote %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ValidationError carries a 4xx rejection from the server. The push that
// caused it must not be blindly retried.
type ValidationError struct {
	Status  int
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("remote: server rejected request (%d): %s", e.Status, e.Message)
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
