package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrConfigMissing       = errors.New("config entry not found")
	ErrQueueNotFound       = errors.New("queue not found")
	ErrMalformedMessage    = errors.New("malformed queue message: missing fb_id")
	ErrMissingParams       = errors.New("missing required parameters")
	ErrUnsupportedPlatform = errors.New("unsupported platform: must be facebook")
)

// QueryError wraps a database connection or SQL execution failure from the
// expiring-customer query. The cause is preserved for errors.Is / errors.As.
type QueryError struct {
	Cause error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("expired-customer query failed: %v", e.Cause)
}

func (e *QueryError) Unwrap() error { return e.Cause }
