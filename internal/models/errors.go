package models

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when a session id is unknown and creation is not allowed.
	ErrSessionNotFound = errors.New("session not found")
	// ErrCallbackAlreadySent is observed by the loser of a concurrent dispatch.
	ErrCallbackAlreadySent = errors.New("callback already sent")
)

// ValidationError describes a malformed inbound envelope.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
