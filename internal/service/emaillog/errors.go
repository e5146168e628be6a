package emaillog

import "errors"

// Sentinel errors for the email log service layer.
var (
	ErrNotFound       = errors.New("email log not found")
	ErrMissingMessage = errors.New("message id is required")
	ErrInvalidStatus  = errors.New("log status is not a provider event")
)
