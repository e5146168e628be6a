package preference

import "errors"

// Sentinel errors for the preference service layer.
var (
	ErrNotFound      = errors.New("preference not found")
	ErrMissingUserID = errors.New("user id is required")
)
