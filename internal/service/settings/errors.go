package settings

import "errors"

// Sentinel errors for the settings service layer.
var (
	ErrNotFound        = errors.New("settings not found")
	ErrInvalidDailyCap = errors.New("max emails per recipient per day must be between 0 and 100")
	ErrInvalidFrom     = errors.New("from email is required and must be an address")
)
