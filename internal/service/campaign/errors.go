package campaign

import "errors"

// Sentinel errors for the campaign service layer.
var (
	ErrNotFound          = errors.New("campaign not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAlreadySending    = errors.New("campaign is already sending")
	ErrAlreadySent       = errors.New("campaign has already been sent")
	ErrNotEditable       = errors.New("campaign can only be changed while draft or scheduled")
	ErrNameRequired      = errors.New("name is required")
	ErrSubjectRequired   = errors.New("subject is required")
	ErrInvalidType       = errors.New("campaign type must be a marketing email type")
	ErrNoTargets         = errors.New("campaign must target all users or list user ids")
)
