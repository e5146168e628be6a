package worker

import (
	"errors"

	"github.com/zeebo/errs"
)

// FatalError classifies failures that abort a unit of work: the store is
// unreachable, the campaign does not exist, the double-send guard tripped,
// or recipient resolution failed outright. Policy denials and provider
// failures are never fatal; they are recorded per recipient.
var FatalError = errs.Class("dispatch")

var (
	// ErrIdentityUnavailable means no recipient could be looked up because
	// the identity provider is unreachable.
	ErrIdentityUnavailable = errors.New("identity lookup unavailable for every recipient")

	// ErrRecipientNotFound means a single-recipient event named a user that
	// no longer resolves. It is not an attempt and nothing is logged.
	ErrRecipientNotFound = errors.New("recipient could not be resolved")
)
