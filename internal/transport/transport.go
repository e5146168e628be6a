// Package transport delivers fully-formed messages through an upstream
// provider and classifies provider failures.
//
// Every Sender returns either a provider message id or an *Error whose Kind
// tells the dispatcher which FAILED reason to record. Senders never retry;
// a timed-out call is a failure for the current pass.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/ignite/notify-dispatch/internal/domain"
)

// Message is a rendered email ready for delivery.
type Message struct {
	To        string
	FromName  string
	FromEmail string
	ReplyTo   string
	Subject   string
	HTML      string
	// Tags are attached as provider metadata where supported.
	Tags map[string]string
}

// Result is a provider-accepted send.
type Result struct {
	MessageID string
	Provider  string
}

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, msg Message) (Result, error)
	Name() string
}

// ErrorKind classifies provider failures.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindTimeout
	KindRejected
	KindAuthFailure
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindRejected:
		return "rejected"
	case KindAuthFailure:
		return "auth-failure"
	}
	return "unknown"
}

// Reason maps the kind to the FAILED reason recorded on the log row.
func (k ErrorKind) Reason() domain.Reason {
	switch k {
	case KindTimeout:
		return domain.ReasonProviderTimeout
	case KindRejected:
		return domain.ReasonProviderRejected
	case KindAuthFailure:
		return domain.ReasonProviderAuth
	}
	return domain.ReasonProviderError
}

// Error is a classified provider failure.
type Error struct {
	Kind     ErrorKind
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf classifies any error returned by a Sender. Context deadlines and
// network timeouts are KindTimeout even when the sender did not wrap them.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	return KindUnknown
}

func classified(provider string, kind ErrorKind, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Provider: provider, Err: err}
}

func formatFrom(name, email string) string {
	if name == "" {
		return email
	}
	return fmt.Sprintf("%s <%s>", name, email)
}
