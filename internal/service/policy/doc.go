// Package policy decides whether a single email may be sent.
//
// Evaluate is a pure function of (email type, preference, settings). It
// reads no clock, no store and no global state, so the same inputs always
// yield the same Decision. Rate limiting is not part of the decision; the
// dispatcher consults the rate limiter only after Evaluate returns Send.
package policy
