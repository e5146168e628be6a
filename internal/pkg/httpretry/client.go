// Package httpretry wraps outbound HTTP calls (identity lookups, SNS
// subscription confirmation) with bounded retries on transient failures.
package httpretry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/ignite/notify-dispatch/internal/pkg/logger"
)

// HTTPDoer executes HTTP requests. *http.Client and *RetryClient both
// satisfy it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

const (
	defaultRetries = 3
	defaultBase    = 500 * time.Millisecond
	defaultMax     = 10 * time.Second
)

// RetryClient retries requests that failed in a way a second attempt can
// fix: transport errors, 429 and 5xx gateway responses.
type RetryClient struct {
	client     HTTPDoer
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	log        *logger.Logger
}

// NewRetryClient wraps client, or a 30s-timeout http.Client when nil.
// maxRetries counts attempts after the first and defaults to 3.
func NewRetryClient(client HTTPDoer, maxRetries int) *RetryClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if maxRetries <= 0 {
		maxRetries = defaultRetries
	}
	return &RetryClient{
		client:     client,
		maxRetries: maxRetries,
		baseDelay:  defaultBase,
		maxDelay:   defaultMax,
		log:        logger.Named("httpretry"),
	}
}

// WithBackoff overrides the base and maximum retry delays.
func (rc *RetryClient) WithBackoff(base, max time.Duration) *RetryClient {
	rc.baseDelay = base
	rc.maxDelay = max
	return rc
}

// Do sends req, retrying while the failure is transient and the request
// can be replayed. A request with a body is only replayable when GetBody
// is set (http.NewRequest does this for in-memory bodies). The last
// retryable response is returned unread so the caller sees the status.
func (rc *RetryClient) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	replayable := req.Body == nil || req.Body == http.NoBody || req.GetBody != nil

	for attempt := 0; ; attempt++ {
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("httpretry: rewind body: %w", err)
			}
			req.Body = body
		}

		resp, err := rc.client.Do(req)
		last := attempt >= rc.maxRetries || !replayable
		if !retryable(resp, err) || ctx.Err() != nil || last {
			return resp, err
		}

		wait := rc.backoff(attempt + 1)
		if resp != nil {
			if after, ok := retryAfter(resp, rc.maxDelay); ok {
				wait = after
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}
		rc.log.Debug("retrying request",
			"attempt", attempt+1, "max_retries", rc.maxRetries, "method", req.Method,
			"host", req.URL.Host, "status", statusOf(resp), "error", err, "wait", wait.String())

		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// retryable reports whether a second attempt could succeed.
func retryable(resp *http.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// backoff doubles from baseDelay up to maxDelay and keeps a random half
// of it, so synchronized callers spread out without ever waiting zero.
func (rc *RetryClient) backoff(retry int) time.Duration {
	d := rc.baseDelay
	for i := 1; i < retry && d < rc.maxDelay; i++ {
		d *= 2
	}
	if d > rc.maxDelay {
		d = rc.maxDelay
	}
	half := d / 2
	if half <= 0 {
		return d
	}
	return half + time.Duration(rand.Int63n(int64(half)+1))
}

// retryAfter reads a Retry-After header given in seconds, capped at max.
func retryAfter(resp *http.Response, max time.Duration) (time.Duration, bool) {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0, false
	}
	d := time.Duration(secs) * time.Second
	if d > max {
		d = max
	}
	return d, true
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}
