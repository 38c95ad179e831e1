// Package httpclient builds the one retry-aware HTTP session every
// provider and backend shares: bounded retries with exponential backoff,
// a fixed User-Agent, and honouring a 429 response's Retry-After header
// (capped at 60s) before the next attempt.
package httpclient

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	maxRetryAfter = 60 * time.Second
	userAgent     = "sublarr/1.0"
)

// Options configures a shared session.
type Options struct {
	MaxRetries      int
	Timeout         time.Duration
	BackoffFactor   float64
	RetryableStatus map[int]struct{}
}

// DefaultOptions retries on {429,500,502,503,504} and network errors with
// exponential backoff.
func DefaultOptions() Options {
	return Options{
		MaxRetries:    5,
		Timeout:       30 * time.Second,
		BackoffFactor: 1.0,
		RetryableStatus: map[int]struct{}{
			429: {}, 500: {}, 502: {}, 503: {}, 504: {},
		},
	}
}

// New builds a *http.Client-compatible session. Callers use it exactly like
// an *http.Client via StandardClient, or call Do directly for retryablehttp's
// richer request type.
func New(opts Options) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = opts.MaxRetries
	c.HTTPClient.Timeout = opts.Timeout
	c.Logger = nil // the engine logs at the call site, not inside the transport

	c.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err != nil {
			return true, nil // network error: retry
		}
		if resp == nil {
			return false, nil
		}
		_, retryable := opts.RetryableStatus[resp.StatusCode]
		return retryable, nil
	}

	c.Backoff = func(min, max time.Duration, attemptNum int, resp *http.Response) time.Duration {
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			if d, ok := retryAfterDelay(resp); ok {
				return d
			}
		}
		// exponential backoff: min * 2^attempt * factor, capped at max
		backoff := time.Duration(float64(min) * math.Pow(2, float64(attemptNum)) * opts.BackoffFactor)
		if backoff > max {
			return max
		}
		return backoff
	}

	return c
}

// retryAfterDelay parses a Retry-After header (seconds form) and caps it
// at 60s.
func retryAfterDelay(resp *http.Response) (time.Duration, bool) {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0, false
	}
	d := time.Duration(secs) * time.Second
	if d > maxRetryAfter {
		d = maxRetryAfter
	}
	return d, true
}

// NewRequest builds a retryablehttp request with the shared User-Agent set,
// matching every provider/backend call site's needs.
func NewRequest(ctx context.Context, method, url string, body []byte) (*retryablehttp.Request, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	return req, nil
}
