package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

func TestRetriesOnServiceUnavailable(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&hits, 1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	opts := DefaultOptions()
	opts.Timeout = 2 * time.Second
	c := New(opts)

	req, err := NewRequest(context.Background(), http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, want 200", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Fatalf("got %d attempts, want 3", got)
	}
}

func TestDoesNotRetryOnNotFound(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(DefaultOptions())
	req, _ := NewRequest(context.Background(), http.MethodGet, srv.URL, nil)
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()

	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("got %d attempts, want 1 (404 is not retryable)", got)
	}
}

func TestRetryAfterCappedAt60Seconds(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusTooManyRequests,
		Header:     http.Header{"Retry-After": []string{strconv.Itoa(3600)}},
	}
	d, ok := retryAfterDelay(resp)
	if !ok {
		t.Fatal("expected a parsed delay")
	}
	if d != maxRetryAfter {
		t.Fatalf("got %s, want capped at %s", d, maxRetryAfter)
	}
}

func TestRetryAfterMissingFallsBackToBackoff(t *testing.T) {
	resp := &http.Response{StatusCode: http.StatusTooManyRequests, Header: http.Header{}}
	if _, ok := retryAfterDelay(resp); ok {
		t.Fatal("expected no delay parsed from a missing header")
	}
}
