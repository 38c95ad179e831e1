package events

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/sublarr/sublarr/internal/httpclient"
	"github.com/sublarr/sublarr/internal/store"
)

// autoSkipThreshold is the consecutive-failure count at which a webhook
// is auto-skipped. The row itself is untouched, so operator
// intervention resumes delivery.
const autoSkipThreshold = 10

// webhookBody is the outbound payload shape:
// {event_name, version: 1, timestamp, data}.
type webhookBody struct {
	EventName string         `json:"event_name"`
	Version   int            `json:"version"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// WebhookDispatcher POSTs a JSON body to every enabled webhook bound to an
// event, with optional HMAC-SHA256 signing. Retry and backoff on 429/5xx
// are handled by the shared internal/httpclient session, per webhook's
// own retry-count/timeout fields. Implements Dispatcher.
type WebhookDispatcher struct {
	store *store.Store
	log   zerolog.Logger
}

// NewWebhookDispatcher builds a dispatcher. Each delivery gets its own
// internal/httpclient session, since retry count and timeout are
// per-webhook fields rather than process-wide settings.
func NewWebhookDispatcher(st *store.Store, log zerolog.Logger) *WebhookDispatcher {
	return &WebhookDispatcher{
		store: st,
		log:   log.With().Str("component", "webhook_dispatcher").Logger(),
	}
}

// Dispatch loads every enabled webhook bound to name (exact match or the
// "*" wildcard) and delivers to each, skipping any that has reached
// autoSkipThreshold consecutive failures.
func (d *WebhookDispatcher) Dispatch(name string, payload map[string]any) {
	hooks, err := d.store.WebhooksForEvent(name)
	if err != nil {
		d.log.Error().Err(err).Str("event", name).Msg("failed to load webhooks for event")
		return
	}
	for _, wh := range hooks {
		if wh.ConsecutiveFailures >= autoSkipThreshold {
			d.log.Debug().Str("webhook", wh.Name).Msg("webhook auto-skipped after repeated failures")
			continue
		}
		d.deliver(wh, name, payload)
	}
}

func (d *WebhookDispatcher) deliver(wh store.WebhookConfig, eventName string, payload map[string]any) {
	body, err := json.Marshal(webhookBody{
		EventName: eventName,
		Version:   1,
		Timestamp: time.Now().UTC(),
		Data:      payload,
	})
	if err != nil {
		d.log.Error().Err(err).Str("webhook", wh.Name).Msg("failed to marshal webhook body")
		return
	}

	timeout := time.Duration(wh.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retries := wh.RetryCount
	if retries < 0 {
		retries = 0
	}

	opts := httpclient.DefaultOptions()
	opts.MaxRetries = retries
	opts.Timeout = timeout
	client := httpclient.New(opts)

	started := time.Now()
	status, err := d.attempt(context.Background(), client, wh, body)

	success := err == nil
	errText := ""
	if err != nil {
		errText = err.Error()
	}
	if recErr := d.store.RecordWebhookOutcome(wh.ID, eventName, success, status, errText, time.Since(started).Milliseconds(), started); recErr != nil {
		d.log.Error().Err(recErr).Str("webhook", wh.Name).Msg("failed to record webhook outcome")
	}
}

// attempt sends the HTTP POST through the shared retryablehttp session
// (retries/backoff on 429/5xx handled there), computing the HMAC signature
// over the raw body bytes actually sent. The signature stays valid
// across retries because retryablehttp buffers and resends the same body
// on each attempt.
func (d *WebhookDispatcher) attempt(ctx context.Context, client *retryablehttp.Client, wh store.WebhookConfig, body []byte) (int, error) {
	req, err := httpclient.NewRequest(ctx, http.MethodPost, wh.URL, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if wh.Secret != "" {
		req.Header.Set("X-Sublarr-Signature", "sha256="+signHMAC(wh.Secret, body))
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp.StatusCode, nil
	}
	return resp.StatusCode, fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
}

func signHMAC(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
