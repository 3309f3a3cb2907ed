// Package webhook POSTs lookup completions to an HTTP endpoint.
//
// Every attempt for one event carries the same X-Courier-Correlation-Id, so
// a receiver can drop duplicates caused by retries.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pithecene-io/courier/adapter"
	"github.com/pithecene-io/courier/iox"
	"github.com/pithecene-io/courier/policy"
)

// Request headers set on every POST.
const (
	HeaderEvent         = "X-Courier-Event"
	HeaderCorrelationID = "X-Courier-Correlation-Id"
)

// DefaultTimeout bounds one POST.
const DefaultTimeout = 10 * time.Second

// Config configures the webhook adapter.
type Config struct {
	// URL receives the POSTs (required).
	URL string
	// Headers are added to every request, after the courier headers.
	Headers map[string]string
	// Timeout bounds one attempt (default 10s).
	Timeout time.Duration
	// Retries after the first attempt.
	Retries int
	// Backoff before the first retry (default adapter.DefaultBackoff).
	Backoff time.Duration
}

// Adapter is safe for concurrent use.
type Adapter struct {
	config Config
	client *http.Client
}

// New validates cfg and applies defaults.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook adapter requires a URL")
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Adapter{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// StatusError is a non-2xx reply.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// Retriable reports whether another attempt may succeed: server errors and
// 429 are, other client errors are not.
func (e *StatusError) Retriable() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

// Publish POSTs the event as JSON, retrying network errors and retriable
// statuses.
func (a *Adapter) Publish(ctx context.Context, event *adapter.LookupCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	retry := adapter.RetryPolicy(a.config.Retries, a.config.Backoff)
	err = retry.Do(ctx, func(int) error {
		err := a.post(ctx, event, body)
		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.Retriable() {
			return policy.Permanent(fmt.Errorf("non-retriable error: %w", err))
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	return nil
}

func (a *Adapter) post(ctx context.Context, event *adapter.LookupCompletedEvent, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, event.EventType)
	req.Header.Set(HeaderCorrelationID, event.CorrelationID)
	for k, v := range a.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer iox.DiscardClose(resp.Body)
	_, _ = io.Copy(io.Discard, resp.Body) // keep the connection reusable

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

// Close drops idle connections.
func (a *Adapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

var _ adapter.Adapter = (*Adapter)(nil)
