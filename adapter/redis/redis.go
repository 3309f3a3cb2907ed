// Package redis publishes lookup completions on a Redis channel.
//
// Pub/sub delivery is fire-and-forget, so the adapter can also keep each
// event under a per-correlation key for a short while. A consumer that
// subscribes late, or restarts, can still fetch the outcome of a lookup it
// knows the id of.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pithecene-io/courier/adapter"
)

const (
	// DefaultChannel receives every event.
	DefaultChannel = "courier:lookup_completed"
	// DefaultKeyPrefix prefixes the per-correlation result keys.
	DefaultKeyPrefix = "courier:lookup:"
	// DefaultTimeout bounds one publish round trip.
	DefaultTimeout = 5 * time.Second
)

// Config configures the Redis adapter.
type Config struct {
	// URL is the Redis connection URL (required),
	// redis://[:password@]host:port[/db].
	URL string
	// Channel is the pub/sub channel (default courier:lookup_completed).
	Channel string
	// ResultTTL keeps each event at KeyPrefix+correlation_id for this long.
	// Zero publishes only.
	ResultTTL time.Duration
	// KeyPrefix (default courier:lookup:).
	KeyPrefix string
	// Timeout bounds one attempt (default 5s).
	Timeout time.Duration
	// Retries after the first attempt.
	Retries int
	// Backoff before the first retry (default adapter.DefaultBackoff).
	Backoff time.Duration
}

// Adapter is safe for concurrent use.
type Adapter struct {
	config Config
	client *goredis.Client
}

// New parses the URL and applies defaults. It does not dial; the first
// Publish does.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis adapter requires a URL")
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis adapter: invalid URL: %w", err)
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	if cfg.ResultTTL < 0 {
		return nil, fmt.Errorf("result ttl must be >= 0, got %s", cfg.ResultTTL)
	}
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Adapter{config: cfg, client: goredis.NewClient(opts)}, nil
}

// ResultKey is where the event for correlationID is kept when ResultTTL
// is set.
func (a *Adapter) ResultKey(correlationID string) string {
	return a.config.KeyPrefix + correlationID
}

// Publish sends the event as JSON. With ResultTTL set, the SET and the
// PUBLISH go out in one MULTI so a subscriber notified of an event can
// always read its key.
func (a *Adapter) Publish(ctx context.Context, event *adapter.LookupCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}

	retry := adapter.RetryPolicy(a.config.Retries, a.config.Backoff)
	err = retry.Do(ctx, func(int) error {
		attemptCtx, cancel := context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()

		if a.config.ResultTTL == 0 {
			return a.client.Publish(attemptCtx, a.config.Channel, body).Err()
		}
		_, err := a.client.TxPipelined(attemptCtx, func(p goredis.Pipeliner) error {
			p.Set(attemptCtx, a.ResultKey(event.CorrelationID), body, a.config.ResultTTL)
			p.Publish(attemptCtx, a.config.Channel, body)
			return nil
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (a *Adapter) Close() error {
	return a.client.Close()
}

var _ adapter.Adapter = (*Adapter)(nil)
