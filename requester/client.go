// Package requester implements the client side of the mailbox exchange per
// CONTRACT_MAILBOX.md.
//
// A Lookup writes one request file, polls for the matching response file,
// consumes it and cleans up both files. Only timeouts are retried; decode
// and I/O failures are returned immediately.
package requester

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pithecene-io/courier/iox"
	"github.com/pithecene-io/courier/log"
	"github.com/pithecene-io/courier/mailbox"
	"github.com/pithecene-io/courier/metrics"
	"github.com/pithecene-io/courier/policy"
	"github.com/pithecene-io/courier/types"
)

// Defaults per CONTRACT_MAILBOX.md.
const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultTimeout      = 30 * time.Second
)

// Config configures a Client.
type Config struct {
	// Dir is the mailbox shared with the responder (required).
	Dir *mailbox.Dir
	// PollInterval is the wait between response checks (default 100ms).
	PollInterval time.Duration
	// Timeout bounds one attempt (default 30s).
	Timeout time.Duration
	// Attempts is the outer retry policy, applied to timeouts only
	// (default policy.Default()).
	Attempts policy.Retry
	// ReadRetry governs request writes and reads of a response file that
	// exists (default policy.Default()).
	ReadRetry policy.Retry
	// Logger receives cleanup failures and attempt diagnostics (default nop).
	Logger *log.Logger
	// Metrics is optional.
	Metrics *metrics.Collector
}

// readFile and submitRequest are replaced in tests to simulate transient
// I/O failures.
var (
	readFile      = os.ReadFile
	submitRequest = (*mailbox.Dir).SubmitRequest
)

// Client performs lookups through the mailbox.
// Safe for concurrent use; each Lookup uses its own correlation id.
type Client struct {
	dir          *mailbox.Dir
	pollInterval time.Duration
	timeout      time.Duration
	attempts     policy.Retry
	readRetry    policy.Retry
	logger       *log.Logger
	metrics      *metrics.Collector
}

// New validates cfg, applies defaults and returns a Client.
func New(cfg Config) (*Client, error) {
	if cfg.Dir == nil {
		return nil, errors.New("requester requires a mailbox")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PollInterval > cfg.Timeout {
		return nil, fmt.Errorf("poll interval %s exceeds timeout %s", cfg.PollInterval, cfg.Timeout)
	}
	if cfg.Attempts == (policy.Retry{}) {
		cfg.Attempts = policy.Default()
	}
	if cfg.ReadRetry == (policy.Retry{}) {
		cfg.ReadRetry = policy.Default()
	}
	if err := cfg.Attempts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid attempts policy: %w", err)
	}
	if err := cfg.ReadRetry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid read retry policy: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}

	return &Client{
		dir:          cfg.Dir,
		pollInterval: cfg.PollInterval,
		timeout:      cfg.Timeout,
		attempts:     cfg.Attempts,
		readRetry:    cfg.ReadRetry,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
	}, nil
}

// NormalizeQuery trims the query and rejects values that cannot be framed.
func NormalizeQuery(query string) (string, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return "", &types.ValidationError{Field: "query", Msg: "empty"}
	}
	if strings.ContainsAny(q, "\r\n") {
		return "", &types.ValidationError{Field: "query", Msg: "contains a line break"}
	}
	return q, nil
}

// Lookup resolves query through the responder.
//
// A provider failure is a successful exchange: it comes back as a result
// whose Error is set, with a nil error.
//
// Errors:
//   - *types.ValidationError: query cannot be framed (no file written)
//   - *types.ExhaustedError wrapping *types.TimeoutError: every attempt timed out
//   - *types.ProtocolError: response did not parse (file removed)
//   - *types.TransientIOError: request write or response read kept failing
//   - ctx.Err() wrapped: canceled while waiting
func (c *Client) Lookup(ctx context.Context, query string) (*types.LookupResult, error) {
	q, err := NormalizeQuery(query)
	if err != nil {
		return nil, err
	}
	c.metrics.IncLookupStarted()

	var result *types.LookupResult
	err = c.attempts.Do(ctx, func(attempt int) error {
		res, err := c.exchange(ctx, q, attempt)
		if err == nil {
			result = res
			return nil
		}
		if errors.Is(err, types.ErrTimeout) {
			return err
		}
		return policy.Permanent(err)
	})
	if err != nil {
		var exhausted *types.ExhaustedError
		if errors.As(err, &exhausted) {
			c.metrics.IncLookupExhausted()
		}
		return nil, err
	}
	return result, nil
}

// exchange runs one attempt: submit, poll, consume.
func (c *Client) exchange(ctx context.Context, query string, attempt int) (*types.LookupResult, error) {
	id := mailbox.NewCorrelationID()
	requestPath, responsePath, err := c.submit(ctx, id, query)
	if err != nil {
		return nil, err
	}
	c.metrics.IncAttempt()

	fields := map[string]any{"correlation_id": id, "attempt": attempt}
	c.logger.Debug("request submitted", fields)

	if err := c.await(ctx, responsePath); err != nil {
		c.cleanup(requestPath, fields)
		if errors.Is(err, types.ErrTimeout) {
			c.metrics.IncTimeout()
			c.logger.Warn("lookup attempt timed out", fields)
			return nil, &types.TimeoutError{CorrelationID: id, Waited: c.timeout}
		}
		return nil, err
	}

	data, err := c.readResponse(ctx, responsePath)
	if err != nil {
		c.metrics.IncReadError()
		c.cleanup(requestPath, fields)
		return nil, err
	}
	c.metrics.IncResponseReceived()

	result, decodeErr := mailbox.DecodeResponse(data)
	c.cleanup(requestPath, fields)
	c.cleanup(responsePath, fields)
	if decodeErr != nil {
		c.metrics.IncDecodeError()
		return nil, &types.ProtocolError{Path: responsePath, Err: decodeErr}
	}
	return result, nil
}

// await polls for path until it exists, the attempt times out or ctx ends.
// Returns types.ErrTimeout on timeout.
func (c *Client) await(ctx context.Context, path string) error {
	deadline := time.NewTimer(c.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		found, err := mailbox.Exists(path)
		if err != nil {
			// Unreadable entry; the next poll or the deadline settles it
			c.logger.Debug("response stat failed", map[string]any{"path": path, "error": err.Error()})
		}
		if found {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("lookup canceled: %w", ctx.Err())
		case <-deadline.C:
			return types.ErrTimeout
		case <-ticker.C:
		}
	}
}

// submit writes the request file under the read retry policy.
// Framing errors are not retried.
func (c *Client) submit(ctx context.Context, id, query string) (requestPath, responsePath string, err error) {
	err = c.readRetry.Do(ctx, func(int) error {
		var err error
		requestPath, responsePath, err = submitRequest(c.dir, id, query)
		if errors.Is(err, types.ErrValidation) {
			return policy.Permanent(err)
		}
		return err
	})
	var exhausted *types.ExhaustedError
	if errors.As(err, &exhausted) {
		err = exhausted.Err
	}
	return requestPath, responsePath, err
}

// readResponse reads path under the read retry policy.
func (c *Client) readResponse(ctx context.Context, path string) ([]byte, error) {
	var data []byte
	err := c.readRetry.Do(ctx, func(int) error {
		var err error
		data, err = readFile(path)
		return err
	})
	if err == nil {
		return data, nil
	}

	var exhausted *types.ExhaustedError
	if errors.As(err, &exhausted) {
		err = exhausted.Err
	}
	return nil, &types.TransientIOError{Op: "read", Path: path, Err: err}
}

// cleanup removes path, logging failures without returning them.
func (c *Client) cleanup(path string, fields map[string]any) {
	if err := iox.RemoveIfExists(path); err != nil {
		c.metrics.IncCleanupFailure()
		c.logger.Warn("cleanup failed", mergeFields(fields, map[string]any{
			"path":  path,
			"error": err.Error(),
		}))
	}
}

func mergeFields(base, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
