// Package config loads courier.yaml.
//
// Every value is optional. Defaults fills what the file leaves out, and
// command-line flags override whatever the file sets.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/pithecene-io/courier/mailbox"
	"github.com/pithecene-io/courier/policy"
)

// Provider types.
const (
	ProviderBotAPI = "botapi"
	ProviderStatic = "static"
)

// Archive backends. An empty backend disables the archive.
const (
	BackendFS = "fs"
	BackendS3 = "s3"
)

// Adapter types. An empty type disables notifications.
const (
	AdapterWebhook = "webhook"
	AdapterRedis   = "redis"
)

// Config represents a courier.yaml configuration file.
type Config struct {
	Mailbox   MailboxConfig   `yaml:"mailbox"`
	Requester RequesterConfig `yaml:"requester"`
	Responder ResponderConfig `yaml:"responder"`
	Provider  ProviderConfig  `yaml:"provider"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Adapter   AdapterConfig   `yaml:"adapter"`
	Log       LogConfig       `yaml:"log"`
}

// MailboxConfig locates the shared directory and its name prefixes.
type MailboxConfig struct {
	Dir      string           `yaml:"dir"`
	Prefixes mailbox.Prefixes `yaml:"prefixes"`
}

// RequesterConfig tunes the client side of an exchange.
type RequesterConfig struct {
	PollInterval Duration `yaml:"poll_interval"`
	Timeout      Duration `yaml:"timeout"`
	Attempts     int      `yaml:"attempts"`
	// Backoff is the wait before the second attempt; later waits double.
	Backoff   Duration `yaml:"backoff"`
	ReadRetry Retry    `yaml:"read_retry"`
}

// AttemptPolicy returns the outer timeout-retry policy.
func (r RequesterConfig) AttemptPolicy() policy.Retry {
	return policy.Retry{
		MaxAttempts: r.Attempts,
		BaseDelay:   r.Backoff.Duration,
		Multiplier:  policy.DefaultMultiplier,
	}
}

// Retry mirrors policy.Retry in YAML form.
type Retry struct {
	Attempts   int      `yaml:"attempts"`
	Backoff    Duration `yaml:"backoff"`
	Multiplier float64  `yaml:"multiplier"`
}

// Policy converts r into a policy.Retry.
func (r Retry) Policy() policy.Retry {
	return policy.Retry{
		MaxAttempts: r.Attempts,
		BaseDelay:   r.Backoff.Duration,
		Multiplier:  r.Multiplier,
	}
}

// ResponderConfig tunes the responder loop and its sweeper.
type ResponderConfig struct {
	ScanInterval      Duration `yaml:"scan_interval"`
	MaxConcurrent     int      `yaml:"max_concurrent"`
	HandlerTimeout    Duration `yaml:"handler_timeout"`
	Watch             bool     `yaml:"watch"`
	HeartbeatInterval Duration `yaml:"heartbeat_interval"`
	NoHeartbeat       bool     `yaml:"no_heartbeat"`
	SweepInterval     Duration `yaml:"sweep_interval"`
	Retention         Duration `yaml:"retention"`
	NoSweep           bool     `yaml:"no_sweep"`
	ReadRetry         Retry    `yaml:"read_retry"`
}

// ProviderConfig selects the profile source.
type ProviderConfig struct {
	Type     string   `yaml:"type"`
	BaseURL  string   `yaml:"base_url"`
	Token    string   `yaml:"token"`
	Timeout  Duration `yaml:"timeout"`
	Fixtures string   `yaml:"fixtures"`
}

// ArchiveConfig holds lookup archive settings.
type ArchiveConfig struct {
	Dataset     string `yaml:"dataset"`
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// AdapterConfig holds lookup-completed notification settings.
type AdapterConfig struct {
	Type      string            `yaml:"type"`
	URL       string            `yaml:"url"`
	Channel   string            `yaml:"channel,omitempty"`
	Headers   map[string]string `yaml:"headers,omitempty"`
	Timeout   Duration          `yaml:"timeout,omitempty"`
	Retries   *int              `yaml:"retries,omitempty"`
	ResultTTL Duration          `yaml:"result_ttl,omitempty"` // redis only
}

// LogConfig sets the minimum log level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// Dur is shorthand for building a Duration literal.
func Dur(d time.Duration) Duration { return Duration{Duration: d} }

// UnmarshalYAML parses a duration string like "100ms" or "1m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML renders the duration in its string form.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// Defaults returns a Config with every default applied.
func Defaults() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults.
// Explicit values, including retries: 0, are kept.
func (c *Config) ApplyDefaults() {
	if c.Mailbox.Prefixes.Request == "" {
		c.Mailbox.Prefixes.Request = mailbox.DefaultRequestPrefix
	}
	if c.Mailbox.Prefixes.Response == "" {
		c.Mailbox.Prefixes.Response = mailbox.DefaultResponsePrefix
	}

	rq := &c.Requester
	setDur(&rq.PollInterval, 100*time.Millisecond)
	setDur(&rq.Timeout, 30*time.Second)
	if rq.Attempts == 0 {
		rq.Attempts = 3
	}
	setDur(&rq.Backoff, policy.DefaultBaseDelay)
	rq.ReadRetry.applyDefaults()

	rs := &c.Responder
	setDur(&rs.ScanInterval, 100*time.Millisecond)
	if rs.MaxConcurrent == 0 {
		rs.MaxConcurrent = 500
	}
	setDur(&rs.HandlerTimeout, 30*time.Second)
	setDur(&rs.HeartbeatInterval, 5*time.Second)
	setDur(&rs.SweepInterval, 30*time.Second)
	setDur(&rs.Retention, 90*time.Second)
	rs.ReadRetry.applyDefaults()

	if c.Provider.Type == "" {
		c.Provider.Type = ProviderBotAPI
	}
	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = "https://api.telegram.org"
	}
	setDur(&c.Provider.Timeout, 10*time.Second)

	if c.Archive.Dataset == "" {
		c.Archive.Dataset = "courier"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (r *Retry) applyDefaults() {
	if r.Attempts == 0 {
		r.Attempts = policy.DefaultMaxAttempts
	}
	setDur(&r.Backoff, policy.DefaultBaseDelay)
	if r.Multiplier == 0 {
		r.Multiplier = policy.DefaultMultiplier
	}
}

func setDur(d *Duration, def time.Duration) {
	if d.Duration == 0 {
		d.Duration = def
	}
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if err := c.Mailbox.Prefixes.Validate(); err != nil {
		add("mailbox.prefixes: %w", err)
	}

	rq := c.Requester
	if rq.PollInterval.Duration <= 0 {
		add("requester.poll_interval must be positive")
	}
	if rq.Timeout.Duration < rq.PollInterval.Duration {
		add("requester.timeout %s is shorter than poll_interval %s", rq.Timeout, rq.PollInterval)
	}
	if err := rq.AttemptPolicy().Validate(); err != nil {
		add("requester.attempts: %w", err)
	}
	if err := rq.ReadRetry.Policy().Validate(); err != nil {
		add("requester.read_retry: %w", err)
	}

	rs := c.Responder
	if rs.ScanInterval.Duration <= 0 {
		add("responder.scan_interval must be positive")
	}
	if rs.MaxConcurrent < 1 {
		add("responder.max_concurrent must be >= 1, got %d", rs.MaxConcurrent)
	}
	if rs.HandlerTimeout.Duration <= 0 {
		add("responder.handler_timeout must be positive")
	}
	if rs.Retention.Duration <= 0 {
		add("responder.retention must be positive")
	}
	if err := rs.ReadRetry.Policy().Validate(); err != nil {
		add("responder.read_retry: %w", err)
	}

	switch c.Provider.Type {
	case ProviderBotAPI:
		// The token is checked when the provider is built so that
		// requester-only commands work without one.
	case ProviderStatic:
		if c.Provider.Fixtures == "" {
			add("provider.fixtures is required for the static provider")
		}
	default:
		add("provider.type must be %q or %q, got %q", ProviderBotAPI, ProviderStatic, c.Provider.Type)
	}

	switch c.Archive.Backend {
	case "":
	case BackendFS:
		if c.Archive.Path == "" {
			add("archive.path is required for the fs backend")
		}
	case BackendS3:
		if c.Archive.Path == "" {
			add("archive.path (bucket/prefix) is required for the s3 backend")
		}
	default:
		add("archive.backend must be %q or %q, got %q", BackendFS, BackendS3, c.Archive.Backend)
	}

	switch c.Adapter.Type {
	case "":
	case AdapterWebhook, AdapterRedis:
		if c.Adapter.URL == "" {
			add("adapter.url is required for the %s adapter", c.Adapter.Type)
		}
		if c.Adapter.Retries != nil && *c.Adapter.Retries < 0 {
			add("adapter.retries must be >= 0, got %d", *c.Adapter.Retries)
		}
	default:
		add("adapter.type must be %q or %q, got %q", AdapterWebhook, AdapterRedis, c.Adapter.Type)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		add("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}

	return errors.Join(errs...)
}
