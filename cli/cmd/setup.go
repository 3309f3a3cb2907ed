package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/courier/adapter"
	"github.com/pithecene-io/courier/adapter/redis"
	"github.com/pithecene-io/courier/adapter/webhook"
	"github.com/pithecene-io/courier/cli/config"
	courierlode "github.com/pithecene-io/courier/lode"
	"github.com/pithecene-io/courier/log"
	"github.com/pithecene-io/courier/mailbox"
	"github.com/pithecene-io/courier/provider"
	"github.com/pithecene-io/courier/provider/botapi"
	"github.com/pithecene-io/courier/provider/static"
)

// loadConfig resolves --config, then the shared flag overrides, then the
// command's own overrides.
func loadConfig(c *cli.Context, overrides ...func(*config.Config)) (*config.Config, error) {
	shared := func(cfg *config.Config) {
		if c.IsSet("mailbox") {
			cfg.Mailbox.Dir = c.String("mailbox")
		}
		if c.IsSet("log-level") {
			cfg.Log.Level = c.String("log-level")
		}
	}
	return config.Resolve(c.String("config"), append([]func(*config.Config){shared}, overrides...)...)
}

// durationFlag copies a duration flag into d when the flag is set.
func durationFlag(c *cli.Context, name string, d *config.Duration) {
	if c.IsSet(name) {
		d.Duration = c.Duration(name)
	}
}

func openMailbox(cfg *config.Config) (*mailbox.Dir, error) {
	if cfg.Mailbox.Dir == "" {
		return nil, fmt.Errorf("mailbox directory required (--mailbox or mailbox.dir)")
	}
	return mailbox.Open(cfg.Mailbox.Dir, cfg.Mailbox.Prefixes)
}

func newLogger(cfg *config.Config, component string) *log.Logger {
	return log.NewLogger(log.Meta{
		Component: component,
		Mailbox:   cfg.Mailbox.Dir,
		Level:     cfg.Log.Level,
	})
}

// buildProvider returns the configured provider behind the query-length
// guard, plus a close function.
func buildProvider(cfg config.ProviderConfig) (provider.Provider, func() error, error) {
	switch cfg.Type {
	case config.ProviderBotAPI:
		p, err := botapi.New(botapi.Config{
			BaseURL: cfg.BaseURL,
			Token:   cfg.Token,
			Timeout: cfg.Timeout.Duration,
		})
		if err != nil {
			return nil, nil, err
		}
		return provider.NewGuard(p), p.Close, nil

	case config.ProviderStatic:
		p, err := static.Load(cfg.Fixtures)
		if err != nil {
			return nil, nil, err
		}
		return provider.NewGuard(p), func() error { return nil }, nil

	default:
		return nil, nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
}

func s3Config(cfg config.ArchiveConfig) courierlode.S3Config {
	bucket, prefix := courierlode.ParseS3Path(cfg.Path)
	return courierlode.S3Config{
		Bucket:       bucket,
		Prefix:       prefix,
		Region:       cfg.Region,
		Endpoint:     cfg.Endpoint,
		UsePathStyle: cfg.S3PathStyle,
	}
}

// buildArchive returns nil when no archive backend is configured.
func buildArchive(ctx context.Context, cfg config.ArchiveConfig) (*courierlode.Archive, error) {
	switch cfg.Backend {
	case "":
		return nil, nil
	case config.BackendFS:
		return courierlode.NewFSArchive(cfg.Dataset, cfg.Path)
	case config.BackendS3:
		return courierlode.NewS3Archive(ctx, cfg.Dataset, s3Config(cfg))
	default:
		return nil, fmt.Errorf("unknown archive backend: %s (must be fs or s3)", cfg.Backend)
	}
}

// buildAdapter returns nil when no adapter is configured.
func buildAdapter(cfg config.AdapterConfig) (adapter.Adapter, error) {
	retries := adapter.DefaultRetries
	if cfg.Retries != nil {
		retries = *cfg.Retries
	}

	switch cfg.Type {
	case "":
		return nil, nil
	case config.AdapterWebhook:
		return webhook.New(webhook.Config{
			URL:     cfg.URL,
			Headers: cfg.Headers,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
		})
	case config.AdapterRedis:
		return redis.New(redis.Config{
			URL:       cfg.URL,
			Channel:   cfg.Channel,
			ResultTTL: cfg.ResultTTL.Duration,
			Timeout:   cfg.Timeout.Duration,
			Retries:   retries,
		})
	default:
		return nil, fmt.Errorf("unknown adapter type: %s", cfg.Type)
	}
}
