package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/courier/cli/config"
	"github.com/pithecene-io/courier/metrics"
	"github.com/pithecene-io/courier/responder"
)

// RunCommand returns the responder run command.
// It serves the mailbox until SIGINT or SIGTERM, then lets in-flight
// handlers finish and exits 0.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Serve lookups from the mailbox",
		Flags: append(MailboxFlags(),
			&cli.StringFlag{
				Name:  "provider",
				Usage: "Profile provider: botapi or static (default: provider.type)",
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "Bot API token (default: provider.token)",
				EnvVars: []string{"COURIER_BOT_TOKEN"},
			},
			&cli.StringFlag{
				Name:  "fixtures",
				Usage: "Fixture file for the static provider",
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "Scan on directory change notifications as well as on the tick",
			},
			&cli.IntFlag{
				Name:  "max-concurrent",
				Usage: "Handlers in flight (default 500)",
			},
			&cli.DurationFlag{
				Name:  "scan-interval",
				Usage: "Wait between scans (default 100ms)",
			},
			&cli.BoolFlag{
				Name:  "no-sweep",
				Usage: "Disable orphan reclamation",
			},
		),
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c, func(cfg *config.Config) {
		if c.IsSet("provider") {
			cfg.Provider.Type = c.String("provider")
		}
		if c.IsSet("token") {
			cfg.Provider.Token = c.String("token")
		}
		if c.IsSet("fixtures") {
			cfg.Provider.Fixtures = c.String("fixtures")
		}
		if c.IsSet("watch") {
			cfg.Responder.Watch = c.Bool("watch")
		}
		if c.IsSet("max-concurrent") {
			cfg.Responder.MaxConcurrent = c.Int("max-concurrent")
		}
		durationFlag(c, "scan-interval", &cfg.Responder.ScanInterval)
		if c.IsSet("no-sweep") {
			cfg.Responder.NoSweep = c.Bool("no-sweep")
		}
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	loop, closeAll, err := buildLoop(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeAll()

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := loop.Run(ctx); err != nil {
		return fmt.Errorf("responder failed: %w", err)
	}
	return nil
}

// buildLoop wires the responder from cfg. The returned func releases the
// provider; the loop itself closes the adapter on shutdown.
func buildLoop(ctx context.Context, cfg *config.Config) (*responder.Loop, func(), error) {
	dir, err := openMailbox(cfg)
	if err != nil {
		return nil, nil, err
	}
	logger := newLogger(cfg, "responder")
	collector := metrics.NewCollector("responder", cfg.Provider.Type)

	prov, closeProvider, err := buildProvider(cfg.Provider)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create provider: %w", err)
	}
	closeAll := func() {
		if err := closeProvider(); err != nil {
			logger.Warn("provider close failed", map[string]any{"error": err.Error()})
		}
		snap := collector.Snapshot()
		logger.Info("responder stopped", map[string]any{"metrics": snap})
		_ = logger.Sync()
	}

	loopCfg := responder.Config{
		Dir:            dir,
		Provider:       prov,
		ScanInterval:   cfg.Responder.ScanInterval.Duration,
		MaxConcurrent:  cfg.Responder.MaxConcurrent,
		HandlerTimeout: cfg.Responder.HandlerTimeout.Duration,
		Watch:          cfg.Responder.Watch,
		ReadRetry:      cfg.Responder.ReadRetry.Policy(),
		Logger:         logger,
		Metrics:        collector,
	}
	loopCfg.HeartbeatInterval = cfg.Responder.HeartbeatInterval.Duration
	if cfg.Responder.NoHeartbeat {
		loopCfg.HeartbeatInterval = -1
	}

	if !cfg.Responder.NoSweep {
		sweeper, err := responder.NewSweeper(responder.SweepConfig{
			Dir:       dir,
			Interval:  cfg.Responder.SweepInterval.Duration,
			Retention: cfg.Responder.Retention.Duration,
			Logger:    logger,
			Metrics:   collector,
		})
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to create sweeper: %w", err)
		}
		loopCfg.Sweeper = sweeper
	}

	archive, err := buildArchive(ctx, cfg.Archive)
	if err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("failed to create archive: %w", err)
	}
	if archive != nil {
		loopCfg.Recorder = archive
	}

	ad, err := buildAdapter(cfg.Adapter)
	if err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("failed to create adapter: %w", err)
	}
	if ad != nil {
		loopCfg.Adapter = ad
	}

	loop, err := responder.New(loopCfg)
	if err != nil {
		if ad != nil {
			_ = ad.Close()
		}
		closeAll()
		return nil, nil, err
	}

	logger.Info("responder configured", map[string]any{
		"provider":       cfg.Provider.Type,
		"max_concurrent": cfg.Responder.MaxConcurrent,
		"watch":          cfg.Responder.Watch,
		"archive":        cfg.Archive.Backend,
		"adapter":        cfg.Adapter.Type,
		"sweep":          !cfg.Responder.NoSweep,
	})
	return loop, closeAll, nil
}
