// Package responder implements the serving side of the mailbox exchange per
// CONTRACT_MAILBOX.md.
//
// The Loop scans the mailbox on a fixed tick, starts one handler per request
// file under a concurrency limit, and waits for every handler of a tick
// before listing again. Handlers never stop the loop: panics are contained
// and reported as an internal-error response.
package responder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pithecene-io/courier/adapter"
	"github.com/pithecene-io/courier/log"
	"github.com/pithecene-io/courier/mailbox"
	"github.com/pithecene-io/courier/metrics"
	"github.com/pithecene-io/courier/policy"
	"github.com/pithecene-io/courier/provider"
	"github.com/pithecene-io/courier/types"
)

// Defaults per CONTRACT_MAILBOX.md.
const (
	DefaultScanInterval      = 100 * time.Millisecond
	DefaultMaxConcurrent     = 500
	DefaultHeartbeatInterval = 5 * time.Second
	DefaultHandlerTimeout    = 30 * time.Second
)

// Recorder persists answered lookups. Implemented by the lode archive.
type Recorder interface {
	Record(ctx context.Context, rec *types.LookupRecord) error
}

// Config configures a Loop.
type Config struct {
	// Dir is the mailbox to serve (required).
	Dir *mailbox.Dir
	// Provider resolves queries (required).
	Provider provider.Provider
	// ScanInterval is the wait between scans (default 100ms).
	ScanInterval time.Duration
	// MaxConcurrent bounds handlers in flight (default 500).
	MaxConcurrent int
	// HandlerTimeout bounds one provider call plus its downstream
	// notifications (default 30s). Handlers in flight at shutdown run to
	// completion under this bound.
	HandlerTimeout time.Duration
	// Watch adds change-notification scans on top of the tick.
	Watch bool
	// HeartbeatInterval is the heartbeat write period (default 5s).
	// Negative disables the heartbeat.
	HeartbeatInterval time.Duration
	// ReadRetry governs request reads that fail with a permission error
	// (default policy.Default()). A request still unreadable afterwards is
	// left for a later scan.
	ReadRetry policy.Retry
	// Sweeper, when set, runs on its own interval inside Run.
	Sweeper *Sweeper
	// Recorder is optional.
	Recorder Recorder
	// Adapter is optional.
	Adapter adapter.Adapter
	// Logger (default nop).
	Logger *log.Logger
	// Metrics is optional.
	Metrics *metrics.Collector
}

// Loop serves one mailbox.
type Loop struct {
	dir               *mailbox.Dir
	provider          provider.Provider
	scanInterval      time.Duration
	maxConcurrent     int
	handlerTimeout    time.Duration
	watch             bool
	heartbeatInterval time.Duration
	readRetry         policy.Retry
	sweeper           *Sweeper
	recorder          Recorder
	adapter           adapter.Adapter
	logger            *log.Logger
	metrics           *metrics.Collector

	startedAt time.Time
	lastScan  atomic.Int64 // unix nanos
	ticks     atomic.Int64
	inFlight  atomic.Int64
	responded atomic.Int64
	rejected  atomic.Int64
	failed    atomic.Int64
}

// New validates cfg, applies defaults and returns a Loop.
func New(cfg Config) (*Loop, error) {
	if cfg.Dir == nil {
		return nil, errors.New("responder requires a mailbox")
	}
	if cfg.Provider == nil {
		return nil, errors.New("responder requires a provider")
	}
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = DefaultScanInterval
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = DefaultHandlerTimeout
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.ReadRetry == (policy.Retry{}) {
		cfg.ReadRetry = policy.Default()
	}
	if err := cfg.ReadRetry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid read retry policy: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}

	return &Loop{
		dir:               cfg.Dir,
		provider:          cfg.Provider,
		scanInterval:      cfg.ScanInterval,
		maxConcurrent:     cfg.MaxConcurrent,
		handlerTimeout:    cfg.HandlerTimeout,
		watch:             cfg.Watch,
		heartbeatInterval: cfg.HeartbeatInterval,
		readRetry:         cfg.ReadRetry,
		sweeper:           cfg.Sweeper,
		recorder:          cfg.Recorder,
		adapter:           cfg.Adapter,
		logger:            cfg.Logger,
		metrics:           cfg.Metrics,
	}, nil
}

// Run serves the mailbox until ctx is canceled, then waits for in-flight
// handlers and background tasks and returns nil.
// Returns an error only if the change watcher cannot be started.
func (l *Loop) Run(ctx context.Context) error {
	l.startedAt = time.Now()

	var trigger <-chan struct{}
	var w *watcher
	if l.watch {
		var err error
		w, err = newWatcher(l.dir, l.logger)
		if err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		trigger = w.trigger
	}

	var wg sync.WaitGroup
	if w != nil {
		wg.Go(func() { w.run(ctx) })
	}
	if l.heartbeatInterval > 0 {
		l.writeHeartbeat()
		wg.Go(func() { l.heartbeatLoop(ctx) })
	}
	if l.sweeper != nil {
		wg.Go(func() { l.sweeper.Run(ctx) })
	}

	l.logger.Info("responder started", map[string]any{
		"scan_interval":  l.scanInterval.String(),
		"max_concurrent": l.maxConcurrent,
		"watch":          l.watch,
	})

	ticker := time.NewTicker(l.scanInterval)
	defer ticker.Stop()

	for {
		l.scan(ctx)

		select {
		case <-ctx.Done():
			wg.Wait()
			l.shutdown()
			return nil
		case <-ticker.C:
		case <-trigger:
		}
	}
}

// scan lists request files and handles them under the concurrency limit.
// Returns once every handler of this tick has finished.
func (l *Loop) scan(ctx context.Context) {
	l.ticks.Add(1)
	l.lastScan.Store(time.Now().UnixNano())
	l.metrics.IncScan()

	paths, err := l.dir.ListRequests()
	if err != nil {
		l.metrics.IncScanError()
		l.logger.Error("scan failed", map[string]any{"error": err.Error()})
		return
	}
	if len(paths) == 0 {
		return
	}

	l.logger.Info("requests found", map[string]any{"count": len(paths)})

	var g errgroup.Group
	g.SetLimit(l.maxConcurrent)
	for _, path := range paths {
		g.Go(func() error {
			l.handle(ctx, path)
			return nil
		})
	}
	_ = g.Wait()
}

// heartbeatLoop rewrites the heartbeat file until ctx is canceled.
func (l *Loop) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(l.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.writeHeartbeat()
		}
	}
}

func (l *Loop) writeHeartbeat() {
	if err := l.dir.WriteHeartbeat(l.Heartbeat()); err != nil {
		l.logger.Warn("heartbeat write failed", map[string]any{"error": err.Error()})
	}
}

// Heartbeat returns the current liveness record.
func (l *Loop) Heartbeat() *mailbox.Heartbeat {
	hostname, _ := os.Hostname()
	hb := &mailbox.Heartbeat{
		ContractVersion: types.ContractVersion,
		PID:             os.Getpid(),
		Hostname:        hostname,
		StartedAt:       l.startedAt.UTC(),
		Ticks:           l.ticks.Load(),
		InFlight:        l.inFlight.Load(),
		Responded:       l.responded.Load(),
		Rejected:        l.rejected.Load(),
		Failed:          l.failed.Load(),
	}
	if ns := l.lastScan.Load(); ns > 0 {
		hb.LastScan = time.Unix(0, ns).UTC()
	}
	return hb
}

// shutdown removes the heartbeat and closes the adapter.
func (l *Loop) shutdown() {
	if l.heartbeatInterval > 0 {
		if err := l.dir.RemoveHeartbeat(); err != nil {
			l.logger.Warn("heartbeat remove failed", map[string]any{"error": err.Error()})
		}
	}
	if l.adapter != nil {
		if err := l.adapter.Close(); err != nil {
			l.logger.Warn("adapter close failed", map[string]any{"error": err.Error()})
		}
	}
	l.logger.Info("responder stopped", map[string]any{
		"responded": l.responded.Load(),
		"rejected":  l.rejected.Load(),
		"failed":    l.failed.Load(),
	})
}
