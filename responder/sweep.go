package responder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/pithecene-io/courier/iox"
	"github.com/pithecene-io/courier/log"
	"github.com/pithecene-io/courier/mailbox"
	"github.com/pithecene-io/courier/metrics"
)

// Orphan reclamation defaults. Retention is three requester timeouts, so a
// response is only swept once no attempt can still be waiting for it.
const (
	DefaultSweepInterval = 30 * time.Second
	DefaultRetention     = 90 * time.Second
)

// SweepConfig configures a Sweeper.
type SweepConfig struct {
	// Dir is the mailbox to sweep (required).
	Dir *mailbox.Dir
	// Interval is the period of Run (default 30s).
	Interval time.Duration
	// Retention is the minimum age of a swept file (default 90s).
	Retention time.Duration
	// DryRun reports candidates without deleting them.
	DryRun bool
	// Logger (default nop).
	Logger *log.Logger
	// Metrics is optional.
	Metrics *metrics.Collector
}

// Sweeper deletes response files nobody consumed and stale temp files.
// Request files are never swept; they belong to the responder's scan.
type Sweeper struct {
	dir       *mailbox.Dir
	interval  time.Duration
	retention time.Duration
	dryRun    bool
	logger    *log.Logger
	metrics   *metrics.Collector
}

// SweepReport is the result of one pass.
type SweepReport struct {
	Removed []string `json:"removed"`
	Kept    int      `json:"kept"`
	Errors  int      `json:"errors"`
	DryRun  bool     `json:"dry_run"`
}

// NewSweeper validates cfg and applies defaults.
func NewSweeper(cfg SweepConfig) (*Sweeper, error) {
	if cfg.Dir == nil {
		return nil, errors.New("sweeper requires a mailbox")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSweepInterval
	}
	if cfg.Retention < 0 {
		return nil, fmt.Errorf("retention must be >= 0, got %s", cfg.Retention)
	}
	if cfg.Retention == 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	return &Sweeper{
		dir:       cfg.Dir,
		interval:  cfg.Interval,
		retention: cfg.Retention,
		dryRun:    cfg.DryRun,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}, nil
}

// Retention returns the configured minimum age.
func (s *Sweeper) Retention() time.Duration { return s.retention }

// Sweep runs one pass against now.
func (s *Sweeper) Sweep(now time.Time) (*SweepReport, error) {
	entries, err := s.dir.Entries()
	if err != nil {
		s.metrics.IncSweepError()
		return nil, err
	}

	report := &SweepReport{Removed: []string{}, DryRun: s.dryRun}
	for _, e := range entries {
		if e.Kind != mailbox.KindResponse && e.Kind != mailbox.KindTemp {
			continue
		}
		if now.Sub(e.ModTime) <= s.retention {
			report.Kept++
			continue
		}
		if !s.dryRun {
			if err := iox.RemoveIfExists(s.dir.Path(e.Name)); err != nil {
				report.Errors++
				s.metrics.IncSweepError()
				s.logger.Warn("sweep remove failed", map[string]any{"file": e.Name, "error": err.Error()})
				continue
			}
		}
		report.Removed = append(report.Removed, e.Name)
	}
	sort.Strings(report.Removed)

	if !s.dryRun {
		s.metrics.AddOrphansSwept(len(report.Removed))
	}
	if len(report.Removed) > 0 {
		s.logger.Info("orphans swept", map[string]any{
			"count":   len(report.Removed),
			"dry_run": s.dryRun,
		})
	}
	return report, nil
}

// Run sweeps every interval until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := s.Sweep(now); err != nil {
				s.logger.Error("sweep failed", map[string]any{"error": err.Error()})
			}
		}
	}
}
