package responder

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/pithecene-io/courier/mailbox"
	"github.com/pithecene-io/courier/metrics"
)

func touch(t *testing.T, dir *mailbox.Dir, name string, age time.Duration) {
	t.Helper()
	path := dir.Path(name)
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	mtime := time.Now().Add(-age)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes %s: %v", name, err)
	}
}

func TestSweep(t *testing.T) {
	dir := openMailbox(t)
	m := metrics.NewCollector("responder", "test")

	touch(t, dir, "ubresp_old.json", 2*time.Minute)
	touch(t, dir, "ubresp_fresh.json", time.Second)
	touch(t, dir, ".tmp-stale", 5*time.Minute)
	touch(t, dir, "ubreq_old.txt", time.Hour)
	touch(t, dir, "notes.txt", time.Hour)

	s, err := NewSweeper(SweepConfig{Dir: dir, Metrics: m})
	if err != nil {
		t.Fatalf("NewSweeper failed: %v", err)
	}
	if s.Retention() != DefaultRetention {
		t.Errorf("Retention = %s, want %s", s.Retention(), DefaultRetention)
	}

	report, err := s.Sweep(time.Now())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	if diff := cmp.Diff([]string{".tmp-stale", "ubresp_old.json"}, report.Removed); diff != "" {
		t.Errorf("removed mismatch (-want +got):\n%s", diff)
	}
	if report.Kept != 1 {
		t.Errorf("Kept = %d, want 1", report.Kept)
	}

	for name, want := range map[string]bool{
		"ubresp_old.json":   false,
		"ubresp_fresh.json": true,
		".tmp-stale":        false,
		"ubreq_old.txt":     true,
		"notes.txt":         true,
	} {
		if got := fileExists(dir.Path(name)); got != want {
			t.Errorf("%s exists = %v, want %v", name, got, want)
		}
	}
	if m.Snapshot().OrphansSwept != 2 {
		t.Errorf("OrphansSwept = %d, want 2", m.Snapshot().OrphansSwept)
	}
}

func TestSweep_DryRun(t *testing.T) {
	dir := openMailbox(t)
	touch(t, dir, "ubresp_old.json", 2*time.Minute)

	s, err := NewSweeper(SweepConfig{Dir: dir, Retention: time.Minute, DryRun: true})
	if err != nil {
		t.Fatalf("NewSweeper failed: %v", err)
	}
	report, err := s.Sweep(time.Now())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	if !report.DryRun || len(report.Removed) != 1 {
		t.Errorf("report = %+v", report)
	}
	if !fileExists(dir.Path("ubresp_old.json")) {
		t.Error("dry run deleted a file")
	}
}

func TestNewSweeper_Validation(t *testing.T) {
	if _, err := NewSweeper(SweepConfig{}); err == nil {
		t.Error("expected error without mailbox")
	}
	if _, err := NewSweeper(SweepConfig{Dir: openMailbox(t), Retention: -time.Second}); err == nil {
		t.Error("expected error for negative retention")
	}
}

func TestLoop_RunsSweeper(t *testing.T) {
	dir := openMailbox(t)
	touch(t, dir, "ubresp_old.json", 2*time.Minute)

	s, err := NewSweeper(SweepConfig{Dir: dir, Interval: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewSweeper failed: %v", err)
	}
	startLoop(t, Config{Dir: dir, Provider: aliceProvider(), Sweeper: s})

	waitFor(t, "orphan swept", func() bool { return !fileExists(dir.Path("ubresp_old.json")) })
}
