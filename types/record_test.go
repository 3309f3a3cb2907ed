package types

import (
	"testing"
	"time"
)

func TestNewLookupRecord(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	completed := started.Add(250 * time.Millisecond)
	alice := "alice"

	t.Run("profile", func(t *testing.T) {
		rec := NewLookupRecord("id-1", "@alice", ProfileResult(&Profile{ID: 42, Username: &alice}), started, completed)
		if rec.Outcome != OutcomeProfile || rec.ProfileID != 42 || rec.Username != "alice" {
			t.Errorf("record = %+v", rec)
		}
		if rec.DurationMs != 250 {
			t.Errorf("DurationMs = %d, want 250", rec.DurationMs)
		}
	})

	t.Run("error", func(t *testing.T) {
		rec := NewLookupRecord("id-2", "@busy", ErrorResult(ReasonRateLimited, 9), started, completed)
		if rec.Outcome != OutcomeError || rec.Reason != ReasonRateLimited || rec.RetryAfter != 9 {
			t.Errorf("record = %+v", rec)
		}
	})

	t.Run("nil result", func(t *testing.T) {
		rec := NewLookupRecord("id-3", "@x", nil, started, completed)
		if rec.Outcome != OutcomeError || rec.Reason != ReasonInternal {
			t.Errorf("record = %+v", rec)
		}
	})
}
