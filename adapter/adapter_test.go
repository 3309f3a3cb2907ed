package adapter

import (
	"testing"
	"time"

	"github.com/pithecene-io/courier/types"
)

func TestNewLookupCompletedEvent(t *testing.T) {
	completed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := &types.LookupRecord{
		CorrelationID: "abc",
		Query:         "@alice",
		Outcome:       types.OutcomeError,
		Reason:        types.ReasonNotUser,
		CompletedAt:   completed,
		DurationMs:    40,
	}

	ev := NewLookupCompletedEvent(rec)
	if ev.EventType != EventTypeLookupCompleted {
		t.Errorf("EventType = %q", ev.EventType)
	}
	if ev.ContractVersion != types.ContractVersion {
		t.Errorf("ContractVersion = %q", ev.ContractVersion)
	}
	if ev.Outcome != "error" || ev.Error != "not-a-user" {
		t.Errorf("outcome = %q/%q", ev.Outcome, ev.Error)
	}
	if ev.Timestamp != "2026-03-01T12:00:00Z" {
		t.Errorf("Timestamp = %q", ev.Timestamp)
	}
}

func TestRetryPolicy(t *testing.T) {
	p := RetryPolicy(2, 0)
	if p.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", p.MaxAttempts)
	}
	if p.Delay(1) != DefaultBackoff || p.Delay(2) != 2*DefaultBackoff {
		t.Errorf("delays = %s, %s", p.Delay(1), p.Delay(2))
	}
}
