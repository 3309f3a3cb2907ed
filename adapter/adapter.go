// Package adapter defines the notification boundary for completed lookups.
//
// Adapters publish one event per answered request to a downstream system.
// The responder owns adapter lifecycle; users provide configuration only.
// Publishing is best-effort: a failed publish never affects the response
// file already written.
package adapter

import (
	"context"
	"time"

	"github.com/pithecene-io/courier/policy"
	"github.com/pithecene-io/courier/types"
)

// EventTypeLookupCompleted is the event_type of every published event.
const EventTypeLookupCompleted = "lookup_completed"

// Publish retry defaults.
const (
	DefaultRetries = 3
	DefaultBackoff = 500 * time.Millisecond
)

// LookupCompletedEvent is the payload published when a lookup is answered.
type LookupCompletedEvent struct {
	ContractVersion string `json:"contract_version"`
	EventType       string `json:"event_type"` // always "lookup_completed"
	CorrelationID   string `json:"correlation_id"`
	Query           string `json:"query"`
	Outcome         string `json:"outcome"` // profile or error
	Error           string `json:"error,omitempty"`
	ProfileID       int64  `json:"profile_id,omitempty"`
	Timestamp       string `json:"timestamp"` // ISO 8601
	DurationMs      int64  `json:"duration_ms"`
}

// NewLookupCompletedEvent builds the event for a lookup record.
func NewLookupCompletedEvent(rec *types.LookupRecord) *LookupCompletedEvent {
	return &LookupCompletedEvent{
		ContractVersion: types.ContractVersion,
		EventType:       EventTypeLookupCompleted,
		CorrelationID:   rec.CorrelationID,
		Query:           rec.Query,
		Outcome:         string(rec.Outcome),
		Error:           string(rec.Reason),
		ProfileID:       rec.ProfileID,
		Timestamp:       rec.CompletedAt.UTC().Format(time.RFC3339),
		DurationMs:      rec.DurationMs,
	}
}

// Adapter publishes lookup completion events to a downstream system.
// Implementations must be safe for concurrent use: the responder publishes
// from many handlers at once.
type Adapter interface {
	// Publish sends a lookup completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *LookupCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}

// RetryPolicy returns the publish policy for a retry count: one initial
// attempt plus retries, doubling from backoff (DefaultBackoff if zero).
func RetryPolicy(retries int, backoff time.Duration) policy.Retry {
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	return policy.Retry{
		MaxAttempts: 1 + retries,
		BaseDelay:   backoff,
		Multiplier:  2,
	}
}
