package types

import "time"

// Outcome is the kind of answer a completed lookup produced.
type Outcome string

// Lookup outcomes.
const (
	OutcomeProfile Outcome = "profile"
	OutcomeError   Outcome = "error"
)

// LookupRecord describes one answered request.
// Emitted by the responder after the response file is written; consumed by
// the archive and notification adapters.
type LookupRecord struct {
	CorrelationID string    `json:"correlation_id"`
	Query         string    `json:"query"`
	Outcome       Outcome   `json:"outcome"`
	Reason        Reason    `json:"reason,omitempty"`
	RetryAfter    int       `json:"retry_after,omitempty"`
	ProfileID     int64     `json:"profile_id,omitempty"`
	Username      string    `json:"username,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	CompletedAt   time.Time `json:"completed_at"`
	DurationMs    int64     `json:"duration_ms"`
}

// NewLookupRecord builds a record from a written result.
func NewLookupRecord(correlationID, query string, result *LookupResult, startedAt, completedAt time.Time) *LookupRecord {
	rec := &LookupRecord{
		CorrelationID: correlationID,
		Query:         query,
		StartedAt:     startedAt.UTC(),
		CompletedAt:   completedAt.UTC(),
		DurationMs:    completedAt.Sub(startedAt).Milliseconds(),
	}

	switch {
	case result.OK():
		rec.Outcome = OutcomeProfile
		rec.ProfileID = result.Profile.ID
		if result.Profile.Username != nil {
			rec.Username = *result.Profile.Username
		}
	case result != nil && result.Error != nil:
		rec.Outcome = OutcomeError
		rec.Reason = result.Error.Reason
		rec.RetryAfter = result.Error.RetryAfter
	default:
		rec.Outcome = OutcomeError
		rec.Reason = ReasonInternal
	}
	return rec
}
