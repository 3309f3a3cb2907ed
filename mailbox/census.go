package mailbox

import (
	"errors"
	"sort"
	"time"
)

// Census is a point-in-time summary of mailbox contents.
// Used by the inspect command; it never mutates the mailbox.
type Census struct {
	Root             string     `json:"root"`
	PendingRequests  int        `json:"pending_requests"`
	Responses        int        `json:"responses"`
	OrphanResponses  int        `json:"orphan_responses"`
	TempFiles        int        `json:"temp_files"`
	OtherFiles       int        `json:"other_files"`
	OldestRequestAge string     `json:"oldest_request_age,omitempty"`
	Responder        string     `json:"responder"`
	HeartbeatAge     string     `json:"heartbeat_age,omitempty"`
	Heartbeat        *Heartbeat `json:"heartbeat,omitempty"`
	Orphans          []string   `json:"orphans,omitempty"`
}

// Responder liveness labels.
const (
	ResponderAlive   = "alive"
	ResponderStale   = "stale"
	ResponderMissing = "missing"
)

// TakeCensus classifies every file. Responses older than orphanAge count as
// orphans; a heartbeat older than staleAfter marks the responder stale.
func (d *Dir) TakeCensus(now time.Time, orphanAge, staleAfter time.Duration) (*Census, error) {
	entries, err := d.Entries()
	if err != nil {
		return nil, err
	}

	c := &Census{Root: d.root}
	var oldest time.Time
	for _, e := range entries {
		switch e.Kind {
		case KindRequest:
			c.PendingRequests++
			if oldest.IsZero() || e.ModTime.Before(oldest) {
				oldest = e.ModTime
			}
		case KindResponse:
			c.Responses++
			if now.Sub(e.ModTime) > orphanAge {
				c.OrphanResponses++
				c.Orphans = append(c.Orphans, e.Name)
			}
		case KindTemp:
			c.TempFiles++
		case KindHeartbeat:
			// reported below
		default:
			c.OtherFiles++
		}
	}
	sort.Strings(c.Orphans)

	if !oldest.IsZero() {
		c.OldestRequestAge = now.Sub(oldest).Round(time.Millisecond).String()
	}

	hb, err := d.ReadHeartbeat()
	switch {
	case errors.Is(err, ErrNoHeartbeat):
		c.Responder = ResponderMissing
	case err != nil:
		return nil, err
	default:
		c.Heartbeat = hb
		age := hb.Age(now)
		c.HeartbeatAge = age.Round(time.Millisecond).String()
		if age > staleAfter {
			c.Responder = ResponderStale
		} else {
			c.Responder = ResponderAlive
		}
	}

	return c, nil
}
