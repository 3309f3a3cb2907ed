package lode

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/courier/types"
)

// timeFormat is the layout of archived timestamps.
const timeFormat = time.RFC3339Nano

// QueryStats aggregates archived lookups of one query.
type QueryStats struct {
	Query    string         `json:"query"`
	Total    int            `json:"total"`
	Profiles int            `json:"profiles"`
	Errors   int            `json:"errors"`
	Reasons  map[string]int `json:"reasons,omitempty"`
	LastSeen time.Time      `json:"last_seen"`
}

// Filter narrows QueryCounts.
type Filter struct {
	// Query matches case-insensitively, ignoring leading '@'. Empty matches all.
	Query string
	// Day restricts to one day partition (YYYY-MM-DD). Empty matches all.
	Day string
}

// NormalizeQuery returns the key under which lookups of a query are counted.
func NormalizeQuery(q string) string {
	return strings.ToLower(strings.TrimLeft(strings.TrimSpace(q), "@"))
}

// QueryCounts reads every archived lookup and returns per-query statistics,
// most searched first.
func QueryCounts(ctx context.Context, ds lode.Dataset, filter Filter) ([]QueryStats, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, "courier/snapshots")
	}

	want := NormalizeQuery(filter.Query)
	byQuery := make(map[string]*QueryStats)

	for _, snap := range snapshots {
		if !snapshotMatchesFilter(snap, PartitionDay, filter.Day) {
			continue
		}

		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("courier/snapshot/%s", snap.ID))
		}

		for _, item := range data {
			record, ok := item.(map[string]any)
			if !ok || record["record_kind"] != RecordKindLookup {
				continue
			}
			key := NormalizeQuery(toString(record["query"]))
			if want != "" && key != want {
				continue
			}
			if filter.Day != "" && toString(record[PartitionDay]) != filter.Day {
				continue
			}
			accumulate(byQuery, key, record)
		}
	}

	out := make([]QueryStats, 0, len(byQuery))
	for _, s := range byQuery {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Query < out[j].Query
	})
	return out, nil
}

func accumulate(byQuery map[string]*QueryStats, key string, record map[string]any) {
	s, ok := byQuery[key]
	if !ok {
		s = &QueryStats{Query: key}
		byQuery[key] = s
	}

	s.Total++
	switch toString(record[PartitionOutcome]) {
	case string(types.OutcomeProfile):
		s.Profiles++
	default:
		s.Errors++
		if reason := toString(record["reason"]); reason != "" {
			if s.Reasons == nil {
				s.Reasons = make(map[string]int)
			}
			s.Reasons[reason]++
		}
	}

	if ts, err := time.Parse(timeFormat, toString(record["completed_at"])); err == nil && ts.After(s.LastSeen) {
		s.LastSeen = ts
	}
}

// toString converts a value to string, returning empty string for nil/non-string.
func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
