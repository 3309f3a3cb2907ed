package lode

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/courier/types"
)

// sharedFactory returns a StoreFactory that always returns the given store.
// This allows write and read datasets to share the same in-memory state.
func sharedFactory(store lode.Store) lode.StoreFactory {
	return func() (lode.Store, error) { return store, nil }
}

func record(query string, result *types.LookupResult, completed time.Time) *types.LookupRecord {
	return types.NewLookupRecord("id-"+query, query, result, completed.Add(-10*time.Millisecond), completed)
}

func TestArchive_RecordAndQueryCounts(t *testing.T) {
	store := lode.NewMemory()
	archive, err := NewArchive("", sharedFactory(store))
	if err != nil {
		t.Fatalf("NewArchive failed: %v", err)
	}

	alice := "alice"
	day1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	records := []*types.LookupRecord{
		record("@alice", types.ProfileResult(&types.Profile{ID: 42, Username: &alice}), day1),
		record("alice", types.ProfileResult(&types.Profile{ID: 42, Username: &alice}), day2),
		record("@Alice", types.ErrorResult(types.ReasonRateLimited, 5), day2),
		record("@ghost", types.ErrorResult(types.ReasonInvalidIdentifier, 0), day1),
	}
	for _, rec := range records {
		if err := archive.Record(t.Context(), rec); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	ds, err := NewDataset(DefaultDataset, sharedFactory(store))
	if err != nil {
		t.Fatalf("NewDataset failed: %v", err)
	}

	got, err := QueryCounts(t.Context(), ds, Filter{})
	if err != nil {
		t.Fatalf("QueryCounts failed: %v", err)
	}

	want := []QueryStats{
		{
			Query:    "alice",
			Total:    3,
			Profiles: 2,
			Errors:   1,
			Reasons:  map[string]int{"rate-limited": 1},
			LastSeen: day2,
		},
		{
			Query:    "ghost",
			Total:    1,
			Errors:   1,
			Reasons:  map[string]int{"invalid-identifier": 1},
			LastSeen: day1,
		},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateApproxTime(time.Millisecond)); diff != "" {
		t.Errorf("QueryCounts mismatch (-want +got):\n%s", diff)
	}
}

func TestQueryCounts_Filters(t *testing.T) {
	store := lode.NewMemory()
	archive, err := NewArchive("", sharedFactory(store))
	if err != nil {
		t.Fatalf("NewArchive failed: %v", err)
	}

	day1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	day10 := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	for _, rec := range []*types.LookupRecord{
		record("@alice", types.ErrorResult(types.ReasonFault, 0), day1),
		record("@alice", types.ErrorResult(types.ReasonFault, 0), day10),
		record("@bobby", types.ErrorResult(types.ReasonFault, 0), day1),
	} {
		if err := archive.Record(t.Context(), rec); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	t.Run("by query", func(t *testing.T) {
		got, err := QueryCounts(t.Context(), archive.Dataset(), Filter{Query: "@ALICE"})
		if err != nil {
			t.Fatalf("QueryCounts failed: %v", err)
		}
		if len(got) != 1 || got[0].Query != "alice" || got[0].Total != 2 {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("by day without prefix collision", func(t *testing.T) {
		got, err := QueryCounts(t.Context(), archive.Dataset(), Filter{Day: "2026-03-1"})
		if err != nil {
			t.Fatalf("QueryCounts failed: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("day=2026-03-1 matched %+v", got)
		}

		got, err = QueryCounts(t.Context(), archive.Dataset(), Filter{Day: "2026-03-01"})
		if err != nil {
			t.Fatalf("QueryCounts failed: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("got %+v, want alice and bobby", got)
		}
	})
}

func TestQueryCounts_EmptyDataset(t *testing.T) {
	ds, err := NewDataset("", sharedFactory(lode.NewMemory()))
	if err != nil {
		t.Fatalf("NewDataset failed: %v", err)
	}
	got, err := QueryCounts(t.Context(), ds, Filter{})
	if err != nil {
		t.Fatalf("QueryCounts failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %+v, want none", got)
	}
}

func TestToRecordMap_PartitionKeys(t *testing.T) {
	completed := time.Date(2026, 3, 1, 23, 59, 59, 0, time.UTC)
	m := toRecordMap(record("@x", types.ErrorResult(types.ReasonNotUser, 0), completed))

	if m[PartitionDay] != "2026-03-01" || m[PartitionOutcome] != "error" {
		t.Errorf("partition keys = %v/%v", m[PartitionDay], m[PartitionOutcome])
	}
	if m["record_kind"] != RecordKindLookup || m["reason"] != "not-a-user" {
		t.Errorf("record = %v", m)
	}
	if _, ok := m["profile_id"]; ok {
		t.Error("profile_id set on error record")
	}
}

func TestParseS3Path(t *testing.T) {
	tests := []struct {
		path, bucket, prefix string
	}{
		{"bucket", "bucket", ""},
		{"bucket/archive", "bucket", "archive"},
		{"bucket/a/b", "bucket", "a/b"},
		{"s3://bucket/archive/", "bucket", "archive"},
	}
	for _, tt := range tests {
		b, p := ParseS3Path(tt.path)
		if b != tt.bucket || p != tt.prefix {
			t.Errorf("ParseS3Path(%q) = %q, %q", tt.path, b, p)
		}
	}

	if _, err := NewS3Factory(t.Context(), S3Config{}); err == nil {
		t.Error("expected error for empty bucket")
	}
}
