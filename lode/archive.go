// Package lode archives answered lookups in a lode dataset.
//
// One JSONL record is written per answered request, Hive-partitioned by
// day and outcome. The archive is read back by QueryCounts for per-query
// search statistics.
package lode

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/courier/policy"
	"github.com/pithecene-io/courier/types"
)

// RecordKindLookup is the record_kind discriminator of archived lookups.
const RecordKindLookup = "lookup"

// dayFormat is the layout of the day partition value.
const dayFormat = "2006-01-02"

// Archive writes lookup records to a lode dataset.
// Safe for concurrent use; writes are serialized.
type Archive struct {
	mu      sync.Mutex
	dataset lode.Dataset
	name    string
	retry   policy.Retry
}

// NewArchive creates an archive over a store factory.
// Use lode.NewMemoryFactory() for testing.
func NewArchive(dataset string, factory lode.StoreFactory) (*Archive, error) {
	ds, err := NewDataset(dataset, factory)
	if err != nil {
		return nil, WrapInitError(err, dataset)
	}
	if dataset == "" {
		dataset = DefaultDataset
	}
	return &Archive{dataset: ds, name: dataset, retry: policy.Default()}, nil
}

// NewFSArchive creates an archive rooted at a local directory.
func NewFSArchive(dataset, root string) (*Archive, error) {
	return NewArchive(dataset, lode.NewFSFactory(root))
}

// NewS3Archive creates an archive in an S3 bucket.
func NewS3Archive(ctx context.Context, dataset string, s3cfg S3Config) (*Archive, error) {
	factory, err := NewS3Factory(ctx, s3cfg)
	if err != nil {
		return nil, err
	}
	return NewArchive(dataset, factory)
}

// Record writes one lookup record. Transient storage failures are retried
// under policy.Default().
func (a *Archive) Record(ctx context.Context, rec *types.LookupRecord) error {
	if rec == nil {
		return fmt.Errorf("nil lookup record")
	}
	row := []any{toRecordMap(rec)}

	a.mu.Lock()
	defer a.mu.Unlock()

	err := a.retry.Do(ctx, func(int) error {
		_, err := a.dataset.Write(ctx, row, lode.Metadata{})
		if err = WrapWriteError(err, a.name); err != nil && !Transient(err) {
			return policy.Permanent(err)
		}
		return err
	})
	var exhausted *types.ExhaustedError
	if errors.As(err, &exhausted) {
		return exhausted.Err
	}
	return err
}

// Dataset returns the underlying dataset for reads.
func (a *Archive) Dataset() lode.Dataset {
	return a.dataset
}

// toRecordMap flattens a lookup record with its partition keys.
func toRecordMap(rec *types.LookupRecord) map[string]any {
	m := map[string]any{
		"record_kind":      RecordKindLookup,
		"contract_version": types.ContractVersion,
		"correlation_id":   rec.CorrelationID,
		"query":            rec.Query,
		"started_at":       rec.StartedAt.UTC().Format(timeFormat),
		"completed_at":     rec.CompletedAt.UTC().Format(timeFormat),
		"duration_ms":      rec.DurationMs,

		// Partition keys (used by Lode HiveLayout)
		PartitionDay:     rec.CompletedAt.UTC().Format(dayFormat),
		PartitionOutcome: string(rec.Outcome),
	}
	if rec.Reason != "" {
		m["reason"] = string(rec.Reason)
	}
	if rec.RetryAfter > 0 {
		m["retry_after"] = rec.RetryAfter
	}
	if rec.ProfileID != 0 {
		m["profile_id"] = rec.ProfileID
	}
	if rec.Username != "" {
		m["username"] = rec.Username
	}
	return m
}
