package lode

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/justapithecus/lode/lode"
	lodes3 "github.com/justapithecus/lode/lode/s3"
)

// DefaultDataset is the dataset id of the lookup archive.
const DefaultDataset = "courier"

// Partition keys of the archive, in layout order.
const (
	PartitionDay     = "day"
	PartitionOutcome = "outcome"
)

// NewDataset opens the archive dataset: JSONL records under
// day=YYYY-MM-DD/outcome=profile|error. Writer and reader must agree on
// both, so every caller goes through here.
func NewDataset(dataset string, factory lode.StoreFactory) (lode.Dataset, error) {
	if dataset == "" {
		dataset = DefaultDataset
	}
	return lode.NewDataset(
		lode.DatasetID(dataset),
		factory,
		lode.WithHiveLayout(PartitionDay, PartitionOutcome),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
}

// S3Config locates the archive in a bucket. Credentials come from the AWS
// default chain.
type S3Config struct {
	Bucket string
	Prefix string
	// Region overrides the default chain's region.
	Region string
	// Endpoint targets an S3-compatible store (MinIO, R2).
	Endpoint string
	// UsePathStyle puts the bucket in the path; most compatible stores
	// need it.
	UsePathStyle bool
}

// ParseS3Path splits "bucket", "bucket/prefix" or "s3://bucket/prefix".
func ParseS3Path(path string) (bucket, prefix string) {
	path = strings.TrimPrefix(path, "s3://")
	bucket, prefix, _ = strings.Cut(path, "/")
	return bucket, strings.Trim(prefix, "/")
}

// NewS3Factory builds a store factory over one S3 client.
func NewS3Factory(ctx context.Context, s3cfg S3Config) (lode.StoreFactory, error) {
	if s3cfg.Bucket == "" {
		return nil, errors.New("S3 bucket is required")
	}

	var opts []func(*config.LoadOptions) error
	if s3cfg.Region != "" {
		opts = append(opts, config.WithRegion(s3cfg.Region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, WrapInitError(fmt.Errorf("failed to load AWS config: %w", err), s3cfg.Bucket)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if s3cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(s3cfg.Endpoint)
		}
		o.UsePathStyle = s3cfg.UsePathStyle
	})

	return func() (lode.Store, error) {
		return lodes3.New(client, lodes3.Config{
			Bucket: s3cfg.Bucket,
			Prefix: s3cfg.Prefix,
		})
	}, nil
}

// snapshotMatchesFilter reports whether any file of snap lies under
// key=value. An empty value matches everything.
func snapshotMatchesFilter(snap *lode.DatasetSnapshot, key, value string) bool {
	if value == "" {
		return true
	}
	for _, f := range snap.Manifest.Files {
		if matchesPartitionValue(f.Path, key, value) {
			return true
		}
	}
	return false
}

// matchesPartitionValue compares whole path segments, so day=2026-03-1
// does not match day=2026-03-10.
func matchesPartitionValue(path, key, value string) bool {
	return slices.Contains(strings.Split(path, "/"), key+"="+value)
}
