// Package minio mirrors completed ingestion artifacts into MinIO/S3 or a
// local directory that mimics it.
package minio

import (
	"context"
	"fmt"
	"os"
)

const parquetContentType = "application/vnd.apache.parquet"

// Publisher copies artifact files into the configured bucket.
type Publisher struct {
	store  ObjectStore
	bucket string
	prefix string
}

// NewPublisher wraps store with the bucket and prefix of cfg.
func NewPublisher(store ObjectStore, cfg *Config) *Publisher {
	cfg.normalizeDefaults()
	return &Publisher{store: store, bucket: cfg.Bucket, prefix: cfg.BasePrefix}
}

// Key returns the object key of a job's artifact.
func (p *Publisher) Key(jobID string) string {
	return objectKey(p.prefix, jobID+".parquet")
}

// URI is the s3:// location of a job's artifact.
func (p *Publisher) URI(jobID string) string {
	return fmt.Sprintf("s3://%s/%s", p.bucket, p.Key(jobID))
}

// Publish uploads the artifact at localPath and returns its URI. The upload
// only counts once the stored size matches the local file.
func (p *Publisher) Publish(ctx context.Context, jobID, localPath string) (string, error) {
	key := p.Key(jobID)
	info, err := os.Stat(localPath)
	if err != nil {
		return "", storeError("publish", key, CodePublishFailed, false, err)
	}
	if err := p.store.EnsureBucket(ctx, p.bucket); err != nil {
		return "", err
	}
	if _, err := p.store.UploadFile(ctx, p.bucket, key, localPath, parquetContentType); err != nil {
		return "", err
	}
	stored, err := p.store.ObjectSize(ctx, p.bucket, key)
	if err != nil {
		return "", err
	}
	if stored != info.Size() {
		return "", storeError("publish", key, CodePublishFailed, true,
			fmt.Errorf("stored %d bytes, artifact has %d", stored, info.Size()))
	}
	return p.URI(jobID), nil
}

// Ping checks the store is reachable.
func (p *Publisher) Ping(ctx context.Context) error {
	return p.store.Ping(ctx)
}
