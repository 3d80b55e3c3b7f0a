package minio

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ObjectStore is the subset of S3 the artifact mirror needs.
type ObjectStore interface {
	Ping(ctx context.Context) error
	EnsureBucket(ctx context.Context, bucket string) error
	// UploadFile copies the file at path to bucket/key and returns the
	// number of bytes stored.
	UploadFile(ctx context.Context, bucket, key, path, contentType string) (int64, error)
	// ObjectSize returns the stored size of bucket/key.
	ObjectSize(ctx context.Context, bucket, key string) (int64, error)
}

// LocalStore keeps objects under root/<bucket>/<key>. It backs file://
// endpoints.
type LocalStore struct {
	root string
}

// NewLocalStore creates a store rooted at root, or under the OS temp dir
// when root is empty.
func NewLocalStore(root string) *LocalStore {
	if root == "" {
		root = filepath.Join(os.TempDir(), "datapuur-objects")
	}
	return &LocalStore{root: root}
}

func (s *LocalStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return storeError("ping", "", CodePermissionDenied, false, err)
	}
	return nil
}

func (s *LocalStore) EnsureBucket(ctx context.Context, bucket string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if bucket == "" {
		return storeError("ensure bucket", "", CodeBucketNotFound, false, errors.New("bucket name is required"))
	}
	if err := os.MkdirAll(s.bucketDir(bucket), 0o755); err != nil {
		return storeError("ensure bucket", bucket, CodePermissionDenied, false, err)
	}
	return nil
}

// UploadFile writes through a temp file in the bucket so a failed copy
// never leaves a truncated object behind.
func (s *LocalStore) UploadFile(ctx context.Context, bucket, key, path, contentType string) (int64, error) {
	if err := s.EnsureBucket(ctx, bucket); err != nil {
		return 0, err
	}
	src, err := os.Open(path)
	if err != nil {
		return 0, storeError("upload", key, CodePublishFailed, false, err)
	}
	defer src.Close()

	dest := s.objectPath(bucket, key)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, storeError("upload", key, CodePermissionDenied, false, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return 0, storeError("upload", key, CodePermissionDenied, false, err)
	}
	n, err := io.Copy(tmp, src)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), dest)
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return 0, storeError("upload", key, CodePublishFailed, true, err)
	}
	return n, nil
}

func (s *LocalStore) ObjectSize(ctx context.Context, bucket, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	info, err := os.Stat(s.objectPath(bucket, key))
	if errors.Is(err, os.ErrNotExist) {
		return 0, storeError("stat", key, CodeObjectNotFound, false, err)
	}
	if err != nil {
		return 0, storeError("stat", key, CodePublishFailed, true, err)
	}
	return info.Size(), nil
}

func (s *LocalStore) bucketDir(bucket string) string {
	return filepath.Join(s.root, strings.NewReplacer(":", "_", "/", "_", `\`, "_").Replace(bucket))
}

func (s *LocalStore) objectPath(bucket, key string) string {
	return filepath.Join(s.bucketDir(bucket), filepath.FromSlash(key))
}

// objectKey joins key segments with "/" and drops empty ones.
func objectKey(parts ...string) string {
	var segs []string
	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" {
			segs = append(segs, p)
		}
	}
	return strings.Join(segs, "/")
}
