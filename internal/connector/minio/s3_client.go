package minio

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Client is an ObjectStore over minio-go.
type S3Client struct {
	client *minio.Client
	region string
}

// NewS3Client connects to cfg.EndpointURL. An https scheme forces TLS.
func NewS3Client(cfg *Config) (*S3Client, error) {
	u, err := url.Parse(cfg.EndpointURL)
	if err != nil {
		return nil, storeError("connect", "", CodeEndpointUnreachable, false, err)
	}
	host := u.Host
	if host == "" {
		host = cfg.EndpointURL
	}
	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL || u.Scheme == "https",
		Region: cfg.Region,
	})
	if err != nil {
		return nil, storeError("connect", "", CodeEndpointUnreachable, true, err)
	}
	return &S3Client{client: client, region: cfg.Region}, nil
}

func (s *S3Client) Ping(ctx context.Context) error {
	if _, err := s.client.ListBuckets(ctx); err != nil {
		return classify("ping", "", err)
	}
	return nil
}

func (s *S3Client) EnsureBucket(ctx context.Context, bucket string) error {
	if bucket == "" {
		return storeError("ensure bucket", "", CodeBucketNotFound, false, errors.New("bucket name is required"))
	}
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return classify("ensure bucket", bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		// Another publisher may have created it since BucketExists.
		if resp := minio.ToErrorResponse(err); resp.Code == "BucketAlreadyOwnedByYou" {
			return nil
		}
		return classify("ensure bucket", bucket, err)
	}
	return nil
}

func (s *S3Client) UploadFile(ctx context.Context, bucket, key, path, contentType string) (int64, error) {
	info, err := s.client.FPutObject(ctx, bucket, key, path, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return 0, classify("upload", key, err)
	}
	return info.Size, nil
}

func (s *S3Client) ObjectSize(ctx context.Context, bucket, key string) (int64, error) {
	info, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return 0, classify("stat", key, err)
	}
	return info.Size, nil
}

// classify maps S3 error responses and transport failures to codes.
func classify(op, key string, err error) *Error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchBucket":
		return storeError(op, key, CodeBucketNotFound, false, err)
	case "NoSuchKey":
		return storeError(op, key, CodeObjectNotFound, false, err)
	case "AccessDenied":
		return storeError(op, key, CodePermissionDenied, false, err)
	case "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return storeError(op, key, CodeAuthInvalid, false, err)
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return storeError(op, key, CodeObjectNotFound, false, err)
	case http.StatusForbidden:
		return storeError(op, key, CodePermissionDenied, false, err)
	case http.StatusUnauthorized:
		return storeError(op, key, CodeAuthInvalid, false, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return storeError(op, key, CodeTimeout, true, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return storeError(op, key, CodeTimeout, true, err)
		}
		return storeError(op, key, CodeEndpointUnreachable, true, err)
	}
	return storeError(op, key, CodePublishFailed, true, fmt.Errorf("unexpected object store error: %w", err))
}
