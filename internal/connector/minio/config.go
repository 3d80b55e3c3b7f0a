package minio

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/nucleus/datapuur/internal/core"
)

const (
	defaultBucket     = "datapuur-artifacts"
	defaultBasePrefix = "artifacts"
)

// Config captures the object store used to mirror completed artifacts.
type Config struct {
	EndpointURL     string
	Region          string
	UseSSL          bool
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	BasePrefix      string
}

// Enabled reports whether an endpoint was configured.
func (c *Config) Enabled() bool {
	return c != nil && strings.TrimSpace(c.EndpointURL) != ""
}

// Validate enforces required fields. file:// endpoints need no credentials.
func (c *Config) Validate() error {
	u, err := url.Parse(c.EndpointURL)
	if c.EndpointURL == "" || err != nil {
		return core.ValidationError("%s: invalid object store endpoint %q", CodeEndpointUnreachable, c.EndpointURL)
	}
	if u.Scheme == "file" {
		return nil
	}
	if c.AccessKeyID == "" || c.SecretAccessKey == "" {
		return core.ValidationError("%s: accessKeyId and secretAccessKey are required", CodeAuthInvalid)
	}
	return nil
}

func (c *Config) normalizeDefaults() {
	if c.Bucket == "" {
		c.Bucket = defaultBucket
	}
	if c.BasePrefix == "" {
		c.BasePrefix = defaultBasePrefix
	}
	c.BasePrefix = strings.Trim(c.BasePrefix, "/")
}

// localRoot returns the directory backing a file:// endpoint.
func (c *Config) localRoot() (string, bool) {
	u, err := url.Parse(c.EndpointURL)
	if err != nil || u.Scheme != "file" {
		return "", false
	}
	return u.Path, true
}

// NewStore builds the object store for cfg: a LocalStore for file://
// endpoints, an S3Client otherwise.
func NewStore(cfg *Config) (ObjectStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.normalizeDefaults()
	if root, ok := cfg.localRoot(); ok {
		return NewLocalStore(root), nil
	}
	client, err := NewS3Client(cfg)
	if err != nil {
		return nil, fmt.Errorf("object store: %w", err)
	}
	return client, nil
}
