// Package config loads DataPuur service configuration from the environment,
// optionally layered over a YAML file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nucleus/datapuur/internal/connector/minio"
)

// ObjectStoreConfig points at the bucket completed artifacts are mirrored to.
type ObjectStoreConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
}

// Config holds DataPuur settings.
type Config struct {
	// Server settings
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Storage locations
	UploadDir   string `yaml:"upload_dir"`
	ArtifactDir string `yaml:"artifact_dir"`
	TempDir     string `yaml:"temp_dir"`

	// Ingestion
	Workers    int     `yaml:"workers"`
	QueueSize  int     `yaml:"queue_size"`
	ChunkSize  int     `yaml:"chunk_size"`
	SampleSize int     `yaml:"sample_size"`
	DBPageRate float64 `yaml:"db_page_rate"`

	// Logging
	LogFile  string `yaml:"log_file"`
	LogLevel string `yaml:"log_level"`

	// Auth
	JWTSecret    string   `yaml:"jwt_secret"`
	JWTIssuer    string   `yaml:"jwt_issuer"`
	AuthDisabled bool     `yaml:"auth_disabled"`
	DefaultRoles []string `yaml:"default_roles"`

	// Activity audit
	ActivityDatabaseURL string `yaml:"activity_database_url"`
	ActivityBuffer      int    `yaml:"activity_buffer"`

	ObjectStore ObjectStoreConfig `yaml:"object_store"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Host:           "0.0.0.0",
		Port:           8080,
		UploadDir:      "data/uploads",
		ArtifactDir:    "data/artifacts",
		Workers:        4,
		QueueSize:      64,
		ChunkSize:      1000,
		SampleSize:     1000,
		DBPageRate:     0,
		LogLevel:       "info",
		DefaultRoles:   []string{"researcher"},
		ActivityBuffer: 256,
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// DATAPUUR_CONFIG_FILE if set, then environment variables.
func Load() (*Config, error) {
	return load(false)
}

// LoadLocal is Load for in-process operator commands. They serve no
// requests, so auth is switched off and no token secret is needed.
func LoadLocal() (*Config, error) {
	return load(true)
}

func load(local bool) (*Config, error) {
	cfg := Default()
	if path := os.Getenv("DATAPUUR_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	if local {
		cfg.AuthDisabled = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Host = getEnv("DATAPUUR_HOST", c.Host)
	c.Port = getEnvInt("DATAPUUR_PORT", c.Port)
	c.UploadDir = getEnv("DATAPUUR_UPLOAD_DIR", c.UploadDir)
	c.ArtifactDir = getEnv("DATAPUUR_ARTIFACT_DIR", c.ArtifactDir)
	c.TempDir = getEnv("DATAPUUR_TEMP_DIR", c.TempDir)
	c.Workers = getEnvInt("DATAPUUR_WORKERS", c.Workers)
	c.QueueSize = getEnvInt("DATAPUUR_QUEUE_SIZE", c.QueueSize)
	c.ChunkSize = getEnvInt("DATAPUUR_CHUNK_SIZE", c.ChunkSize)
	c.SampleSize = getEnvInt("DATAPUUR_SAMPLE_SIZE", c.SampleSize)
	c.DBPageRate = getEnvFloat("DATAPUUR_DB_PAGE_RATE", c.DBPageRate)
	c.LogFile = getEnv("DATAPUUR_LOG_FILE", c.LogFile)
	c.LogLevel = getEnv("DATAPUUR_LOG_LEVEL", c.LogLevel)
	c.JWTSecret = getEnv("DATAPUUR_JWT_SECRET", c.JWTSecret)
	c.JWTIssuer = getEnv("DATAPUUR_JWT_ISSUER", c.JWTIssuer)
	c.AuthDisabled = getEnvBool("DATAPUUR_AUTH_DISABLED", c.AuthDisabled)
	if roles := os.Getenv("DATAPUUR_DEFAULT_ROLES"); roles != "" {
		c.DefaultRoles = splitList(roles)
	}
	c.ActivityDatabaseURL = getEnv("DATAPUUR_ACTIVITY_DATABASE_URL", c.ActivityDatabaseURL)
	c.ActivityBuffer = getEnvInt("DATAPUUR_ACTIVITY_BUFFER", c.ActivityBuffer)

	c.ObjectStore.Endpoint = getEnv("MINIO_ENDPOINT", c.ObjectStore.Endpoint)
	c.ObjectStore.Region = getEnv("MINIO_REGION", c.ObjectStore.Region)
	c.ObjectStore.UseSSL = getEnvBool("MINIO_USE_SSL", c.ObjectStore.UseSSL)
	c.ObjectStore.AccessKey = getEnv("MINIO_ACCESS_KEY", c.ObjectStore.AccessKey)
	c.ObjectStore.SecretKey = getEnv("MINIO_SECRET_KEY", c.ObjectStore.SecretKey)
	c.ObjectStore.Bucket = getEnv("MINIO_BUCKET", c.ObjectStore.Bucket)
	c.ObjectStore.Prefix = getEnv("MINIO_PREFIX", c.ObjectStore.Prefix)
}

// Validate checks settings that would make the service misbehave.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("queue size must not be negative, got %d", c.QueueSize)
	}
	if c.ChunkSize < 1 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.UploadDir == "" || c.ArtifactDir == "" {
		return fmt.Errorf("upload and artifact directories are required")
	}
	if !c.AuthDisabled && c.JWTSecret == "" {
		return fmt.Errorf("DATAPUUR_JWT_SECRET is required unless DATAPUUR_AUTH_DISABLED=true")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ObjectStoreEnabled reports whether artifacts should be mirrored.
func (c *Config) ObjectStoreEnabled() bool {
	return strings.TrimSpace(c.ObjectStore.Endpoint) != ""
}

// MinioConfig converts the object store settings for the minio connector.
func (c *Config) MinioConfig() *minio.Config {
	return &minio.Config{
		EndpointURL:     c.ObjectStore.Endpoint,
		Region:          c.ObjectStore.Region,
		UseSSL:          c.ObjectStore.UseSSL,
		AccessKeyID:     c.ObjectStore.AccessKey,
		SecretAccessKey: c.ObjectStore.SecretKey,
		Bucket:          c.ObjectStore.Bucket,
		BasePrefix:      c.ObjectStore.Prefix,
	}
}

// ParseLevel maps debug|info|warn|error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
