package minio

import (
	"errors"
	"time"
)

// Defaults for the object-storage trust store.
const (
	// DefaultEndpoint is a local MinIO server.
	DefaultEndpoint = "localhost:9000"

	// DefaultRegion is the region sent with signed requests.
	DefaultRegion = "us-east-1"

	// DefaultHealthBucket is checked by [Client.Health].
	DefaultHealthBucket = "health-check-probe"

	// DefaultMaxObjectSize caps a single PEM object read.
	DefaultMaxObjectSize = 64 << 10

	// DefaultHealthTimeout bounds [Client.Health] when the caller's context
	// has no deadline.
	DefaultHealthTimeout = 5 * time.Second

	maxStatementLen = 100
)

// Secret redacts its value when printed or serialized.
type Secret string

const secretRedacted = "[REDACTED]"

// String implements fmt.Stringer and always returns the redaction marker.
func (s Secret) String() string { return secretRedacted }

// GoString implements fmt.GoStringer so %#v is redacted too.
func (s Secret) GoString() string { return secretRedacted }

// MarshalText redacts the secret in JSON, YAML and slog output.
func (s Secret) MarshalText() ([]byte, error) { return []byte(secretRedacted), nil }

// Value returns the plaintext.
func (s Secret) Value() string { return string(s) }

// Config configures the S3-compatible endpoint.
type Config struct {
	Endpoint     string `json:"endpoint,omitempty" yaml:"endpoint" env:"MINIO_ENDPOINT"`
	AccessKey    string `json:"access_key,omitempty" yaml:"access_key" env:"MINIO_ACCESS_KEY"`
	SecretKey    Secret `json:"-" yaml:"secret_key" env:"MINIO_SECRET_KEY"`
	Region       string `json:"region,omitempty" yaml:"region" env:"MINIO_REGION"`
	UseSSL       bool   `json:"use_ssl,omitempty" yaml:"use_ssl" env:"MINIO_USE_SSL"`
	HealthBucket string `json:"health_bucket,omitempty" yaml:"health_bucket" env:"MINIO_HEALTH_BUCKET"`

	// MaxObjectSize caps ReadObject. Certificates are small; anything
	// larger is refused.
	MaxObjectSize int64 `json:"max_object_size,omitempty" yaml:"max_object_size" env:"MINIO_MAX_OBJECT_SIZE"`
}

// Validate fills defaults and rejects missing required fields.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("minio: endpoint must not be empty")
	}
	if c.AccessKey == "" {
		return errors.New("minio: access_key must not be empty")
	}
	if c.Region == "" {
		c.Region = DefaultRegion
	}
	if c.HealthBucket == "" {
		c.HealthBucket = DefaultHealthBucket
	}
	if c.MaxObjectSize <= 0 {
		c.MaxObjectSize = DefaultMaxObjectSize
	}
	return nil
}

func truncateStatement(s string) string {
	runes := []rune(s)
	if len(runes) <= maxStatementLen {
		return s
	}
	return string(runes[:maxStatementLen]) + "..."
}
