// Package redis provides a traced Redis client used to mirror validated
// tokens across consumer replicas.
//
// The client wraps go-redis (github.com/redis/go-redis/v9). Pooling,
// reconnection and retry are handled by go-redis; this package adds
// OpenTelemetry spans and error classification. Use [NewClient] in
// production and [NewFromClient] to inject a mock in tests.
package redis

import (
	"fmt"
	"net/url"
	"time"
)

// maxStatementTruncateLen bounds statements recorded on spans so token
// digests and values are never written in full to telemetry.
const maxStatementTruncateLen = 100

// Connection defaults applied by [Config.Validate] to unset fields.
const (
	// DefaultHost is used when neither URI nor Host is set.
	DefaultHost = "localhost"

	// DefaultPort is the standard Redis port.
	DefaultPort = 6379

	// DefaultDB is the logical database index.
	DefaultDB = 0

	// DefaultPoolSize is the maximum number of socket connections.
	DefaultPoolSize = 10

	// DefaultMinIdleConns keeps a few connections warm for mirror lookups
	// on the validation path.
	DefaultMinIdleConns = 2

	// DefaultMaxRetries is the number of retries before a command fails.
	DefaultMaxRetries = 3

	// DefaultDialTimeout bounds establishing a new connection.
	DefaultDialTimeout = 5 * time.Second

	// DefaultReadTimeout bounds a single socket read.
	DefaultReadTimeout = 2 * time.Second

	// DefaultWriteTimeout bounds a single socket write.
	DefaultWriteTimeout = 2 * time.Second

	// DefaultHealthTimeout bounds [Client.Health] when the caller's context
	// has no deadline.
	DefaultHealthTimeout = 5 * time.Second
)

// Secret is a string that never prints its value.
type Secret string

const redacted = "[REDACTED]"

// String implements fmt.Stringer and always returns the redaction marker.
func (s Secret) String() string { return redacted }

// GoString implements fmt.GoStringer so %#v is redacted too.
func (s Secret) GoString() string { return redacted }

// Value returns the plaintext.
func (s Secret) Value() string { return string(s) }

// MarshalText redacts the secret in JSON, YAML and slog output.
func (s Secret) MarshalText() ([]byte, error) { return []byte(redacted), nil }

// Config holds connection settings. URI, when set, takes precedence over
// Host, Port, DB and Password.
type Config struct {
	URI          string        `json:"uri,omitempty" yaml:"uri" env:"REDIS_URI"`
	Host         string        `json:"host,omitempty" yaml:"host" env:"REDIS_HOST"`
	Port         int           `json:"port,omitempty" yaml:"port" env:"REDIS_PORT"`
	DB           int           `json:"db" yaml:"db" env:"REDIS_DB"`
	Password     Secret        `json:"-" yaml:"password" env:"REDIS_PASSWORD"`
	PoolSize     int           `json:"pool_size,omitempty" yaml:"pool_size" env:"REDIS_POOL_SIZE"`
	MinIdleConns int           `json:"min_idle_conns,omitempty" yaml:"min_idle_conns" env:"REDIS_MIN_IDLE_CONNS"`
	MaxRetries   int           `json:"max_retries,omitempty" yaml:"max_retries" env:"REDIS_MAX_RETRIES"`
	DialTimeout  time.Duration `json:"dial_timeout,omitempty" yaml:"dial_timeout" env:"REDIS_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `json:"read_timeout,omitempty" yaml:"read_timeout" env:"REDIS_READ_TIMEOUT"`
	WriteTimeout time.Duration `json:"write_timeout,omitempty" yaml:"write_timeout" env:"REDIS_WRITE_TIMEOUT"`
	TLSEnabled   bool          `json:"tls_enabled,omitempty" yaml:"tls_enabled" env:"REDIS_TLS_ENABLED"`
}

// DefaultConfig returns a Config for a local Redis.
func DefaultConfig() *Config {
	return &Config{
		Host:         DefaultHost,
		Port:         DefaultPort,
		DB:           DefaultDB,
		PoolSize:     DefaultPoolSize,
		MinIdleConns: DefaultMinIdleConns,
		MaxRetries:   DefaultMaxRetries,
		DialTimeout:  DefaultDialTimeout,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}
}

// Validate applies defaults to zero fields and checks the result.
func (c *Config) Validate() error {
	c.applyDefaults()

	if c.URI != "" {
		u, err := url.Parse(c.URI)
		if err != nil {
			return fmt.Errorf("redis: config URI is invalid: %w", err)
		}
		if u.Scheme != "redis" && u.Scheme != "rediss" {
			return fmt.Errorf("redis: config URI scheme must be redis:// or rediss://, got %q", u.Scheme)
		}
		return nil
	}

	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("redis: config port must be between 1 and 65535, got %d", c.Port)
	}
	if c.PoolSize < c.MinIdleConns {
		return fmt.Errorf("redis: config pool_size (%d) must be >= min_idle_conns (%d)", c.PoolSize, c.MinIdleConns)
	}
	if c.DialTimeout < 0 || c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		return fmt.Errorf("redis: config timeouts must not be negative")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.PoolSize == 0 {
		c.PoolSize = DefaultPoolSize
	}
	if c.MinIdleConns == 0 {
		c.MinIdleConns = DefaultMinIdleConns
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
}

func truncateStatement(s string) string {
	runes := []rune(s)
	if len(runes) <= maxStatementTruncateLen {
		return s
	}
	return string(runes[:maxStatementTruncateLen]) + "..."
}
