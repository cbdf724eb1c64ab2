package postgres

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// maxStatementLen bounds the SQL recorded on spans.
const maxStatementLen = 100

// Defaults for the trust-store database.
const (
	// DefaultHost is used when neither URI nor Host is set.
	DefaultHost = "localhost"

	// DefaultPort is the standard PostgreSQL port.
	DefaultPort = 5432

	// DefaultDatabase holds the jwt_truststore_certificates table.
	DefaultDatabase = "jwt_truststore"

	// DefaultUser is the role used when none is configured.
	DefaultUser = "postgres"

	// DefaultMaxConns caps the pool. Certificate lookups are rare once
	// the token cache is warm.
	DefaultMaxConns int32 = 10

	// DefaultMinConns keeps one connection open.
	DefaultMinConns int32 = 1

	// DefaultConnectTimeout bounds the initial connect and ping.
	DefaultConnectTimeout = 10 * time.Second

	// DefaultHealthTimeout bounds [Client.Health] when the caller's context
	// has no deadline.
	DefaultHealthTimeout = 5 * time.Second
)

// Secret redacts its value when printed or serialized. Use Value to read
// it.
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

// SSLMode is the libpq sslmode parameter.
type SSLMode string

const (
	// SSLModeDisable turns TLS off. Only suitable for local development.
	SSLModeDisable SSLMode = "disable"

	// SSLModeRequire encrypts the connection without verifying the server.
	SSLModeRequire SSLMode = "require"

	// SSLModeVerifyCA verifies the server certificate chain.
	SSLModeVerifyCA SSLMode = "verify-ca"

	// SSLModeVerifyFull verifies the chain and the server host name.
	SSLModeVerifyFull SSLMode = "verify-full"
)

// Valid reports whether m is a recognized mode.
func (m SSLMode) Valid() bool {
	switch m {
	case SSLModeDisable, SSLModeRequire, SSLModeVerifyCA, SSLModeVerifyFull:
		return true
	}
	return false
}

// Config configures the connection pool. URI, when set, overrides the
// structured connection fields.
type Config struct {
	URI            string        `json:"uri,omitempty" yaml:"uri" env:"POSTGRES_URI"`
	Host           string        `json:"host,omitempty" yaml:"host" env:"POSTGRES_HOST"`
	Port           int           `json:"port,omitempty" yaml:"port" env:"POSTGRES_PORT"`
	Database       string        `json:"database" yaml:"database" env:"POSTGRES_DATABASE"`
	User           string        `json:"user" yaml:"user" env:"POSTGRES_USER"`
	Password       Secret        `json:"-" yaml:"password" env:"POSTGRES_PASSWORD"`
	SSLMode        SSLMode       `json:"ssl_mode,omitempty" yaml:"ssl_mode" env:"POSTGRES_SSLMODE"`
	MaxConns       int32         `json:"max_conns,omitempty" yaml:"max_conns" env:"POSTGRES_MAX_CONNS"`
	MinConns       int32         `json:"min_conns,omitempty" yaml:"min_conns" env:"POSTGRES_MIN_CONNS"`
	ConnectTimeout time.Duration `json:"connect_timeout,omitempty" yaml:"connect_timeout" env:"POSTGRES_CONNECT_TIMEOUT"`
}

// Validate fills defaults for zero fields and rejects invalid values.
func (c *Config) Validate() error {
	if c.MaxConns == 0 {
		c.MaxConns = DefaultMaxConns
	}
	if c.MinConns == 0 {
		c.MinConns = DefaultMinConns
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.MaxConns < c.MinConns {
		return fmt.Errorf("postgres: max_conns (%d) must be >= min_conns (%d)", c.MaxConns, c.MinConns)
	}

	if c.URI != "" {
		u, err := url.Parse(c.URI)
		if err != nil {
			return fmt.Errorf("postgres: uri is invalid: %w", err)
		}
		if u.Scheme != "postgres" && u.Scheme != "postgresql" {
			return fmt.Errorf("postgres: uri scheme %q is not postgres", u.Scheme)
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
		return fmt.Errorf("postgres: port must be between 1 and 65535, got %d", c.Port)
	}
	if c.Database == "" {
		return errors.New("postgres: database must not be empty")
	}
	if c.User == "" {
		return errors.New("postgres: user must not be empty")
	}
	if c.SSLMode == "" {
		c.SSLMode = SSLModeRequire
	}
	if !c.SSLMode.Valid() {
		return fmt.Errorf("postgres: ssl_mode %q is not valid", c.SSLMode)
	}
	return nil
}

// ConnectionString returns the URI, or builds one from the structured
// fields. The result contains the password in clear text.
func (c *Config) ConnectionString() string {
	if c.URI != "" {
		return c.URI
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password.Value()),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   c.Database,
	}
	q := u.Query()
	if c.SSLMode != "" {
		q.Set("sslmode", string(c.SSLMode))
	}
	if c.ConnectTimeout > 0 {
		q.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func truncateSQL(sql string) string {
	if len(sql) <= maxStatementLen {
		return sql
	}
	return sql[:maxStatementLen] + "..."
}
