package config

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/StricklySoft/stricklysoft-jwt/pkg/clients/minio"
	"github.com/StricklySoft/stricklysoft-jwt/pkg/clients/postgres"
	"github.com/StricklySoft/stricklysoft-jwt/pkg/clients/redis"
	"github.com/StricklySoft/stricklysoft-jwt/pkg/consumer"
	sserr "github.com/StricklySoft/stricklysoft-jwt/pkg/errors"
)

// Keystore backends.
const (
	// KeystoreNone configures no keystore. Asymmetric consumers must then
	// use a JWK endpoint.
	KeystoreNone = "none"

	// KeystorePostgres reads certificates from the jwt_truststore_certificates
	// table.
	KeystorePostgres = "postgres"

	// KeystoreMinIO reads "<alias>.pem" objects from the bucket named by the
	// trust store reference.
	KeystoreMinIO = "minio"
)

// File is the configuration of a token-validation service: the consumers it
// serves plus the cache, keystore and logging settings shared by all of
// them.
//
//	consumers:
//	  - id: orders
//	    signature_algorithm: RS256
//	    trusted_issuers: "https://auth.example.com"
//	    trust_store_ref: platform
//	    trusted_alias: signer
//	keystore:
//	  backend: postgres
//	  postgres:
//	    uri: postgres://jwt@db/jwt_truststore
type File struct {
	Consumers  []consumer.Config   `json:"consumers" yaml:"consumers"`
	Properties consumer.Properties `json:"properties,omitempty" yaml:"properties" env:"JWT_PROPERTIES"`
	Cache      CacheConfig         `json:"cache" yaml:"cache"`
	Keystore   KeystoreConfig      `json:"keystore" yaml:"keystore"`
	Log        LogConfig           `json:"log" yaml:"log"`
}

// CacheConfig configures the validated-token cache and its Redis mirror.
type CacheConfig struct {
	Timeout            time.Duration `json:"timeout,omitempty" yaml:"timeout" env:"JWT_CACHE_TIMEOUT" envDefault:"5m"`
	SweepSchedule      string        `json:"sweep_schedule,omitempty" yaml:"sweep_schedule" env:"JWT_CACHE_SWEEP_SCHEDULE" envDefault:"@every 1m"`
	JWKRefreshInterval time.Duration `json:"jwk_refresh_interval,omitempty" yaml:"jwk_refresh_interval" env:"JWT_JWK_REFRESH_INTERVAL" envDefault:"30s"`
	MirrorEnabled      bool          `json:"mirror_enabled,omitempty" yaml:"mirror_enabled" env:"JWT_CACHE_MIRROR_ENABLED"`
	Redis              redis.Config  `json:"redis" yaml:"redis"`
}

// KeystoreConfig selects where trust-store certificates are read from.
type KeystoreConfig struct {
	Backend  string          `json:"backend,omitempty" yaml:"backend" env:"JWT_KEYSTORE_BACKEND" envDefault:"none"`
	Postgres postgres.Config `json:"postgres" yaml:"postgres"`
	MinIO    minio.Config    `json:"minio" yaml:"minio"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `json:"level,omitempty" yaml:"level" env:"LOG_LEVEL" envDefault:"info"`
	Format string `json:"format,omitempty" yaml:"format" env:"LOG_FORMAT" envDefault:"json"`
}

// Validate checks every consumer and the backends that are switched on.
// Consumer IDs must be unique.
func (f *File) Validate() error {
	seen := make(map[string]int, len(f.Consumers))
	for i := range f.Consumers {
		c := &f.Consumers[i]
		if err := c.Validate(); err != nil {
			return annotate(err, fmt.Sprintf("consumers[%d]", i))
		}
		if j, dup := seen[c.ID]; dup {
			return sserr.Newf(sserr.CodeValidation,
				"config: consumers[%d] and consumers[%d] share id %q", j, i, c.ID)
		}
		seen[c.ID] = i
	}

	if f.Cache.Timeout <= 0 {
		return sserr.Newf(sserr.CodeValidation, "config: cache.timeout must be positive, got %v", f.Cache.Timeout)
	}
	if _, err := cron.ParseStandard(f.Cache.SweepSchedule); err != nil {
		return sserr.Wrapf(err, sserr.CodeValidationFormat,
			"config: cache.sweep_schedule %q is not a cron schedule", f.Cache.SweepSchedule)
	}
	if f.Cache.MirrorEnabled {
		if err := f.Cache.Redis.Validate(); err != nil {
			return sserr.Wrap(err, sserr.CodeValidation, "config: cache.redis")
		}
	}

	switch f.Keystore.Backend {
	case "", KeystoreNone:
	case KeystorePostgres:
		if err := f.Keystore.Postgres.Validate(); err != nil {
			return sserr.Wrap(err, sserr.CodeValidation, "config: keystore.postgres")
		}
	case KeystoreMinIO:
		if err := f.Keystore.MinIO.Validate(); err != nil {
			return sserr.Wrap(err, sserr.CodeValidation, "config: keystore.minio")
		}
	default:
		return sserr.Newf(sserr.CodeValidation,
			"config: keystore.backend %q is not one of none, postgres, minio", f.Keystore.Backend)
	}

	switch f.Log.Format {
	case "json", "text":
	default:
		return sserr.Newf(sserr.CodeValidation, "config: log.format %q is not json or text", f.Log.Format)
	}
	return nil
}

// Consumer returns the consumer with the given id.
func (f *File) Consumer(id string) (*consumer.Config, bool) {
	for i := range f.Consumers {
		if f.Consumers[i].ID == id {
			return &f.Consumers[i], true
		}
	}
	return nil, false
}

// LoadFile loads a File from path and the environment.
func LoadFile(path string) (*File, error) {
	var f File
	if err := New().WithFile(path).Load(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

func annotate(err error, where string) error {
	if se, ok := sserr.AsError(err); ok {
		return se.WithDetail("field", where)
	}
	return sserr.Wrapf(err, sserr.CodeValidation, "config: %s", where)
}
