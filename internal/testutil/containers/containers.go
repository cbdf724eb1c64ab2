//go:build integration

// Package containers starts throwaway backends for integration tests of the
// keystore and cache packages:
//
//   - PostgreSQL, holding the trust-store certificate table
//   - Redis, backing the shared validation mirror
//   - MinIO, serving PEM certificates as objects
//
// Everything here is behind the "integration" build tag. Callers own the
// returned container and must terminate it:
//
//	result, err := containers.StartRedis(ctx)
//	if err != nil { ... }
//	defer result.Container.Terminate(ctx)
package containers

import (
	"context"
	"fmt"

	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// ===========================================================================
// PostgreSQL
// ===========================================================================

// Container settings for PostgreSQL. The credentials are only ever used
// against ephemeral local containers.
const (
	// DefaultPostgresImage is the PostgreSQL image started by [StartPostgres].
	DefaultPostgresImage = "docker.io/postgres:16-alpine"

	// DefaultPostgresDatabase is created on container start.
	DefaultPostgresDatabase = "jwt_test"

	// DefaultPostgresUser owns DefaultPostgresDatabase.
	DefaultPostgresUser = "testuser"

	// DefaultPostgresPassword is the password of DefaultPostgresUser.
	DefaultPostgresPassword = "testpassword"
)

// PostgresResult is a running PostgreSQL container and its URI
// (sslmode=disable).
type PostgresResult struct {
	Container  *tcpostgres.PostgresContainer
	ConnString string
}

// StartPostgres starts PostgreSQL and waits until it accepts connections.
// If the connection string cannot be read the container is terminated.
func StartPostgres(ctx context.Context) (*PostgresResult, error) {
	container, err := tcpostgres.Run(ctx,
		DefaultPostgresImage,
		tcpostgres.WithDatabase(DefaultPostgresDatabase),
		tcpostgres.WithUsername(DefaultPostgresUser),
		tcpostgres.WithPassword(DefaultPostgresPassword),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, fmt.Errorf("containers: failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("containers: failed to get connection string: %w", err)
	}
	return &PostgresResult{Container: container, ConnString: connStr}, nil
}

// ===========================================================================
// Redis
// ===========================================================================

// DefaultRedisImage is the Redis image; the container runs without auth.
const DefaultRedisImage = "docker.io/redis:7-alpine"

// RedisResult is a running Redis container and its redis:// URI.
type RedisResult struct {
	Container  *tcredis.RedisContainer
	ConnString string
}

// StartRedis starts Redis.
func StartRedis(ctx context.Context) (*RedisResult, error) {
	container, err := tcredis.Run(ctx, DefaultRedisImage)
	if err != nil {
		return nil, fmt.Errorf("containers: failed to start redis container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("containers: failed to get redis connection string: %w", err)
	}
	return &RedisResult{Container: container, ConnString: connStr}, nil
}

// ===========================================================================
// MinIO
// ===========================================================================

// Container settings for MinIO.
const (
	// DefaultMinIOImage is the MinIO image started by [StartMinIO].
	DefaultMinIOImage = "docker.io/minio/minio:latest"

	// DefaultMinIOAccessKey is the root user of the container.
	DefaultMinIOAccessKey = "minioadmin"

	// DefaultMinIOSecretKey is the root password of the container.
	DefaultMinIOSecretKey = "minioadmin"
)

// MinIOResult is a running MinIO container, its host:port endpoint, and
// root credentials.
type MinIOResult struct {
	Container *tcminio.MinioContainer
	Endpoint  string
	AccessKey string
	SecretKey string
}

// StartMinIO starts MinIO.
func StartMinIO(ctx context.Context) (*MinIOResult, error) {
	container, err := tcminio.Run(ctx,
		DefaultMinIOImage,
		tcminio.WithUsername(DefaultMinIOAccessKey),
		tcminio.WithPassword(DefaultMinIOSecretKey),
	)
	if err != nil {
		return nil, fmt.Errorf("containers: failed to start minio container: %w", err)
	}

	endpoint, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("containers: failed to get minio connection string: %w", err)
	}
	return &MinIOResult{
		Container: container,
		Endpoint:  endpoint,
		AccessKey: DefaultMinIOAccessKey,
		SecretKey: DefaultMinIOSecretKey,
	}, nil
}
