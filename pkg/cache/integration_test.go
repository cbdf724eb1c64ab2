//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/StricklySoft/stricklysoft-jwt/internal/testutil/containers"
	"github.com/StricklySoft/stricklysoft-jwt/pkg/clients/redis"
)

type MirrorIntegrationSuite struct {
	suite.Suite
	ctx    context.Context
	redis  *containers.RedisResult
	client *redis.Client
}

func TestMirrorIntegration(t *testing.T) {
	suite.Run(t, new(MirrorIntegrationSuite))
}

func (s *MirrorIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	var err error
	s.redis, err = containers.StartRedis(s.ctx)
	s.Require().NoError(err)
	s.client, err = redis.NewClient(s.ctx, redis.Config{URI: s.redis.ConnString})
	s.Require().NoError(err)
}

func (s *MirrorIntegrationSuite) TearDownSuite() {
	if s.client != nil {
		_ = s.client.Close()
	}
	if s.redis != nil {
		_ = s.redis.Container.Terminate(s.ctx)
	}
}

func (s *MirrorIntegrationSuite) TestMarkAndLookup() {
	t := s.T()
	m := NewRedisMirror(s.client)

	ok, err := m.IsValidated(s.ctx, "orders", "a.b.c")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.MarkValidated(s.ctx, "orders", "a.b.c", time.Minute))
	ok, err = m.IsValidated(s.ctx, "orders", "a.b.c")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.IsValidated(s.ctx, "billing", "a.b.c")
	require.NoError(t, err)
	assert.False(t, ok, "markers are per consumer")

	ttl, err := s.client.TTL(s.ctx, MirrorKey("orders", "a.b.c"))
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)
	assert.LessOrEqual(t, ttl, time.Minute)
}

func (s *MirrorIntegrationSuite) TestMarkerExpires() {
	t := s.T()
	m := NewRedisMirror(s.client)
	require.NoError(t, m.MarkValidated(s.ctx, "orders", "short.lived.token", time.Second))

	assert.Eventually(t, func() bool {
		ok, err := m.IsValidated(s.ctx, "orders", "short.lived.token")
		return err == nil && !ok
	}, 5*time.Second, 100*time.Millisecond)
}
