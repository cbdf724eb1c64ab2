package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/stricklysoft-jwt/pkg/claims"
	sserr "github.com/StricklySoft/stricklysoft-jwt/pkg/errors"
	"github.com/StricklySoft/stricklysoft-jwt/pkg/token"
)

type fakeKV struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
	err  error
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeKV) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.data[key] = value.(string)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeKV) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	v, ok := f.data[key]
	if !ok {
		return "", sserr.NotFoundf("key %s not found", key)
	}
	return v, nil
}

func TestMirrorKey(t *testing.T) {
	t.Parallel()
	key := MirrorKey("orders-consumer", "abc")
	assert.Equal(t, "jwt:validated:orders-consumer:"+Digest("abc"), key)
	assert.False(t, strings.Contains(key, ":abc"), "raw token must not appear in the key")
}

func TestRedisMirror_RoundTrip(t *testing.T) {
	t.Parallel()
	kv := newFakeKV()
	m := NewRedisMirror(kv)
	ctx := context.Background()

	ok, err := m.IsValidated(ctx, "consumer", "token")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.MarkValidated(ctx, "consumer", "token", time.Minute))
	assert.Equal(t, time.Minute, kv.ttls[MirrorKey("consumer", "token")])

	ok, err = m.IsValidated(ctx, "consumer", "token")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.IsValidated(ctx, "other-consumer", "token")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisMirror_NonPositiveTTLSkipsWrite(t *testing.T) {
	t.Parallel()
	kv := newFakeKV()
	require.NoError(t, NewRedisMirror(kv).MarkValidated(context.Background(), "c", "t", 0))
	assert.Empty(t, kv.data)
}

func TestRedisMirror_BackendError(t *testing.T) {
	t.Parallel()
	kv := newFakeKV()
	kv.err = errors.New("connection refused")
	m := NewRedisMirror(kv)

	_, err := m.IsValidated(context.Background(), "c", "t")
	assert.Error(t, err)
	assert.Error(t, m.MarkValidated(context.Background(), "c", "t", time.Second))
}

func TestMirrorTTL(t *testing.T) {
	t.Parallel()
	now := epoch
	noExp := &token.Context{Claims: claims.New()}
	bad := claims.New()
	bad.Put(claims.ExpirationTime, "later")

	tests := []struct {
		name string
		tc   *token.Context
		skew time.Duration
		want time.Duration
	}{
		{"cache timeout sooner", contextExpiring(now.Add(time.Hour)), 0, 5 * time.Minute},
		{"token expiry sooner", contextExpiring(now.Add(time.Minute)), 0, time.Minute},
		{"skew extends lifetime", contextExpiring(now.Add(time.Minute)), 30 * time.Second, 90 * time.Second},
		{"already expired", contextExpiring(now.Add(-time.Minute)), 0, 0},
		{"no exp", noExp, 0, 5 * time.Minute},
		{"malformed exp", &token.Context{Claims: bad}, 0, 0},
		{"nil context", nil, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MirrorTTL(5*time.Minute, tt.tc, tt.skew, now))
		})
	}
}
