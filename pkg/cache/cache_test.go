package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/stricklysoft-jwt/pkg/claims"
	"github.com/StricklySoft/stricklysoft-jwt/pkg/token"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fakeClock { return &fakeClock{now: epoch} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func contextExpiring(exp time.Time) *token.Context {
	c := claims.New()
	c.Put(claims.Issuer, "https://auth.stricklysoft.test")
	c.Put(claims.ExpirationTime, float64(exp.Unix()))
	return &token.Context{Raw: "raw", Claims: c}
}

// ===========================================================================
// Put / Get
// ===========================================================================

func TestTokenCache_PutGet(t *testing.T) {
	t.Parallel()
	clock := newClock()
	c := NewTokenCache(time.Minute, WithClock(clock.Now))
	tc := contextExpiring(epoch.Add(time.Hour))

	c.Put("token-a", "consumer-1", tc, 0)
	assert.Same(t, tc, c.Get("token-a", "consumer-1"))
	assert.Nil(t, c.Get("token-a", "consumer-2"))
	assert.Nil(t, c.Get("token-b", "consumer-1"))
	assert.Equal(t, 1, c.Size())
}

func TestTokenCache_ReinsertIsLastWriteWins(t *testing.T) {
	t.Parallel()
	c := NewTokenCache(time.Minute)
	first := contextExpiring(time.Now().Add(time.Hour))
	second := contextExpiring(time.Now().Add(2 * time.Hour))

	c.Put("token", "consumer", first, 0)
	c.Put("token", "consumer", second, 0)
	assert.Equal(t, 1, c.Size())
	assert.Same(t, second, c.Get("token", "consumer"))
}

func TestTokenCache_ExpiresAfterTimeoutPlusSkew(t *testing.T) {
	t.Parallel()
	clock := newClock()
	c := NewTokenCache(time.Minute, WithClock(clock.Now))
	c.Put("token", "consumer", contextExpiring(epoch.Add(time.Hour)), 10*time.Second)

	clock.Advance(time.Minute + 10*time.Second)
	require.NotNil(t, c.Get("token", "consumer"), "boundary is inclusive")

	clock.Advance(time.Millisecond)
	assert.Nil(t, c.Get("token", "consumer"))
	assert.Equal(t, 0, c.Size(), "lazy eviction must remove the entry")
}

func TestTokenCache_TokenExpiryEvicts(t *testing.T) {
	t.Parallel()
	clock := newClock()
	c := NewTokenCache(time.Hour, WithClock(clock.Now))
	c.Put("token", "consumer", contextExpiring(epoch.Add(30*time.Second)), 5*time.Second)

	clock.Advance(35 * time.Second)
	require.NotNil(t, c.Get("token", "consumer"))

	clock.Advance(time.Second)
	assert.Nil(t, c.Get("token", "consumer"))
	assert.Equal(t, 0, c.Size())
}

func TestTokenCache_MalformedClaimsAreMisses(t *testing.T) {
	t.Parallel()
	c := NewTokenCache(time.Minute)

	bad := claims.New()
	bad.Put(claims.ExpirationTime, "tomorrow")
	c.Put("malformed", "consumer", &token.Context{Claims: bad}, 0)
	c.Put("noclaims", "consumer", &token.Context{}, 0)
	c.Put("nilctx", "consumer", nil, 0)

	assert.Nil(t, c.Get("malformed", "consumer"))
	assert.Nil(t, c.Get("noclaims", "consumer"))
	assert.Nil(t, c.Get("nilctx", "consumer"))
	assert.Equal(t, 0, c.Size())
}

func TestTokenCache_DefaultTimeout(t *testing.T) {
	t.Parallel()
	assert.Equal(t, DefaultTimeout, NewTokenCache(0).Timeout())
	assert.Equal(t, time.Second, NewTokenCache(time.Second).Timeout())
}

// ===========================================================================
// IsExpired
// ===========================================================================

func TestTokenCache_IsExpired(t *testing.T) {
	t.Parallel()
	clock := newClock()
	c := NewTokenCache(time.Minute, WithClock(clock.Now))

	noExp := claims.New()
	noExp.Put(claims.Subject, "user")

	tests := []struct {
		name  string
		entry *Entry
		want  bool
	}{
		{"nil entry", nil, true},
		{"nil context", &Entry{}, true},
		{"nil claims", &Entry{Context: &token.Context{}}, true},
		{"future exp", &Entry{Context: contextExpiring(epoch.Add(time.Minute))}, false},
		{"past exp", &Entry{Context: contextExpiring(epoch.Add(-time.Minute))}, true},
		{"past exp within skew", &Entry{Context: contextExpiring(epoch.Add(-time.Minute)), ClockSkew: 2 * time.Minute}, false},
		{"no exp", &Entry{Context: &token.Context{Claims: noExp}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.IsExpired(tt.entry))
		})
	}
}

// ===========================================================================
// EvictStaleEntries
// ===========================================================================

func TestTokenCache_EvictStaleEntries_Empty(t *testing.T) {
	t.Parallel()
	c := NewTokenCache(time.Minute)
	assert.NotPanics(t, func() { assert.Equal(t, 0, c.EvictStaleEntries()) })
}

func TestTokenCache_EvictStaleEntries(t *testing.T) {
	t.Parallel()
	clock := newClock()
	c := NewTokenCache(time.Minute, WithClock(clock.Now))

	c.Put("short", "consumer", contextExpiring(epoch.Add(10*time.Second)), 0)
	c.Put("long", "consumer", contextExpiring(epoch.Add(time.Hour)), 0)
	clock.Advance(30 * time.Second)

	assert.Equal(t, 1, c.EvictStaleEntries())
	assert.Equal(t, 1, c.Size())
	assert.NotNil(t, c.Get("long", "consumer"))

	clock.Advance(time.Minute)
	assert.Equal(t, 1, c.EvictStaleEntries())
	assert.Equal(t, 0, c.Size())
}

func TestTokenCache_Concurrent(t *testing.T) {
	t.Parallel()
	c := NewTokenCache(time.Minute)
	exp := time.Now().Add(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				raw := fmt.Sprintf("token-%d-%d", i, j%10)
				c.Put(raw, "consumer", contextExpiring(exp), 0)
				_ = c.Get(raw, "consumer")
				if j%25 == 0 {
					c.EvictStaleEntries()
				}
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 160, c.Size())
}

func TestDigest(t *testing.T) {
	t.Parallel()
	d := Digest("abc")
	assert.Len(t, d, 64)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", d)
}
