// Package cache holds validated token contexts so repeated presentations of
// the same token skip signature verification.
//
// Entries are keyed by the SHA-256 digest of the raw token together with the
// consumer configuration ID. An entry leaves the cache once the cache
// timeout plus the entry's clock skew has elapsed since insertion, or once
// the token's own exp claim plus that skew has passed. Expired entries are
// removed lazily by [TokenCache.Get] and in bulk by
// [TokenCache.EvictStaleEntries], which a [Sweeper] runs on a schedule.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/StricklySoft/stricklysoft-jwt/pkg/token"
)

// DefaultTimeout bounds how long a validated token stays cached.
const DefaultTimeout = 5 * time.Minute

// Entry is a cached validation result.
type Entry struct {
	Context   *token.Context
	ClockSkew time.Duration
	CreatedAt time.Time
}

type entryKey struct {
	digest     [sha256.Size]byte
	consumerID string
}

func keyFor(raw, consumerID string) entryKey {
	return entryKey{digest: sha256.Sum256([]byte(raw)), consumerID: consumerID}
}

// Digest returns the hex SHA-256 of a raw token, the form used in mirror
// keys and logs.
func Digest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// TokenCache is a time-bounded map of validated tokens. It is safe for
// concurrent use.
type TokenCache struct {
	mu      sync.Mutex
	entries map[entryKey]*Entry
	timeout time.Duration
	now     func() time.Time
}

// Option configures a TokenCache.
type Option func(*TokenCache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *TokenCache) { c.now = now }
}

// NewTokenCache returns an empty cache. A non-positive timeout selects
// [DefaultTimeout].
func NewTokenCache(timeout time.Duration, opts ...Option) *TokenCache {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &TokenCache{
		entries: make(map[entryKey]*Entry),
		timeout: timeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Timeout returns the cache-level lifetime of an entry.
func (c *TokenCache) Timeout() time.Duration { return c.timeout }

// Put stores tc under (raw, consumerID), replacing any previous entry.
func (c *TokenCache) Put(raw, consumerID string, tc *token.Context, clockSkew time.Duration) {
	e := &Entry{Context: tc, ClockSkew: clockSkew, CreatedAt: c.now()}
	c.mu.Lock()
	c.entries[keyFor(raw, consumerID)] = e
	c.mu.Unlock()
}

// Get returns the cached context or nil. An expired or malformed entry is
// removed before nil is returned.
func (c *TokenCache) Get(raw, consumerID string) *token.Context {
	k := keyFor(raw, consumerID)

	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[k]
	if !ok {
		return nil
	}
	if c.stale(e) {
		delete(c.entries, k)
		return nil
	}
	return e.Context
}

// EvictStaleEntries removes every expired entry and returns how many were
// removed.
func (c *TokenCache) EvictStaleEntries() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		if c.stale(e) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Size returns the number of distinct keys held, including entries not yet
// evicted.
func (c *TokenCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// IsExpired reports token-level expiry: the entry has no claims, its exp
// claim is malformed, or exp plus the entry's clock skew has passed. A token
// without exp is bounded only by the cache timeout.
func (c *TokenCache) IsExpired(e *Entry) bool {
	if e == nil || e.Context == nil || e.Context.Claims == nil {
		return true
	}
	exp, err := e.Context.Claims.GetExpirationTime()
	if err != nil {
		return true
	}
	if exp == nil {
		return false
	}
	return c.now().After(exp.Add(e.ClockSkew))
}

func (c *TokenCache) stale(e *Entry) bool {
	if c.now().After(e.CreatedAt.Add(c.timeout + e.ClockSkew)) {
		return true
	}
	return c.IsExpired(e)
}
