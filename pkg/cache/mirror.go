package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/StricklySoft/stricklysoft-jwt/pkg/clients/redis"
	sserr "github.com/StricklySoft/stricklysoft-jwt/pkg/errors"
	"github.com/StricklySoft/stricklysoft-jwt/pkg/token"
)

// MirrorKeyPrefix prefixes every key written by [RedisMirror].
const MirrorKeyPrefix = "jwt:validated"

// Mirror shares validation outcomes between consumer replicas. A marker
// only records that a peer verified the signature of a token for a
// consumer; claims are still validated locally.
type Mirror interface {
	MarkValidated(ctx context.Context, consumerID, raw string, ttl time.Duration) error
	IsValidated(ctx context.Context, consumerID, raw string) (bool, error)
}

// KV is the subset of [redis.Client] used by [RedisMirror].
type KV interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
}

var _ KV = (*redis.Client)(nil)

// RedisMirror stores markers as "jwt:validated:<consumerID>:<sha256>".
type RedisMirror struct {
	kv  KV
	now func() time.Time
}

var _ Mirror = (*RedisMirror)(nil)

// NewRedisMirror returns a mirror backed by kv.
func NewRedisMirror(kv KV) *RedisMirror {
	return &RedisMirror{kv: kv, now: time.Now}
}

// MirrorKey returns the key for (consumerID, raw).
func MirrorKey(consumerID, raw string) string {
	return MirrorKeyPrefix + ":" + consumerID + ":" + Digest(raw)
}

// MarkValidated records the token. A non-positive ttl writes nothing.
func (m *RedisMirror) MarkValidated(ctx context.Context, consumerID, raw string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return m.kv.Set(ctx, MirrorKey(consumerID, raw), strconv.FormatInt(m.now().Unix(), 10), ttl)
}

// IsValidated reports whether a marker exists for the token.
func (m *RedisMirror) IsValidated(ctx context.Context, consumerID, raw string) (bool, error) {
	_, err := m.kv.Get(ctx, MirrorKey(consumerID, raw))
	if err != nil {
		if sserr.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// MirrorTTL is the lifetime of a marker: the cache timeout, shortened to
// the token's remaining lifetime (exp plus skew) when that is sooner. It
// returns zero for a token that has already expired.
func MirrorTTL(timeout time.Duration, tc *token.Context, clockSkew time.Duration, now time.Time) time.Duration {
	ttl := timeout
	if tc == nil || tc.Claims == nil {
		return 0
	}
	exp, err := tc.Claims.GetExpirationTime()
	if err != nil {
		return 0
	}
	if exp != nil {
		if remaining := exp.Add(clockSkew).Sub(now); remaining < ttl {
			ttl = remaining
		}
	}
	if ttl < 0 {
		return 0
	}
	return ttl
}
