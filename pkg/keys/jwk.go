package keys

import (
	"context"
	"crypto"
	"fmt"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"golang.org/x/sync/singleflight"
)

// DefaultJWKRefreshInterval is the minimum time between forced refreshes of
// one endpoint when a token names an unknown key ID.
const DefaultJWKRefreshInterval = 30 * time.Second

// JWKSource fetches verification keys from a JWK Set endpoint.
type JWKSource interface {
	// PublicKey returns the key with the given ID. An empty kid selects the
	// only key of a single-key set.
	PublicKey(ctx context.Context, endpoint, kid string) (crypto.PublicKey, error)
}

// RemoteJWKSource caches JWK Sets per endpoint with a jwk.Cache. A token
// carrying an unknown kid triggers one refresh of the endpoint, shared by
// all concurrent callers and rate limited by the minimum refresh interval.
type RemoteJWKSource struct {
	cache       *jwk.Cache
	group       singleflight.Group
	minInterval time.Duration

	mu          sync.Mutex
	lastRefresh map[string]time.Time
	now         func() time.Time
}

var _ JWKSource = (*RemoteJWKSource)(nil)

// JWKOption configures a RemoteJWKSource.
type JWKOption func(*RemoteJWKSource)

// WithMinRefreshInterval overrides [DefaultJWKRefreshInterval].
func WithMinRefreshInterval(d time.Duration) JWKOption {
	return func(s *RemoteJWKSource) { s.minInterval = d }
}

// NewRemoteJWKSource returns a source whose background refresh goroutine
// lives as long as ctx.
func NewRemoteJWKSource(ctx context.Context, opts ...JWKOption) *RemoteJWKSource {
	s := &RemoteJWKSource{
		cache:       jwk.NewCache(ctx),
		minInterval: DefaultJWKRefreshInterval,
		lastRefresh: make(map[string]time.Time),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PublicKey implements [JWKSource].
func (s *RemoteJWKSource) PublicKey(ctx context.Context, endpoint, kid string) (crypto.PublicKey, error) {
	if err := s.register(endpoint); err != nil {
		return nil, err
	}

	set, err := s.cache.Get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("keys: fetching JWK set from %s: %w", endpoint, err)
	}
	if key, ok := lookup(set, kid); ok {
		return rawPublicKey(key)
	}

	set, err = s.refresh(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if key, ok := lookup(set, kid); ok {
		return rawPublicKey(key)
	}
	return nil, fmt.Errorf("keys: key ID %q not found in JWK set from %s", kid, endpoint)
}

func (s *RemoteJWKSource) register(endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cache.IsRegistered(endpoint) {
		return nil
	}
	if err := s.cache.Register(endpoint, jwk.WithMinRefreshInterval(s.minInterval)); err != nil {
		return fmt.Errorf("keys: registering JWK endpoint %s: %w", endpoint, err)
	}
	return nil
}

func (s *RemoteJWKSource) refresh(ctx context.Context, endpoint string) (jwk.Set, error) {
	v, err, _ := s.group.Do(endpoint, func() (any, error) {
		s.mu.Lock()
		last, seen := s.lastRefresh[endpoint]
		now := s.now()
		if seen && now.Sub(last) < s.minInterval {
			s.mu.Unlock()
			return s.cache.Get(ctx, endpoint)
		}
		s.lastRefresh[endpoint] = now
		s.mu.Unlock()
		return s.cache.Refresh(ctx, endpoint)
	})
	if err != nil {
		return nil, fmt.Errorf("keys: refreshing JWK set from %s: %w", endpoint, err)
	}
	return v.(jwk.Set), nil
}

func lookup(set jwk.Set, kid string) (jwk.Key, bool) {
	if kid != "" {
		return set.LookupKeyID(kid)
	}
	if set.Len() == 1 {
		return set.Key(0)
	}
	return nil, false
}

func rawPublicKey(key jwk.Key) (crypto.PublicKey, error) {
	pub, err := jwk.PublicKeyOf(key)
	if err != nil {
		return nil, fmt.Errorf("keys: deriving public key for %q: %w", key.KeyID(), err)
	}
	var raw any
	if err := pub.Raw(&raw); err != nil {
		return nil, fmt.Errorf("keys: decoding key %q: %w", key.KeyID(), err)
	}
	return raw, nil
}
