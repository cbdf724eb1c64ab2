package keys

import (
	"context"
	"crypto"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/stricklysoft-jwt/internal/testutil"
)

// jwksServer serves a mutable JWK set and counts fetches.
type jwksServer struct {
	*httptest.Server
	mu   sync.Mutex
	set  jwk.Set
	hits atomic.Int32
}

func newJWKSServer(t *testing.T) *jwksServer {
	t.Helper()
	s := &jwksServer{set: jwk.NewSet()}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.hits.Add(1)
		s.mu.Lock()
		body, err := json.Marshal(s.set)
		s.mu.Unlock()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *jwksServer) add(t *testing.T, kid string, pub crypto.PublicKey) {
	t.Helper()
	key, err := jwk.FromRaw(pub)
	require.NoError(t, err)
	require.NoError(t, key.Set(jwk.KeyIDKey, kid))
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NoError(t, s.set.AddKey(key))
}

func TestRemoteJWKSource_LookupByKid(t *testing.T) {
	t.Parallel()
	srv := newJWKSServer(t)
	rsaKey := testutil.RSAKey(t)
	ecKey := testutil.ECKey(t)
	srv.add(t, "rsa-1", rsaKey.Public())
	srv.add(t, "ec-1", ecKey.Public())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := NewRemoteJWKSource(ctx)

	got, err := src.PublicKey(ctx, srv.URL, "rsa-1")
	require.NoError(t, err)
	assert.True(t, rsaKey.PublicKey.Equal(got))

	got, err = src.PublicKey(ctx, srv.URL, "ec-1")
	require.NoError(t, err)
	assert.True(t, ecKey.PublicKey.Equal(got))
}

func TestRemoteJWKSource_EmptyKidSingleKey(t *testing.T) {
	t.Parallel()
	srv := newJWKSServer(t)
	edKey := testutil.Ed25519Key(t)
	srv.add(t, "only", edKey.Public())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got, err := NewRemoteJWKSource(ctx).PublicKey(ctx, srv.URL, "")
	require.NoError(t, err)
	assert.Equal(t, edKey.Public(), got)
}

func TestRemoteJWKSource_EmptyKidAmbiguous(t *testing.T) {
	t.Parallel()
	srv := newJWKSServer(t)
	srv.add(t, "a", testutil.ECKey(t).Public())
	srv.add(t, "b", testutil.ECKey(t).Public())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := NewRemoteJWKSource(ctx).PublicKey(ctx, srv.URL, "")
	assert.Error(t, err)
}

func TestRemoteJWKSource_RefreshOnRotation(t *testing.T) {
	t.Parallel()
	srv := newJWKSServer(t)
	srv.add(t, "old", testutil.ECKey(t).Public())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := NewRemoteJWKSource(ctx)

	_, err := src.PublicKey(ctx, srv.URL, "old")
	require.NoError(t, err)
	before := srv.hits.Load()

	rotated := testutil.ECKey(t)
	srv.add(t, "new", rotated.Public())

	got, err := src.PublicKey(ctx, srv.URL, "new")
	require.NoError(t, err)
	assert.True(t, rotated.PublicKey.Equal(got))
	assert.Greater(t, srv.hits.Load(), before)
}

func TestRemoteJWKSource_UnknownKidRateLimited(t *testing.T) {
	t.Parallel()
	srv := newJWKSServer(t)
	srv.add(t, "k1", testutil.ECKey(t).Public())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := NewRemoteJWKSource(ctx)

	_, err := src.PublicKey(ctx, srv.URL, "missing")
	require.Error(t, err)
	afterFirst := srv.hits.Load()

	_, err = src.PublicKey(ctx, srv.URL, "missing")
	require.Error(t, err)
	assert.Equal(t, afterFirst, srv.hits.Load(), "second unknown kid must not refetch within the refresh interval")
}

func TestRemoteJWKSource_EndpointDown(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := NewRemoteJWKSource(ctx).PublicKey(ctx, srv.URL, "k1")
	assert.Error(t, err)
}
