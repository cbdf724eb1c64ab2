package keys

import (
	"context"
	"crypto"
	"crypto/x509"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/stricklysoft-jwt/internal/testutil"
	"github.com/StricklySoft/stricklysoft-jwt/internal/testutil/fixtures"
	sserr "github.com/StricklySoft/stricklysoft-jwt/pkg/errors"
	"github.com/StricklySoft/stricklysoft-jwt/pkg/keystore"
	"github.com/StricklySoft/stricklysoft-jwt/pkg/token"
)

type failingKeystore struct{ err error }

func (f failingKeystore) Certificate(context.Context, string, string) (*x509.Certificate, error) {
	return nil, f.err
}

type stubJWKSource struct {
	key      crypto.PublicKey
	err      error
	endpoint string
	kid      string
}

func (s *stubJWKSource) PublicKey(_ context.Context, endpoint, kid string) (crypto.PublicKey, error) {
	s.endpoint, s.kid = endpoint, kid
	return s.key, s.err
}

func keystoreWith(t *testing.T, key crypto.Signer) *keystore.StaticStore {
	t.Helper()
	cert, _ := testutil.Certificate(t, key, "signer")
	ks := keystore.NewStaticStore()
	ks.Add(fixtures.TrustStoreRef, fixtures.Alias, cert)
	return ks
}

func rsaSource() *KeySource {
	return &KeySource{
		ConsumerID:    fixtures.ConsumerID,
		Algorithm:     "RS256",
		TrustStoreRef: fixtures.TrustStoreRef,
		TrustedAlias:  fixtures.Alias,
	}
}

// ===========================================================================
// ResolveSigningKey dispatch
// ===========================================================================

func TestResolveSigningKey_NilSource(t *testing.T) {
	t.Parallel()
	_, err := NewResolver().ResolveSigningKey(context.Background(), nil, nil)
	testutil.AssertErrorCode(t, err, sserr.CodeSigningKeyMissing)
}

func TestResolveSigningKey_HMAC(t *testing.T) {
	t.Parallel()
	src := &KeySource{ConsumerID: fixtures.ConsumerID, Algorithm: "HS256", SharedKey: fixtures.SharedSecret}

	key, err := NewResolver().ResolveSigningKey(context.Background(), src, nil)
	require.NoError(t, err)
	assert.Equal(t, OriginSharedSecret, key.Origin)
	assert.Equal(t, []byte(fixtures.SharedSecret), key.Key)
	assert.Equal(t, "HS256", key.Algorithm)
}

func TestResolveSigningKey_HMACMissingSecret(t *testing.T) {
	t.Parallel()
	src := &KeySource{ConsumerID: fixtures.ConsumerID, Algorithm: "HS512"}

	_, err := NewResolver().ResolveSigningKey(context.Background(), src, nil)
	testutil.RequireErrorCode(t, err, sserr.CodeSharedKeyMissing)
	assert.True(t, sserr.HasCodeInChain(err, sserr.CodeSigningKeyInvalid))
	assert.Equal(t, fixtures.ConsumerID, sserr.FromError(err).Detail("consumer_id"))
}

func TestResolveSigningKey_Keystore(t *testing.T) {
	t.Parallel()
	rsaKey := testutil.RSAKey(t)
	r := NewResolver(WithKeystore(keystoreWith(t, rsaKey)), WithAlgorithmChecker(DefaultAlgorithmChecker{}))

	key, err := r.ResolveSigningKey(context.Background(), rsaSource(), nil)
	require.NoError(t, err)
	assert.Equal(t, OriginKeystore, key.Origin)
	assert.Equal(t, rsaKey.Public(), key.Key)
}

func TestResolveSigningKey_UnknownAlgorithm(t *testing.T) {
	t.Parallel()
	src := rsaSource()
	src.Algorithm = "XX999"

	key, err := NewResolver().ResolveSigningKey(context.Background(), src, nil)
	assert.NoError(t, err)
	assert.Nil(t, key)
}

func TestResolveSigningKey_NoneIsUnverifiable(t *testing.T) {
	t.Parallel()
	src := rsaSource()
	src.Algorithm = "none"

	key, err := NewResolver().ResolveSigningKey(context.Background(), src, nil)
	assert.NoError(t, err)
	assert.Nil(t, key)
}

// ===========================================================================
// ResolvePublicKey
// ===========================================================================

func TestResolvePublicKey_NoKeystore(t *testing.T) {
	t.Parallel()
	_, err := NewResolver().ResolvePublicKey(context.Background(), fixtures.Alias, fixtures.TrustStoreRef, "RS256")
	testutil.RequireErrorCode(t, err, sserr.CodeSigningKeyUnavailable)

	e := sserr.FromError(err)
	assert.Equal(t, fixtures.Alias, e.Detail("alias"))
	assert.Equal(t, fixtures.TrustStoreRef, e.Detail("trust_store"))
	assert.Equal(t, "RS256", e.Detail("algorithm"))
	assert.Contains(t, err.Error(), fixtures.Alias)
}

func TestResolvePublicKey_LookupFails(t *testing.T) {
	t.Parallel()
	r := NewResolver(WithKeystore(keystore.NewStaticStore()))

	_, err := r.ResolvePublicKey(context.Background(), "missing", fixtures.TrustStoreRef, "ES256")
	testutil.RequireErrorCode(t, err, sserr.CodeSigningKeyUnavailable)
	assert.True(t, sserr.HasCodeInChain(err, sserr.CodeNotFound))
}

func TestResolvePublicKey_BackendError(t *testing.T) {
	t.Parallel()
	cause := errors.New("truststore offline")
	r := NewResolver(WithKeystore(failingKeystore{err: cause}))

	_, err := r.ResolvePublicKey(context.Background(), fixtures.Alias, fixtures.TrustStoreRef, "RS256")
	testutil.RequireErrorCode(t, err, sserr.CodeSigningKeyUnavailable)
	assert.ErrorIs(t, err, cause)
}

func TestResolvePublicKey_CheckerRejectsWrongFamily(t *testing.T) {
	t.Parallel()
	r := NewResolver(
		WithKeystore(keystoreWith(t, testutil.ECKey(t))),
		WithAlgorithmChecker(DefaultAlgorithmChecker{}),
	)

	_, err := r.ResolvePublicKey(context.Background(), fixtures.Alias, fixtures.TrustStoreRef, "RS256")
	testutil.AssertErrorCode(t, err, sserr.CodeSigningKeyInvalid)
}

func TestResolvePublicKey_WithoutCheckerAnyKeyType(t *testing.T) {
	t.Parallel()
	ecKey := testutil.ECKey(t)
	r := NewResolver(WithKeystore(keystoreWith(t, ecKey)))

	key, err := r.ResolvePublicKey(context.Background(), fixtures.Alias, fixtures.TrustStoreRef, "RS256")
	require.NoError(t, err)
	assert.Equal(t, ecKey.Public(), key.Key)
}

// ===========================================================================
// JWK mode
// ===========================================================================

func jwkSource() *KeySource {
	src := rsaSource()
	src.JWKEnabled = true
	src.JWKEndpointURL = "https://auth.stricklysoft.test/.well-known/jwks.json"
	return src
}

func TestResolveSigningKey_JWK(t *testing.T) {
	t.Parallel()
	rsaKey := testutil.RSAKey(t)
	stub := &stubJWKSource{key: rsaKey.Public()}
	r := NewResolver(WithJWKSource(stub), WithAlgorithmChecker(DefaultAlgorithmChecker{}))
	tc := &token.Context{Header: map[string]any{"alg": "RS256", "kid": fixtures.KeyID}}

	key, err := r.ResolveSigningKey(context.Background(), jwkSource(), tc)
	require.NoError(t, err)
	assert.Equal(t, OriginJWK, key.Origin)
	assert.Equal(t, fixtures.KeyID, key.KeyID)
	assert.Equal(t, fixtures.KeyID, stub.kid)
	assert.Equal(t, jwkSource().JWKEndpointURL, stub.endpoint)
}

func TestResolveSigningKey_JWKWithoutSource(t *testing.T) {
	t.Parallel()
	_, err := NewResolver().ResolveSigningKey(context.Background(), jwkSource(), nil)
	testutil.AssertErrorCode(t, err, sserr.CodeSigningKeyUnavailable)
}

func TestResolveSigningKey_JWKFetchFails(t *testing.T) {
	t.Parallel()
	r := NewResolver(WithJWKSource(&stubJWKSource{err: errors.New("503")}))

	_, err := r.ResolveSigningKey(context.Background(), jwkSource(), nil)
	testutil.AssertErrorCode(t, err, sserr.CodeSigningKeyUnavailable)
}

func TestResolveSigningKey_JWKWrongKeyType(t *testing.T) {
	t.Parallel()
	r := NewResolver(
		WithJWKSource(&stubJWKSource{key: testutil.ECKey(t).Public()}),
		WithAlgorithmChecker(DefaultAlgorithmChecker{}),
	)

	_, err := r.ResolveSigningKey(context.Background(), jwkSource(), nil)
	testutil.AssertErrorCode(t, err, sserr.CodeSigningKeyInvalid)
}
