package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/stricklysoft-jwt/internal/testutil"
	"github.com/StricklySoft/stricklysoft-jwt/internal/testutil/fixtures"
	"github.com/StricklySoft/stricklysoft-jwt/pkg/config"
	"github.com/StricklySoft/stricklysoft-jwt/pkg/consumer"
	sserr "github.com/StricklySoft/stricklysoft-jwt/pkg/errors"
	"github.com/StricklySoft/stricklysoft-jwt/pkg/keystore"
	"github.com/StricklySoft/stricklysoft-jwt/pkg/token"
)

const rsaConsumer = "rsa-consumer"

func testFile() *config.File {
	return &config.File{
		Consumers: []consumer.Config{
			{
				ID:                 fixtures.ConsumerID,
				SignatureAlgorithm: "HS256",
				TrustedIssuers:     fixtures.Issuer,
				Audiences:          []string{fixtures.Audience},
				SharedKey:          consumer.Secret(fixtures.SharedSecret),
				ClockSkew:          time.Minute,
				CacheEnabled:       true,
			},
			{
				ID:                                 rsaConsumer,
				SignatureAlgorithm:                 "RS256",
				TrustedIssuers:                     "*",
				TrustStoreRef:                      fixtures.TrustStoreRef,
				TrustedAlias:                       fixtures.Alias,
				IgnoreAudienceClaimIfNotConfigured: true,
			},
		},
		Cache: config.CacheConfig{
			Timeout:            time.Minute,
			SweepSchedule:      "@every 1m",
			JWKRefreshInterval: time.Second,
		},
		Keystore: config.KeystoreConfig{Backend: config.KeystoreNone},
	}
}

func hmacToken(t *testing.T) string {
	t.Helper()
	raw, err := token.NewBuilder().
		Issuer(fixtures.Issuer).
		Subject(fixtures.Subject).
		Audience(fixtures.Audience).
		ExpiresIn(time.Minute).
		Sign("HS256", []byte(fixtures.SharedSecret))
	require.NoError(t, err)
	return raw
}

type recordingMirror struct {
	mu     sync.Mutex
	marked map[string]time.Duration
}

func (m *recordingMirror) MarkValidated(_ context.Context, consumerID, raw string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.marked == nil {
		m.marked = map[string]time.Duration{}
	}
	m.marked[consumerID+"|"+raw] = ttl
	return nil
}

func (m *recordingMirror) IsValidated(context.Context, string, string) (bool, error) {
	return false, nil
}

func newService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	s, err := New(context.Background(), testFile(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop(context.Background()) })
	return s
}

// ===========================================================================
// Lifecycle
// ===========================================================================

func TestService_StartStop(t *testing.T) {
	t.Parallel()
	s := newService(t)

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()), "second start is a no-op")
	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()), "second stop is a no-op")
	assert.NoError(t, s.Health(context.Background()), "no backends configured")
}

func TestService_StartAfterStopFails(t *testing.T) {
	t.Parallel()
	s := newService(t)

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	testutil.AssertErrorCode(t, s.Start(context.Background()), sserr.CodeInternal)
}

func TestService_StartFailsAfterStopWithoutStart(t *testing.T) {
	t.Parallel()
	s := newService(t)

	require.NoError(t, s.Stop(context.Background()))
	testutil.AssertErrorCode(t, s.Start(context.Background()), sserr.CodeInternal)
}

func TestService_StartRejectsBadSchedule(t *testing.T) {
	t.Parallel()
	cfg := testFile()
	cfg.Cache.SweepSchedule = "whenever"
	s, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { _ = s.Stop(context.Background()) }()

	testutil.AssertErrorCode(t, s.Start(context.Background()), sserr.CodeInternalConfiguration)
}

// ===========================================================================
// Validate
// ===========================================================================

func TestService_Validate(t *testing.T) {
	t.Parallel()
	mirror := &recordingMirror{}
	s := newService(t, WithMirror(mirror))
	raw := hmacToken(t)

	c, err := s.Validate(context.Background(), fixtures.ConsumerID, raw)
	require.NoError(t, err)
	sub, _ := c.GetSubject()
	assert.Equal(t, fixtures.Subject, sub)
	assert.Equal(t, 1, s.Cache().Size())
	assert.Contains(t, mirror.marked, fixtures.ConsumerID+"|"+raw)

	_, err = s.Validate(context.Background(), "nobody", raw)
	testutil.AssertErrorCode(t, err, sserr.CodeNotFound)
}

func TestService_ValidateWithKeystore(t *testing.T) {
	t.Parallel()
	key := testutil.RSAKey(t)
	cert, _ := testutil.Certificate(t, key, "signer")
	ks := keystore.NewStaticStore()
	ks.Add(fixtures.TrustStoreRef, fixtures.Alias, cert)
	s := newService(t, WithKeystore(ks))

	raw, err := token.NewBuilder().Issuer("anyone").ExpiresIn(time.Minute).Sign("RS256", key)
	require.NoError(t, err)

	_, err = s.Validate(context.Background(), rsaConsumer, raw)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Cache().Size(), "caching is off for this consumer")
}

func TestService_ValidateWithoutKeystore(t *testing.T) {
	t.Parallel()
	s := newService(t)
	raw, err := token.NewBuilder().Issuer("anyone").ExpiresIn(time.Minute).Sign("RS256", testutil.RSAKey(t))
	require.NoError(t, err)

	_, err = s.Validate(context.Background(), rsaConsumer, raw)
	testutil.AssertErrorCode(t, err, sserr.CodeSigningKeyUnavailable)
}

// ===========================================================================
// HTTP
// ===========================================================================

func post(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, path, &buf))
	return rr
}

func TestHandler_Health(t *testing.T) {
	t.Parallel()
	rr := httptest.NewRecorder()
	newService(t).Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestHandler_Validate(t *testing.T) {
	t.Parallel()
	h := newService(t).Handler()
	path := "/v1/consumers/" + fixtures.ConsumerID + "/validate"

	rr := post(t, h, path, validateRequest{Token: hmacToken(t)})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp struct {
		ConsumerID string         `json:"consumer_id"`
		Claims     map[string]any `json:"claims"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, fixtures.ConsumerID, resp.ConsumerID)
	assert.Equal(t, fixtures.Subject, resp.Claims["sub"])

	tests := []struct {
		name   string
		path   string
		body   any
		status int
	}{
		{"empty token", path, validateRequest{}, http.StatusUnauthorized},
		{"garbage token", path, validateRequest{Token: "x.y"}, http.StatusUnauthorized},
		{"bad json", path, "{", http.StatusBadRequest},
		{"unknown consumer", "/v1/consumers/nobody/validate", validateRequest{Token: "a.b.c"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, post(t, h, tt.path, tt.body).Code)
		})
	}
}

func TestHandler_Claims(t *testing.T) {
	t.Parallel()
	h := newService(t).Handler()
	get := func(path, auth string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}
	path := "/v1/consumers/" + fixtures.ConsumerID + "/claims"

	assert.Equal(t, http.StatusOK, get(path, "Bearer "+hmacToken(t)).Code)
	assert.Equal(t, http.StatusUnauthorized, get(path, "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(path, "Bearer not-a-token").Code)
	assert.Equal(t, http.StatusNotFound, get("/v1/consumers/nobody/claims", "Bearer x").Code)
}
