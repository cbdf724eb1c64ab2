package consumer

import (
	"net/url"
	"time"

	sserr "github.com/StricklySoft/stricklysoft-jwt/pkg/errors"
	"github.com/StricklySoft/stricklysoft-jwt/pkg/keys"
)

// ---------------------------------------------------------------------------
// Secret
// ---------------------------------------------------------------------------

// Secret is a string that never prints its value. It decodes from YAML,
// JSON and environment variables as a plain string.
type Secret string

const secretRedacted = "[REDACTED]"

// String implements fmt.Stringer and always returns the redaction marker.
func (s Secret) String() string { return secretRedacted }

// GoString implements fmt.GoStringer so %#v is redacted too.
func (s Secret) GoString() string { return secretRedacted }

// MarshalText redacts the shared secret wherever a Config is logged or
// encoded.
func (s Secret) MarshalText() ([]byte, error) { return []byte(secretRedacted), nil }

// Value returns the plaintext.
func (s Secret) Value() string { return string(s) }

// ---------------------------------------------------------------------------
// Consumer configuration
// ---------------------------------------------------------------------------

// Config describes one token consumer: which issuers and audiences it
// trusts and where its verification key lives. Config is read-only once
// handed to an [Engine].
type Config struct {
	ID                 string `json:"id" yaml:"id" env:"JWT_CONSUMER_ID" required:"true"`
	SignatureAlgorithm string `json:"signature_algorithm,omitempty" yaml:"signature_algorithm" env:"JWT_SIGNATURE_ALGORITHM"`

	// TrustedIssuers is a comma-separated list; "*" or "ALL_ISSUERS"
	// trusts every issuer.
	TrustedIssuers string `json:"trusted_issuers,omitempty" yaml:"trusted_issuers" env:"JWT_TRUSTED_ISSUERS"`

	// Audiences is nil when unconfigured. "*" or "ALL_AUDIENCES" accepts
	// every audience.
	Audiences []string `json:"audiences,omitempty" yaml:"audiences" env:"JWT_AUDIENCES"`

	SharedKey     Secret `json:"shared_key,omitempty" yaml:"shared_key" env:"JWT_SHARED_KEY"`
	TrustStoreRef string `json:"trust_store_ref,omitempty" yaml:"trust_store_ref" env:"JWT_TRUST_STORE_REF"`
	TrustedAlias  string `json:"trusted_alias,omitempty" yaml:"trusted_alias" env:"JWT_TRUSTED_ALIAS"`

	ClockSkew time.Duration `json:"clock_skew,omitempty" yaml:"clock_skew" env:"JWT_CLOCK_SKEW" envDefault:"5m"`

	JWKEnabled     bool   `json:"jwk_enabled,omitempty" yaml:"jwk_enabled" env:"JWT_JWK_ENABLED"`
	JWKEndpointURL string `json:"jwk_endpoint_url,omitempty" yaml:"jwk_endpoint_url" env:"JWT_JWK_ENDPOINT_URL"`

	IgnoreAudienceClaimIfNotConfigured bool `json:"ignore_audience_claim_if_not_configured,omitempty" yaml:"ignore_audience_claim_if_not_configured" env:"JWT_IGNORE_AUDIENCE_IF_NOT_CONFIGURED"`

	// AMRClaim lists accepted authentication methods. nil places no
	// restriction; an empty list rejects every token.
	AMRClaim []string `json:"amr_claim,omitempty" yaml:"amr_claim" env:"JWT_AMR_CLAIM"`

	CacheEnabled bool `json:"cache_enabled,omitempty" yaml:"cache_enabled" env:"JWT_CACHE_ENABLED"`
}

// Validate checks structural problems only. Trust settings that are
// missing are reported when a token is validated.
func (c *Config) Validate() error {
	if c.ID == "" {
		return sserr.New(sserr.CodeValidationRequired, "consumer: id must not be empty")
	}
	if c.ClockSkew < 0 {
		return sserr.Newf(sserr.CodeValidation, "consumer %q: clock_skew must not be negative, got %v", c.ID, c.ClockSkew)
	}
	if c.SignatureAlgorithm != "" && keys.FamilyOf(c.SignatureAlgorithm) == keys.FamilyUnknown {
		return sserr.Newf(sserr.CodeValidation, "consumer %q: unsupported signature_algorithm %q", c.ID, c.SignatureAlgorithm)
	}
	if c.JWKEnabled {
		if c.JWKEndpointURL == "" {
			return sserr.Newf(sserr.CodeValidationRequired, "consumer %q: jwk_endpoint_url is required when jwk_enabled is set", c.ID)
		}
		u, err := url.Parse(c.JWKEndpointURL)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			return sserr.Newf(sserr.CodeValidationFormat, "consumer %q: jwk_endpoint_url %q is not an http(s) URL", c.ID, c.JWKEndpointURL)
		}
	}
	return nil
}

// KeySource describes where the key for algorithm lives. It returns nil for
// a nil Config.
func (c *Config) KeySource(algorithm string) *keys.KeySource {
	if c == nil {
		return nil
	}
	return &keys.KeySource{
		ConsumerID:     c.ID,
		Algorithm:      algorithm,
		SharedKey:      c.SharedKey.Value(),
		TrustStoreRef:  c.TrustStoreRef,
		TrustedAlias:   c.TrustedAlias,
		JWKEnabled:     c.JWKEnabled,
		JWKEndpointURL: c.JWKEndpointURL,
	}
}
