// Package fixtures holds shared constants for the JWT consumer test suites.
package fixtures

// Token claims.
const (
	// Issuer is the trusted issuer of the default test consumers.
	Issuer = "https://auth.stricklysoft.test"

	// AltIssuer is an issuer no default consumer trusts.
	AltIssuer = "https://other.stricklysoft.test"

	// Audience is the audience accepted by the default test consumers.
	Audience = "orders-api"

	// AltAudience is an audience no default consumer accepts.
	AltAudience = "billing-api"

	// Subject is the sub claim of built test tokens.
	Subject = "user-abc-123"

	// KeyID is the kid header of tokens verified through a JWK set.
	KeyID = "signer-2026"
)

// Consumer configuration.
const (
	// ConsumerID is the ID of the default HMAC consumer.
	ConsumerID = "orders-consumer"

	// SharedSecret is a 32-byte HMAC secret, long enough for HS256.
	SharedSecret = "0123456789abcdef0123456789abcdef"

	// TrustStoreRef names the trust store holding the test certificates.
	TrustStoreRef = "platform-truststore"

	// Alias is the certificate alias of the test signing key.
	Alias = "token-signer"
)

// Loader fixture: a consumers file with one HMAC and one keystore consumer.
const ConsumersYAML = `consumers:
  - id: hmac-consumer
    signature_algorithm: HS256
    trusted_issuers: "https://auth.stricklysoft.test"
    audiences: ["orders-api"]
    shared_key: "0123456789abcdef0123456789abcdef"
    clock_skew: 30s
  - id: rsa-consumer
    signature_algorithm: RS256
    trusted_issuers: "*"
    trust_store_ref: platform-truststore
    trusted_alias: token-signer
`
