// Package keys resolves the key material used to verify a token signature.
//
// A [Resolver] dispatches on the algorithm family configured for a consumer:
// HMAC algorithms use the consumer's shared secret, asymmetric algorithms
// use a certificate from a [keystore.Service] or, when JWK mode is enabled,
// a key fetched from the consumer's JWK endpoint through a [JWKSource].
package keys

// Origin records where a signing key came from.
type Origin string

const (
	// OriginSharedSecret is the consumer's configured HMAC secret.
	OriginSharedSecret Origin = "shared-secret"

	// OriginKeystore is a certificate public key from a keystore.Service.
	OriginKeystore Origin = "keystore"

	// OriginJWK is a key fetched from the consumer's JWK endpoint.
	OriginJWK Origin = "jwk"
)

// SigningKey is resolved verification key material. Key is a []byte for
// HMAC algorithms and a crypto.PublicKey otherwise.
type SigningKey struct {
	Origin    Origin
	Algorithm string
	Key       any
	KeyID     string
}

// KeySource describes where a consumer's verification key lives. Algorithm
// is the consumer's effective signature algorithm and selects the family.
type KeySource struct {
	ConsumerID     string
	Algorithm      string
	SharedKey      string
	TrustStoreRef  string
	TrustedAlias   string
	JWKEnabled     bool
	JWKEndpointURL string
}
