package errors

// Code is a stable, machine-readable error identifier of the form
// CATEGORY_NNN. Codes never change meaning once assigned.
type Code string

// Generic codes.
const (
	// CodeValidation indicates invalid input or configuration.
	CodeValidation Code = "VAL_001"
	// CodeValidationRequired indicates a required field is missing.
	CodeValidationRequired Code = "VAL_002"
	// CodeValidationFormat indicates a field has an invalid format.
	CodeValidationFormat Code = "VAL_003"

	// CodeAuthentication is the generic token rejection.
	CodeAuthentication Code = "AUTH_001"

	// CodeNotFound indicates a keystore entry or key was not found.
	CodeNotFound Code = "NF_001"

	// CodeInternal indicates an unexpected failure.
	CodeInternal Code = "INT_001"
	// CodeInternalDatabase indicates a database operation failed.
	CodeInternalDatabase Code = "INT_002"
	// CodeInternalConfiguration indicates the process is misconfigured.
	CodeInternalConfiguration Code = "INT_003"

	// CodeUnavailable indicates a service is temporarily unavailable.
	CodeUnavailable Code = "UNAVAIL_001"
	// CodeUnavailableDependency indicates a backend (database, object
	// store, cache, JWKS endpoint) could not be reached.
	CodeUnavailableDependency Code = "UNAVAIL_002"

	// CodeTimeout indicates an operation exceeded its deadline.
	CodeTimeout Code = "TIMEOUT_001"
	// CodeTimeoutDependency indicates a backend call timed out.
	CodeTimeoutDependency Code = "TIMEOUT_003"
)

// Token structure.
const (
	// CodeTokenEmpty indicates the raw token string was empty.
	CodeTokenEmpty Code = "AUTH_010"
	// CodeTokenMalformed indicates the compact serialization could not be
	// parsed. The parser's error is kept as the cause.
	CodeTokenMalformed Code = "AUTH_011"
	// CodeClaimMalformed indicates a claim is present but has the wrong
	// type or cannot be interpreted.
	CodeClaimMalformed Code = "AUTH_012"
)

// Signing keys and signatures.
const (
	// CodeSigningKeyMissing indicates no key source was supplied.
	CodeSigningKeyMissing Code = "AUTH_020"
	// CodeSharedKeyMissing indicates an HMAC algorithm without a secret.
	CodeSharedKeyMissing Code = "AUTH_021"
	// CodeSigningKeyUnavailable indicates the keystore or JWK source could
	// not produce a key.
	CodeSigningKeyUnavailable Code = "AUTH_022"
	// CodeSigningKeyInvalid indicates a key of the wrong type for the
	// algorithm.
	CodeSigningKeyInvalid Code = "AUTH_023"
	// CodeSignatureInvalid indicates signature verification failed.
	CodeSignatureInvalid Code = "AUTH_024"
)

// Trust lists.
const (
	// CodeIssuerUntrusted indicates iss is not in the trusted issuer list.
	CodeIssuerUntrusted Code = "AUTH_030"
	// CodeTrustedIssuersNotConfigured indicates the consumer trusts no
	// issuer at all, so every token is rejected.
	CodeTrustedIssuersNotConfigured Code = "AUTH_031"
	// CodeAudienceUntrusted indicates no token audience is accepted.
	CodeAudienceUntrusted Code = "AUTH_032"
	// CodeAuthMethodUntrusted indicates no amr entry is accepted.
	CodeAuthMethodUntrusted Code = "AUTH_033"
)

// Temporal claims.
const (
	// CodeTokenExpired indicates exp + clock skew is in the past.
	CodeTokenExpired Code = "AUTH_040"
	// CodeTokenNotYetValid indicates nbf is beyond now + clock skew.
	CodeTokenNotYetValid Code = "AUTH_041"
	// CodeIssuedAtAfterExpiration indicates iat is later than exp.
	CodeIssuedAtAfterExpiration Code = "AUTH_042"
	// CodeIssuedAtInFuture indicates iat is beyond now + clock skew.
	CodeIssuedAtInFuture Code = "AUTH_043"
)

// Algorithm header.
const (
	// CodeAlgorithmMissing indicates the token carries no alg header.
	CodeAlgorithmMissing Code = "AUTH_050"
	// CodeAlgorithmMismatch indicates alg differs from the configured one.
	CodeAlgorithmMismatch Code = "AUTH_051"
)

// String returns the code as a plain string.
func (c Code) String() string {
	return string(c)
}

// Category returns the prefix before the first underscore ("AUTH" for
// "AUTH_040"). A code without an underscore is its own category.
func (c Code) Category() string {
	s := string(c)
	for i := 0; i < len(s); i++ {
		if s[i] == '_' {
			return s[:i]
		}
	}
	return s
}
