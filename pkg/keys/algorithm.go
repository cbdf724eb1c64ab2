package keys

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"

	"github.com/golang-jwt/jwt/v5"
)

// Family groups signature algorithms that share a key type.
type Family int

const (
	// FamilyUnknown covers "none" and names golang-jwt does not register.
	FamilyUnknown Family = iota

	// FamilyHMAC is HS256, HS384 and HS512 with a shared secret.
	FamilyHMAC

	// FamilyRSA is RS256, RS384 and RS512 (PKCS#1 v1.5).
	FamilyRSA

	// FamilyRSAPSS is PS256, PS384 and PS512.
	FamilyRSAPSS

	// FamilyECDSA is ES256, ES384 and ES512.
	FamilyECDSA

	// FamilyEdDSA is EdDSA over Ed25519.
	FamilyEdDSA
)

// String implements fmt.Stringer.
func (f Family) String() string {
	switch f {
	case FamilyHMAC:
		return "HMAC"
	case FamilyRSA:
		return "RSA"
	case FamilyRSAPSS:
		return "RSA-PSS"
	case FamilyECDSA:
		return "ECDSA"
	case FamilyEdDSA:
		return "EdDSA"
	default:
		return "unknown"
	}
}

// Asymmetric reports whether the family verifies with a public key.
func (f Family) Asymmetric() bool {
	return f == FamilyRSA || f == FamilyRSAPSS || f == FamilyECDSA || f == FamilyEdDSA
}

// FamilyOf returns the family of a JWS algorithm name using the signing
// methods registered with golang-jwt. "none" is FamilyUnknown.
func FamilyOf(alg string) Family {
	switch jwt.GetSigningMethod(alg).(type) {
	case *jwt.SigningMethodHMAC:
		return FamilyHMAC
	case *jwt.SigningMethodRSAPSS:
		return FamilyRSAPSS
	case *jwt.SigningMethodRSA:
		return FamilyRSA
	case *jwt.SigningMethodECDSA:
		return FamilyECDSA
	case *jwt.SigningMethodEd25519:
		return FamilyEdDSA
	default:
		return FamilyUnknown
	}
}

// AlgorithmChecker decides whether key material fits an algorithm.
type AlgorithmChecker interface {
	IsHSAlgorithm(alg string) bool
	IsRSAlgorithm(alg string) bool
	IsPublicKeyValidType(key any, alg string) bool
}

// DefaultAlgorithmChecker derives families from golang-jwt signing methods.
type DefaultAlgorithmChecker struct{}

var _ AlgorithmChecker = DefaultAlgorithmChecker{}

// IsHSAlgorithm reports whether alg is an HMAC algorithm.
func (DefaultAlgorithmChecker) IsHSAlgorithm(alg string) bool {
	return FamilyOf(alg) == FamilyHMAC
}

// IsRSAlgorithm covers both PKCS#1 v1.5 and PSS.
func (DefaultAlgorithmChecker) IsRSAlgorithm(alg string) bool {
	f := FamilyOf(alg)
	return f == FamilyRSA || f == FamilyRSAPSS
}

// IsPublicKeyValidType reports whether key can verify alg. ECDSA keys must
// also be on the curve the algorithm names.
func (DefaultAlgorithmChecker) IsPublicKeyValidType(key any, alg string) bool {
	switch FamilyOf(alg) {
	case FamilyRSA, FamilyRSAPSS:
		_, ok := key.(*rsa.PublicKey)
		return ok
	case FamilyECDSA:
		pub, ok := key.(*ecdsa.PublicKey)
		if !ok {
			return false
		}
		method := jwt.GetSigningMethod(alg).(*jwt.SigningMethodECDSA)
		return pub.Curve.Params().BitSize == method.CurveBits
	case FamilyEdDSA:
		_, ok := key.(ed25519.PublicKey)
		return ok
	case FamilyHMAC:
		_, ok := key.([]byte)
		return ok
	default:
		return false
	}
}
