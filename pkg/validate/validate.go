// Package validate holds the claim checks run by the consumer engine after a
// token's signature has been verified.
//
// Every function is pure: it performs no I/O, holds no state, and takes the
// current time as an argument, so results are deterministic and the
// functions are safe for concurrent use. Failures are returned as
// *errors.Error values whose Details carry the actual and expected values.
package validate

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/StricklySoft/stricklysoft-jwt/pkg/claims"
	sserr "github.com/StricklySoft/stricklysoft-jwt/pkg/errors"
	"github.com/StricklySoft/stricklysoft-jwt/pkg/token"
)

// Trust-all sentinels. A trusted-issuer or audience entry equal to one of
// these accepts any value. Only whole entries count; "ALL_AUD" is an
// ordinary audience.
const (
	// TrustAll accepts any issuer or audience.
	TrustAll = "*"

	// TrustAllIssuers accepts any issuer.
	TrustAllIssuers = "ALL_ISSUERS"

	// TrustAllAudiences accepts any audience.
	TrustAllAudiences = "ALL_AUDIENCES"
)

// SplitTrustedIssuers splits a comma-separated issuer list and trims each
// entry. Empty entries are dropped.
func SplitTrustedIssuers(csv string) []string {
	var out []string
	for _, entry := range strings.Split(csv, ",") {
		if e := strings.TrimSpace(entry); e != "" {
			out = append(out, e)
		}
	}
	return out
}

// ValidateIssuer checks tokenIssuer against a comma-separated trust list.
// The issuer must equal a trimmed entry exactly, or the list must contain a
// trust-all entry. An empty list always fails with
// CodeTrustedIssuersNotConfigured.
func ValidateIssuer(consumerID, trustedIssuersCSV, tokenIssuer string) error {
	trusted := SplitTrustedIssuers(trustedIssuersCSV)
	if len(trusted) == 0 {
		return sserr.Rejectf(sserr.CodeTrustedIssuersNotConfigured, consumerID,
			"consumer %q has no trusted issuers configured", consumerID)
	}
	for _, entry := range trusted {
		if entry == TrustAll || entry == TrustAllIssuers || entry == tokenIssuer {
			return nil
		}
	}
	return sserr.Rejectf(sserr.CodeIssuerUntrusted, consumerID,
		"issuer %q is not trusted by consumer %q", tokenIssuer, consumerID).
		WithDetails(map[string]any{"actual": tokenIssuer, "expected": trusted})
}

// ValidateAudience reports whether tokenAudiences satisfies allowed. A nil
// allowed list places no restriction.
func ValidateAudience(allowed, tokenAudiences []string) bool {
	return ValidateAudienceWithPolicy(allowed, tokenAudiences, true)
}

// ValidateAudienceWithPolicy reports whether tokenAudiences satisfies
// allowed. A nil allowed list yields ignoreIfUnconfigured. A trust-all
// element accepts any token audiences, including none. Otherwise at least
// one token audience must equal an allowed entry; empty lists never match.
func ValidateAudienceWithPolicy(allowed, tokenAudiences []string, ignoreIfUnconfigured bool) bool {
	if allowed == nil {
		return ignoreIfUnconfigured
	}
	for _, a := range allowed {
		if a == TrustAll || a == TrustAllAudiences {
			return true
		}
	}
	return intersects(allowed, tokenAudiences)
}

// ValidateAMR reports whether the token's amr values satisfy allowed. A nil
// allowed list places no restriction; an empty one rejects everything.
func ValidateAMR(allowed, tokenAMR []string) bool {
	if allowed == nil {
		return true
	}
	return intersects(allowed, tokenAMR)
}

func intersects(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := set[s]; ok {
			return true
		}
	}
	return false
}

// ValidateIatAndExp checks the issued-at and expiration claims. Checks run
// in this order and the first failure is returned:
//
//  1. iat or exp present but malformed (CodeClaimMalformed)
//  2. iat later than exp, compared exactly (CodeIssuedAtAfterExpiration)
//  3. now later than exp + skew (CodeTokenExpired)
//  4. iat later than now + skew (CodeIssuedAtInFuture)
//
// A nil claim set passes.
func ValidateIatAndExp(c *claims.Claims, skew time.Duration, now time.Time) error {
	if c == nil {
		return nil
	}
	iat, err := c.GetIssuedAt()
	if err != nil {
		return err
	}
	exp, err := c.GetExpirationTime()
	if err != nil {
		return err
	}

	if iat != nil && exp != nil && iat.After(exp.Time) {
		return sserr.Newf(sserr.CodeIssuedAtAfterExpiration,
			"iat %s is after exp %s", formatDate(iat), formatDate(exp)).
			WithDetails(map[string]any{"iat": c.Get(claims.IssuedAt), "exp": c.Get(claims.ExpirationTime)})
	}
	if exp != nil && now.After(exp.Add(skew)) {
		return sserr.Newf(sserr.CodeTokenExpired,
			"token expired at %s (now %s, clock skew %s)", formatDate(exp), now.UTC().Format(time.RFC3339Nano), skew).
			WithDetails(map[string]any{"exp": c.Get(claims.ExpirationTime), "now": now, "skew": skew})
	}
	if iat != nil && iat.After(now.Add(skew)) {
		return sserr.Newf(sserr.CodeIssuedAtInFuture,
			"iat %s is in the future (now %s, clock skew %s)", formatDate(iat), now.UTC().Format(time.RFC3339Nano), skew).
			WithDetails(map[string]any{"iat": c.Get(claims.IssuedAt), "now": now, "skew": skew})
	}
	return nil
}

// ValidateNbf fails with CodeTokenNotYetValid when nbf is later than
// now + skew. A nil claim set or absent nbf passes.
func ValidateNbf(c *claims.Claims, skew time.Duration, now time.Time) error {
	if c == nil {
		return nil
	}
	nbf, err := c.GetNotBefore()
	if err != nil {
		return err
	}
	if nbf != nil && nbf.After(now.Add(skew)) {
		return sserr.Newf(sserr.CodeTokenNotYetValid,
			"token not valid before %s (now %s, clock skew %s)", formatDate(nbf), now.UTC().Format(time.RFC3339Nano), skew).
			WithDetails(map[string]any{"nbf": c.Get(claims.NotBefore), "now": now, "skew": skew})
	}
	return nil
}

// ValidateAlgorithm checks the token's alg header. An empty expected value
// skips the check.
func ValidateAlgorithm(tc *token.Context, expected string) error {
	if expected == "" {
		return nil
	}
	if tc == nil || tc.Algorithm() == "" {
		return sserr.New(sserr.CodeAlgorithmMissing, "token has no algorithm header").
			WithDetail("expected", expected)
	}
	if actual := tc.Algorithm(); actual != expected {
		return sserr.Newf(sserr.CodeAlgorithmMismatch,
			"token algorithm %q does not match expected %q", actual, expected).
			WithDetails(map[string]any{"actual": actual, "expected": expected})
	}
	return nil
}

func formatDate(d *jwt.NumericDate) string {
	return fmt.Sprintf("%s (%d)", d.UTC().Format(time.RFC3339Nano), d.UnixMilli())
}
