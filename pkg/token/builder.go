package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/StricklySoft/stricklysoft-jwt/pkg/claims"
	sserr "github.com/StricklySoft/stricklysoft-jwt/pkg/errors"
)

// Builder assembles a claim set and signs it. Methods return the receiver
// so calls can be chained:
//
//	raw, err := token.NewBuilder().
//	    Issuer("https://issuer.example").
//	    Subject("user-1").
//	    Audience("orders").
//	    ExpiresIn(5 * time.Minute).
//	    Sign("RS256", privateKey)
//
// Unless set explicitly, iat is the signing time and jti a random UUID.
type Builder struct {
	claims *claims.Claims
	kid    string
	now    func() time.Time
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{claims: claims.New(), now: time.Now}
}

// WithClock sets the time source used for iat and ExpiresIn.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Issuer sets iss.
func (b *Builder) Issuer(iss string) *Builder {
	b.claims.Put(claims.Issuer, iss)
	return b
}

// Subject sets sub.
func (b *Builder) Subject(sub string) *Builder {
	b.claims.Put(claims.Subject, sub)
	return b
}

// Audience sets aud. A single audience is encoded as a string.
func (b *Builder) Audience(aud ...string) *Builder {
	if len(aud) == 1 {
		b.claims.Put(claims.Audience, aud[0])
	} else {
		b.claims.Put(claims.Audience, append([]string(nil), aud...))
	}
	return b
}

// ExpiresAt sets exp.
func (b *Builder) ExpiresAt(t time.Time) *Builder {
	b.claims.Put(claims.ExpirationTime, jwt.NewNumericDate(t))
	return b
}

// ExpiresIn sets exp relative to the builder clock.
func (b *Builder) ExpiresIn(d time.Duration) *Builder {
	return b.ExpiresAt(b.now().Add(d))
}

// NotBefore sets nbf.
func (b *Builder) NotBefore(t time.Time) *Builder {
	b.claims.Put(claims.NotBefore, jwt.NewNumericDate(t))
	return b
}

// IssuedAt sets iat.
func (b *Builder) IssuedAt(t time.Time) *Builder {
	b.claims.Put(claims.IssuedAt, jwt.NewNumericDate(t))
	return b
}

// JWTID sets jti.
func (b *Builder) JWTID(id string) *Builder {
	b.claims.Put(claims.JWTID, id)
	return b
}

// AuthMethods sets amr.
func (b *Builder) AuthMethods(amr ...string) *Builder {
	b.claims.Put(claims.AuthMethods, append([]string(nil), amr...))
	return b
}

// Claim sets an arbitrary claim.
func (b *Builder) Claim(name string, value any) *Builder {
	b.claims.Put(name, value)
	return b
}

// Claims copies every entry of c.
func (b *Builder) Claims(c *claims.Claims) *Builder {
	b.claims.PutAll(c)
	return b
}

// KeyID sets the "kid" header.
func (b *Builder) KeyID(kid string) *Builder {
	b.kid = kid
	return b
}

// Build returns the claim set that Sign would encode.
func (b *Builder) Build() *claims.Claims {
	out := b.claims.Clone()
	if !out.ContainsKey(claims.IssuedAt) {
		out.Put(claims.IssuedAt, jwt.NewNumericDate(b.now()))
	}
	if !out.ContainsKey(claims.JWTID) {
		out.Put(claims.JWTID, uuid.NewString())
	}
	return out
}

// Sign encodes the claims and signs them with alg and key. The key type
// must match what golang-jwt expects for alg ([]byte for HMAC, a private
// key otherwise).
func (b *Builder) Sign(alg string, key any) (string, error) {
	method := jwt.GetSigningMethod(alg)
	if method == nil || method == jwt.SigningMethodNone {
		return "", sserr.Newf(sserr.CodeValidation, "unsupported signing algorithm %q", alg)
	}

	c := b.Build()
	if err := checkRegistered(c); err != nil {
		return "", err
	}

	tok := jwt.NewWithClaims(method, c)
	if b.kid != "" {
		tok.Header[HeaderKeyID] = b.kid
	}
	signed, err := tok.SignedString(key)
	if err != nil {
		return "", sserr.Wrapf(err, sserr.CodeSigningKeyInvalid, "signing with %s failed", alg)
	}
	return signed, nil
}

func checkRegistered(c *claims.Claims) error {
	if _, err := c.GetExpirationTime(); err != nil {
		return err
	}
	if _, err := c.GetIssuedAt(); err != nil {
		return err
	}
	if _, err := c.GetNotBefore(); err != nil {
		return err
	}
	if _, err := c.GetAudience(); err != nil {
		return err
	}
	return nil
}
