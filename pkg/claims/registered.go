package claims

import (
	"encoding/json"
	"math"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var _ jwt.Claims = (*Claims)(nil)

// GetExpirationTime returns the exp claim.
func (c *Claims) GetExpirationTime() (*jwt.NumericDate, error) {
	return c.NumericDate(ExpirationTime)
}

// GetIssuedAt returns the iat claim.
func (c *Claims) GetIssuedAt() (*jwt.NumericDate, error) {
	return c.NumericDate(IssuedAt)
}

// GetNotBefore returns the nbf claim.
func (c *Claims) GetNotBefore() (*jwt.NumericDate, error) {
	return c.NumericDate(NotBefore)
}

// GetIssuer returns the iss claim.
func (c *Claims) GetIssuer() (string, error) {
	return Claim[string](c, Issuer)
}

// GetSubject returns the sub claim.
func (c *Claims) GetSubject() (string, error) {
	return Claim[string](c, Subject)
}

// JWTID returns the jti claim.
func (c *Claims) JWTID() (string, error) {
	return Claim[string](c, JWTID)
}

// GetAudience returns the aud claim. A single string is returned as a
// one-element list.
func (c *Claims) GetAudience() (jwt.ClaimStrings, error) {
	return c.Strings(Audience)
}

// AMR returns the amr claim.
func (c *Claims) AMR() ([]string, error) {
	return c.Strings(AuthMethods)
}

// Strings returns a claim that may be a single string or an array of
// strings. Absent or nil yields nil.
func (c *Claims) Strings(name string) ([]string, error) {
	v := c.Get(name)
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{t}, nil
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out, nil
	case jwt.ClaimStrings:
		return []string(t), nil
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, malformed(name, e, "string array element")
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, malformed(name, v, "string or string array")
	}
}

// NumericDate interprets a claim as seconds since the epoch. Fractional
// seconds are kept at full precision. Absent or nil yields nil.
func (c *Claims) NumericDate(name string) (*jwt.NumericDate, error) {
	v := c.Get(name)
	switch t := v.(type) {
	case nil:
		return nil, nil
	case float64:
		return fromSeconds(name, v, t)
	case float32:
		return fromSeconds(name, v, float64(t))
	case int:
		return fromUnix(name, v, int64(t))
	case int64:
		return fromUnix(name, v, t)
	case int32:
		return fromUnix(name, v, int64(t))
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return fromUnix(name, v, i)
		}
		f, err := t.Float64()
		if err != nil {
			return nil, malformed(name, v, "numeric date")
		}
		return fromSeconds(name, v, f)
	case time.Time:
		return &jwt.NumericDate{Time: t}, nil
	case *jwt.NumericDate:
		return t, nil
	default:
		return nil, malformed(name, v, "numeric date")
	}
}

// MaxNumericDate is 9999-12-31T23:59:59Z. Numeric dates beyond it in either
// direction are malformed rather than silently wrapped.
const MaxNumericDate = 253402300799

func fromUnix(name string, v any, sec int64) (*jwt.NumericDate, error) {
	if sec > MaxNumericDate || sec < -MaxNumericDate {
		return nil, malformed(name, v, "numeric date within year 9999")
	}
	return &jwt.NumericDate{Time: time.Unix(sec, 0)}, nil
}

func fromSeconds(name string, v any, f float64) (*jwt.NumericDate, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > MaxNumericDate {
		return nil, malformed(name, v, "numeric date within year 9999")
	}
	sec, frac := math.Modf(f)
	return &jwt.NumericDate{Time: time.Unix(int64(sec), int64(math.Round(frac*1e9)))}, nil
}
