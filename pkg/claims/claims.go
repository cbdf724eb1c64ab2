// Package claims provides the ordered claim set carried by a JSON Web Token.
//
// A [Claims] value remembers the order in which names were first inserted,
// keeps explicit nil values distinct from absent names, and renders itself
// as a JSON object in insertion order. The registered claims (iss, sub, aud,
// exp, nbf, iat) are exposed through accessors that satisfy the
// github.com/golang-jwt/jwt/v5 Claims interface, so a *Claims can be passed
// directly to that library's validator and signer.
//
// A Claims value is not safe for concurrent mutation. The consumer engine
// only mutates claim sets while parsing and hands callers a Clone.
package claims

import (
	"fmt"
	"reflect"
	"sort"

	sserr "github.com/StricklySoft/stricklysoft-jwt/pkg/errors"
)

// Registered claim names.
const (
	// Issuer identifies the principal that issued the token.
	Issuer = "iss"

	// Subject identifies the principal the token is about.
	Subject = "sub"

	// Audience is a string or array of intended recipients.
	Audience = "aud"

	// ExpirationTime is the NumericDate after which the token is rejected.
	ExpirationTime = "exp"

	// NotBefore is the NumericDate before which the token is rejected.
	NotBefore = "nbf"

	// IssuedAt is the NumericDate the token was issued.
	IssuedAt = "iat"

	// JWTID is a unique token identifier.
	JWTID = "jti"

	// AuthMethods lists the authentication methods used (RFC 8176).
	AuthMethods = "amr"
)

// Claims is an insertion-ordered map from claim name to value. The zero
// value is an empty, usable set. Any string, including "", is a valid name.
type Claims struct {
	keys   []string
	values map[string]any
}

// New returns an empty claim set.
func New() *Claims {
	return &Claims{values: make(map[string]any)}
}

// FromMap returns a claim set holding the entries of m in sorted name order.
func FromMap(m map[string]any) *Claims {
	c := New()
	c.PutMap(m)
	return c
}

// Put stores value under name and returns the previous value. It returns
// nil when name was absent or previously held nil. Overwriting a name keeps
// its original position.
func (c *Claims) Put(name string, value any) any {
	if c.values == nil {
		c.values = make(map[string]any)
	}
	prev, ok := c.values[name]
	if !ok {
		c.keys = append(c.keys, name)
	}
	c.values[name] = value
	return prev
}

// PutAll copies every entry of src, in src's order. A nil src is a no-op.
func (c *Claims) PutAll(src *Claims) {
	if src == nil {
		return
	}
	for _, k := range src.keys {
		c.Put(k, src.values[k])
	}
}

// PutMap copies every entry of m. Go maps are unordered, so entries are
// applied in sorted name order. A nil map is a no-op.
func (c *Claims) PutMap(m map[string]any) {
	if m == nil {
		return
	}
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		c.Put(k, m[k])
	}
}

// Get returns the value stored under name, or nil.
func (c *Claims) Get(name string) any {
	if c == nil {
		return nil
	}
	return c.values[name]
}

// ContainsKey reports whether name has an entry, even one holding nil.
func (c *Claims) ContainsKey(name string) bool {
	if c == nil {
		return false
	}
	_, ok := c.values[name]
	return ok
}

// Remove deletes name and returns its previous value.
func (c *Claims) Remove(name string) any {
	if !c.ContainsKey(name) {
		return nil
	}
	prev := c.values[name]
	delete(c.values, name)
	for i, k := range c.keys {
		if k == name {
			c.keys = append(c.keys[:i], c.keys[i+1:]...)
			break
		}
	}
	return prev
}

// Len returns the number of entries.
func (c *Claims) Len() int {
	if c == nil {
		return 0
	}
	return len(c.keys)
}

// Names returns the claim names in insertion order.
func (c *Claims) Names() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Map returns an unordered copy of the entries.
func (c *Claims) Map() map[string]any {
	out := make(map[string]any, c.Len())
	if c == nil {
		return out
	}
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// Clone returns a copy whose top-level entries and nested maps and slices
// can be modified without affecting c.
func (c *Claims) Clone() *Claims {
	if c == nil {
		return nil
	}
	out := &Claims{
		keys:   make([]string, len(c.keys)),
		values: make(map[string]any, len(c.values)),
	}
	copy(out.keys, c.keys)
	for k, v := range c.values {
		out.values[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = cloneValue(e)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = cloneValue(e)
		}
		return s
	case []string:
		s := make([]string, len(t))
		copy(s, t)
		return s
	case *Claims:
		return t.Clone()
	default:
		return v
	}
}

// Claim returns the value stored under name as a T. An absent or nil claim
// yields the zero T and no error. A value of another type yields a
// CodeClaimMalformed error naming the claim.
func Claim[T any](c *Claims, name string) (T, error) {
	var zero T
	v := c.Get(name)
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, malformed(name, v, reflect.TypeOf((*T)(nil)).Elem().String())
	}
	return t, nil
}

func malformed(name string, v any, want string) *sserr.Error {
	return sserr.Newf(sserr.CodeClaimMalformed,
		"claim %q holds %T, expected %s", name, v, want).
		WithDetail("claim", name)
}

// String implements fmt.Stringer using the JSON rendering.
func (c *Claims) String() string {
	return c.ToJSON()
}

var _ fmt.Stringer = (*Claims)(nil)
