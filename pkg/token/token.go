// Package token parses and builds JWTs in compact JWS serialization.
//
// [JWSParser] splits a token into header, ordered claims, signing input, and
// signature without verifying anything; verification is the consumer
// engine's job. [Builder] assembles a claim set and signs it with any
// algorithm registered in github.com/golang-jwt/jwt/v5.
package token

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/StricklySoft/stricklysoft-jwt/pkg/claims"
	sserr "github.com/StricklySoft/stricklysoft-jwt/pkg/errors"
)

// Header parameter names.
const (
	// HeaderAlgorithm names the signature algorithm.
	HeaderAlgorithm = "alg"

	// HeaderKeyID selects a key from a JWK set.
	HeaderKeyID = "kid"

	// HeaderType is the media type, usually "JWT".
	HeaderType = "typ"
)

// DefaultMaxSize is the largest raw token accepted by the parser.
const DefaultMaxSize = 8192

// Context is a parsed but unverified token.
type Context struct {
	// Raw is the compact serialization as received.
	Raw string

	// Header is the decoded JOSE header.
	Header map[string]any

	// Claims is the decoded payload in document order.
	Claims *claims.Claims

	// SigningInput is "<header>.<payload>", the bytes covered by the
	// signature.
	SigningInput string

	// Signature is the decoded third segment.
	Signature []byte
}

// Algorithm returns the "alg" header, or "" if absent or not a string.
func (c *Context) Algorithm() string {
	return c.headerString(HeaderAlgorithm)
}

// KeyID returns the "kid" header, or "".
func (c *Context) KeyID() string {
	return c.headerString(HeaderKeyID)
}

// Type returns the "typ" header, or "".
func (c *Context) Type() string {
	return c.headerString(HeaderType)
}

func (c *Context) headerString(name string) string {
	if c == nil || c.Header == nil {
		return ""
	}
	s, _ := c.Header[name].(string)
	return s
}

// Parser turns a compact token into a Context.
type Parser interface {
	Parse(raw string) (*Context, error)
}

// JWSParser is the default Parser, backed by golang-jwt's unverified
// parsing.
type JWSParser struct {
	parser  *jwt.Parser
	maxSize int
}

var _ Parser = (*JWSParser)(nil)

// ParserOption configures a JWSParser.
type ParserOption func(*JWSParser)

// WithMaxSize overrides DefaultMaxSize. Zero or negative disables the limit.
func WithMaxSize(n int) ParserOption {
	return func(p *JWSParser) { p.maxSize = n }
}

// NewParser returns a JWSParser.
func NewParser(opts ...ParserOption) *JWSParser {
	p := &JWSParser{parser: jwt.NewParser(), maxSize: DefaultMaxSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse decodes raw. Structural failures are returned as CodeTokenMalformed
// errors that wrap the underlying cause and echo the input.
func (p *JWSParser) Parse(raw string) (*Context, error) {
	if p.maxSize > 0 && len(raw) > p.maxSize {
		return nil, sserr.Newf(sserr.CodeTokenMalformed,
			"token of %d bytes exceeds the %d byte limit", len(raw), p.maxSize)
	}

	unverified, parts, err := p.parser.ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return nil, malformed(raw, err)
	}

	payload, err := p.parser.DecodeSegment(parts[1])
	if err != nil {
		return nil, malformed(raw, err)
	}
	c := claims.New()
	if err := json.Unmarshal(payload, c); err != nil {
		return nil, malformed(raw, err)
	}

	sig, err := p.parser.DecodeSegment(parts[2])
	if err != nil {
		return nil, malformed(raw, err)
	}

	return &Context{
		Raw:          raw,
		Header:       unverified.Header,
		Claims:       c,
		SigningInput: strings.Join(parts[:2], "."),
		Signature:    sig,
	}, nil
}

func malformed(raw string, cause error) *sserr.Error {
	return sserr.Wrap(cause, sserr.CodeTokenMalformed, fmt.Sprintf("malformed token %q", raw)).
		WithDetail("token", raw)
}
