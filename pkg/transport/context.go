// Package transport guards HTTP handlers and gRPC services with a token
// consumer. Accepted claims are stored in the request context; rejected
// requests never reach the handler.
package transport

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/StricklySoft/stricklysoft-jwt/pkg/claims"
)

type contextKey int

const (
	claimsKey contextKey = iota
	consumerKey
)

// HeaderAuthorization is the header (and gRPC metadata key) carrying the
// bearer token.
const HeaderAuthorization = "authorization"

const bearerPrefix = "Bearer "

// ContextWithClaims attaches accepted claims and the consumer that accepted
// them.
func ContextWithClaims(ctx context.Context, consumerID string, c *claims.Claims) context.Context {
	ctx = context.WithValue(ctx, claimsKey, c)
	return context.WithValue(ctx, consumerKey, consumerID)
}

// ClaimsFromContext returns the claims stored by the middleware. It never
// returns a nil set with true.
func ClaimsFromContext(ctx context.Context) (*claims.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*claims.Claims)
	return c, ok && c != nil
}

// MustClaimsFromContext panics when no claims are present. Use it only
// behind the middleware.
func MustClaimsFromContext(ctx context.Context) *claims.Claims {
	c, ok := ClaimsFromContext(ctx)
	if !ok {
		panic("transport: no claims in context; ensure the token middleware is installed")
	}
	return c
}

// ConsumerFromContext returns the id of the consumer that accepted the
// request's token.
func ConsumerFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(consumerKey).(string)
	return id, ok
}

// ExtractBearerToken returns the token of an "Authorization: Bearer <token>"
// value. The scheme is matched case-insensitively. Anything else yields "".
func ExtractBearerToken(authHeader string) string {
	if len(authHeader) <= len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(authHeader[len(bearerPrefix):])
}

// traceID returns the active trace id for log correlation.
func traceID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
