package transport

import (
	"context"
	"log/slog"

	"github.com/StricklySoft/stricklysoft-jwt/pkg/claims"
	"github.com/StricklySoft/stricklysoft-jwt/pkg/consumer"
	sserr "github.com/StricklySoft/stricklysoft-jwt/pkg/errors"
)

// Validator validates a raw token for a consumer.
type Validator interface {
	ParseWithValidation(ctx context.Context, raw string, cfg *consumer.Config) (*claims.Claims, error)
}

var _ Validator = (*consumer.Engine)(nil)

// Guard binds a Validator to one consumer. The HTTP middleware and gRPC
// interceptors are methods on it.
type Guard struct {
	validator Validator
	consumer  *consumer.Config
	logger    *slog.Logger
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithLogger sets the logger for rejected and failed requests. Defaults to
// slog.Default().
func WithLogger(l *slog.Logger) GuardOption {
	return func(g *Guard) { g.logger = l }
}

// NewGuard returns a Guard that validates tokens as cfg.
func NewGuard(v Validator, cfg *consumer.Config, opts ...GuardOption) *Guard {
	g := &Guard{validator: v, consumer: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// authenticate validates raw and returns the enriched context. Rejections
// are logged at info, everything else at error.
func (g *Guard) authenticate(ctx context.Context, raw string) (context.Context, error) {
	c, err := g.validator.ParseWithValidation(ctx, raw, g.consumer)
	if err != nil {
		level := slog.LevelInfo
		if !sserr.IsTokenRejection(err) {
			level = slog.LevelError
		}
		g.logger.Log(ctx, level, "transport: token rejected",
			"consumer_id", g.consumer.ID,
			"code", string(sserr.GetCode(err)),
			"trace_id", traceID(ctx),
			"error", err,
		)
		return ctx, err
	}
	return ContextWithClaims(ctx, g.consumer.ID, c), nil
}
