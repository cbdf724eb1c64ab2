package transport

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	sserr "github.com/StricklySoft/stricklysoft-jwt/pkg/errors"
)

// UnaryServerInterceptor validates the "authorization" metadata of each
// unary call.
func (g *Guard) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, err := g.authenticateGRPC(ctx)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor validates the "authorization" metadata once per
// stream.
func (g *Guard) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := g.authenticateGRPC(ss.Context())
		if err != nil {
			return err
		}
		return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: ctx})
	}
}

func (g *Guard) authenticateGRPC(ctx context.Context) (context.Context, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx, status.Error(codes.Unauthenticated, "missing metadata")
	}
	values := md.Get(HeaderAuthorization)
	if len(values) == 0 {
		return ctx, status.Error(codes.Unauthenticated, "missing authorization metadata")
	}
	raw := ExtractBearerToken(values[0])
	if raw == "" {
		return ctx, status.Error(codes.Unauthenticated, "invalid authorization format")
	}
	ctx, err := g.authenticate(ctx, raw)
	if err != nil {
		return ctx, grpcStatus(err)
	}
	return ctx, nil
}

// grpcStatus maps an error category to a gRPC status. The message carries
// only the error code.
func grpcStatus(err error) error {
	se := sserr.FromError(err)
	var c codes.Code
	switch {
	case sserr.IsTokenRejection(se):
		c = codes.Unauthenticated
	case sserr.IsUnavailable(se):
		c = codes.Unavailable
	case sserr.IsTimeout(se):
		c = codes.DeadlineExceeded
	default:
		c = codes.Internal
	}
	return status.Errorf(c, "token validation failed: %s", se.Code)
}

// wrappedServerStream overrides Context so handlers see the claims.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the context carrying the accepted claims.
func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
