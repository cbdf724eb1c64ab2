package keys

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/stricklysoft-jwt/pkg/errors"
	"github.com/StricklySoft/stricklysoft-jwt/pkg/keystore"
	"github.com/StricklySoft/stricklysoft-jwt/pkg/token"
)

const tracerName = "github.com/StricklySoft/stricklysoft-jwt/pkg/keys"

// Resolver turns a consumer's [KeySource] into a [SigningKey]. The zero
// collaborators are valid: without a keystore, asymmetric keystore lookups
// fail; without a checker, any public key type is accepted; without a JWK
// source, JWK mode fails. A Resolver is safe for concurrent use.
type Resolver struct {
	keystore keystore.Service
	checker  AlgorithmChecker
	jwks     JWKSource
	logger   *slog.Logger
	tracer   trace.Tracer
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithKeystore sets the certificate source for asymmetric algorithms. A
// Resolver without one reports keystore lookups as unavailable.
func WithKeystore(ks keystore.Service) Option {
	return func(r *Resolver) { r.keystore = ks }
}

// WithAlgorithmChecker enables key-type checks on keystore keys.
func WithAlgorithmChecker(c AlgorithmChecker) Option {
	return func(r *Resolver) { r.checker = c }
}

// WithJWKSource sets the source used by consumers with JWK enabled.
func WithJWKSource(src JWKSource) Option {
	return func(r *Resolver) { r.jwks = src }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver returns a Resolver configured by opts.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveSigningKey resolves the key for src. It returns (nil, nil) when the
// algorithm is not one this package can verify; callers must treat that
// token as unverifiable.
//
// Error codes returned:
//   - [sserr.CodeSigningKeyMissing]: src is nil
//   - [sserr.CodeSharedKeyMissing]: HMAC algorithm without a shared secret
//   - [sserr.CodeSigningKeyUnavailable]: keystore or JWK lookup failed
//   - [sserr.CodeSigningKeyInvalid]: key type does not fit the algorithm
func (r *Resolver) ResolveSigningKey(ctx context.Context, src *KeySource, tc *token.Context) (_ *SigningKey, err error) {
	ctx, span := r.tracer.Start(ctx, "jwt.ResolveSigningKey")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if src == nil {
		return nil, sserr.New(sserr.CodeSigningKeyMissing, "keys: no key source configured")
	}
	span.SetAttributes(
		attribute.String("jwt.consumer_id", src.ConsumerID),
		attribute.String("jwt.algorithm", src.Algorithm),
	)

	family := FamilyOf(src.Algorithm)
	switch {
	case family == FamilyHMAC:
		return r.ResolveSharedSecretKey(src)
	case family.Asymmetric() && src.JWKEnabled:
		return r.resolveJWK(ctx, src, tc.KeyID())
	case family.Asymmetric():
		return r.ResolvePublicKey(ctx, src.TrustedAlias, src.TrustStoreRef, src.Algorithm)
	default:
		r.logger.WarnContext(ctx, "keys: unsupported signature algorithm",
			"consumer_id", src.ConsumerID,
			"algorithm", src.Algorithm,
		)
		return nil, nil
	}
}

// ResolveSharedSecretKey returns the HMAC key built from src's shared
// secret.
func (r *Resolver) ResolveSharedSecretKey(src *KeySource) (*SigningKey, error) {
	if src == nil {
		return nil, sserr.New(sserr.CodeSigningKeyMissing, "keys: no key source configured")
	}
	if src.SharedKey == "" {
		cause := sserr.Newf(sserr.CodeSigningKeyInvalid,
			"keys: shared key for algorithm %s is empty", src.Algorithm)
		return nil, sserr.Wrap(cause, sserr.CodeSharedKeyMissing,
			"keys: no shared key configured").
			WithDetail("consumer_id", src.ConsumerID)
	}
	return &SigningKey{
		Origin:    OriginSharedSecret,
		Algorithm: src.Algorithm,
		Key:       []byte(src.SharedKey),
	}, nil
}

// ResolvePublicKey loads the certificate for alias from the trust store and
// returns its public key.
func (r *Resolver) ResolvePublicKey(ctx context.Context, alias, trustStoreRef, alg string) (*SigningKey, error) {
	details := map[string]any{"alias": alias, "trust_store": trustStoreRef, "algorithm": alg}
	if r.keystore == nil {
		return nil, sserr.Newf(sserr.CodeSigningKeyUnavailable,
			"keys: no keystore available to resolve alias %q in trust store %q for %s", alias, trustStoreRef, alg).
			WithDetails(details)
	}

	cert, err := r.keystore.Certificate(ctx, trustStoreRef, alias)
	if err != nil {
		return nil, sserr.Wrapf(err, sserr.CodeSigningKeyUnavailable,
			"keys: cannot resolve alias %q in trust store %q for %s", alias, trustStoreRef, alg).
			WithDetails(details)
	}

	if r.checker != nil && !r.checker.IsPublicKeyValidType(cert.PublicKey, alg) {
		return nil, sserr.Newf(sserr.CodeSigningKeyInvalid,
			"keys: %T from alias %q cannot verify %s", cert.PublicKey, alias, alg).
			WithDetails(details)
	}
	return &SigningKey{Origin: OriginKeystore, Algorithm: alg, Key: cert.PublicKey}, nil
}

func (r *Resolver) resolveJWK(ctx context.Context, src *KeySource, kid string) (*SigningKey, error) {
	details := map[string]any{"endpoint": src.JWKEndpointURL, "kid": kid, "algorithm": src.Algorithm}
	if r.jwks == nil || src.JWKEndpointURL == "" {
		return nil, sserr.Newf(sserr.CodeSigningKeyUnavailable,
			"keys: JWK mode enabled for %q but no JWK source is available", src.ConsumerID).
			WithDetails(details)
	}

	key, err := r.jwks.PublicKey(ctx, src.JWKEndpointURL, kid)
	if err != nil {
		return nil, sserr.Wrapf(err, sserr.CodeSigningKeyUnavailable,
			"keys: cannot resolve key %q from %s", kid, src.JWKEndpointURL).
			WithDetails(details)
	}

	if r.checker != nil && !r.checker.IsPublicKeyValidType(key, src.Algorithm) {
		return nil, sserr.Newf(sserr.CodeSigningKeyInvalid,
			"keys: %T from JWK %q cannot verify %s", key, kid, src.Algorithm).
			WithDetails(details)
	}
	return &SigningKey{Origin: OriginJWK, Algorithm: src.Algorithm, Key: key, KeyID: kid}, nil
}
