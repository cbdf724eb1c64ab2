// Package consumer validates JSON Web Tokens on behalf of configured token
// consumers.
//
// An [Engine] takes a raw compact-serialized token and a consumer [Config]
// and either returns the token's claims or a structured rejection from
// pkg/errors. Validation proceeds through a fixed sequence of [State]s:
// parse, resolve the signing key, verify the signature, then check issuer,
// audience, iat/exp, nbf, algorithm and authentication methods in that
// order, stopping at the first failure. Accepted tokens may be cached per
// consumer and optionally mirrored to peer replicas.
package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/StricklySoft/stricklysoft-jwt/pkg/cache"
	"github.com/StricklySoft/stricklysoft-jwt/pkg/claims"
	sserr "github.com/StricklySoft/stricklysoft-jwt/pkg/errors"
	"github.com/StricklySoft/stricklysoft-jwt/pkg/keys"
	"github.com/StricklySoft/stricklysoft-jwt/pkg/token"
	"github.com/StricklySoft/stricklysoft-jwt/pkg/validate"
)

const tracerName = "github.com/StricklySoft/stricklysoft-jwt/pkg/consumer"

// ---------------------------------------------------------------------------
// Engine and options
// ---------------------------------------------------------------------------

// Engine validates tokens. It holds no per-call state and is safe for
// concurrent use.
type Engine struct {
	parser   token.Parser
	resolver *keys.Resolver
	cache    *cache.TokenCache
	mirror   cache.Mirror
	props    Properties
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithParser replaces the default [token.JWSParser].
func WithParser(p token.Parser) Option {
	return func(e *Engine) { e.parser = p }
}

// WithResolver replaces the default resolver, which has no keystore and no
// JWK source.
func WithResolver(r *keys.Resolver) Option {
	return func(e *Engine) { e.resolver = r }
}

// WithCache enables caching for consumers that set CacheEnabled.
func WithCache(c *cache.TokenCache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithMirror shares accepted tokens with peer replicas.
func WithMirror(m cache.Mirror) Option {
	return func(e *Engine) { e.mirror = m }
}

// WithProperties sets the fallback settings map.
func WithProperties(p Properties) Option {
	return func(e *Engine) { e.props = p }
}

// WithLogger sets the logger for degraded paths such as mirror failures.
// Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithTracer replaces the tracer used for the per-call validation span.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithClock replaces time.Now for temporal claim checks.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine returns an Engine configured by opts.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		parser:   token.NewParser(),
		resolver: keys.NewResolver(keys.WithAlgorithmChecker(keys.DefaultAlgorithmChecker{})),
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ParseWithoutValidation decodes raw without checking its signature or
// claims. cfg only supplies the consumer ID for error context and may be
// nil.
func (e *Engine) ParseWithoutValidation(_ context.Context, raw string, cfg *Config) (*token.Context, error) {
	id := consumerID(cfg)
	if raw == "" {
		return nil, sserr.Rejectf(sserr.CodeTokenEmpty, id, "consumer %q received an empty token", id)
	}
	tc, err := e.parser.Parse(raw)
	if err != nil {
		if se, ok := sserr.AsError(err); ok && se.Code == sserr.CodeTokenMalformed {
			return nil, se.WithDetail("consumer_id", id)
		}
		return nil, sserr.Wrapf(err, sserr.CodeTokenMalformed, "consumer %q: malformed token %q", id, raw).
			WithDetails(map[string]any{"consumer_id": id, "token": raw})
	}
	return tc, nil
}

// ParseWithValidation returns a copy of the claims of raw once every check
// passes. Rejections are never cached.
func (e *Engine) ParseWithValidation(ctx context.Context, raw string, cfg *Config) (*claims.Claims, error) {
	ctx, span := e.tracer.Start(ctx, "jwt.ParseWithValidation")
	defer span.End()

	id := consumerID(cfg)
	v := &validation{engine: e, cfg: cfg, raw: raw, id: id, state: StateReceived, span: span}
	span.SetAttributes(attribute.String("jwt.consumer_id", id))

	c, err := v.run(ctx)
	span.SetAttributes(
		attribute.String("jwt.state", v.state.String()),
		attribute.Bool("jwt.cache_hit", v.cacheHit),
		attribute.Bool("jwt.mirror_hit", v.mirrorHit),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return c, nil
}

// ---------------------------------------------------------------------------
// Validation steps
// ---------------------------------------------------------------------------

// validation carries the state of one ParseWithValidation call.
type validation struct {
	engine *Engine
	cfg    *Config
	raw    string
	id     string
	span   trace.Span

	state     State
	settings  Settings
	tc        *token.Context
	key       *keys.SigningKey
	now       time.Time
	cacheHit  bool
	mirrorHit bool
}

// run drives the state machine: cache lookup, then each step in order,
// stopping at the first error.
func (v *validation) run(ctx context.Context) (*claims.Claims, error) {
	e := v.engine
	v.now = e.now()

	if tc := v.cached(); tc != nil {
		v.cacheHit = true
		if err := v.advance(StateAccepted); err != nil {
			return nil, err
		}
		return tc.Claims.Clone(), nil
	}

	steps := []struct {
		next State
		do   func(context.Context) error
	}{
		{StateParsed, v.parse},
		{StateKeyResolved, v.resolveKey},
		{StateSignatureChecked, v.verifySignature},
		{StateClaimsValidated, v.validateClaims},
	}
	for _, step := range steps {
		if err := step.do(ctx); err != nil {
			v.fail()
			return nil, err
		}
		if err := v.advance(step.next); err != nil {
			return nil, err
		}
	}

	v.store(ctx)
	if err := v.advance(StateAccepted); err != nil {
		return nil, err
	}
	return v.tc.Claims.Clone(), nil
}

// advance moves to the next state. An illegal transition is an internal
// error, never a token rejection.
func (v *validation) advance(to State) error {
	if !ValidTransition(v.state, to) {
		err := sserr.Newf(sserr.CodeInternal, "consumer %q: invalid validation transition %s -> %s", v.id, v.state, to)
		v.state = StateError
		return err
	}
	v.span.AddEvent("jwt.state", trace.WithAttributes(attribute.String("jwt.state", to.String())))
	v.state = to
	return nil
}

func (v *validation) fail() {
	if !v.state.IsTerminal() {
		v.state = StateError
	}
}

func (v *validation) cacheable() bool {
	return v.cfg != nil && v.cfg.CacheEnabled
}

// cached returns a live cache entry with claims, or nil.
func (v *validation) cached() *token.Context {
	if !v.cacheable() || v.engine.cache == nil || v.raw == "" {
		return nil
	}
	tc := v.engine.cache.Get(v.raw, v.id)
	if tc == nil || tc.Claims == nil {
		return nil
	}
	return tc
}

func (v *validation) parse(ctx context.Context) error {
	tc, err := v.engine.ParseWithoutValidation(ctx, v.raw, v.cfg)
	if err != nil {
		return err
	}
	v.tc = tc
	v.settings = ResolveSettings(v.cfg, v.engine.props)
	v.span.SetAttributes(
		attribute.String("jwt.algorithm", tc.Algorithm()),
		attribute.String("jwt.expected_algorithm", v.settings.Algorithm),
	)
	return nil
}

func (v *validation) resolveKey(ctx context.Context) error {
	if v.peerValidated(ctx) {
		return nil
	}
	key, err := v.engine.resolver.ResolveSigningKey(ctx, v.cfg.KeySource(v.settings.Algorithm), v.tc)
	if err != nil {
		return err
	}
	if key == nil {
		return sserr.Rejectf(sserr.CodeSignatureInvalid, v.id,
			"consumer %q cannot verify tokens signed with %s", v.id, v.settings.Algorithm).
			WithDetail("algorithm", v.settings.Algorithm)
	}
	v.key = key
	return nil
}

// peerValidated consults the mirror. Mirror failures count as misses.
func (v *validation) peerValidated(ctx context.Context) bool {
	m := v.engine.mirror
	if m == nil || !v.cacheable() {
		return false
	}
	ok, err := m.IsValidated(ctx, v.id, v.raw)
	if err != nil {
		v.engine.logger.WarnContext(ctx, "consumer: token mirror lookup failed",
			"consumer_id", v.id,
			"error", err,
		)
		return false
	}
	v.mirrorHit = ok
	return ok
}

func (v *validation) verifySignature(context.Context) error {
	if v.mirrorHit {
		return nil
	}
	alg := v.tc.Algorithm()
	if alg == "" {
		return sserr.Rejectf(sserr.CodeAlgorithmMissing, v.id,
			"consumer %q: token has no alg header", v.id)
	}
	method := jwt.GetSigningMethod(alg)
	if method == nil || method == jwt.SigningMethodNone {
		return sserr.Rejectf(sserr.CodeSignatureInvalid, v.id,
			"consumer %q: signing algorithm %q is not accepted", v.id, alg).
			WithDetail("algorithm", alg)
	}
	if err := method.Verify(v.tc.SigningInput, v.tc.Signature, v.key.Key); err != nil {
		return sserr.Wrapf(err, sserr.CodeSignatureInvalid,
			"consumer %q: signature verification failed for %s", v.id, alg).
			WithDetails(map[string]any{"consumer_id": v.id, "algorithm": alg, "key_origin": string(v.key.Origin)})
	}
	return nil
}

func (v *validation) validateClaims(context.Context) error {
	c := v.tc.Claims
	skew := v.cfg.ClockSkew

	iss, err := c.GetIssuer()
	if err != nil {
		return withConsumer(err, v.id)
	}
	if err := validate.ValidateIssuer(v.id, v.settings.TrustedIssuers, iss); err != nil {
		return err
	}

	aud, err := c.GetAudience()
	if err != nil {
		return withConsumer(err, v.id)
	}
	if v.settings.Audiences != nil || len(aud) > 0 {
		if !validate.ValidateAudienceWithPolicy(v.settings.Audiences, aud, v.cfg.IgnoreAudienceClaimIfNotConfigured) {
			return sserr.Rejectf(sserr.CodeAudienceUntrusted, v.id,
				"consumer %q does not accept audience %v", v.id, []string(aud)).
				WithDetails(map[string]any{"actual": []string(aud), "expected": v.settings.Audiences})
		}
	}

	if err := validate.ValidateIatAndExp(c, skew, v.now); err != nil {
		return withConsumer(err, v.id)
	}
	if err := validate.ValidateNbf(c, skew, v.now); err != nil {
		return withConsumer(err, v.id)
	}
	if err := validate.ValidateAlgorithm(v.tc, v.settings.Algorithm); err != nil {
		return withConsumer(err, v.id)
	}

	amr, err := c.AMR()
	if err != nil {
		return withConsumer(err, v.id)
	}
	if !validate.ValidateAMR(v.cfg.AMRClaim, amr) {
		return sserr.Rejectf(sserr.CodeAuthMethodUntrusted, v.id,
			"consumer %q does not accept authentication methods %v", v.id, amr).
			WithDetails(map[string]any{"actual": amr, "expected": v.cfg.AMRClaim})
	}
	return nil
}

// store caches and mirrors an accepted token. Failures are logged only.
func (v *validation) store(ctx context.Context) {
	if !v.cacheable() {
		return
	}
	e := v.engine
	timeout := cache.DefaultTimeout
	if e.cache != nil {
		e.cache.Put(v.raw, v.id, v.tc, v.cfg.ClockSkew)
		timeout = e.cache.Timeout()
	}
	if e.mirror == nil || v.mirrorHit {
		return
	}
	ttl := cache.MirrorTTL(timeout, v.tc, v.cfg.ClockSkew, v.now)
	if err := e.mirror.MarkValidated(ctx, v.id, v.raw, ttl); err != nil {
		e.logger.WarnContext(ctx, "consumer: token mirror write failed",
			"consumer_id", v.id,
			"error", err,
		)
	}
}

func withConsumer(err error, id string) error {
	if se, ok := sserr.AsError(err); ok && id != "" && se.Detail("consumer_id") == nil {
		return se.WithDetail("consumer_id", id)
	}
	return err
}

func consumerID(cfg *Config) string {
	if cfg == nil {
		return ""
	}
	return cfg.ID
}
