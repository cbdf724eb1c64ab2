// Package app assembles a token-validation service from a config.File:
// keystore backend, JWKS source, token cache with its sweeper and Redis
// mirror, and one consumer engine shared by every configured consumer.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/StricklySoft/stricklysoft-jwt/pkg/cache"
	"github.com/StricklySoft/stricklysoft-jwt/pkg/claims"
	"github.com/StricklySoft/stricklysoft-jwt/pkg/clients/minio"
	"github.com/StricklySoft/stricklysoft-jwt/pkg/clients/postgres"
	"github.com/StricklySoft/stricklysoft-jwt/pkg/clients/redis"
	"github.com/StricklySoft/stricklysoft-jwt/pkg/config"
	"github.com/StricklySoft/stricklysoft-jwt/pkg/consumer"
	sserr "github.com/StricklySoft/stricklysoft-jwt/pkg/errors"
	"github.com/StricklySoft/stricklysoft-jwt/pkg/keys"
	"github.com/StricklySoft/stricklysoft-jwt/pkg/keystore"
	"github.com/StricklySoft/stricklysoft-jwt/pkg/transport"
)

const tracerName = "github.com/StricklySoft/stricklysoft-jwt/internal/app"

// maxRequestBody bounds the validate endpoint's JSON body.
const maxRequestBody = 64 << 10

type healthCheck struct {
	name  string
	check func(context.Context) error
}

// Service owns the long-lived parts of a running validator.
type Service struct {
	cfg      *config.File
	engine   *consumer.Engine
	cache    *cache.TokenCache
	sweeper  *cache.Sweeper
	keystore keystore.Service
	mirror   cache.Mirror
	guards   map[string]*transport.Guard

	health  []healthCheck
	closers []func()
	cancel  context.CancelFunc

	logger *slog.Logger
	tracer trace.Tracer

	mu      sync.Mutex
	running bool
	stopped bool
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used by the service and its components.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithKeystore replaces the configured keystore backend.
func WithKeystore(ks keystore.Service) Option {
	return func(s *Service) { s.keystore = ks }
}

// WithMirror replaces the Redis mirror.
func WithMirror(m cache.Mirror) Option {
	return func(s *Service) { s.mirror = m }
}

// New connects the configured backends and builds the engine. Backends
// that fail to connect are closed again before New returns.
func New(ctx context.Context, cfg *config.File, opts ...Option) (_ *Service, err error) {
	s := &Service{
		cfg:    cfg,
		guards: make(map[string]*transport.Guard, len(cfg.Consumers)),
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	defer func() {
		if err != nil {
			s.close()
		}
	}()

	if s.keystore == nil {
		if s.keystore, err = s.openKeystore(ctx); err != nil {
			return nil, err
		}
	}
	if s.mirror == nil && cfg.Cache.MirrorEnabled {
		if s.mirror, err = s.openMirror(ctx); err != nil {
			return nil, err
		}
	}

	// The JWKS cache refreshes in the background until Stop.
	bg, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	resolverOpts := []keys.Option{
		keys.WithAlgorithmChecker(keys.DefaultAlgorithmChecker{}),
		keys.WithJWKSource(keys.NewRemoteJWKSource(bg, keys.WithMinRefreshInterval(cfg.Cache.JWKRefreshInterval))),
		keys.WithLogger(s.logger),
	}
	if s.keystore != nil {
		resolverOpts = append(resolverOpts, keys.WithKeystore(s.keystore))
	}

	s.cache = cache.NewTokenCache(cfg.Cache.Timeout)
	s.sweeper = cache.NewSweeper(s.cache,
		cache.WithSchedule(cfg.Cache.SweepSchedule),
		cache.WithSweeperLogger(s.logger),
	)

	engineOpts := []consumer.Option{
		consumer.WithResolver(keys.NewResolver(resolverOpts...)),
		consumer.WithCache(s.cache),
		consumer.WithProperties(cfg.Properties),
		consumer.WithLogger(s.logger),
	}
	if s.mirror != nil {
		engineOpts = append(engineOpts, consumer.WithMirror(s.mirror))
	}
	s.engine = consumer.NewEngine(engineOpts...)

	for i := range cfg.Consumers {
		c := &cfg.Consumers[i]
		s.guards[c.ID] = transport.NewGuard(s.engine, c, transport.WithLogger(s.logger))
	}
	return s, nil
}

func (s *Service) openKeystore(ctx context.Context) (keystore.Service, error) {
	switch s.cfg.Keystore.Backend {
	case config.KeystorePostgres:
		client, err := postgres.NewClient(ctx, s.cfg.Keystore.Postgres)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, client.Close)
		s.health = append(s.health, healthCheck{"postgres", client.Health})
		store := keystore.NewPostgresStore(client)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case config.KeystoreMinIO:
		client, err := minio.NewClient(ctx, s.cfg.Keystore.MinIO)
		if err != nil {
			return nil, err
		}
		s.health = append(s.health, healthCheck{"minio", client.Health})
		return keystore.NewObjectStore(client), nil
	default:
		return nil, nil
	}
}

func (s *Service) openMirror(ctx context.Context) (cache.Mirror, error) {
	client, err := redis.NewClient(ctx, s.cfg.Cache.Redis)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, func() { _ = client.Close() })
	s.health = append(s.health, healthCheck{"redis", client.Health})
	return cache.NewRedisMirror(client), nil
}

// Engine returns the shared consumer engine.
func (s *Service) Engine() *consumer.Engine { return s.engine }

// Cache returns the validated-token cache.
func (s *Service) Cache() *cache.TokenCache { return s.cache }

// Start begins background cache sweeping. Starting twice is a no-op.
func (s *Service) Start(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "app.Start")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		err := sserr.New(sserr.CodeInternal, "app: service was stopped and cannot be restarted")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if s.running {
		return nil
	}
	if err := s.sweeper.Start(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return sserr.Wrap(err, sserr.CodeInternalConfiguration, "app: failed to start cache sweeper")
	}
	s.running = true
	s.logger.InfoContext(ctx, "app: service started",
		"consumers", len(s.cfg.Consumers),
		"keystore", s.cfg.Keystore.Backend,
		"mirror", s.mirror != nil,
	)
	span.SetStatus(codes.Ok, "")
	return nil
}

// Stop halts the sweeper and closes every backend. It is safe to call more
// than once. A stopped Service cannot be started again; build a new one
// with [New].
func (s *Service) Stop(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "app.Stop")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.running {
		err = s.sweeper.Stop(ctx)
		s.running = false
	}
	s.stopped = true
	s.close()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return sserr.Wrap(err, sserr.CodeTimeout, "app: cache sweeper did not stop in time")
	}
	s.logger.InfoContext(ctx, "app: service stopped")
	return nil
}

func (s *Service) close() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// Health checks every connected backend and joins their failures.
func (s *Service) Health(ctx context.Context) error {
	var errs []error
	for _, h := range s.health {
		if err := h.check(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Validate validates raw as the consumer named id.
func (s *Service) Validate(ctx context.Context, id, raw string) (*claims.Claims, error) {
	ctx, span := s.tracer.Start(ctx, "app.Validate", trace.WithAttributes(attribute.String("jwt.consumer_id", id)))
	defer span.End()

	cfg, ok := s.cfg.Consumer(id)
	if !ok {
		err := sserr.NotFoundf("consumer %q is not configured", id)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return s.engine.ParseWithValidation(ctx, raw, cfg)
}

type validateRequest struct {
	Token string `json:"token"`
}

type validateResponse struct {
	ConsumerID string         `json:"consumer_id"`
	Claims     *claims.Claims `json:"claims"`
}

// Handler serves:
//
//	GET  /healthz                        backend health
//	POST /v1/consumers/{id}/validate     {"token": "..."} -> claims
//	GET  /v1/consumers/{id}/claims       bearer-authenticated echo of claims
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /v1/consumers/{id}/validate", s.handleValidate)
	mux.HandleFunc("GET /v1/consumers/{id}/claims", s.handleClaims)
	return otelhttp.NewHandler(mux, "jwtconsumer")
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.Health(r.Context()); err != nil {
		s.logger.WarnContext(r.Context(), "app: health check failed", "error", err)
		transport.WriteError(w, sserr.Wrap(err, sserr.CodeUnavailableDependency, "backend unhealthy"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) handleValidate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req validateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		transport.WriteError(w, sserr.Wrap(err, sserr.CodeValidationFormat, "request body is not valid JSON"))
		return
	}
	c, err := s.Validate(r.Context(), id, req.Token)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{ConsumerID: id, Claims: c})
}

func (s *Service) handleClaims(w http.ResponseWriter, r *http.Request) {
	g, ok := s.guards[r.PathValue("id")]
	if !ok {
		transport.WriteError(w, sserr.NotFoundf("consumer %q is not configured", r.PathValue("id")))
		return
	}
	g.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := transport.ConsumerFromContext(r.Context())
		writeJSON(w, http.StatusOK, validateResponse{ConsumerID: id, Claims: transport.MustClaimsFromContext(r.Context())})
	})).ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
