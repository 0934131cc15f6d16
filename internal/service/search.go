package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kitbuilder587/search-proxy/internal/config"
	"github.com/kitbuilder587/search-proxy/internal/domain"
	"github.com/kitbuilder587/search-proxy/internal/metrics"
	"github.com/kitbuilder587/search-proxy/internal/search"
	"github.com/kitbuilder587/search-proxy/internal/tracer"
)

type RateLimiter interface {
	Allow(clientID string) bool
	ResetTime(clientID string) time.Time
}

type EnvelopeCache interface {
	Get(key string) (*domain.Envelope, bool)
	Put(key string, env *domain.Envelope)
}

type ProviderRegistry interface {
	Get(engine domain.Engine, kind domain.ResultKind) (*search.Provider, error)
}

type Acquirer interface {
	Acquire(ctx context.Context, p *search.Provider, query string) ([]domain.Result, error)
}

type SearchService interface {
	Search(ctx context.Context, req domain.SearchRequest) (*domain.Envelope, error)
}

type SearchConfig struct {
	// общий лимит на получение выдачи, включая все зеркала
	AcquireTimeout time.Duration
}

type SearchServiceDeps struct {
	Limiter  RateLimiter
	Cache    EnvelopeCache
	Registry ProviderRegistry
	Acquirer Acquirer
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Config   SearchConfig
}

type searchService struct {
	limiter  RateLimiter
	cache    EnvelopeCache
	registry ProviderRegistry
	acquirer Acquirer
	logger   *zap.Logger
	metrics  *metrics.Metrics
	config   SearchConfig
}

func NewSearchService(deps SearchServiceDeps) SearchService {
	if deps.Config.AcquireTimeout == 0 {
		deps.Config.AcquireTimeout = 60 * time.Second
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	return &searchService{
		limiter:  deps.Limiter,
		cache:    deps.Cache,
		registry: deps.Registry,
		acquirer: deps.Acquirer,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
		config:   deps.Config,
	}
}

// Search validates the request, charges the client's rate limit, and serves
// the envelope from cache or from the provider. Failed acquisitions are
// never cached.
func (s *searchService) Search(ctx context.Context, req domain.SearchRequest) (*domain.Envelope, error) {
	startTime := time.Now()

	if s.metrics != nil {
		s.metrics.IncRequestsInFlight()
		defer s.metrics.DecRequestsInFlight()
	}

	req.Sanitize()
	kind := req.Kind.String()

	// невалидный запрос не тратит лимит клиента
	if err := req.Validate(); err != nil {
		s.record(kind, "validation_error", startTime)
		return nil, err
	}

	ctx, span := tracer.StartSpan(ctx, "search.request",
		tracer.String("kind", kind),
		tracer.String("engine", req.Engine.String()),
	)
	defer span.End()

	if !s.limiter.Allow(req.ClientID) {
		if s.metrics != nil {
			s.metrics.RecordRateLimitHit(kind)
		}
		s.record(kind, "rate_limited", startTime)
		s.logger.Debug("rate limited", zap.String("kind", kind))
		rateErr := &domain.RateLimitError{RetryAt: s.limiter.ResetTime(req.ClientID)}
		tracer.RecordError(span, rateErr)
		return nil, rateErr
	}

	key := req.CacheKey()
	queryFields := config.QueryFields(req.Query)

	if env, ok := s.cache.Get(key); ok {
		if s.metrics != nil {
			s.metrics.RecordCacheHit()
		}
		span.SetAttributes(tracer.Bool("cache_hit", true))
		tracer.SetOK(span)
		s.record(kind, "cache_hit", startTime)
		s.logger.Debug("cache hit", append(queryFields,
			zap.String("kind", kind),
			zap.String("engine", req.Engine.String()),
		)...)
		return env, nil
	}
	if s.metrics != nil {
		s.metrics.RecordCacheMiss()
	}
	span.SetAttributes(tracer.Bool("cache_hit", false))

	provider, err := s.registry.Get(req.Engine, req.Kind)
	if err != nil {
		return nil, s.fail(span, kind, req.Engine, queryFields, startTime, err)
	}

	acquireCtx, cancel := context.WithTimeout(ctx, s.config.AcquireTimeout)
	defer cancel()

	results, err := s.acquirer.Acquire(acquireCtx, provider, req.Query)
	if err != nil {
		return nil, s.fail(span, kind, req.Engine, queryFields, startTime, err)
	}

	env := domain.NewEnvelope(req.Kind, req.Engine, req.Query, results)
	s.cache.Put(key, env)

	s.logger.Info("search completed", append(queryFields,
		zap.String("kind", kind),
		zap.String("engine", req.Engine.String()),
		zap.Int("results", env.Count),
		zap.Duration("duration", time.Since(startTime)),
	)...)

	span.SetAttributes(tracer.Int("results", env.Count))
	tracer.SetOK(span)
	s.record(kind, "success", startTime)

	return env, nil
}

// fail логирует и оборачивает ошибку получения выдачи
func (s *searchService) fail(span trace.Span, kind string, engine domain.Engine, queryFields []zap.Field, startTime time.Time, err error) error {
	s.logger.Warn("search failed", append(queryFields,
		zap.String("kind", kind),
		zap.String("engine", engine.String()),
		zap.Duration("duration", time.Since(startTime)),
		zap.Error(err),
	)...)
	tracer.RecordError(span, err)
	s.record(kind, "error", startTime)
	return fmt.Errorf("%w: %w", domain.ErrAcquisitionFailed, err)
}

func (s *searchService) record(kind, status string, startTime time.Time) {
	if s.metrics != nil {
		s.metrics.RecordRequest(kind, status, time.Since(startTime))
	}
}
