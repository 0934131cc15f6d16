package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder587/search-proxy/internal/domain"
	"github.com/kitbuilder587/search-proxy/internal/metrics"
	"github.com/kitbuilder587/search-proxy/internal/pacing"
	"github.com/kitbuilder587/search-proxy/internal/tracer"
)

type AcquirerDeps struct {
	Fetcher Fetcher
	Pacer   *pacing.Pacer
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Acquirer забирает выдачу у провайдера, перебирая зеркала.
type Acquirer struct {
	fetcher Fetcher
	pacer   *pacing.Pacer
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewAcquirer(deps AcquirerDeps) *Acquirer {
	if deps.Pacer == nil {
		deps.Pacer = pacing.New(pacing.Config{})
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Acquirer{
		fetcher: deps.Fetcher,
		pacer:   deps.Pacer,
		logger:  deps.Logger,
		metrics: deps.Metrics,
	}
}

// Acquire returns the first non-empty result list across the provider's
// mirrors. Each attempt waits a randomized delay before fetching.
//
// A provider with a single endpoint returns its results as is, even when
// empty, or the fetch/extraction error. A provider with mirrors moves on
// after a failed or empty attempt and returns ErrAllMirrorsExhausted when
// none produced results.
func (a *Acquirer) Acquire(ctx context.Context, p *Provider, query string) ([]domain.Result, error) {
	if len(p.Endpoints) == 0 {
		return nil, fmt.Errorf("%s: %w", p.Name(), ErrNoEndpoints)
	}

	order := pacing.Order(a.pacer, p.Endpoints)
	var lastErr error

	for i, ep := range order {
		if i > 0 && a.metrics != nil {
			a.metrics.RecordMirrorFailover(p.Engine.String(), p.Kind.String())
		}

		if err := a.pacer.Delay(ctx); err != nil {
			return nil, err
		}

		results, err := a.attempt(ctx, p, ep, query)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if !p.HasMirrors() {
				return nil, err
			}
			a.logger.Warn("mirror failed",
				zap.String("provider", p.Name()),
				zap.String("endpoint", ep.URL),
				zap.Error(err),
			)
			lastErr = err
			continue
		}

		if len(results) > 0 || !p.HasMirrors() {
			return results, nil
		}

		a.logger.Debug("mirror returned no results",
			zap.String("provider", p.Name()),
			zap.String("endpoint", ep.URL),
		)
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrAllMirrorsExhausted, p.Name(), lastErr)
	}
	return nil, fmt.Errorf("%w: %s: no results on any mirror", domain.ErrAllMirrorsExhausted, p.Name())
}

func (a *Acquirer) attempt(ctx context.Context, p *Provider, ep Endpoint, query string) ([]domain.Result, error) {
	ctx, span := tracer.StartSpan(ctx, "search.fetch",
		tracer.String("engine", p.Engine.String()),
		tracer.String("kind", p.Kind.String()),
		tracer.String("endpoint", ep.URL),
	)
	defer span.End()

	start := time.Now()
	status := "success"
	defer func() {
		if a.metrics != nil {
			a.metrics.RecordUpstreamRequest(p.Engine.String(), p.Kind.String(), status, time.Since(start))
		}
	}()

	payload, err := a.fetcher.Fetch(ctx, Target{
		Engine:   p.Engine,
		Kind:     p.Kind,
		Endpoint: ep,
		Query:    query,
	})
	if err != nil {
		status = "error"
		if !errors.Is(err, domain.ErrUpstream) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %v", domain.ErrUpstream, err)
		}
		tracer.RecordError(span, err)
		return nil, err
	}

	results, err := safeExtract(p.Extractor, payload.Body)
	if err != nil {
		status = "extract_error"
		tracer.RecordError(span, err)
		return nil, err
	}
	if len(results) == 0 {
		status = "empty"
	}

	span.SetAttributes(tracer.Int("results", len(results)))
	tracer.SetOK(span)
	return results, nil
}

// safeExtract не даёт панике в парсере уронить запрос
func safeExtract(ex Extractor, body []byte) (results []domain.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			results = nil
			err = fmt.Errorf("%w: panic: %v", ErrExtraction, r)
		}
	}()

	results, err = ex.Extract(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	if results == nil {
		results = []domain.Result{}
	}
	return results, nil
}
