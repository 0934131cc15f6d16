package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kitbuilder587/search-proxy/internal/api"
	"github.com/kitbuilder587/search-proxy/internal/cache/memory"
	"github.com/kitbuilder587/search-proxy/internal/config"
	"github.com/kitbuilder587/search-proxy/internal/domain"
	"github.com/kitbuilder587/search-proxy/internal/metrics"
	"github.com/kitbuilder587/search-proxy/internal/pacing"
	"github.com/kitbuilder587/search-proxy/internal/ratelimit"
	"github.com/kitbuilder587/search-proxy/internal/search"
	"github.com/kitbuilder587/search-proxy/internal/search/httpfetch"
	"github.com/kitbuilder587/search-proxy/internal/service"
	"github.com/kitbuilder587/search-proxy/internal/tracer"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// .env необязателен
	_ = godotenv.Load()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "search-proxy: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracer.Setup(ctx, tracer.Config{
		Enabled:  cfg.Tracing.Enabled,
		Exporter: cfg.Tracing.Exporter,
	})
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	m := metrics.New(prometheus.DefaultRegisterer)

	limiter := ratelimit.New(ratelimit.Config{
		Limit:  cfg.RateLimit.RequestsPerMinute,
		Window: cfg.RateLimit.Window,
	})
	limiter.Start(ctx)

	cache := memory.New(memory.Config{
		MaxEntries: cfg.Cache.MaxEntries,
		TTL:        cfg.Cache.TTL,
	})
	m.ObserveCache(cache)

	registry := search.DefaultRegistry()
	if err := applyProviderOverrides(registry, cfg.Providers); err != nil {
		return err
	}

	fetcher := httpfetch.New(httpfetch.Config{
		Timeout:            cfg.Upstream.Timeout,
		UserAgent:          cfg.Upstream.UserAgent,
		RequestsPerSecond:  cfg.Upstream.RequestsPerSecond,
		Burst:              cfg.Upstream.Burst,
		BreakerMaxFailures: uint32(cfg.Upstream.BreakerMaxFailures),
		BreakerOpenTimeout: cfg.Upstream.BreakerOpenTimeout,
	}, logger)

	acquirer := search.NewAcquirer(search.AcquirerDeps{
		Fetcher: fetcher,
		Pacer: pacing.New(pacing.Config{
			MinDelay: cfg.Pacing.MinDelay,
			MaxDelay: cfg.Pacing.MaxDelay,
		}),
		Logger:  logger,
		Metrics: m,
	})

	searchService := service.NewSearchService(service.SearchServiceDeps{
		Limiter:  limiter,
		Cache:    cache,
		Registry: registry,
		Acquirer: acquirer,
		Logger:   logger,
		Metrics:  m,
	})

	handler := api.NewHandler(searchService, api.HandlerConfig{
		CacheMaxAge:          cfg.HTTPCache.MaxAge,
		StaleWhileRevalidate: cfg.HTTPCache.StaleWhileRevalidate,
	}, logger).WithQuota(limiter)

	server := &http.Server{
		Addr: ":" + cfg.Server.Port,
		Handler: api.NewRouter(api.RouterDeps{
			Handler:        handler,
			Metrics:        metrics.Handler(prometheus.DefaultGatherer),
			AllowedOrigins: cfg.Server.CORSOrigins,
			Logger:         logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// выдача с перебором зеркал может идти долго
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting",
			zap.String("addr", server.Addr),
			zap.Int("providers", len(registry.Providers())),
			zap.Int("rate_limit", cfg.RateLimit.RequestsPerMinute),
			zap.Duration("cache_ttl", cache.TTL()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		return err
	}

	logger.Info("server stopped")
	return nil
}

func applyProviderOverrides(registry *search.Registry, overrides []config.ProviderOverride) error {
	for _, o := range overrides {
		endpoints := make([]search.Endpoint, len(o.Endpoints))
		for i, ep := range o.Endpoints {
			endpoints[i] = search.Endpoint{URL: ep.URL, Params: ep.Params}
		}
		if err := registry.Override(domain.Engine(o.Engine), domain.ResultKind(o.Kind), endpoints); err != nil {
			return fmt.Errorf("providers file: %w", err)
		}
	}
	return nil
}
