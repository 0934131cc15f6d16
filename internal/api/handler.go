package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder587/search-proxy/internal/config"
	"github.com/kitbuilder587/search-proxy/internal/domain"
	"github.com/kitbuilder587/search-proxy/internal/service"
)

// Route - HTTP маршрут фиксирует kind и дефолтный движок,
// движок можно переопределить параметром engine.
type Route struct {
	Path          string
	Kind          domain.ResultKind
	DefaultEngine domain.Engine
	// Type заменяет type конверта в ответе, пусто - как в конверте
	Type string
}

func Routes() []Route {
	return []Route{
		{Path: "/api/search", Kind: domain.KindWeb, DefaultEngine: domain.EngineDuckDuckGo},
		{Path: "/api/websearch", Kind: domain.KindWeb, DefaultEngine: domain.EngineDuckDuckGo},
		{Path: "/api/news", Kind: domain.KindNews, DefaultEngine: domain.EngineDuckDuckGo, Type: "news"},
		{Path: "/api/newssearch", Kind: domain.KindNews, DefaultEngine: domain.EngineBing},
		{Path: "/api/imagesearch", Kind: domain.KindImages, DefaultEngine: domain.EngineDuckDuckGo},
		{Path: "/api/videos", Kind: domain.KindVideos, DefaultEngine: domain.EngineDuckDuckGo},
	}
}

type HandlerConfig struct {
	CacheMaxAge          time.Duration
	StaleWhileRevalidate time.Duration
}

// Quota отдаёт состояние лимита клиента для заголовков X-RateLimit-*
type Quota interface {
	Limit() int
	RemainingRequests(clientID string) int
}

type Handler struct {
	search       service.SearchService
	quota        Quota
	logger       *zap.Logger
	cacheControl string
}

func NewHandler(svc service.SearchService, cfg HandlerConfig, logger *zap.Logger) *Handler {
	if cfg.CacheMaxAge == 0 {
		cfg.CacheMaxAge = 30 * time.Minute
	}
	if cfg.StaleWhileRevalidate == 0 {
		cfg.StaleWhileRevalidate = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Handler{
		search: svc,
		logger: logger,
		cacheControl: fmt.Sprintf("s-maxage=%d, stale-while-revalidate=%d",
			int(cfg.CacheMaxAge.Seconds()), int(cfg.StaleWhileRevalidate.Seconds())),
	}
}

// WithQuota включает заголовки X-RateLimit-Limit и X-RateLimit-Remaining
func (h *Handler) WithQuota(q Quota) *Handler {
	h.quota = q
	return h
}

func (h *Handler) Search(route Route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := r.URL.Query()

		engine := domain.Engine(params.Get("engine"))
		if engine == "" {
			engine = route.DefaultEngine
		}
		clientID := ClientIP(r)

		env, err := h.search.Search(r.Context(), domain.SearchRequest{
			ClientID: clientID,
			Kind:     route.Kind,
			Engine:   engine,
			Query:    params.Get("q"),
		})
		h.setQuotaHeaders(w, clientID)

		if err != nil {
			var rateErr *domain.RateLimitError
			if errors.As(err, &rateErr) {
				retry := rateErr.RetryAfter(time.Now())
				w.Header().Set("Retry-After", strconv.Itoa(int(retry/time.Second)))
			}

			status, msg := mapError(route.Kind, err)
			if status >= http.StatusInternalServerError {
				h.logger.Error("search request failed",
					zap.String("path", route.Path),
					config.RequestIDField(RequestIDFromContext(r.Context())),
					zap.Error(err),
				)
			}
			RespondError(w, status, msg)
			return
		}

		// конверт общий с кешем, не мутируем
		if route.Type != "" && env.Type != route.Type {
			labeled := *env
			labeled.Type = route.Type
			env = &labeled
		}

		w.Header().Set("Cache-Control", h.cacheControl)
		RespondJSON(w, http.StatusOK, env)
	}
}

func (h *Handler) setQuotaHeaders(w http.ResponseWriter, clientID string) {
	if h.quota == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(h.quota.Limit()))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(h.quota.RemainingRequests(clientID)))
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func mapError(kind domain.ResultKind, err error) (int, string) {
	var engineErr *domain.InvalidEngineError
	switch {
	case errors.Is(err, domain.ErrMissingQuery):
		return http.StatusBadRequest, "Missing ?q= parameter"
	case errors.As(err, &engineErr):
		return http.StatusBadRequest, "Invalid engine. Must be one of " + engineErr.ValidList()
	case errors.Is(err, domain.ErrQueryTooLong):
		return http.StatusBadRequest, fmt.Sprintf("Query too long. Maximum %d characters", domain.MaxQueryLength)
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, "Invalid request"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "Too many requests"
	default:
		return http.StatusInternalServerError, kind.String() + " search failed"
	}
}
