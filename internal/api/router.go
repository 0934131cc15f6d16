package api

import (
	"net/http"

	"github.com/rs/cors"
	"go.uber.org/zap"
)

type RouterDeps struct {
	Handler        *Handler
	Metrics        http.Handler
	AllowedOrigins []string
	Logger         *zap.Logger
}

func NewRouter(deps RouterDeps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if len(deps.AllowedOrigins) == 0 {
		deps.AllowedOrigins = []string{"*"}
	}

	mux := http.NewServeMux()
	for _, route := range Routes() {
		mux.HandleFunc("GET "+route.Path, deps.Handler.Search(route))
	}
	mux.HandleFunc("GET /health", deps.Handler.Health)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}

	c := cors.New(cors.Options{
		AllowedOrigins: deps.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader, "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		MaxAge:         300,
	})

	return Chain(mux,
		RequestID,
		AccessLog(deps.Logger),
		Recovery(deps.Logger),
		c.Handler,
	)
}
