package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	ErrInvalidConfig   = errors.New("invalid config")
	ErrInvalidPacing   = errors.New("PACING_MAX_DELAY_MS must be >= PACING_MIN_DELAY_MS")
	ErrInvalidExporter = errors.New("TRACING_EXPORTER must be one of noop, stdout")
)

type Config struct {
	Server        ServerConfig
	Log           LogConfig
	RateLimit     RateLimitConfig
	Cache         CacheConfig
	Pacing        PacingConfig
	Upstream      UpstreamConfig
	HTTPCache     HTTPCacheConfig
	Tracing       TracingConfig
	ProvidersFile string

	// заполняется из ProvidersFile, пусто - штатные адреса
	Providers []ProviderOverride
}

type ServerConfig struct {
	Port        string
	CORSOrigins []string
}

type LogConfig struct {
	Level string
	// json или console, пусто - по уровню
	Format string
}

type RateLimitConfig struct {
	RequestsPerMinute int
	Window            time.Duration
}

type CacheConfig struct {
	MaxEntries int
	TTL        time.Duration
}

type PacingConfig struct {
	MinDelay time.Duration
	MaxDelay time.Duration
}

type UpstreamConfig struct {
	Timeout            time.Duration
	UserAgent          string
	RequestsPerSecond  float64
	Burst              int
	BreakerMaxFailures int
	BreakerOpenTimeout time.Duration
}

// HTTPCacheConfig - значения для заголовка Cache-Control в ответах
type HTTPCacheConfig struct {
	MaxAge               time.Duration
	StaleWhileRevalidate time.Duration
}

type TracingConfig struct {
	Enabled  bool
	Exporter string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnvOrDefault("PORT", "8080"),
			CORSOrigins: splitList(getEnvOrDefault("CORS_ORIGINS", "*")),
		},
		Log: LogConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: os.Getenv("LOG_FORMAT"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvIntOrDefault("RATE_LIMIT_PER_MINUTE", 30),
			Window:            time.Duration(getEnvIntOrDefault("RATE_LIMIT_WINDOW_SEC", 60)) * time.Second,
		},
		Cache: CacheConfig{
			MaxEntries: getEnvIntOrDefault("CACHE_MAX_ENTRIES", 500),
			TTL:        time.Duration(getEnvIntOrDefault("CACHE_TTL_SEC", 1800)) * time.Second,
		},
		Pacing: PacingConfig{
			MinDelay: time.Duration(getEnvIntOrDefault("PACING_MIN_DELAY_MS", 200)) * time.Millisecond,
			MaxDelay: time.Duration(getEnvIntOrDefault("PACING_MAX_DELAY_MS", 800)) * time.Millisecond,
		},
		Upstream: UpstreamConfig{
			Timeout:            time.Duration(getEnvIntOrDefault("UPSTREAM_TIMEOUT_SEC", 15)) * time.Second,
			UserAgent:          os.Getenv("UPSTREAM_USER_AGENT"),
			RequestsPerSecond:  getEnvFloatOrDefault("UPSTREAM_RPS", 2),
			Burst:              getEnvIntOrDefault("UPSTREAM_BURST", 4),
			BreakerMaxFailures: getEnvIntOrDefault("BREAKER_MAX_FAILURES", 5),
			BreakerOpenTimeout: time.Duration(getEnvIntOrDefault("BREAKER_OPEN_SEC", 30)) * time.Second,
		},
		HTTPCache: HTTPCacheConfig{
			MaxAge:               time.Duration(getEnvIntOrDefault("CACHE_CONTROL_MAX_AGE_SEC", 1800)) * time.Second,
			StaleWhileRevalidate: time.Duration(getEnvIntOrDefault("CACHE_CONTROL_SWR_SEC", 86400)) * time.Second,
		},
		Tracing: TracingConfig{
			Enabled:  getEnvBoolOrDefault("TRACING_ENABLED", false),
			Exporter: getEnvOrDefault("TRACING_EXPORTER", "noop"),
		},
		ProvidersFile: os.Getenv("PROVIDERS_FILE"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.ProvidersFile != "" {
		providers, err := LoadProviders(cfg.ProvidersFile)
		if err != nil {
			return nil, err
		}
		cfg.Providers = providers
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Server),
		validation.Field(&c.RateLimit),
		validation.Field(&c.Cache),
		validation.Field(&c.Pacing),
		validation.Field(&c.Upstream),
		validation.Field(&c.HTTPCache),
		validation.Field(&c.Tracing),
	); err != nil {
		var pacingErr, tracingErr error
		if errs, ok := err.(validation.Errors); ok {
			pacingErr = errs["Pacing"]
			tracingErr = errs["Tracing"]
		}
		// известные случаи отдаём отдельными sentinel, остальное под общим
		switch {
		case errors.Is(pacingErr, ErrInvalidPacing):
			return ErrInvalidPacing
		case errors.Is(tracingErr, ErrInvalidExporter):
			return ErrInvalidExporter
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (s ServerConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Port, validation.Required, validation.By(isPort)),
		validation.Field(&s.CORSOrigins, validation.Required),
	)
}

func (r RateLimitConfig) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RequestsPerMinute, validation.Required, validation.Min(1)),
		validation.Field(&r.Window, validation.Required, validation.Min(time.Second)),
	)
}

func (c CacheConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.MaxEntries, validation.Required, validation.Min(1)),
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Second)),
	)
}

func (p PacingConfig) Validate() error {
	if p.MaxDelay < p.MinDelay {
		return ErrInvalidPacing
	}
	return validation.ValidateStruct(&p,
		validation.Field(&p.MinDelay, validation.Min(time.Duration(0))),
	)
}

func (u UpstreamConfig) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.Timeout, validation.Required, validation.Min(time.Second)),
		validation.Field(&u.RequestsPerSecond, validation.Min(0.0)),
		validation.Field(&u.Burst, validation.Min(0)),
		validation.Field(&u.BreakerMaxFailures, validation.Required, validation.Min(1)),
		validation.Field(&u.BreakerOpenTimeout, validation.Required, validation.Min(time.Second)),
	)
}

func (h HTTPCacheConfig) Validate() error {
	return validation.ValidateStruct(&h,
		validation.Field(&h.MaxAge, validation.Min(time.Duration(0))),
		validation.Field(&h.StaleWhileRevalidate, validation.Min(time.Duration(0))),
	)
}

func (t TracingConfig) Validate() error {
	switch t.Exporter {
	case "noop", "stdout":
		return nil
	}
	return ErrInvalidExporter
}

func isPort(value interface{}) error {
	s, _ := value.(string)
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 65535 {
		return errors.New("must be a port number")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
