package httpfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kitbuilder587/search-proxy/internal/domain"
	"github.com/kitbuilder587/search-proxy/internal/search"
)

const (
	DefaultTimeout   = 15 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

	defaultMaxBodyBytes       = 5 << 20
	defaultBreakerMaxFailures = 5
	defaultBreakerOpenTimeout = 30 * time.Second
	defaultBreakerInterval    = time.Minute

	acceptHeader   = "text/html,application/xhtml+xml,application/xml;q=0.9,application/json;q=0.8,*/*;q=0.7"
	acceptLanguage = "en-US,en;q=0.9"
)

type Config struct {
	Timeout   time.Duration
	UserAgent string

	// ограничение исходящих запросов на хост, 0 - без ограничения
	RequestsPerSecond float64
	Burst             int

	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration

	MaxBodyBytes int64
}

// Client ходит к провайдерам по HTTP. На каждый хост свой token bucket,
// на каждое зеркало свой circuit breaker. Ретраев нет, отказ зеркала
// обрабатывает Acquirer.
type Client struct {
	client    *http.Client
	userAgent string
	maxBody   int64

	limit rate.Limit
	burst int

	breakerMaxFailures uint32
	breakerOpenTimeout time.Duration

	logger *zap.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	breakers map[string]*gobreaker.CircuitBreaker[*search.Payload]
}

func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.BreakerMaxFailures == 0 {
		cfg.BreakerMaxFailures = defaultBreakerMaxFailures
	}
	if cfg.BreakerOpenTimeout == 0 {
		cfg.BreakerOpenTimeout = defaultBreakerOpenTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := rate.Inf
	burst := cfg.Burst
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		if burst <= 0 {
			burst = max(1, int(cfg.RequestsPerSecond))
		}
	}

	return &Client{
		client:             &http.Client{Timeout: cfg.Timeout},
		userAgent:          cfg.UserAgent,
		maxBody:            cfg.MaxBodyBytes,
		limit:              limit,
		burst:              burst,
		breakerMaxFailures: cfg.BreakerMaxFailures,
		breakerOpenTimeout: cfg.BreakerOpenTimeout,
		logger:             logger,
		limiters:           make(map[string]*rate.Limiter),
		breakers:           make(map[string]*gobreaker.CircuitBreaker[*search.Payload]),
	}
}

func (c *Client) Fetch(ctx context.Context, target search.Target) (*search.Payload, error) {
	rawURL, err := target.Endpoint.Build(target.Query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}

	if err := c.limiter(u.Host).Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for %s: %w", u.Host, err)
	}

	payload, err := c.breaker(target.Endpoint.URL).Execute(func() (*search.Payload, error) {
		return c.do(ctx, rawURL)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %s circuit open: %v", domain.ErrUpstream, target.Endpoint.URL, err)
		}
		return nil, err
	}
	return payload, nil
}

func (c *Client) do(ctx context.Context, rawURL string) (*search.Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrUpstream, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Accept-Language", acceptLanguage)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: do request: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// дочитываем чтобы соединение вернулось в пул
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, fmt.Errorf("%w: %s returned status %d", domain.ErrUpstream, req.URL.Host, resp.StatusCode)
	}

	// +1 байт, чтобы отличить страницу ровно по лимиту от обрезанной
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrUpstream, err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, fmt.Errorf("%w: %s response exceeds %d bytes", domain.ErrUpstream, req.URL.Host, c.maxBody)
	}

	return &search.Payload{
		URL:         rawURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

func (c *Client) limiter(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.limiters[host]
	if !ok {
		l = rate.NewLimiter(c.limit, c.burst)
		c.limiters[host] = l
	}
	return l
}

func (c *Client) breaker(endpoint string) *gobreaker.CircuitBreaker[*search.Payload] {
	c.mu.Lock()
	defer c.mu.Unlock()

	cb, ok := c.breakers[endpoint]
	if ok {
		return cb
	}

	maxFailures := c.breakerMaxFailures
	cb = gobreaker.NewCircuitBreaker[*search.Payload](gobreaker.Settings{
		Name:        "upstream:" + endpoint,
		MaxRequests: 1,
		Interval:    defaultBreakerInterval,
		Timeout:     c.breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// отмена клиентом - не отказ зеркала
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
	})
	c.breakers[endpoint] = cb
	return cb
}

// BreakerState returns the breaker state for an endpoint, closed if it was
// never used.
func (c *Client) BreakerState(endpoint string) gobreaker.State {
	c.mu.Lock()
	cb, ok := c.breakers[endpoint]
	c.mu.Unlock()
	if !ok {
		return gobreaker.StateClosed
	}
	return cb.State()
}
