package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kitbuilder587/search-proxy/internal/cache/memory"
	"github.com/kitbuilder587/search-proxy/internal/domain"
	"github.com/kitbuilder587/search-proxy/internal/metrics"
	"github.com/kitbuilder587/search-proxy/internal/pacing"
	"github.com/kitbuilder587/search-proxy/internal/ratelimit"
	"github.com/kitbuilder587/search-proxy/internal/search"
	"github.com/kitbuilder587/search-proxy/internal/search/mock"
	"github.com/kitbuilder587/search-proxy/internal/service"
)

const (
	ddgHTMLMirror  = "https://html.duckduckgo.com/html/"
	ddgLiteMirror  = "https://lite.duckduckgo.com/lite/"
	ddgStartMirror = "https://start.duckduckgo.com/html/"
	ddgNewsFeed    = "https://duckduckgo.com/news.js"
	bingNewsPage   = "https://www.bing.com/news/search"
	ddgVideosFeed  = "https://duckduckgo.com/v.js"
)

const rustResultsPage = `<html><body>
<div class="result"><div class="result__body">
  <a class="result__a" href="https://www.rust-lang.org/">Rust Programming Language</a>
  <a class="result__snippet">A language empowering everyone.</a>
</div></div>
<div class="result"><div class="result__body">
  <a class="result__a" href="https://doc.rust-lang.org/book/">The Rust Programming Language Book</a>
  <a class="result__snippet">An introductory book about Rust.</a>
</div></div>
</body></html>`

type firstRand struct{}

func (firstRand) Intn(int) int       { return 0 }
func (firstRand) Int63n(int64) int64 { return 0 }

type testEnv struct {
	server  *httptest.Server
	fetcher *mock.Fetcher
	cache   *memory.Cache
}

func newTestEnv(t *testing.T, cacheTTL time.Duration) *testEnv {
	t.Helper()

	fetcher := mock.New()
	limiter := ratelimit.New(ratelimit.Config{Limit: 30, Window: time.Minute})
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	cache := memory.New(memory.Config{MaxEntries: 100, TTL: cacheTTL})
	m.ObserveCache(cache)

	svc := service.NewSearchService(service.SearchServiceDeps{
		Limiter:  limiter,
		Cache:    cache,
		Registry: search.DefaultRegistry(),
		Acquirer: search.NewAcquirer(search.AcquirerDeps{
			Fetcher: fetcher,
			Pacer:   pacing.NewWithRand(pacing.Config{}, firstRand{}),
			Metrics: m,
		}),
		Metrics: m,
	})

	router := NewRouter(RouterDeps{
		Handler: NewHandler(svc, HandlerConfig{}, zap.NewNop()).WithQuota(limiter),
		Metrics: metrics.Handler(reg),
		Logger:  zap.NewNop(),
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testEnv{server: server, fetcher: fetcher, cache: cache}
}

func (e *testEnv) get(t *testing.T, path string, headers map[string]string) (*http.Response, map[string]interface{}) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, e.server.URL+path, nil)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s error = %v", path, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var decoded map[string]interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("GET %s: invalid json %q", path, body)
	}
	return resp, decoded
}

func TestSearch_WebSuccess(t *testing.T) {
	env := newTestEnv(t, time.Minute)
	env.fetcher.On(ddgHTMLMirror, rustResultsPage)

	resp, body := env.get(t, "/api/websearch?engine=duckduckgo&q=rust+programming", nil)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, body)
	}
	if body["type"] != "web" || body["query"] != "rust programming" || body["count"] != float64(2) {
		t.Errorf("body = %v", body)
	}
	results, _ := body["results"].([]interface{})
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	first := results[0].(map[string]interface{})
	if first["title"] != "Rust Programming Language" || first["link"] != "https://www.rust-lang.org/" {
		t.Errorf("results[0] = %v", first)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "s-maxage=1800, stale-while-revalidate=86400" {
		t.Errorf("Cache-Control = %q", cc)
	}
	if resp.Header.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", resp.Header.Get("Content-Type"))
	}
	if resp.Header.Get(RequestIDHeader) == "" {
		t.Error("missing request id header")
	}
}

func TestSearch_MissingQuery(t *testing.T) {
	env := newTestEnv(t, time.Minute)

	for _, route := range Routes() {
		t.Run(route.Path, func(t *testing.T) {
			resp, body := env.get(t, route.Path, nil)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
			if body["error"] != "Missing ?q= parameter" {
				t.Errorf("error = %v", body["error"])
			}
		})
	}

	if env.fetcher.Calls() != 0 || env.cache.Len() != 0 {
		t.Error("missing query must not reach fetcher or cache")
	}

	// 6 невалидных запросов не съели лимит: ещё 30 проходят
	env.fetcher.On(ddgHTMLMirror, rustResultsPage)
	for i := 0; i < 30; i++ {
		resp, _ := env.get(t, "/api/search?q=rust", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d status = %d", i+1, resp.StatusCode)
		}
	}
}

func TestSearch_InvalidEngine(t *testing.T) {
	env := newTestEnv(t, time.Minute)

	tests := []struct {
		path string
		want string
	}{
		{"/api/websearch?q=x&engine=yahoo", "Invalid engine. Must be one of duckduckgo, bing, google"},
		{"/api/newssearch?q=x&engine=google", "Invalid engine. Must be one of bing, duckduckgo"},
		{"/api/videos?q=x&engine=bing", "Invalid engine. Must be one of duckduckgo"},
	}

	for _, tt := range tests {
		resp, body := env.get(t, tt.path, nil)
		if resp.StatusCode != http.StatusBadRequest || body["error"] != tt.want {
			t.Errorf("GET %s = %d %v, want 400 %q", tt.path, resp.StatusCode, body["error"], tt.want)
		}
	}
}

func TestSearch_QueryTooLong(t *testing.T) {
	env := newTestEnv(t, time.Minute)

	resp, body := env.get(t, "/api/search?q="+strings.Repeat("a", domain.MaxQueryLength+1), nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 (%v)", resp.StatusCode, body)
	}
}

func TestSearch_RateLimited(t *testing.T) {
	env := newTestEnv(t, time.Minute)
	env.fetcher.On(ddgHTMLMirror, rustResultsPage)

	headers := map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}
	for i := 0; i < 30; i++ {
		resp, _ := env.get(t, "/api/search?q=rust", headers)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d status = %d", i+1, resp.StatusCode)
		}
		if got, want := resp.Header.Get("X-RateLimit-Remaining"), strconv.Itoa(29-i); got != want {
			t.Errorf("request %d X-RateLimit-Remaining = %q, want %q", i+1, got, want)
		}
	}

	resp, body := env.get(t, "/api/search?q=rust", headers)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("31st status = %d, want 429", resp.StatusCode)
	}
	if body["error"] != "Too many requests" {
		t.Errorf("error = %v", body["error"])
	}
	assertRetryAfter(t, resp)
	if resp.Header.Get("X-RateLimit-Limit") != "30" || resp.Header.Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("X-RateLimit-* = %q/%q, want 30/0",
			resp.Header.Get("X-RateLimit-Limit"), resp.Header.Get("X-RateLimit-Remaining"))
	}

	// другой клиент проходит
	resp, _ = env.get(t, "/api/search?q=rust", map[string]string{"X-Forwarded-For": "198.51.100.1"})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("other client status = %d, want 200", resp.StatusCode)
	}
}

func TestSearch_RateLimitedNewsRoute(t *testing.T) {
	env := newTestEnv(t, time.Minute)
	env.fetcher.On(ddgNewsFeed, `{"results":[{"title":"Go 1.23","url":"https://go.dev/blog/go1.23"}]}`)

	for i := 0; i < 30; i++ {
		env.get(t, "/api/news?q=go", nil)
	}

	resp, _ := env.get(t, "/api/news?q=go", nil)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("31st status = %d, want 429", resp.StatusCode)
	}
	assertRetryAfter(t, resp)
}

func assertRetryAfter(t *testing.T, resp *http.Response) {
	t.Helper()

	raw := resp.Header.Get("Retry-After")
	secs, err := strconv.Atoi(raw)
	if err != nil {
		t.Fatalf("Retry-After = %q, want whole seconds", raw)
	}
	if secs < 1 || secs > 60 {
		t.Errorf("Retry-After = %d, want within the 60s window", secs)
	}
}

func TestSearch_MirrorFallback(t *testing.T) {
	env := newTestEnv(t, time.Minute)
	env.fetcher.
		OnError(ddgHTMLMirror, domain.ErrUpstream).
		OnError(ddgLiteMirror, domain.ErrUpstream).
		On(ddgStartMirror, rustResultsPage)

	resp, body := env.get(t, "/api/search?q=rust", nil)
	if resp.StatusCode != http.StatusOK || body["count"] != float64(2) {
		t.Errorf("status = %d, body = %v", resp.StatusCode, body)
	}
	if env.fetcher.Calls() != 3 {
		t.Errorf("fetch calls = %d, want 3", env.fetcher.Calls())
	}
}

func TestSearch_AllMirrorsDown(t *testing.T) {
	env := newTestEnv(t, time.Minute)

	resp, body := env.get(t, "/api/websearch?q=rust", nil)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
	if body["error"] != "web search failed" {
		t.Errorf("error = %v", body["error"])
	}
	if resp.Header.Get("Cache-Control") != "" {
		t.Error("error response must not carry Cache-Control")
	}
	if env.cache.Len() != 0 {
		t.Error("failure cached")
	}
}

func TestSearch_CacheHitAndExpiry(t *testing.T) {
	env := newTestEnv(t, 100*time.Millisecond)
	env.fetcher.On(ddgHTMLMirror, rustResultsPage)

	env.get(t, "/api/search?q=rust", nil)
	resp, body := env.get(t, "/api/search?q=rust", nil)
	if resp.StatusCode != http.StatusOK || body["count"] != float64(2) {
		t.Fatalf("cached response = %d %v", resp.StatusCode, body)
	}
	if resp.Header.Get("Cache-Control") == "" {
		t.Error("cache hit must carry Cache-Control")
	}
	if env.fetcher.Calls() != 1 {
		t.Errorf("fetch calls = %d, want 1", env.fetcher.Calls())
	}

	time.Sleep(150 * time.Millisecond)
	env.get(t, "/api/search?q=rust", nil)
	if env.fetcher.Calls() != 2 {
		t.Errorf("fetch calls after expiry = %d, want 2", env.fetcher.Calls())
	}
}

func TestSearch_NewsRoutesDefaultEngines(t *testing.T) {
	env := newTestEnv(t, time.Minute)
	env.fetcher.On(ddgNewsFeed, `{"results":[{"title":"Go 1.23","url":"https://go.dev/blog/go1.23","source":"Go Blog","date":1723000000}]}`)
	env.fetcher.On(bingNewsPage, `<div class="news-card"><a class="title" href="https://n.example/a">Rust news</a></div>`)

	_, body := env.get(t, "/api/news?q=go", nil)
	if body["type"] != "news" || body["count"] != float64(1) {
		t.Errorf("/api/news body = %v", body)
	}

	_, body = env.get(t, "/api/newssearch?q=rust", nil)
	if body["type"] != "bing_news" || body["count"] != float64(1) {
		t.Errorf("/api/newssearch body = %v", body)
	}

	// тот же конверт из кеша, метка по маршруту
	_, body = env.get(t, "/api/newssearch?q=go&engine=duckduckgo", nil)
	if body["type"] != "duckduckgo_news" {
		t.Errorf("/api/newssearch duckduckgo type = %v", body["type"])
	}
	if env.fetcher.CallsTo(ddgNewsFeed) != 1 {
		t.Errorf("news feed calls = %d, want 1", env.fetcher.CallsTo(ddgNewsFeed))
	}

	_, body = env.get(t, "/api/news?q=go", nil)
	if body["type"] != "news" {
		t.Errorf("/api/news type after relabel = %v, cached envelope mutated", body["type"])
	}
}

func TestSearch_Videos(t *testing.T) {
	env := newTestEnv(t, time.Minute)
	env.fetcher.On(ddgVideosFeed, `{"results":[{"title":"Rust in 100 seconds","content":"https://www.youtube.com/watch?v=5C_HPTJg5ek","publisher":"YouTube","duration":"2:29"}]}`)

	resp, body := env.get(t, "/api/videos?q=rust", nil)
	if resp.StatusCode != http.StatusOK || body["type"] != "videos" {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, body)
	}
	result := body["results"].([]interface{})[0].(map[string]interface{})
	if result["url"] != "https://www.youtube.com/watch?v=5C_HPTJg5ek" || result["source"] != "YouTube" {
		t.Errorf("result = %v", result)
	}
}

func TestSearch_ExtractionFailure(t *testing.T) {
	env := newTestEnv(t, time.Minute)
	env.fetcher.On(ddgVideosFeed, "<html>captcha</html>")

	resp, body := env.get(t, "/api/videos?q=rust", nil)
	if resp.StatusCode != http.StatusInternalServerError || body["error"] != "videos search failed" {
		t.Errorf("status = %d, body = %v", resp.StatusCode, body)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, time.Minute)

	resp, body := env.get(t, "/health", nil)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Errorf("health = %d %v", resp.StatusCode, body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, time.Minute)
	env.fetcher.On(ddgHTMLMirror, rustResultsPage)
	env.get(t, "/api/search?q=rust", nil)

	resp, err := http.Get(env.server.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, line := range []string{
		`search_proxy_requests_total{kind="web",status="success"} 1`,
		`search_proxy_cache_entries 1`,
		`search_proxy_cache_evictions_total 0`,
	} {
		if !strings.Contains(string(body), line) {
			t.Errorf("metrics output missing %q", line)
		}
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"missing", domain.ErrMissingQuery, 400, "Missing ?q= parameter"},
		{"engine", &domain.InvalidEngineError{Kind: domain.KindWeb, Engine: "x", Valid: domain.Engines(domain.KindWeb)}, 400, "Invalid engine. Must be one of duckduckgo, bing, google"},
		{"too long", domain.ErrQueryTooLong, 400, "Query too long. Maximum 1000 characters"},
		{"kind", domain.ErrInvalidKind, 400, "Invalid request"},
		{"rate", domain.ErrRateLimited, 429, "Too many requests"},
		{"rate with reset", &domain.RateLimitError{RetryAt: time.Now().Add(time.Minute)}, 429, "Too many requests"},
		{"acquisition", fmt.Errorf("%w: %w", domain.ErrAcquisitionFailed, domain.ErrUpstream), 500, "images search failed"},
		{"unknown", errors.New("boom"), 500, "images search failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := mapError(domain.KindImages, tt.err)
			if status != tt.wantStatus || msg != tt.wantMsg {
				t.Errorf("mapError() = %d %q, want %d %q", status, msg, tt.wantStatus, tt.wantMsg)
			}
		})
	}
}
