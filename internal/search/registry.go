package search

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kitbuilder587/search-proxy/internal/domain"
	"github.com/kitbuilder587/search-proxy/internal/search/extract"
)

type providerKey struct {
	engine domain.Engine
	kind   domain.ResultKind
}

// Registry хранит провайдеров по (engine, kind). После старта сервиса
// используется только на чтение.
type Registry struct {
	mu        sync.RWMutex
	providers map[providerKey]*Provider
}

func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[providerKey]*Provider),
	}
}

// Register добавляет провайдера, повторная регистрация пары - ошибка.
func (r *Registry) Register(p *Provider) error {
	if p == nil {
		return fmt.Errorf("register: nil provider")
	}
	if len(p.Endpoints) == 0 {
		return fmt.Errorf("register %s: %w", p.Name(), ErrNoEndpoints)
	}
	if p.Extractor == nil {
		return fmt.Errorf("register %s: nil extractor", p.Name())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := providerKey{p.Engine, p.Kind}
	if _, exists := r.providers[key]; exists {
		return fmt.Errorf("register %s: already registered", p.Name())
	}
	r.providers[key] = p
	return nil
}

func (r *Registry) Get(engine domain.Engine, kind domain.ResultKind) (*Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[providerKey{engine, kind}]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownProvider, engine, kind)
	}
	return p, nil
}

// Override заменяет список зеркал существующего провайдера.
func (r *Registry) Override(engine domain.Engine, kind domain.ResultKind, endpoints []Endpoint) error {
	if len(endpoints) == 0 {
		return fmt.Errorf("override %s/%s: %w", engine, kind, ErrNoEndpoints)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := providerKey{engine, kind}
	p, ok := r.providers[key]
	if !ok {
		return fmt.Errorf("override: %w: %s/%s", ErrUnknownProvider, engine, kind)
	}

	eps := make([]Endpoint, len(endpoints))
	copy(eps, endpoints)
	r.providers[key] = &Provider{
		Engine:    p.Engine,
		Kind:      p.Kind,
		Endpoints: eps,
		Extractor: p.Extractor,
	}
	return nil
}

// Providers returns all registered providers sorted by kind, then engine.
func (r *Registry) Providers() []*Provider {
	r.mu.RLock()
	out := make([]*Provider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Engine < out[j].Engine
	})
	return out
}

// DefaultRegistry возвращает каталог провайдеров со штатными адресами.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, p := range defaultProviders() {
		// каталог статичный, ошибка здесь - баг в коде
		if err := r.Register(p); err != nil {
			panic(err)
		}
	}
	return r
}

func defaultProviders() []*Provider {
	return []*Provider{
		{
			Engine: domain.EngineDuckDuckGo,
			Kind:   domain.KindWeb,
			Endpoints: []Endpoint{
				{URL: "https://html.duckduckgo.com/html/"},
				{URL: "https://lite.duckduckgo.com/lite/"},
				{URL: "https://start.duckduckgo.com/html/"},
			},
			Extractor: ExtractorFunc(extract.DuckDuckGoWeb),
		},
		{
			Engine:    domain.EngineBing,
			Kind:      domain.KindWeb,
			Endpoints: []Endpoint{{URL: "https://www.bing.com/search"}},
			Extractor: ExtractorFunc(extract.BingWeb),
		},
		{
			Engine:    domain.EngineGoogle,
			Kind:      domain.KindWeb,
			Endpoints: []Endpoint{{URL: "https://www.google.com/search"}},
			Extractor: ExtractorFunc(extract.GoogleWeb),
		},
		{
			Engine:    domain.EngineBing,
			Kind:      domain.KindNews,
			Endpoints: []Endpoint{{URL: "https://www.bing.com/news/search"}},
			Extractor: ExtractorFunc(extract.BingNews),
		},
		{
			Engine: domain.EngineDuckDuckGo,
			Kind:   domain.KindNews,
			Endpoints: []Endpoint{{
				URL:    "https://duckduckgo.com/news.js",
				Params: map[string]string{"iar": "news", "ia": "news"},
			}},
			Extractor: ExtractorFunc(extract.DuckDuckGoNews),
		},
		{
			Engine: domain.EngineDuckDuckGo,
			Kind:   domain.KindImages,
			Endpoints: []Endpoint{{
				URL:    "https://duckduckgo.com/i.js",
				Params: map[string]string{"l": "us-en", "o": "json"},
			}},
			Extractor: ExtractorFunc(extract.DuckDuckGoImages),
		},
		{
			Engine: domain.EngineBing,
			Kind:   domain.KindImages,
			Endpoints: []Endpoint{{
				URL:    "https://www.bing.com/images/search",
				Params: map[string]string{"form": "HDRSC2"},
			}},
			Extractor: ExtractorFunc(extract.BingImages),
		},
		{
			Engine: domain.EngineGoogle,
			Kind:   domain.KindImages,
			Endpoints: []Endpoint{{
				URL:    "https://www.google.com/search",
				Params: map[string]string{"tbm": "isch"},
			}},
			Extractor: ExtractorFunc(extract.GoogleImages),
		},
		{
			Engine: domain.EngineDuckDuckGo,
			Kind:   domain.KindVideos,
			Endpoints: []Endpoint{{
				URL:    "https://duckduckgo.com/v.js",
				Params: map[string]string{"iar": "videos", "ia": "videos"},
			}},
			Extractor: ExtractorFunc(extract.DuckDuckGoVideos),
		},
	}
}
