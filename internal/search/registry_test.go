package search_test

import (
	"errors"
	"net/url"
	"testing"

	"github.com/kitbuilder587/search-proxy/internal/domain"
	"github.com/kitbuilder587/search-proxy/internal/search"
)

func TestDefaultRegistry_CoversCatalogue(t *testing.T) {
	r := search.DefaultRegistry()

	for _, kind := range domain.AllKinds() {
		for _, engine := range domain.Engines(kind) {
			p, err := r.Get(engine, kind)
			if err != nil {
				t.Errorf("Get(%s, %s) error = %v", engine, kind, err)
				continue
			}
			if len(p.Endpoints) == 0 || p.Extractor == nil {
				t.Errorf("provider %s is incomplete", p.Name())
			}
		}
	}

	if _, err := r.Get(domain.EngineGoogle, domain.KindVideos); !errors.Is(err, search.ErrUnknownProvider) {
		t.Errorf("Get(google, videos) error = %v, want ErrUnknownProvider", err)
	}
}

func TestDefaultRegistry_DuckDuckGoWebMirrors(t *testing.T) {
	p, err := search.DefaultRegistry().Get(domain.EngineDuckDuckGo, domain.KindWeb)
	if err != nil {
		t.Fatal(err)
	}
	if !p.HasMirrors() || len(p.Endpoints) != 3 {
		t.Errorf("duckduckgo/web endpoints = %d, want 3 mirrors", len(p.Endpoints))
	}
}

func TestRegistry_Register(t *testing.T) {
	r := search.NewRegistry()
	p := single()

	if err := r.Register(p); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register(p); err == nil {
		t.Error("duplicate Register() should fail")
	}

	noEndpoints := single()
	noEndpoints.Engine = domain.EngineGoogle
	noEndpoints.Endpoints = nil
	if err := r.Register(noEndpoints); !errors.Is(err, search.ErrNoEndpoints) {
		t.Errorf("Register() error = %v, want ErrNoEndpoints", err)
	}

	noExtractor := single()
	noExtractor.Engine = domain.EngineGoogle
	noExtractor.Extractor = nil
	if err := r.Register(noExtractor); err == nil {
		t.Error("Register() without extractor should fail")
	}
}

func TestRegistry_Override(t *testing.T) {
	r := search.DefaultRegistry()
	before, _ := r.Get(domain.EngineDuckDuckGo, domain.KindWeb)

	err := r.Override(domain.EngineDuckDuckGo, domain.KindWeb, []search.Endpoint{{URL: "http://localhost:9000/html/"}})
	if err != nil {
		t.Fatalf("Override() error = %v", err)
	}

	after, _ := r.Get(domain.EngineDuckDuckGo, domain.KindWeb)
	if len(after.Endpoints) != 1 || after.Endpoints[0].URL != "http://localhost:9000/html/" {
		t.Errorf("endpoints after override = %+v", after.Endpoints)
	}
	if after.Extractor == nil {
		t.Error("Override() lost the extractor")
	}
	// старый провайдер не мутирован
	if len(before.Endpoints) != 3 {
		t.Errorf("original provider mutated: %d endpoints", len(before.Endpoints))
	}

	if err := r.Override(domain.EngineGoogle, domain.KindVideos, []search.Endpoint{{URL: "http://x"}}); !errors.Is(err, search.ErrUnknownProvider) {
		t.Errorf("Override(unknown) error = %v, want ErrUnknownProvider", err)
	}
	if err := r.Override(domain.EngineBing, domain.KindWeb, nil); !errors.Is(err, search.ErrNoEndpoints) {
		t.Errorf("Override(empty) error = %v, want ErrNoEndpoints", err)
	}
}

func TestRegistry_ProvidersSorted(t *testing.T) {
	providers := search.DefaultRegistry().Providers()
	if len(providers) != 9 {
		t.Fatalf("len(Providers()) = %d, want 9", len(providers))
	}
	for i := 1; i < len(providers); i++ {
		prev, cur := providers[i-1], providers[i]
		if prev.Kind > cur.Kind || (prev.Kind == cur.Kind && prev.Engine > cur.Engine) {
			t.Errorf("providers not sorted at %d: %s before %s", i, prev.Name(), cur.Name())
		}
	}
}

func TestEndpoint_Build(t *testing.T) {
	tests := []struct {
		name     string
		endpoint search.Endpoint
		query    string
		want     url.Values
	}{
		{
			name:     "plain",
			endpoint: search.Endpoint{URL: "https://www.bing.com/search"},
			query:    "rust programming",
			want:     url.Values{"q": {"rust programming"}},
		},
		{
			name:     "static params",
			endpoint: search.Endpoint{URL: "https://www.google.com/search", Params: map[string]string{"tbm": "isch"}},
			query:    "gopher",
			want:     url.Values{"q": {"gopher"}, "tbm": {"isch"}},
		},
		{
			name:     "q in params is overridden",
			endpoint: search.Endpoint{URL: "https://x.example/?q=stale", Params: map[string]string{"q": "stale"}},
			query:    "fresh & new",
			want:     url.Values{"q": {"fresh & new"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := tt.endpoint.Build(tt.query)
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			u, err := url.Parse(raw)
			if err != nil {
				t.Fatalf("Build() produced invalid url %q", raw)
			}
			got := u.Query()
			if len(got) != len(tt.want) {
				t.Fatalf("query = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got.Get(k) != v[0] {
					t.Errorf("query[%s] = %q, want %q", k, got.Get(k), v[0])
				}
			}
		})
	}

	if _, err := (search.Endpoint{URL: "://bad"}).Build("q"); err == nil {
		t.Error("Build() with invalid url should fail")
	}
}
