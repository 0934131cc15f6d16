package search

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/kitbuilder587/search-proxy/internal/domain"
)

var (
	ErrExtraction      = errors.New("extraction failed")
	ErrUnknownProvider = errors.New("unknown provider")
	ErrNoEndpoints     = errors.New("provider has no endpoints")
)

// Endpoint - один адрес провайдера (зеркало) со статичными параметрами.
type Endpoint struct {
	URL    string
	Params map[string]string
}

// Build собирает URL запроса: статичные параметры плюс q.
func (e Endpoint) Build(query string) (string, error) {
	u, err := url.Parse(e.URL)
	if err != nil {
		return "", fmt.Errorf("parse endpoint %q: %w", e.URL, err)
	}
	values := u.Query()
	for k, v := range e.Params {
		values.Set(k, v)
	}
	values.Set("q", query)
	u.RawQuery = values.Encode()
	return u.String(), nil
}

// Target - что именно забрать у провайдера за одну попытку.
type Target struct {
	Engine   domain.Engine
	Kind     domain.ResultKind
	Endpoint Endpoint
	Query    string
}

type Payload struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// Fetcher выполняет один исходящий запрос. Ошибка транспорта или не-2xx
// статус возвращаются обёрнутыми в domain.ErrUpstream.
type Fetcher interface {
	Fetch(ctx context.Context, target Target) (*Payload, error)
}

// Extractor превращает сырой ответ в нормализованные записи.
type Extractor interface {
	Extract(body []byte) ([]domain.Result, error)
}

type ExtractorFunc func(body []byte) ([]domain.Result, error)

func (f ExtractorFunc) Extract(body []byte) ([]domain.Result, error) {
	return f(body)
}

// Provider - пара (engine, kind) со списком зеркал и стратегией извлечения.
type Provider struct {
	Engine    domain.Engine
	Kind      domain.ResultKind
	Endpoints []Endpoint
	Extractor Extractor
}

func (p *Provider) HasMirrors() bool {
	return len(p.Endpoints) > 1
}

func (p *Provider) Name() string {
	return p.Engine.String() + "/" + p.Kind.String()
}
