package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kitbuilder587/search-proxy/internal/domain"
	"github.com/kitbuilder587/search-proxy/internal/search"
)

type Response struct {
	Body        string
	ContentType string
	Err         error
}

// Fetcher отдаёт заранее заданные ответы по URL зеркала.
// Незаданный URL - ошибка upstream.
type Fetcher struct {
	Responses map[string]Response
	Delay     time.Duration

	CallCount   int
	LastTarget  search.Target
	AllTargets  []search.Target
	CallsPerURL map[string]int

	mu sync.Mutex
}

func New() *Fetcher {
	return &Fetcher{
		Responses:   make(map[string]Response),
		CallsPerURL: make(map[string]int),
	}
}

func (f *Fetcher) On(endpointURL, body string) *Fetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Responses[endpointURL] = Response{Body: body, ContentType: "text/html"}
	return f
}

func (f *Fetcher) OnError(endpointURL string, err error) *Fetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Responses[endpointURL] = Response{Err: err}
	return f
}

func (f *Fetcher) WithDelay(delay time.Duration) *Fetcher {
	f.Delay = delay
	return f
}

func (f *Fetcher) Fetch(ctx context.Context, target search.Target) (*search.Payload, error) {
	f.mu.Lock()
	f.CallCount++
	f.LastTarget = target
	f.AllTargets = append(f.AllTargets, target)
	f.CallsPerURL[target.Endpoint.URL]++
	resp, ok := f.Responses[target.Endpoint.URL]
	delay := f.Delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	if !ok {
		return nil, fmt.Errorf("%w: no response scripted for %s", domain.ErrUpstream, target.Endpoint.URL)
	}
	if resp.Err != nil {
		return nil, resp.Err
	}

	return &search.Payload{
		URL:         target.Endpoint.URL,
		StatusCode:  200,
		ContentType: resp.ContentType,
		Body:        []byte(resp.Body),
	}, nil
}

func (f *Fetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.CallCount
}

func (f *Fetcher) CallsTo(endpointURL string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.CallsPerURL[endpointURL]
}

func (f *Fetcher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CallCount = 0
	f.LastTarget = search.Target{}
	f.AllTargets = nil
	f.CallsPerURL = make(map[string]int)
}
