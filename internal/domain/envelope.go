package domain

import "strings"

// Result - нормализованная запись выдачи. Набор полей зависит от kind,
// опциональные поля заполняются только если провайдер их отдал.
type Result struct {
	Title       string `json:"title"`
	Link        string `json:"link,omitempty"`
	URL         string `json:"url,omitempty"`
	Snippet     string `json:"snippet,omitempty"`
	Description string `json:"description,omitempty"`
	Source      string `json:"source,omitempty"`
	Date        string `json:"date,omitempty"`
	Time        string `json:"time,omitempty"`
	Published   string `json:"published,omitempty"`
	Duration    string `json:"duration,omitempty"`
	Image       string `json:"image,omitempty"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	PageURL     string `json:"pageUrl,omitempty"`
}

// IsUsable - есть подпись и хотя бы один адрес
func (r Result) IsUsable() bool {
	if strings.TrimSpace(r.Title) == "" {
		return false
	}
	return r.Link != "" || r.URL != "" || r.Image != "" || r.PageURL != ""
}

// Envelope is the normalized response for one (kind, engine, query).
// It is shared between the cache and concurrent readers, so it must not be
// mutated after NewEnvelope returns.
type Envelope struct {
	Kind    ResultKind `json:"-"`
	Engine  Engine     `json:"-"`
	Type    string     `json:"type"`
	Query   string     `json:"query"`
	Count   int        `json:"count"`
	Results []Result   `json:"results"`
}

func NewEnvelope(kind ResultKind, engine Engine, query string, results []Result) *Envelope {
	out := make([]Result, len(results))
	copy(out, results)
	return &Envelope{
		Kind:    kind,
		Engine:  engine,
		Type:    TypeLabel(kind, engine),
		Query:   query,
		Count:   len(out),
		Results: out,
	}
}

// TypeLabel: web и videos отдаются как "<kind>", остальные как "<engine>_<kind>"
func TypeLabel(kind ResultKind, engine Engine) string {
	switch kind {
	case KindWeb, KindVideos:
		return string(kind)
	}
	return string(engine) + "_" + string(kind)
}

func (e *Envelope) CacheKey() string {
	return CacheKey(e.Kind, e.Engine, e.Query)
}
