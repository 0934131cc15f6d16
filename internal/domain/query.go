package domain

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

const MaxQueryLength = 1000

type SearchRequest struct {
	ClientID string
	Kind     ResultKind
	Engine   Engine
	Query    string
}

// Sanitize тримит запрос и приводит движок к нижнему регистру.
// Пустой движок заменяется дефолтным для kind.
func (r *SearchRequest) Sanitize() {
	r.Query = strings.TrimSpace(r.Query)
	r.Engine = Engine(strings.ToLower(strings.TrimSpace(string(r.Engine))))
	if r.Engine == "" {
		r.Engine = DefaultEngine(r.Kind)
	}
}

func (r *SearchRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return ErrMissingQuery
	}
	if len(r.Query) > MaxQueryLength {
		return ErrQueryTooLong
	}
	if !r.Kind.IsValid() {
		return ErrInvalidKind
	}
	if !r.Engine.SupportedFor(r.Kind) {
		return &InvalidEngineError{Kind: r.Kind, Engine: string(r.Engine), Valid: Engines(r.Kind)}
	}
	return nil
}

func (r *SearchRequest) CacheKey() string {
	return CacheKey(r.Kind, r.Engine, r.Query)
}

func CacheKey(kind ResultKind, engine Engine, query string) string {
	return fmt.Sprintf("%s:%s:%s", kind, engine, query)
}

// QueryHash - короткий хеш для логов, сам запрос не логируем
func QueryHash(query string) string {
	sum := sha256.Sum256([]byte(query))
	return fmt.Sprintf("%x", sum[:8])
}
