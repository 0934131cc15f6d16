package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrRateLimited     = errors.New("too many requests")
)

var (
	ErrMissingQuery  = fmt.Errorf("%w: missing query", ErrInvalidArgument)
	ErrQueryTooLong  = fmt.Errorf("%w: query too long", ErrInvalidArgument)
	ErrInvalidKind   = fmt.Errorf("%w: unknown result kind", ErrInvalidArgument)
	ErrInvalidEngine = fmt.Errorf("%w: unsupported engine", ErrInvalidArgument)
)

// ошибки получения выдачи
var (
	ErrUpstream            = errors.New("upstream request failed")
	ErrAllMirrorsExhausted = errors.New("all mirrors exhausted")
	ErrAcquisitionFailed   = errors.New("acquisition failed")
)

// InvalidEngineError - движок не поддерживается для данного kind.
// Valid нужен хендлеру чтобы перечислить допустимые значения в ответе.
type InvalidEngineError struct {
	Kind   ResultKind
	Engine string
	Valid  []Engine
}

func (e *InvalidEngineError) Error() string {
	return fmt.Sprintf("unsupported engine %q for %s, must be one of %s", e.Engine, e.Kind, e.ValidList())
}

func (e *InvalidEngineError) Unwrap() error { return ErrInvalidEngine }

func (e *InvalidEngineError) ValidList() string {
	names := make([]string, len(e.Valid))
	for i, v := range e.Valid {
		names[i] = v.String()
	}
	return strings.Join(names, ", ")
}

// RateLimitError - клиент упёрся в лимит, RetryAt - когда пройдёт следующий запрос.
type RateLimitError struct {
	RetryAt time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%v, retry at %s", ErrRateLimited, e.RetryAt.Format(time.RFC3339))
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// RetryAfter rounds the wait up to whole seconds, never below one.
func (e *RateLimitError) RetryAfter(now time.Time) time.Duration {
	wait := e.RetryAt.Sub(now)
	if wait < time.Second {
		return time.Second
	}
	if rem := wait % time.Second; rem != 0 {
		wait += time.Second - rem
	}
	return wait
}
