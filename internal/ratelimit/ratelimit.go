package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultLimit  = 30
	DefaultWindow = time.Minute

	cleanupInterval = 5 * time.Minute
)

// Limiter - rate limiter на клиента (sliding window).
// Лимитер приблизительный: порядок между гонящимися запросами одного клиента
// не гарантируется, но ни одна отметка не теряется.
type Limiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	now      func() time.Time
}

type Config struct {
	Limit  int
	Window time.Duration
}

func New(cfg Config) *Limiter {
	limit := cfg.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	window := cfg.Window
	if window <= 0 {
		window = DefaultWindow
	}

	return &Limiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// WithClock подменяет часы, для тестов
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.mu.Lock()
	l.now = now
	l.mu.Unlock()
	return l
}

// Start запускает фоновую очистку, останавливается вместе с ctx
func (l *Limiter) Start(ctx context.Context) {
	go l.cleanup(ctx)
}

// Allow records the attempt and reports whether it fits under the limit.
// Rejected attempts are recorded too, so a client retrying in a loop stays
// blocked until it backs off for a whole window.
func (l *Limiter) Allow(clientID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	fresh := l.prune(clientID, now)
	allowed := len(fresh) < l.limit

	l.requests[clientID] = append(fresh, now)
	return allowed
}

func (l *Limiter) RemainingRequests(clientID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	fresh := l.prune(clientID, l.now())
	l.store(clientID, fresh)

	if rem := l.limit - len(fresh); rem > 0 {
		return rem
	}
	return 0
}

// ResetTime - когда клиент снова пройдёт лимит. Отклонённые попытки тоже
// в окне, поэтому ждать надо пока не выйдут все отметки сверх limit-1.
func (l *Limiter) ResetTime(clientID string) time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	fresh := l.prune(clientID, now)
	l.store(clientID, fresh)

	if len(fresh) < l.limit {
		return now
	}
	// отметки добавляются по возрастанию
	return fresh[len(fresh)-l.limit].Add(l.window)
}

func (l *Limiter) Limit() int { return l.limit }

func (l *Limiter) Window() time.Duration { return l.window }

// prune оставляет только отметки внутри окна. Вызывать под mu.
func (l *Limiter) prune(clientID string, now time.Time) []time.Time {
	cutoff := now.Add(-l.window)

	old := l.requests[clientID]
	fresh := old[:0] // reuse underlying array
	for _, t := range old {
		if t.After(cutoff) {
			fresh = append(fresh, t)
		}
	}
	return fresh
}

func (l *Limiter) cleanup(ctx context.Context) {
	tick := time.NewTicker(cleanupInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			l.removeStale()
		}
	}
}

func (l *Limiter) removeStale() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for id := range l.requests {
		l.store(id, l.prune(id, now))
	}
}

// store сохраняет отметки клиента, пустое окно удаляет. Вызывать под mu.
func (l *Limiter) store(clientID string, fresh []time.Time) {
	if len(fresh) == 0 {
		delete(l.requests, clientID)
		return
	}
	l.requests[clientID] = fresh
}
