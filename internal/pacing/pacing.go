// Package pacing spreads outbound requests over time and across mirrors so
// the service never hits an upstream with a fixed cadence or a single host.
package pacing

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

const (
	DefaultMinDelay = 200 * time.Millisecond
	DefaultMaxDelay = 800 * time.Millisecond
)

// Rand is the randomness source; *rand.Rand satisfies it.
type Rand interface {
	Int63n(n int64) int64
	Intn(n int) int
}

type Config struct {
	MinDelay time.Duration
	MaxDelay time.Duration
}

type Pacer struct {
	min time.Duration
	max time.Duration

	mu  sync.Mutex // *rand.Rand не потокобезопасен
	rnd Rand

	sleep func(ctx context.Context, d time.Duration) error
}

func New(cfg Config) *Pacer {
	return NewWithRand(cfg, rand.New(rand.NewSource(time.Now().UnixNano())))
}

func NewWithRand(cfg Config, rnd Rand) *Pacer {
	if cfg.MinDelay < 0 {
		cfg.MinDelay = 0
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}
	return &Pacer{
		min:   cfg.MinDelay,
		max:   cfg.MaxDelay,
		rnd:   rnd,
		sleep: sleepContext,
	}
}

// WithSleep подменяет ожидание, для тестов
func (p *Pacer) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Pacer {
	p.sleep = sleep
	return p
}

// NextDelay draws a duration uniformly from [min, max].
func (p *Pacer) NextDelay() time.Duration {
	span := int64(p.max - p.min)
	if span <= 0 {
		return p.min
	}
	p.mu.Lock()
	n := p.rnd.Int63n(span + 1)
	p.mu.Unlock()
	return p.min + time.Duration(n)
}

// Delay blocks the calling goroutine for a random duration, or until ctx ends.
func (p *Pacer) Delay(ctx context.Context) error {
	return p.sleep(ctx, p.NextDelay())
}

// PickMirror returns one endpoint chosen uniformly; a single endpoint is
// returned as is.
func PickMirror[T any](p *Pacer, endpoints []T) (T, bool) {
	var zero T
	switch len(endpoints) {
	case 0:
		return zero, false
	case 1:
		return endpoints[0], true
	}
	return endpoints[p.intn(len(endpoints))], true
}

// Order returns the attempt order for a mirror list: a uniformly picked
// mirror first, then the rest in configured order.
func Order[T any](p *Pacer, endpoints []T) []T {
	if len(endpoints) <= 1 {
		out := make([]T, len(endpoints))
		copy(out, endpoints)
		return out
	}

	first := p.intn(len(endpoints))
	out := make([]T, 0, len(endpoints))
	out = append(out, endpoints[first])
	for i, e := range endpoints {
		if i != first {
			out = append(out, e)
		}
	}
	return out
}

func (p *Pacer) intn(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rnd.Intn(n)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
