package memory

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kitbuilder587/search-proxy/internal/domain"
)

const (
	DefaultMaxEntries = 500
	DefaultTTL        = 30 * time.Minute
)

type Config struct {
	MaxEntries int
	TTL        time.Duration
}

// Cache - in-memory кеш конвертов, ограничен и по размеру (LRU), и по TTL.
// Что сработает раньше, то и выкидывает запись.
type Cache struct {
	lru       *expirable.LRU[string, *domain.Envelope]
	ttl       time.Duration
	evictions atomic.Int64
}

func New(cfg Config) *Cache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}

	c := &Cache{ttl: cfg.TTL}
	c.lru = expirable.NewLRU[string, *domain.Envelope](cfg.MaxEntries, func(string, *domain.Envelope) {
		c.evictions.Add(1)
	}, cfg.TTL)
	return c
}

// Get returns the envelope for key. An expired entry is removed and
// reported as absent.
func (c *Cache) Get(key string) (*domain.Envelope, bool) {
	env, ok := c.lru.Get(key)
	if !ok {
		// просроченная запись могла ещё не уйти в фоне
		c.lru.Remove(key)
		return nil, false
	}
	return env, true
}

// Put сохраняет конверт, повторный Put по тому же ключу перезаписывает
func (c *Cache) Put(key string, env *domain.Envelope) {
	if env == nil {
		return
	}
	c.lru.Add(key, env)
}

func (c *Cache) Len() int {
	return c.lru.Len()
}

func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Evictions - сколько записей ушло по размеру или TTL
func (c *Cache) Evictions() int64 {
	return c.evictions.Load()
}
