// Package cache provides the bounded TTL cache used to memoize computed views.
package cache

import (
	"container/list"
	"context"
	"time"

	"candle-learning-lab/internal/observability"
)

// Cache is a keyed store of values that expire after a fixed TTL.
type Cache[V any] interface {
	Set(ctx context.Context, key string, value V) error
	Get(ctx context.Context, key string) (V, bool)
	Clear(ctx context.Context) error
}

// Config controls cache behavior.
type Config struct {
	Enabled bool
	TTL     time.Duration
	MaxSize int
}

// DefaultConfig returns enabled / 300s / 1000 entries.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		TTL:     300 * time.Second,
		MaxSize: 1000,
	}
}

// Stats reports cache occupancy and effectiveness.
type Stats struct {
	Size    int     `json:"size"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hitRate"` // hits / (hits + misses), 0 before any lookup
}

type entry[V any] struct {
	key      string
	value    V
	storedAt time.Time
}

// TTLCache is an in-process cache bounded by entry count.
// When a new key arrives at capacity the earliest-inserted entry is evicted.
// Stale entries are removed lazily on Get; there is no background sweep.
// Not safe for concurrent use; callers serialize access.
type TTLCache[V any] struct {
	cfg   Config
	now   func() time.Time
	order *list.List // front = oldest insertion
	items map[string]*list.Element

	hits   int64
	misses int64
}

// Option configures a TTLCache.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// NewTTLCache creates a cache from cfg. MaxSize <= 0 means unbounded.
func NewTTLCache[V any](cfg Config, opts ...Option) *TTLCache[V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &TTLCache[V]{
		cfg:   cfg,
		now:   o.now,
		order: list.New(),
		items: make(map[string]*list.Element),
	}
}

// Set stores value under key. Re-setting a key refreshes its timestamp and
// moves it to the back of the eviction order. No-op when disabled.
func (c *TTLCache[V]) Set(_ context.Context, key string, value V) error {
	if !c.cfg.Enabled {
		return nil
	}

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[V])
		e.value = value
		e.storedAt = c.now()
		c.order.MoveToBack(el)
		return nil
	}

	if c.cfg.MaxSize > 0 && len(c.items) >= c.cfg.MaxSize {
		if oldest := c.order.Front(); oldest != nil {
			c.remove(oldest)
		}
	}

	c.items[key] = c.order.PushBack(&entry[V]{key: key, value: value, storedAt: c.now()})
	return nil
}

// Get returns the value for key if present and younger than the TTL.
// An expired entry is removed and reported as a miss.
func (c *TTLCache[V]) Get(_ context.Context, key string) (V, bool) {
	var zero V
	if !c.cfg.Enabled {
		c.miss()
		return zero, false
	}

	el, ok := c.items[key]
	if !ok {
		c.miss()
		return zero, false
	}

	e := el.Value.(*entry[V])
	if c.now().Sub(e.storedAt) > c.cfg.TTL {
		c.remove(el)
		c.miss()
		return zero, false
	}

	c.hits++
	observability.RecordCacheLookup(true)
	return e.value, true
}

// Clear drops every entry. Hit counters are kept.
func (c *TTLCache[V]) Clear(_ context.Context) error {
	c.order.Init()
	clear(c.items)
	return nil
}

// Len returns the number of stored entries, including not-yet-collected stale ones.
func (c *TTLCache[V]) Len() int {
	return len(c.items)
}

// Stats returns occupancy and hit counters.
func (c *TTLCache[V]) Stats() Stats {
	s := Stats{Size: len(c.items), Hits: c.hits, Misses: c.misses}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

func (c *TTLCache[V]) miss() {
	c.misses++
	observability.RecordCacheLookup(false)
}

func (c *TTLCache[V]) remove(el *list.Element) {
	e := c.order.Remove(el).(*entry[V])
	delete(c.items, e.key)
}

var _ Cache[int] = (*TTLCache[int])(nil)
