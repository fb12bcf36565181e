package catalog

import (
	"container/list"
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"
)

const DefaultCacheSize = 10000

type answer struct {
	yes   bool
	known bool
}

type cacheEntry struct {
	key     string
	value   answer
	expires time.Time
}

// Cached fronts an Oracle with a bounded TTL cache. Entries expire after ttl
// and the least recently used entry is evicted once size is reached.
// Concurrent misses for the same key share one lookup. Only positive answers
// are cached: a store or product that is absent, inactive or of unknown state
// is asked again on every lookup, so it is seen as soon as the replica has it.
// Errors are never cached. A ttl of zero or less disables caching.
type Cached struct {
	next Oracle
	ttl  time.Duration
	size int
	now  func() time.Time

	mu     sync.Mutex
	items  map[string]*list.Element
	order  *list.List // front = most recent
	flight singleflight.Group

	lookups metric.Int64Counter
}

var _ Oracle = (*Cached)(nil)

func NewCached(next Oracle, ttl time.Duration, size int) *Cached {
	if size <= 0 {
		size = DefaultCacheSize
	}
	lookups, _ := otel.Meter("stockservice/catalog").Int64Counter(
		"stock_catalog_cache_total",
		metric.WithDescription("Catalog cache lookups by result"),
	)
	return &Cached{
		next:    next,
		ttl:     ttl,
		size:    size,
		now:     time.Now,
		items:   make(map[string]*list.Element, size),
		order:   list.New(),
		lookups: lookups,
	}
}

func (c *Cached) StoreExists(ctx context.Context, code string) (bool, error) {
	a, err := c.lookup(ctx, "store:"+code, func(ctx context.Context) (answer, error) {
		ok, err := c.next.StoreExists(ctx, code)
		return answer{yes: ok, known: true}, err
	})
	return a.yes, err
}

func (c *Cached) ProductExists(ctx context.Context, sku string) (bool, error) {
	a, err := c.lookup(ctx, "product:"+sku, func(ctx context.Context) (answer, error) {
		ok, err := c.next.ProductExists(ctx, sku)
		return answer{yes: ok, known: true}, err
	})
	return a.yes, err
}

func (c *Cached) ProductActive(ctx context.Context, sku string) (bool, bool, error) {
	a, err := c.lookup(ctx, "active:"+sku, func(ctx context.Context) (answer, error) {
		active, known, err := c.next.ProductActive(ctx, sku)
		return answer{yes: active, known: known}, err
	})
	return a.yes, a.known, err
}

// Purge drops every cached entry.
func (c *Cached) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element, c.size)
	c.order.Init()
}

// Len returns the number of cached entries, expired ones included.
func (c *Cached) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *Cached) lookup(ctx context.Context, key string, load func(context.Context) (answer, error)) (answer, error) {
	if c.ttl <= 0 {
		return load(ctx)
	}
	if a, ok := c.get(key); ok {
		c.record(ctx, "hit")
		return a, nil
	}
	c.record(ctx, "miss")

	v, err, _ := c.flight.Do(key, func() (interface{}, error) {
		a, err := load(ctx)
		if err != nil {
			return answer{}, err
		}
		if a.yes && a.known {
			c.set(key, a)
		}
		return a, nil
	})
	if err != nil {
		return answer{}, err
	}
	return v.(answer), nil
}

func (c *Cached) record(ctx context.Context, result string) {
	if c.lookups != nil {
		c.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	}
}

func (c *Cached) get(key string) (answer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return answer{}, false
	}
	entry := elem.Value.(*cacheEntry)
	if !c.now().Before(entry.expires) {
		c.order.Remove(elem)
		delete(c.items, key)
		return answer{}, false
	}
	c.order.MoveToFront(elem)
	return entry.value, true
}

func (c *Cached) set(key string, a answer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.now().Add(c.ttl)
	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.value = a
		entry.expires = expires
		c.order.MoveToFront(elem)
		return
	}

	if c.order.Len() >= c.size {
		if oldest := c.order.Back(); oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*cacheEntry).key)
		}
	}
	c.items[key] = c.order.PushFront(&cacheEntry{key: key, value: a, expires: expires})
}
