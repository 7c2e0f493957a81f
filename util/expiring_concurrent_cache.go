package util

import (
	"sync"
	"time"

	"github.com/ordishs/go-utils/expiringmap"
)

// ExpiringConcurrentCache is a read-through cache. Concurrent misses on the
// same key share one fetch.
type ExpiringConcurrentCache[K comparable, V any] struct {
	mu      sync.Mutex
	cache   *expiringmap.ExpiringMap[K, V]
	pending map[K]*pendingFetch[V]
}

type pendingFetch[V any] struct {
	done chan struct{}
	val  V
	err  error
}

func NewExpiringConcurrentCache[K comparable, V any](expiration time.Duration) *ExpiringConcurrentCache[K, V] {
	return &ExpiringConcurrentCache[K, V]{
		cache:   expiringmap.New[K, V](expiration),
		pending: make(map[K]*pendingFetch[V]),
	}
}

func (c *ExpiringConcurrentCache[K, V]) Get(key K) (V, bool) {
	return c.cache.Get(key)
}

func (c *ExpiringConcurrentCache[K, V]) Set(key K, val V) {
	c.cache.Set(key, val)
}

// GetOrSet returns the cached value for key, calling fetchFunc on a miss.
// Errors are handed to every waiter and are not cached.
func (c *ExpiringConcurrentCache[K, V]) GetOrSet(key K, fetchFunc func() (V, error)) (V, error) {
	if val, found := c.cache.Get(key); found {
		return val, nil
	}

	c.mu.Lock()

	if val, found := c.cache.Get(key); found {
		c.mu.Unlock()
		return val, nil
	}

	if p, found := c.pending[key]; found {
		c.mu.Unlock()
		<-p.done

		return p.val, p.err
	}

	p := &pendingFetch[V]{done: make(chan struct{})}
	c.pending[key] = p

	c.mu.Unlock()

	p.val, p.err = fetchFunc()
	if p.err == nil {
		c.cache.Set(key, p.val)
	}

	c.mu.Lock()
	delete(c.pending, key)
	c.mu.Unlock()

	close(p.done)

	return p.val, p.err
}
