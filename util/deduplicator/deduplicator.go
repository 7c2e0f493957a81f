// Package deduplicator collapses concurrent work on the same key into a single
// execution whose result is handed to every caller.
package deduplicator

import (
	"context"
	"sync"

	"github.com/ordishs/gocore"
)

type call[V any] struct {
	done chan struct{}
	val  V
	err  error
}

type DeDuplicator[K comparable, V any] struct {
	mu       sync.Mutex
	inflight map[K]*call[V]
	stat     *gocore.Stat
}

func New[K comparable, V any](name string) *DeDuplicator[K, V] {
	return &DeDuplicator[K, V]{
		inflight: make(map[K]*call[V]),
		stat:     gocore.NewStat("DeDuplicator." + name),
	}
}

// DeDuplicate runs fn unless a call for key is already in flight, in which case
// it waits for that call. shared reports whether the result came from another
// caller's execution.
//
// fn runs detached from ctx cancellation so an impatient first caller does not
// fail the others. A caller whose ctx ends stops waiting and gets ctx.Err().
func (d *DeDuplicator[K, V]) DeDuplicate(ctx context.Context, key K, fn func(ctx context.Context) (V, error)) (val V, shared bool, err error) {
	start := gocore.CurrentTime()

	d.mu.Lock()

	c, found := d.inflight[key]
	if !found {
		c = &call[V]{done: make(chan struct{})}
		d.inflight[key] = c

		go d.run(context.WithoutCancel(ctx), key, c, fn)
	}

	d.mu.Unlock()

	select {
	case <-c.done:
		if found {
			d.stat.NewStat("shared").AddTime(start)
		} else {
			d.stat.NewStat("executed").AddTime(start)
		}

		return c.val, found, c.err
	case <-ctx.Done():
		var zero V
		return zero, found, ctx.Err()
	}
}

func (d *DeDuplicator[K, V]) run(ctx context.Context, key K, c *call[V], fn func(ctx context.Context) (V, error)) {
	defer func() {
		d.mu.Lock()
		delete(d.inflight, key)
		d.mu.Unlock()

		close(c.done)
	}()

	c.val, c.err = fn(ctx)
}

// InFlight reports whether a call for key is running.
func (d *DeDuplicator[K, V]) InFlight(key K) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, ok := d.inflight[key]

	return ok
}
