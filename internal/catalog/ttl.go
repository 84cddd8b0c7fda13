package catalog

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// TTLCache keeps a full snapshot of a remote collection, keyed by id, and reloads it once
// the snapshot is older than the staleness threshold. There is no per-entry eviction:
// Invalidate drops everything.
type TTLCache[V any] struct {
	ttl  time.Duration
	load func(context.Context) ([]V, error)
	key  func(V) string
	now  func() time.Time

	mu        sync.RWMutex
	items     map[string]V
	order     []string
	fetchedAt time.Time
	// gen moves on every Invalidate; a load started under an older gen never marks
	// the snapshot fresh.
	gen uint64

	group singleflight.Group
}

// NewTTLCache builds a cache around load. key extracts the id of an entry.
func NewTTLCache[V any](ttl time.Duration, load func(context.Context) ([]V, error), key func(V) string) *TTLCache[V] {
	return &TTLCache[V]{ttl: ttl, load: load, key: key, now: time.Now}
}

// All returns the snapshot in source order, reloading when stale.
func (c *TTLCache[V]) All(ctx context.Context) ([]V, bool, error) {
	if items, ok := c.snapshot(true); ok {
		return items, true, nil
	}
	if err := c.refresh(ctx); err != nil {
		return nil, false, err
	}
	items, _ := c.snapshot(false)
	return items, false, nil
}

// Get returns one entry by id, reloading when stale.
func (c *TTLCache[V]) Get(ctx context.Context, id string) (V, bool, error) {
	if _, _, err := c.All(ctx); err != nil {
		var zero V
		return zero, false, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[id]
	return v, ok, nil
}

// Invalidate forces the next read to reload, including reads that join a load already
// in flight.
func (c *TTLCache[V]) Invalidate() {
	c.mu.Lock()
	c.gen++
	c.fetchedAt = time.Time{}
	c.mu.Unlock()
}

func (c *TTLCache[V]) staleLocked() bool {
	return c.items == nil || c.fetchedAt.IsZero() || c.now().Sub(c.fetchedAt) >= c.ttl
}

// snapshot copies the entries out. With fresh set a stale snapshot is refused.
func (c *TTLCache[V]) snapshot(fresh bool) ([]V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if fresh && c.staleLocked() {
		return nil, false
	}
	out := make([]V, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.items[id])
	}
	return out, true
}

// refresh collapses concurrent reloads of one generation into one call to load. The load
// runs detached from the caller's cancellation so one caller giving up does not fail the
// others waiting on it.
func (c *TTLCache[V]) refresh(ctx context.Context) error {
	c.mu.RLock()
	gen := c.gen
	c.mu.RUnlock()

	ch := c.group.DoChan("refresh:"+strconv.FormatUint(gen, 10), func() (interface{}, error) {
		values, err := c.load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		items := make(map[string]V, len(values))
		order := make([]string, 0, len(values))
		for _, v := range values {
			id := c.key(v)
			if _, dup := items[id]; !dup {
				order = append(order, id)
			}
			items[id] = v
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		switch {
		case c.gen == gen:
			c.items, c.order, c.fetchedAt = items, order, c.now()
		case c.fetchedAt.IsZero():
			// invalidated mid-load: serve these values but reload on the next read
			c.items, c.order = items, order
		}
		return nil, nil
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}
