package consteval

import "sync"

// cacheEntry parks waiters while the first caller computes. done is closed
// exactly once, after val and err are set.
type cacheEntry struct {
	done chan struct{}
	val  ConstValue
	err  error
}

// cache guarantees at-most-once evaluation per (constant, substitution) key
// across concurrent requests. The compute callback reports whether its
// result should stay cached; transient failures are dropped so a later
// request can retry.
type cache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
}

func newCache() *cache {
	return &cache{entries: make(map[string]*cacheEntry)}
}

// do runs compute for key unless a completed entry already holds the result.
// A top-level resolve parks on an in-flight entry; a nested resolve must not,
// because its request already holds cycle-guard entries and the entry's owner
// may in turn be waiting on one of them. Nested resolves recompute instead,
// without publishing, so the in-flight owner still decides the cached result.
func (c *cache) do(key string, nested bool, compute func() (ConstValue, error, bool)) (ConstValue, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		c.mu.Unlock()
		if nested {
			select {
			case <-e.done:
				return e.val, e.err
			default:
				val, err, _ := compute()
				return val, err
			}
		}
		<-e.done
		return e.val, e.err
	}
	e := &cacheEntry{done: make(chan struct{})}
	c.entries[key] = e
	c.mu.Unlock()

	var keep bool
	e.val, e.err, keep = compute()
	close(e.done)

	if !keep {
		c.mu.Lock()
		if c.entries[key] == e {
			delete(c.entries, key)
		}
		c.mu.Unlock()
	}
	return e.val, e.err
}
