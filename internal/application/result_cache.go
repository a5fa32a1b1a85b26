package application

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/example/studio-scheduler/internal/scheduler"
)

// resultCache keeps recent check results so repeated hovers over the same
// target skip the persistence round trip while nothing has changed. Every
// write bumps the generation; results computed under an older generation are
// never stored.
type resultCache struct {
	mu         sync.Mutex
	now        func() time.Time
	ttl        time.Duration
	entries    *lru.Cache[string, resultCacheEntry]
	generation uint64
}

type resultCacheEntry struct {
	result    scheduler.Result
	expiresAt time.Time
}

func newResultCache(ttl time.Duration, maxEntries int, now func() time.Time) *resultCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 256
	}
	if now == nil {
		now = time.Now
	}
	entries, err := lru.New[string, resultCacheEntry](maxEntries)
	if err != nil {
		// Only reachable with a non-positive size.
		panic(err)
	}
	return &resultCache{now: now, ttl: ttl, entries: entries}
}

// Generation returns the token to pass to Store for a result computed from now on.
func (c *resultCache) Generation() uint64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

func (c *resultCache) Get(key string) (scheduler.Result, bool) {
	if c == nil {
		return scheduler.Result{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries.Get(key)
	if !ok {
		return scheduler.Result{}, false
	}
	if c.now().After(entry.expiresAt) {
		c.entries.Remove(key)
		return scheduler.Result{}, false
	}
	return cloneResult(entry.result), true
}

func (c *resultCache) Store(key string, generation uint64, result scheduler.Result) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.generation {
		return
	}
	c.entries.Add(key, resultCacheEntry{result: cloneResult(result), expiresAt: c.now().Add(c.ttl)})
}

func (c *resultCache) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.entries.Purge()
}

func (c *resultCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

func cloneResult(r scheduler.Result) scheduler.Result {
	out := r
	if len(r.Conflicts) > 0 {
		out.Conflicts = append([]scheduler.Conflict(nil), r.Conflicts...)
	}
	if len(r.Alternatives) > 0 {
		out.Alternatives = append([]scheduler.Alternative(nil), r.Alternatives...)
	}
	return out
}
