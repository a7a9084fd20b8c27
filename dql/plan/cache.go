package plan

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"
	"time"
)

// PlanCache caches lowered plans to avoid re-lowering identical queries.
// Keys are derived from the query's deterministic text rendering (see
// ast.Node.String). Unlike the plans themselves the cache is safe for
// concurrent use; callers that want to rewrite a cached plan must Clone it
// first, since the cached instance is shared.
type PlanCache struct {
	cache map[string]*cachedPlan
	mu    sync.RWMutex

	hits   int64
	misses int64

	maxSize int
	ttl     time.Duration
}

type cachedPlan struct {
	plan      *ExecutionPlan
	timestamp time.Time
}

// NewPlanCache creates a plan cache holding at most maxSize entries for at
// most ttl each. Non-positive arguments select the defaults (1000 entries,
// 5 minutes).
func NewPlanCache(maxSize int, ttl time.Duration) *PlanCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PlanCache{
		cache:   make(map[string]*cachedPlan),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Get retrieves a cached plan if present and not expired.
func (c *PlanCache) Get(queryText string) (*ExecutionPlan, bool) {
	if c == nil {
		return nil, false
	}
	key := computeCacheKey(queryText)

	c.mu.RLock()
	defer c.mu.RUnlock()

	cached, ok := c.cache[key]
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}
	if time.Since(cached.timestamp) > c.ttl {
		// lazy deletion happens on Set to avoid taking the write lock here
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}

	atomic.AddInt64(&c.hits, 1)
	return cached.plan, true
}

// Set stores a plan under the query's key.
func (c *PlanCache) Set(queryText string, plan *ExecutionPlan) {
	if c == nil || plan == nil {
		return
	}
	key := computeCacheKey(queryText)

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.cache) >= c.maxSize {
		c.evictExpired()
		if len(c.cache) >= c.maxSize {
			c.evictOldest()
		}
	}

	c.cache[key] = &cachedPlan{plan: plan, timestamp: time.Now()}
}

// Clear removes all cached plans and resets the statistics.
func (c *PlanCache) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache = make(map[string]*cachedPlan)
	atomic.StoreInt64(&c.hits, 0)
	atomic.StoreInt64(&c.misses, 0)
}

// Stats returns cache statistics.
func (c *PlanCache) Stats() (hits, misses int64, size int) {
	if c == nil {
		return 0, 0, 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses), len(c.cache)
}

func computeCacheKey(queryText string) string {
	sum := sha256.Sum256([]byte(queryText))
	return hex.EncodeToString(sum[:])
}

func (c *PlanCache) evictExpired() {
	now := time.Now()
	for key, cached := range c.cache {
		if now.Sub(cached.timestamp) > c.ttl {
			delete(c.cache, key)
		}
	}
}

func (c *PlanCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, cached := range c.cache {
		if oldestKey == "" || cached.timestamp.Before(oldestTime) {
			oldestKey = key
			oldestTime = cached.timestamp
		}
	}
	if oldestKey != "" {
		delete(c.cache, oldestKey)
	}
}
