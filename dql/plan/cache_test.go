package plan

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehollis/quarry-dql/dql/query"
)

func cachedFixture(t *testing.T) *ExecutionPlan {
	t.Helper()
	a, _ := rangeQuery()
	p, err := FromAST(a, query.NewCollections())
	require.NoError(t, err)
	return p
}

func TestPlanCacheHitAndMiss(t *testing.T) {
	cache := NewPlanCache(10, time.Minute)
	p := cachedFixture(t)

	_, ok := cache.Get("FOR x IN 1..3 RETURN x * 2")
	assert.False(t, ok)

	cache.Set("FOR x IN 1..3 RETURN x * 2", p)

	got, ok := cache.Get("FOR x IN 1..3 RETURN x * 2")
	require.True(t, ok)
	assert.Same(t, p, got)

	_, ok = cache.Get("FOR x IN 1..4 RETURN x * 2")
	assert.False(t, ok)

	hits, misses, size := cache.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(2), misses)
	assert.Equal(t, 1, size)
}

func TestPlanCacheTTL(t *testing.T) {
	cache := NewPlanCache(10, 10*time.Millisecond)
	cache.Set("q", cachedFixture(t))

	_, ok := cache.Get("q")
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)

	_, ok = cache.Get("q")
	assert.False(t, ok)
}

func TestPlanCacheEviction(t *testing.T) {
	cache := NewPlanCache(3, time.Minute)
	p := cachedFixture(t)

	for i := 0; i < 5; i++ {
		cache.Set(fmt.Sprintf("query-%d", i), p)
	}

	_, _, size := cache.Stats()
	assert.LessOrEqual(t, size, 3)

	// the most recent entry survives eviction
	_, ok := cache.Get("query-4")
	assert.True(t, ok)
}

func TestPlanCacheClear(t *testing.T) {
	cache := NewPlanCache(10, time.Minute)
	cache.Set("q", cachedFixture(t))
	cache.Get("q")
	cache.Get("other")

	cache.Clear()

	hits, misses, size := cache.Stats()
	assert.Equal(t, int64(0), hits)
	assert.Equal(t, int64(0), misses)
	assert.Equal(t, 0, size)

	_, ok := cache.Get("q")
	assert.False(t, ok)
}

func TestPlanCacheNilReceiver(t *testing.T) {
	var cache *PlanCache

	_, ok := cache.Get("q")
	assert.False(t, ok)

	// Set and Clear on a nil cache are no-ops, not panics
	cache.Set("q", cachedFixture(t))
	cache.Clear()

	hits, misses, size := cache.Stats()
	assert.Equal(t, int64(0), hits)
	assert.Equal(t, int64(0), misses)
	assert.Equal(t, 0, size)
}

func TestPlanCacheDefaults(t *testing.T) {
	cache := NewPlanCache(0, 0)
	assert.Equal(t, 1000, cache.maxSize)
	assert.Equal(t, 5*time.Minute, cache.ttl)
}

func TestPlanCacheSharedInstance(t *testing.T) {
	a, x := rangeQuery()
	p, err := FromAST(a, query.NewCollections())
	require.NoError(t, err)

	cache := NewPlanCache(10, time.Minute)
	cache.Set("q", p)

	// a cached plan is shared; rewrites must go through Clone
	got, ok := cache.Get("q")
	require.True(t, ok)

	clone, err := got.Clone()
	require.NoError(t, err)

	filter, err := clone.CreateFilterNode(x)
	require.NoError(t, err)
	require.NoError(t, clone.InsertDependency(clone.Root().ID(), filter.ID()))
	require.NoError(t, clone.FindVarUsage())

	assert.Equal(t, p.NodeCount()+1, clone.NodeCount())
	assert.Equal(t, 5, p.NodeCount())
}
