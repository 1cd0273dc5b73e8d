package index

import (
	"testing"
	"time"

	"github.com/TheEntropyCollective/propindex/pkg/search"
)

func TestResultCachePutGet(t *testing.T) {
	cache := NewResultCache(4, time.Minute)
	rs := search.NewResultSet(nil, 3)

	cache.Put("k1", rs)
	got, ok := cache.Get("k1")
	if !ok || got != rs {
		t.Errorf("Get(k1) = %v, %v", got, ok)
	}
	if _, ok := cache.Get("absent"); ok {
		t.Error("absent key should miss")
	}
	if cache.Size() != 1 {
		t.Errorf("Size = %d", cache.Size())
	}
}

func TestResultCacheTTL(t *testing.T) {
	cache := NewResultCache(4, 10*time.Millisecond)
	cache.Put("k1", search.NewResultSet(nil, 0))

	time.Sleep(20 * time.Millisecond)
	if _, ok := cache.Get("k1"); ok {
		t.Error("expired entry should miss")
	}
	if cache.Size() != 0 {
		t.Errorf("expired entry not evicted on Get, Size = %d", cache.Size())
	}
}

func TestResultCacheLRUEviction(t *testing.T) {
	cache := NewResultCache(2, time.Minute)
	cache.Put("a", search.NewResultSet(nil, 1))
	cache.Put("b", search.NewResultSet(nil, 2))

	// Touch "a" so "b" becomes the eviction candidate.
	cache.Get("a")
	cache.Put("c", search.NewResultSet(nil, 3))

	if _, ok := cache.Get("a"); !ok {
		t.Error("recently used entry evicted")
	}
	if _, ok := cache.Get("b"); ok {
		t.Error("least recently used entry survived")
	}
	if _, ok := cache.Get("c"); !ok {
		t.Error("new entry missing")
	}
}

func TestResultCacheClearAndCleanExpired(t *testing.T) {
	cache := NewResultCache(4, 10*time.Millisecond)
	cache.Put("a", search.NewResultSet(nil, 0))
	cache.Put("b", search.NewResultSet(nil, 0))
	time.Sleep(20 * time.Millisecond)
	cache.Put("c", search.NewResultSet(nil, 0))

	if removed := cache.CleanExpired(); removed != 2 {
		t.Errorf("CleanExpired = %d, want 2", removed)
	}
	if cache.Size() != 1 {
		t.Errorf("Size after clean = %d", cache.Size())
	}

	cache.Clear()
	if cache.Size() != 0 {
		t.Errorf("Size after clear = %d", cache.Size())
	}
}

func TestCacheKeyDistinctness(t *testing.T) {
	base := search.Request{Query: search.NameTermQuery{Name: "x"}, Token: "t1"}

	keys := map[string]string{
		"base":       cacheKey(base, 1),
		"generation": cacheKey(base, 2),
		"token":      cacheKey(search.Request{Query: search.NameTermQuery{Name: "x"}, Token: "t2"}, 1),
		"query":      cacheKey(search.Request{Query: search.NamePrefixQuery{Prefix: "x"}, Token: "t1"}, 1),
		"cursor":     cacheKey(search.Request{Query: search.NameTermQuery{Name: "x"}, Token: "t1", Cursor: 5}, 1),
	}
	seen := map[string]string{}
	for label, key := range keys {
		if prev, dup := seen[key]; dup {
			t.Errorf("cache key collision between %s and %s", label, prev)
		}
		seen[key] = label
	}

	if cacheKey(base, 1) != cacheKey(base, 1) {
		t.Error("cache key must be deterministic")
	}
}
