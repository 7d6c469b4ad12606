package core

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultPathCacheSize = 256

type pathKey struct {
	start, end int
}

// PathCache memoises shortest paths over an immutable NavigationGraph.
// Entries never go stale because the graph never changes.
type PathCache struct {
	graph *NavigationGraph
	cache *lru.Cache[pathKey, []int]

	mu     sync.Mutex
	hits   int64
	misses int64
}

// NewPathCache wraps graph with an LRU of the given size; zero or negative
// uses a default.
func NewPathCache(graph *NavigationGraph, size int) (*PathCache, error) {
	if size <= 0 {
		size = defaultPathCacheSize
	}
	cache, err := lru.New[pathKey, []int](size)
	if err != nil {
		return nil, err
	}
	return &PathCache{graph: graph, cache: cache}, nil
}

// ShortestPath returns a copy of the cached path, computing it on a miss.
// The second result reports whether the path came from the cache.
func (c *PathCache) ShortestPath(start, end int) ([]int, bool) {
	key := pathKey{start: start, end: end}
	if path, ok := c.cache.Get(key); ok {
		c.record(true)
		return append([]int(nil), path...), true
	}
	c.record(false)

	path := c.graph.ShortestPath(start, end)
	c.cache.Add(key, path)
	return append([]int(nil), path...), false
}

func (c *PathCache) record(hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if hit {
		c.hits++
	} else {
		c.misses++
	}
}

// HitRatio returns hits / lookups, or 0 before the first lookup.
func (c *PathCache) HitRatio() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}

// Len returns the number of cached paths.
func (c *PathCache) Len() int {
	return c.cache.Len()
}
