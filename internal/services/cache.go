package services

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"spacesweep/internal/domain"
)

const resultCacheKey = "scan-result"

// ResultCache keeps the last fetched scan result for a bounded time so
// repeated reads do not hit the backend. It is built once at startup and
// handed to whoever needs it.
type ResultCache struct {
	source ResultSource
	mu     sync.Mutex
	lru    *expirable.LRU[string, domain.ScanResult]
	hits   uint64
	misses uint64
}

// NewResultCache wraps source. A non-positive ttl disables caching.
func NewResultCache(source ResultSource, ttl time.Duration) *ResultCache {
	cache := &ResultCache{source: source}
	if ttl > 0 {
		cache.lru = expirable.NewLRU[string, domain.ScanResult](1, nil, ttl)
	}
	return cache
}

func (cache *ResultCache) ScanResult(ctx context.Context) (domain.ScanResult, error) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	if cache.lru != nil {
		if result, ok := cache.lru.Get(resultCacheKey); ok {
			cache.hits++
			return result, nil
		}
	}
	cache.misses++
	result, err := cache.source.ScanResult(ctx)
	if err != nil {
		return domain.ScanResult{}, err
	}
	if cache.lru != nil {
		cache.lru.Add(resultCacheKey, result)
	}
	return result, nil
}

func (cache *ResultCache) Invalidate() {
	if cache.lru == nil {
		return
	}
	cache.lru.Purge()
}

func (cache *ResultCache) Stats() (uint64, uint64) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	return cache.hits, cache.misses
}
