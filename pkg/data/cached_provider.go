package data

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/kanastasov/Forex-Strategy-Builder-sub001/pkg/types"
)

// DefaultCacheEntries bounds the number of series a CachedProvider keeps
const DefaultCacheEntries = 16

// MemoryCache implements DataCache using in-memory storage. When full, the
// oldest entry is evicted.
type MemoryCache struct {
	cache    map[string][]types.OHLCV
	order    []string
	capacity int
	mutex    sync.RWMutex
}

// NewMemoryCache creates a new in-memory cache holding at most capacity
// series. A non-positive capacity uses DefaultCacheEntries.
func NewMemoryCache(capacity int) *MemoryCache {
	if capacity <= 0 {
		capacity = DefaultCacheEntries
	}
	return &MemoryCache{
		cache:    make(map[string][]types.OHLCV),
		capacity: capacity,
	}
}

// Get returns a copy of the cached series
func (c *MemoryCache) Get(key string) ([]types.OHLCV, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	data, exists := c.cache[key]
	if !exists {
		return nil, false
	}
	result := make([]types.OHLCV, len(data))
	copy(result, data)
	return result, true
}

// Set stores a copy of the series
func (c *MemoryCache) Set(key string, data []types.OHLCV) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	cached := make([]types.OHLCV, len(data))
	copy(cached, data)
	if _, exists := c.cache[key]; !exists {
		for len(c.order) >= c.capacity {
			delete(c.cache, c.order[0])
			c.order = c.order[1:]
		}
		c.order = append(c.order, key)
	}
	c.cache[key] = cached
}

// Delete drops one entry
func (c *MemoryCache) Delete(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, exists := c.cache[key]; !exists {
		return
	}
	delete(c.cache, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *MemoryCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.cache = make(map[string][]types.OHLCV)
	c.order = nil
}

func (c *MemoryCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.cache)
}

// CachedProvider wraps another DataProvider with caching functionality.
// The server loads the same series for many runs. Entries are keyed by the
// file version, so a rewritten file is read again.
type CachedProvider struct {
	provider DataProvider
	cache    DataCache
	logger   *zap.Logger

	mutex    sync.Mutex
	versions map[string]string // source -> cache key of its latest version
}

// NewCachedProvider creates a new cached data provider
func NewCachedProvider(provider DataProvider, logger *zap.Logger) *CachedProvider {
	return NewCachedProviderWithCache(provider, NewMemoryCache(DefaultCacheEntries), logger)
}

// NewCachedProviderWithCache creates a cached data provider over the given cache
func NewCachedProviderWithCache(provider DataProvider, cache DataCache, logger *zap.Logger) *CachedProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedProvider{
		provider: provider,
		cache:    cache,
		logger:   logger,
		versions: make(map[string]string),
	}
}

// GetName returns the name of the underlying provider with cache indication
func (p *CachedProvider) GetName() string {
	return "Cached " + p.provider.GetName()
}

// versionKey identifies one version of a file by its path, mtime and size
func versionKey(source string) (string, error) {
	info, err := os.Stat(source)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s|%d|%d", source, info.ModTime().UnixNano(), info.Size()), nil
}

// LoadData loads data with caching to improve performance
func (p *CachedProvider) LoadData(source string) ([]types.OHLCV, error) {
	key, err := versionKey(source)
	if err != nil {
		p.forget(source)
		return p.provider.LoadData(source)
	}
	if cachedData, exists := p.cache.Get(key); exists {
		return cachedData, nil
	}

	p.logger.Info("loading historical data", zap.String("file", filepath.Base(source)))
	data, err := p.provider.LoadData(source)
	if err != nil {
		return nil, err
	}

	p.mutex.Lock()
	if old, ok := p.versions[source]; ok && old != key {
		p.cache.Delete(old)
	}
	p.versions[source] = key
	p.mutex.Unlock()

	p.cache.Set(key, data)
	p.logger.Info("loaded and cached historical data",
		zap.String("file", filepath.Base(source)), zap.Int("records", len(data)))
	return data, nil
}

func (p *CachedProvider) forget(source string) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if old, ok := p.versions[source]; ok {
		p.cache.Delete(old)
		delete(p.versions, source)
	}
}

// ValidateData validates data using the underlying provider
func (p *CachedProvider) ValidateData(data []types.OHLCV) error {
	return p.provider.ValidateData(data)
}

// ClearCache clears all cached data
func (p *CachedProvider) ClearCache() {
	p.mutex.Lock()
	p.versions = make(map[string]string)
	p.mutex.Unlock()
	p.cache.Clear()
}

// GetCacheSize returns the number of cached entries
func (p *CachedProvider) GetCacheSize() int {
	return p.cache.Size()
}
