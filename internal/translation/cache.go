package translation

import (
	"context"
	"sync"
)

// Cache stores translations in memory keyed by source, target and text
type Cache struct {
	mu           sync.RWMutex
	translations map[string]string
}

// NewCache creates a new translation cache
func NewCache() *Cache {
	return &Cache{
		translations: make(map[string]string),
	}
}

func cacheKey(source, target, text string) string {
	return source + "\x00" + target + "\x00" + text
}

// Add adds a translation to the cache
func (c *Cache) Add(source, target, text, translation string) {
	c.mu.Lock()
	c.translations[cacheKey(source, target, text)] = translation
	c.mu.Unlock()
}

// Get retrieves a translation from the cache
func (c *Cache) Get(source, target, text string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	translation, ok := c.translations[cacheKey(source, target, text)]
	return translation, ok
}

// Len returns the number of cached translations
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.translations)
}

// CachedEngine wraps an engine with a cache
type CachedEngine struct {
	Engine
	cache *Cache
}

// WithCache wraps e so repeated requests are answered from cache
func WithCache(e Engine, cache *Cache) *CachedEngine {
	if cache == nil {
		cache = NewCache()
	}
	return &CachedEngine{Engine: e, cache: cache}
}

func (c *CachedEngine) Translate(ctx context.Context, text, source, target string) (string, error) {
	if out, ok := c.cache.Get(source, target, text); ok {
		return out, nil
	}
	out, err := c.Engine.Translate(ctx, text, source, target)
	if err != nil {
		return "", err
	}
	c.cache.Add(source, target, text, out)
	return out, nil
}
