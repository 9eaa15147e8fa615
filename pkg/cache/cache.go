package cache

import (
	"sync"
)

// KeySeparator joins locale and key in the composite cache key
const KeySeparator = "::"

// Store read-through cache contract used by the content service
type Store interface {
	// Get returns the cached value and the generation observed at read time
	Get(locale, key string) (value string, gen uint64, ok bool)
	// PutIfFresh stores value only if no invalidation touched (locale, key) since gen was observed
	PutIfFresh(locale, key, value string, gen uint64) bool
	Invalidate(locale, key string)
	InvalidateAllLocales(key string)
}

// ContentCache process-local map of (locale, key) to the last served published value.
// No TTL and no size bound: entries leave only through invalidation.
type ContentCache struct {
	mu      sync.RWMutex
	values  map[string]string
	locales map[string]map[string]struct{} // key -> cached locales
	gens    map[string]uint64              // composite key -> invalidation count
	keyGens map[string]uint64              // key -> all-locale invalidation count
}

// NewContentCache creates an empty cache
func NewContentCache() *ContentCache {
	return &ContentCache{
		values:  make(map[string]string),
		locales: make(map[string]map[string]struct{}),
		gens:    make(map[string]uint64),
		keyGens: make(map[string]uint64),
	}
}

// CompositeKey builds the cache key for (locale, key)
func CompositeKey(locale, key string) string {
	return locale + KeySeparator + key
}

// generation must be called with mu held
func (c *ContentCache) generation(composite, key string) uint64 {
	return c.gens[composite] + c.keyGens[key]
}

func (c *ContentCache) Get(locale, key string) (string, uint64, bool) {
	composite := CompositeKey(locale, key)

	c.mu.RLock()
	value, ok := c.values[composite]
	gen := c.generation(composite, key)
	c.mu.RUnlock()

	if ok {
		cacheHits.Inc()
	} else {
		cacheMisses.Inc()
	}
	return value, gen, ok
}

// Put stores value unconditionally
func (c *ContentCache) Put(locale, key, value string) {
	c.mu.Lock()
	c.put(locale, key, value)
	c.mu.Unlock()
}

func (c *ContentCache) PutIfFresh(locale, key, value string, gen uint64) bool {
	composite := CompositeKey(locale, key)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation(composite, key) != gen {
		return false
	}
	c.put(locale, key, value)
	return true
}

func (c *ContentCache) put(locale, key, value string) {
	c.values[CompositeKey(locale, key)] = value
	set, ok := c.locales[key]
	if !ok {
		set = make(map[string]struct{})
		c.locales[key] = set
	}
	set[locale] = struct{}{}
	cacheEntries.Set(float64(len(c.values)))
}

// Invalidate removes (locale, key); a no-op when absent apart from advancing the generation
func (c *ContentCache) Invalidate(locale, key string) {
	composite := CompositeKey(locale, key)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[composite]++
	delete(c.values, composite)
	if set, ok := c.locales[key]; ok {
		delete(set, locale)
		if len(set) == 0 {
			delete(c.locales, key)
		}
	}
	cacheInvalidations.WithLabelValues("locale").Inc()
	cacheEntries.Set(float64(len(c.values)))
}

// InvalidateAllLocales removes key under every locale
func (c *ContentCache) InvalidateAllLocales(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keyGens[key]++
	for locale := range c.locales[key] {
		delete(c.values, CompositeKey(locale, key))
	}
	delete(c.locales, key)
	cacheInvalidations.WithLabelValues("all_locales").Inc()
	cacheEntries.Set(float64(len(c.values)))
}

// Len number of cached values
func (c *ContentCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}
