// Package cache maps image source identities to the URLs they were uploaded to.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// Key identifies an image source: a stable file path, or a content hash for
// sources without one.
type Key string

// KeyFor derives the cache key for a source. The path wins when present;
// otherwise the key is derived from the encoded content.
func KeyFor(path, data string) Key {
	if path != "" {
		return Key(path)
	}
	return ContentKey(data)
}

// ContentKey returns the content-addressed key of encoded image data
func ContentKey(data string) Key {
	sum := sha256.Sum256([]byte(data))
	return Key("sha256:" + hex.EncodeToString(sum[:]))
}

// Cache is an unbounded in-memory store of uploaded URLs. Entries are never
// expired individually; the owner clears them in bulk.
type Cache struct {
	mu      sync.RWMutex
	entries map[Key]string
}

// New creates an empty cache
func New() *Cache {
	return &Cache{entries: make(map[Key]string)}
}

// Get returns the URL stored for key
func (c *Cache) Get(key Key) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	url, ok := c.entries[key]
	return url, ok
}

// Set stores url for key, replacing any previous value
func (c *Cache) Set(key Key, url string) {
	c.mu.Lock()
	c.entries[key] = url
	c.mu.Unlock()
}

// Delete removes key
func (c *Cache) Delete(key Key) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear removes every entry
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[Key]string)
	c.mu.Unlock()
}

// Len returns the number of entries
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
