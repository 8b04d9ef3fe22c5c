package config

import (
	"os"
	"sync"
	"time"
)

type cacheEntry struct {
	conn    *Connection
	modTime time.Time
}

// Cache memoizes parsed connection documents per path, invalidating an
// entry when the file on disk is newer than the cached parse.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewCache creates an empty connection cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry)}
}

// GetOrReload returns the cached connection for path, reparsing when the
// file changed since it was cached.
func (c *Cache) GetOrReload(path string) (*Connection, error) {
	info, err := os.Stat(path)
	if err == nil {
		c.mu.Lock()
		entry, ok := c.entries[path]
		c.mu.Unlock()
		if ok && !info.ModTime().After(entry.modTime) {
			return entry.conn, nil
		}
	}

	conn, err := LoadConnection(path)
	if err != nil {
		return nil, err
	}

	if info, statErr := os.Stat(path); statErr == nil {
		c.mu.Lock()
		c.entries[path] = cacheEntry{conn: conn, modTime: info.ModTime()}
		c.mu.Unlock()
	}
	return conn, nil
}
