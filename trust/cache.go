package trust

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/depsentry/depsentry/models"
	"github.com/depsentry/depsentry/results"
)

// cacheEntry is one persisted score. Timestamp is epoch milliseconds.
type cacheEntry struct {
	Score     results.TrustScore `json:"score"`
	Timestamp int64              `json:"timestamp"`
}

// Cache is a TTL-bounded store of computed trust scores keyed by
// ecosystem and package name. Entries expire at read time; nothing is
// actively evicted. Persistence failures are logged and swallowed, a
// lost cache only forces recomputation.
type Cache struct {
	path string
	ttl  time.Duration
	now  func() time.Time

	mu      sync.RWMutex
	entries map[models.Ecosystem]map[string]cacheEntry
}

func NewCache(path string, ttl time.Duration) *Cache {
	c := &Cache{
		path:    path,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[models.Ecosystem]map[string]cacheEntry),
	}
	c.load()
	return c
}

func (c *Cache) load() {
	if c.path == "" {
		return
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Debug().Err(err).Str("path", c.path).Msg("failed to read trust cache, starting empty")
		}
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := json.Unmarshal(data, &c.entries); err != nil {
		log.Debug().Err(err).Str("path", c.path).Msg("failed to parse trust cache, starting empty")
		c.entries = make(map[models.Ecosystem]map[string]cacheEntry)
	}
}

// Get returns the cached score when a non-expired entry exists.
func (c *Cache) Get(ecosystem models.Ecosystem, name string) (results.TrustScore, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[ecosystem][name]
	if !ok {
		return results.TrustScore{}, false
	}

	computedAt := time.UnixMilli(entry.Timestamp)
	if c.now().Sub(computedAt) > c.ttl {
		return results.TrustScore{}, false
	}
	return entry.Score, true
}

// Put stores a freshly computed score and persists the cache file.
func (c *Cache) Put(ecosystem models.Ecosystem, name string, score results.TrustScore) {
	c.mu.Lock()
	if c.entries[ecosystem] == nil {
		c.entries[ecosystem] = make(map[string]cacheEntry)
	}
	c.entries[ecosystem][name] = cacheEntry{
		Score:     score,
		Timestamp: c.now().UnixMilli(),
	}
	c.mu.Unlock()

	c.persist()
}

// Remove drops one entry, used when a package is unignored and must be
// rescored.
func (c *Cache) Remove(ecosystem models.Ecosystem, name string) {
	c.mu.Lock()
	delete(c.entries[ecosystem], name)
	c.mu.Unlock()

	c.persist()
}

// Clear drops every entry and removes the cache file.
func (c *Cache) Clear() error {
	c.mu.Lock()
	c.entries = make(map[models.Ecosystem]map[string]cacheEntry)
	c.mu.Unlock()

	if c.path == "" {
		return nil
	}
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Len returns the number of live entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, names := range c.entries {
		n += len(names)
	}
	return n
}

func (c *Cache) Path() string {
	return c.path
}

func (c *Cache) persist() {
	if c.path == "" {
		return
	}

	c.mu.RLock()
	data, err := json.MarshalIndent(c.entries, "", "  ")
	c.mu.RUnlock()
	if err != nil {
		log.Debug().Err(err).Msg("failed to marshal trust cache")
		return
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		log.Debug().Err(err).Str("path", c.path).Msg("failed to create cache directory")
		return
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		log.Debug().Err(err).Str("path", c.path).Msg("failed to write trust cache")
		return
	}
	if err := os.Rename(tmp, c.path); err != nil {
		log.Debug().Err(err).Str("path", c.path).Msg("failed to replace trust cache")
	}
}
