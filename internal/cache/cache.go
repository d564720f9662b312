// Package cache provides caching functionality for static map responses.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spiffcs/staticmap/internal/constants"
	"github.com/spiffcs/staticmap/internal/log"
)

// Cacher defines the interface for caching operations.
// This interface enables mocking the cache in unit tests.
type Cacher interface {
	Get(url string) (*MapEntry, bool)
	Set(entry *MapEntry) error
	Clear() error
	Stats() (Stats, error)
}

// Ensure Cache implements Cacher interface.
var _ Cacher = (*Cache)(nil)

// Cache stores map responses on disk keyed by request URL.
type Cache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets the maximum entry age. Non-positive values keep the default.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// DefaultDir returns the cache directory under the user cache dir.
func DefaultDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, "staticmap", "maps"), nil
}

// NewCache creates a cache in the default directory.
func NewCache(opts ...Option) (*Cache, error) {
	dir, err := DefaultDir()
	if err != nil {
		return nil, err
	}
	return New(dir, opts...)
}

// New creates a cache rooted at dir.
func New(dir string, opts ...Option) (*Cache, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	c := &Cache{dir: dir, ttl: constants.MapCacheTTL, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// TTL returns the maximum entry age.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Key returns the file name used for a URL. The API key query parameter is
// stripped first so rotating keys does not invalidate the cache.
func Key(url string) string {
	hash := sha256.Sum256([]byte(StripKey(url)))
	return hex.EncodeToString(hash[:]) + ".json"
}

// StripKey removes a key= query parameter from a URL.
func StripKey(url string) string {
	base, query, ok := strings.Cut(url, "?")
	if !ok {
		return url
	}
	params := strings.Split(query, "&")
	kept := params[:0]
	for _, p := range params {
		if strings.HasPrefix(p, "key=") {
			continue
		}
		kept = append(kept, p)
	}
	if len(kept) == 0 {
		return base
	}
	return base + "?" + strings.Join(kept, "&")
}

// Get retrieves a cached response for url.
func (c *Cache) Get(url string) (*MapEntry, bool) {
	key := Key(url)
	data, err := os.ReadFile(filepath.Join(c.dir, key))
	if err != nil {
		return nil, false
	}

	var entry MapEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		log.Debug("corrupt cache entry", "key", key, "error", err)
		return nil, false
	}

	// Invalidate if cache version doesn't match (format/schema changed)
	if entry.Version != Version {
		log.Debug("cache version mismatch", "cached", entry.Version, "current", Version, "key", key)
		return nil, false
	}

	if c.now().Sub(entry.CachedAt) > c.ttl {
		return nil, false
	}

	return &entry, true
}

// Set caches a response. CachedAt and Version are filled in when unset.
func (c *Cache) Set(entry *MapEntry) error {
	if entry == nil || entry.URL == "" {
		return nil
	}
	if entry.CachedAt.IsZero() {
		entry.CachedAt = c.now()
	}
	if entry.Version == 0 {
		entry.Version = Version
	}
	entry.URL = StripKey(entry.URL)

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(c.dir, Key(entry.URL)), data, 0600)
}

// Clear removes all cached entries
func (c *Cache) Clear() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if err := os.Remove(filepath.Join(c.dir, entry.Name())); err != nil {
			return err
		}
	}

	return nil
}

// Stats returns cache statistics
func (c *Cache) Stats() (Stats, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	now := c.now()
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(c.dir, e.Name()))
		if err != nil {
			continue
		}
		stats.Total++
		stats.Bytes += int64(len(data))

		var entry MapEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			continue
		}
		if entry.Version == Version && now.Sub(entry.CachedAt) <= c.ttl {
			stats.Valid++
		}
	}

	return stats, nil
}
