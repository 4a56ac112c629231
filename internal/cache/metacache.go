// package cache implements the persistent metadata cache.
//
// The cache is a single keyed JSON document mapping a media identity (the
// URL's list or item query parameter) to previously resolved metadata. It is
// loaded once at startup, rewritten in full after every update, and never
// evicted. Concurrent processes racing on the file resolve last-write-wins;
// the cache is best-effort by design.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/quaverd/quaver/internal/services"
	"github.com/quaverd/quaver/internal/shared"
)

// Identity derives the cache key for a URL: the "list" query parameter if
// present, else the "v" parameter. URLs carrying neither are not cacheable.
func Identity(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	q := u.Query()
	if id := q.Get("list"); id != "" {
		return id, true
	}
	if id := q.Get("v"); id != "" {
		return id, true
	}
	return "", false
}

// IsCollectionURL reports whether a URL carries a collection (list) identifier.
func IsCollectionURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Query().Get("list") != ""
}

// MetaCache maps media identities to raw resolved metadata, persisted as one
// JSON document. Construct exactly one per process and pass it by reference.
type MetaCache struct {
	mu      sync.Mutex
	path    string
	entries map[string]*services.TrackInfo
	logger  *log.Logger
}

// Open loads the cache document at path, creating an empty one if absent.
func Open(path string, logger *log.Logger) (*MetaCache, error) {
	c := &MetaCache{
		path:    path,
		entries: make(map[string]*services.TrackInfo),
		logger:  logger,
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := shared.EnsureDir(filepath.Dir(path)); err != nil {
			return nil, err
		}
		if err := c.save(); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read metadata cache: %w", err)
	default:
		if err := json.Unmarshal(data, &c.entries); err != nil {
			// A corrupt document is dropped rather than fatal; the
			// cache only ever saves round trips.
			logger.Warn("metadata cache unreadable, starting empty", "path", path, "err", err)
			c.entries = make(map[string]*services.TrackInfo)
		}
	}

	logger.Debug("metadata cache opened", "path", path, "entries", len(c.entries))
	return c, nil
}

// Get returns the cached metadata for a URL's identity, if any.
func (c *MetaCache) Get(rawURL string) (*services.TrackInfo, bool) {
	id, ok := Identity(rawURL)
	if !ok {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.entries[id]
	return info, ok
}

// Put stores metadata under the URL's identity and persists the document.
// URLs without an identity are silently not cached.
func (c *MetaCache) Put(rawURL string, info *services.TrackInfo) {
	id, ok := Identity(rawURL)
	if !ok {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = info
	if err := c.save(); err != nil {
		c.logger.Warn("failed to persist metadata cache", "err", err)
	}
}

// Len returns the number of cached identities.
func (c *MetaCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// save rewrites the whole document. Callers hold c.mu.
func (c *MetaCache) save() error {
	data, err := json.Marshal(c.entries)
	if err != nil {
		return fmt.Errorf("failed to encode metadata cache: %w", err)
	}

	tmp := fmt.Sprintf("%s.%s.tmp", c.path, shared.GenerateID())
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace metadata cache: %w", err)
	}
	return nil
}
