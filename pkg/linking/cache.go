// pkg/linking/cache.go
package linking

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/sirupsen/logrus"
)

// Cache memoizes resolutions from an underlying Resolver.
// Authoritative no-matches are cached too; errors are not.
type Cache struct {
	next  Resolver
	store *Store
	log   logrus.FieldLogger

	mu      sync.RWMutex
	entries map[string]*Entity // nil value = cached no-match
}

// NewCache creates an in-memory resolution cache around next.
func NewCache(next Resolver) *Cache {
	return NewCacheWithStore(next, nil, nil)
}

// NewCacheWithStore adds write-through persistence. Store failures are
// logged and treated as misses so a broken database never blocks a run.
func NewCacheWithStore(next Resolver, store *Store, log logrus.FieldLogger) *Cache {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Cache{
		next:    next,
		store:   store,
		log:     log,
		entries: make(map[string]*Entity),
	}
}

// Resolve answers from memory, then the persistent store, then the
// wrapped resolver.
func (c *Cache) Resolve(ctx context.Context, m Mention) (*Entity, error) {
	key := cacheKey(m)

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return e, nil
	}

	if c.store != nil {
		e, ok, err := c.store.Get(ctx, key)
		if err != nil {
			c.log.WithError(err).Warn("resolution store read failed")
		} else if ok {
			c.remember(key, e)
			return e, nil
		}
	}

	e, err := c.next.Resolve(ctx, m)
	if err != nil {
		return nil, err
	}

	c.remember(key, e)
	if c.store != nil {
		if err := c.store.Put(ctx, key, e); err != nil {
			c.log.WithError(err).Warn("resolution store write failed")
		}
	}
	return e, nil
}

// Len reports the number of memoized mentions.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) remember(key string, e *Entity) {
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
}

// cacheKey hashes the fields that determine a resolution. Context is
// excluded on purpose: a mention that already carries a KB id resolves
// the same way wherever it occurs, and bare mentions are keyed by
// surface so repeated names cost one lookup per document run.
func cacheKey(m Mention) string {
	h := sha256.New()
	h.Write([]byte(m.Surface))
	h.Write([]byte{0})
	h.Write([]byte(m.Language))
	h.Write([]byte{0})
	h.Write([]byte(m.KBID))
	return hex.EncodeToString(h.Sum(nil))
}
