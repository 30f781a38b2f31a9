package admission

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// cacheEntry holds a cached authentication outcome, positive or
// negative, keyed by the credential hash so raw credentials never sit
// in memory longer than one lookup.
type cacheEntry struct {
	hash      string
	cred      *Credential // nil on a cached negative result
	cachedErr error
	expiresAt time.Time
}

// credentialCache caches both positive and negative validation
// outcomes keyed by a cryptographic hash of the credential.
type credentialCache struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	entries  map[string]*list.Element
	order    *list.List
}

func newCredentialCache(ttl time.Duration, capacity int) *credentialCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if capacity <= 0 {
		capacity = 1000
	}
	return &credentialCache{
		ttl:      ttl,
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// HashCredential returns the cache key / rate-limit identifier for a raw
// credential value: a hex-encoded SHA-256 digest.
func HashCredential(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func (c *credentialCache) get(hash string) (*cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[hash]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.order.Remove(el)
		delete(c.entries, hash)
		return nil, false
	}
	c.order.MoveToFront(el)
	return entry, true
}

func (c *credentialCache) put(hash string, cred *Credential, cachedErr error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := &cacheEntry{hash: hash, cred: cred, cachedErr: cachedErr, expiresAt: time.Now().Add(c.ttl)}
	if el, ok := c.entries[hash]; ok {
		el.Value = entry
		c.order.MoveToFront(el)
		return
	}
	el := c.order.PushFront(entry)
	c.entries[hash] = el

	for c.order.Len() > c.capacity {
		back := c.order.Back()
		if back == nil {
			break
		}
		evicted := back.Value.(*cacheEntry)
		delete(c.entries, evicted.hash)
		c.order.Remove(back)
	}
}
