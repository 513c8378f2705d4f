// Package cache memoizes capability-provider outputs keyed on the provider
// name, the pruned input, and the current state fingerprint.
//
// Invalidation is implicit: any state mutation changes the fingerprint, so
// stale entries simply never match again. A background sweep removes
// TTL-expired entries and an LRU policy bounds the total entry count.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/brainstormhq/conductor/pkg/models"
	"github.com/brainstormhq/conductor/pkg/protocol"
)

const (
	// DefaultCapacity bounds the entry count before LRU eviction starts.
	DefaultCapacity = 1024
	// DefaultSweepInterval is how often the background sweep scans for
	// TTL-expired entries.
	DefaultSweepInterval = 30 * time.Second
)

type entry struct {
	key       string
	value     *protocol.ProviderOutput
	createdAt time.Time
	ttl       time.Duration
	stateHash string
}

func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.createdAt) >= e.ttl
}

// Cache is a process-wide shared resource accessed by many concurrent
// requests. Last-writer-wins on identical keys is acceptable: equal keys are
// assumed to produce interchangeable values.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	lru      *list.List // front = most recently used

	now    func() time.Time
	logger *slog.Logger
	stopCh chan struct{}
	wg     sync.WaitGroup
}

type Option func(*Cache)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

func New(capacity int, sweepInterval time.Duration, logger *slog.Logger, opts ...Option) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}

	cache := &Cache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		lru:      list.New(),
		now:      time.Now,
		logger:   logger.With("module", "response_cache"),
		stopCh:   make(chan struct{}),
	}

	for _, opt := range opts {
		opt(cache)
	}

	cache.wg.Add(1)

	go cache.sweep(sweepInterval)

	return cache
}

// Key derives the cache key from the provider name, the serialized pruned
// input, and the state fingerprint. A serialization failure is reported so
// callers can degrade to a miss.
func Key(provider string, input *models.ProviderInput, stateHash string) (string, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write([]byte(provider))
	h.Write([]byte{0})
	h.Write(payload)
	h.Write([]byte{0})
	h.Write([]byte(stateHash))

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Get returns the memoized output for the key, or a miss. Expired entries
// are treated as misses and dropped on access.
func (c *Cache) Get(provider string, input *models.ProviderInput, stateHash string) (*protocol.ProviderOutput, bool) {
	key, err := Key(provider, input, stateHash)
	if err != nil {
		c.logger.Debug("Cache key serialization failed, treating as miss", "provider", provider, "error", err)

		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	element, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	ent := element.Value.(*entry)
	if ent.expired(c.now()) {
		c.removeLocked(element)

		return nil, false
	}

	c.lru.MoveToFront(element)

	return ent.value, true
}

// Put stores a provider output under the derived key. A zero or negative TTL
// means "never cache". A serialization failure degrades silently to a no-op.
func (c *Cache) Put(provider string, input *models.ProviderInput, stateHash string, value *protocol.ProviderOutput, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	key, err := Key(provider, input, stateHash)
	if err != nil {
		c.logger.Debug("Cache key serialization failed, skipping put", "provider", provider, "error", err)

		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.entries[key]; ok {
		c.removeLocked(element)
	}

	element := c.lru.PushFront(&entry{
		key:       key,
		value:     value,
		createdAt: c.now(),
		ttl:       ttl,
		stateHash: stateHash,
	})
	c.entries[key] = element

	for c.lru.Len() > c.capacity {
		c.removeLocked(c.lru.Back())
	}
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lru.Len()
}

// Close stops the background sweep.
func (c *Cache) Close() {
	close(c.stopCh)
	c.wg.Wait()
}

func (c *Cache) removeLocked(element *list.Element) {
	ent := element.Value.(*entry)
	delete(c.entries, ent.key)
	c.lru.Remove(element)
}

func (c *Cache) sweep(interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *Cache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0

	for element := c.lru.Back(); element != nil; {
		prev := element.Prev()

		if element.Value.(*entry).expired(now) {
			c.removeLocked(element)

			removed++
		}

		element = prev
	}

	if removed > 0 {
		c.logger.Debug("Swept expired cache entries", "removed", removed, "remaining", c.lru.Len())
	}
}
