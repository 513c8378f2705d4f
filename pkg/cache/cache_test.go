package cache

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brainstormhq/conductor/pkg/models"
	"github.com/brainstormhq/conductor/pkg/protocol"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func newTestCache(t *testing.T, capacity int, opts ...Option) *Cache {
	t.Helper()

	cache := New(capacity, time.Hour, testLogger(), opts...)
	t.Cleanup(cache.Close)

	return cache
}

func input(content string) *models.ProviderInput {
	return &models.ProviderInput{
		ConversationID: "conv-1",
		Turn:           &models.ConversationTurn{ID: "t1", Role: models.RoleUser, Content: content},
	}
}

func output(value string) *protocol.ProviderOutput {
	return &protocol.ProviderOutput{Output: map[string]any{"value": value}}
}

func TestCache_HitWithinTTL(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	now := base
	cache := newTestCache(t, 16, WithClock(func() time.Time { return now }))

	cache.Put("verify", input("q"), "hash-a", output("v1"), 120*time.Second)

	// 60s later the entry is still live.
	now = base.Add(60 * time.Second)

	got, ok := cache.Get("verify", input("q"), "hash-a")
	require.True(t, ok)
	assert.Equal(t, "v1", got.Output["value"])
}

func TestCache_ExpiredEntryIsAMiss(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	now := base
	cache := newTestCache(t, 16, WithClock(func() time.Time { return now }))

	cache.Put("verify", input("q"), "hash-a", output("v1"), 120*time.Second)

	// 130s later the TTL has elapsed; the entry is dropped on access.
	now = base.Add(130 * time.Second)

	_, ok := cache.Get("verify", input("q"), "hash-a")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len())
}

func TestCache_StateHashIsPartOfTheKey(t *testing.T) {
	cache := newTestCache(t, 16)

	cache.Put("verify", input("q"), "hash-a", output("v1"), time.Minute)

	_, ok := cache.Get("verify", input("q"), "hash-b")
	assert.False(t, ok, "a state mutation must invalidate implicitly")

	got, ok := cache.Get("verify", input("q"), "hash-a")
	require.True(t, ok)
	assert.Equal(t, "v1", got.Output["value"])
}

func TestCache_ProviderIsPartOfTheKey(t *testing.T) {
	cache := newTestCache(t, 16)

	cache.Put("verify", input("q"), "hash-a", output("v1"), time.Minute)

	_, ok := cache.Get("scan", input("q"), "hash-a")
	assert.False(t, ok)
}

func TestCache_ZeroTTLIsNeverStored(t *testing.T) {
	cache := newTestCache(t, 16)

	cache.Put("record", input("q"), "hash-a", output("v1"), 0)
	cache.Put("record", input("q"), "hash-a", output("v1"), -time.Second)

	_, ok := cache.Get("record", input("q"), "hash-a")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len())
}

func TestCache_LRUEvictionAtCapacity(t *testing.T) {
	cache := newTestCache(t, 2)

	cache.Put("p", input("one"), "h", output("1"), time.Minute)
	cache.Put("p", input("two"), "h", output("2"), time.Minute)

	// Touch "one" so "two" becomes the eviction candidate.
	_, ok := cache.Get("p", input("one"), "h")
	require.True(t, ok)

	cache.Put("p", input("three"), "h", output("3"), time.Minute)

	_, ok = cache.Get("p", input("two"), "h")
	assert.False(t, ok, "least recently used entry should be evicted")

	_, ok = cache.Get("p", input("one"), "h")
	assert.True(t, ok)

	_, ok = cache.Get("p", input("three"), "h")
	assert.True(t, ok)
}

func TestCache_ReplaceExistingKey(t *testing.T) {
	cache := newTestCache(t, 16)

	cache.Put("verify", input("q"), "hash-a", output("old"), time.Minute)
	cache.Put("verify", input("q"), "hash-a", output("new"), time.Minute)

	got, ok := cache.Get("verify", input("q"), "hash-a")
	require.True(t, ok)
	assert.Equal(t, "new", got.Output["value"])
	assert.Equal(t, 1, cache.Len())
}

func TestCache_BackgroundSweepRemovesExpired(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)

	var mu sync.Mutex

	now := base
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()

		return now
	}

	cache := New(16, 10*time.Millisecond, testLogger(), WithClock(clock))
	t.Cleanup(cache.Close)

	cache.Put("verify", input("q"), "hash-a", output("v1"), time.Second)

	mu.Lock()
	now = base.Add(2 * time.Second)
	mu.Unlock()

	assert.Eventually(t, func() bool {
		return cache.Len() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	cache := newTestCache(t, 128)

	var wg sync.WaitGroup

	for worker := range 8 {
		wg.Add(1)

		go func(worker int) {
			defer wg.Done()

			for i := range 50 {
				in := input(fmt.Sprintf("w%d-%d", worker, i%10))
				cache.Put("p", in, "h", output("v"), time.Minute)
				cache.Get("p", in, "h")
			}
		}(worker)
	}

	wg.Wait()

	assert.LessOrEqual(t, cache.Len(), 128)
}

func TestKey_Deterministic(t *testing.T) {
	first, err := Key("verify", input("q"), "hash-a")
	require.NoError(t, err)

	second, err := Key("verify", input("q"), "hash-a")
	require.NoError(t, err)

	assert.Equal(t, first, second)

	different, err := Key("verify", input("other"), "hash-a")
	require.NoError(t, err)
	assert.NotEqual(t, first, different)
}
