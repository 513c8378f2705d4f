// Package metrics accumulates per-provider call, cache, and token usage
// statistics across concurrent coordination flows.
package metrics

import (
	"sort"
	"sync"
	"time"
)

// CallRecord describes one provider call for accounting.
type CallRecord struct {
	CacheHit        bool
	Failed          bool
	EstimatedTokens int
	Latency         time.Duration
}

type providerCounters struct {
	calls        int64
	cacheHits    int64
	failures     int64
	tokensUsed   int64
	tokensSaved  int64
	totalLatency time.Duration
}

// Metrics is a process-wide counter set, safe under concurrent increment
// from parallel batches. It is passed by handle to all request flows; there
// is no ambient singleton.
type Metrics struct {
	mu        sync.RWMutex
	providers map[string]*providerCounters
	since     time.Time

	now func() time.Time
}

type Option func(*Metrics)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Metrics) {
		m.now = now
	}
}

func New(opts ...Option) *Metrics {
	metrics := &Metrics{
		providers: make(map[string]*providerCounters),
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(metrics)
	}

	metrics.since = metrics.now()

	return metrics
}

// RecordCall accounts one provider call. A cache hit counts its estimated
// tokens as saved rather than used.
func (m *Metrics) RecordCall(provider string, record CallRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counters, ok := m.providers[provider]
	if !ok {
		counters = &providerCounters{}
		m.providers[provider] = counters
	}

	counters.calls++
	counters.totalLatency += record.Latency

	if record.Failed {
		counters.failures++
	}

	if record.CacheHit {
		counters.cacheHits++
		counters.tokensSaved += int64(record.EstimatedTokens)
	} else {
		counters.tokensUsed += int64(record.EstimatedTokens)
	}
}

// ProviderStats is the per-provider aggregate exposed by Snapshot.
type ProviderStats struct {
	Provider     string        `json:"provider"`
	TotalCalls   int64         `json:"total_calls"`
	CacheHits    int64         `json:"cache_hits"`
	Failures     int64         `json:"failures"`
	TokensUsed   int64         `json:"tokens_used"`
	TokensSaved  int64         `json:"tokens_saved"`
	MeanLatency  time.Duration `json:"mean_latency_ms"`
	CacheHitRate float64       `json:"cache_hit_rate"`
}

// Snapshot is a point-in-time aggregate of all counters, with providers
// ranked by call volume.
type Snapshot struct {
	Since        time.Time       `json:"since"`
	TakenAt      time.Time       `json:"taken_at"`
	TotalCalls   int64           `json:"total_calls"`
	CacheHits    int64           `json:"cache_hits"`
	CacheHitRate float64         `json:"cache_hit_rate"`
	TokensUsed   int64           `json:"tokens_used"`
	TokensSaved  int64           `json:"tokens_saved"`
	Providers    []ProviderStats `json:"providers"`
}

// Snapshot aggregates the current counters without disturbing them.
func (m *Metrics) Snapshot() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := &Snapshot{
		Since:     m.since,
		TakenAt:   m.now(),
		Providers: make([]ProviderStats, 0, len(m.providers)),
	}

	for provider, counters := range m.providers {
		stats := ProviderStats{
			Provider:    provider,
			TotalCalls:  counters.calls,
			CacheHits:   counters.cacheHits,
			Failures:    counters.failures,
			TokensUsed:  counters.tokensUsed,
			TokensSaved: counters.tokensSaved,
		}

		if counters.calls > 0 {
			stats.MeanLatency = counters.totalLatency / time.Duration(counters.calls)
			stats.CacheHitRate = float64(counters.cacheHits) / float64(counters.calls)
		}

		snapshot.TotalCalls += counters.calls
		snapshot.CacheHits += counters.cacheHits
		snapshot.TokensUsed += counters.tokensUsed
		snapshot.TokensSaved += counters.tokensSaved
		snapshot.Providers = append(snapshot.Providers, stats)
	}

	if snapshot.TotalCalls > 0 {
		snapshot.CacheHitRate = float64(snapshot.CacheHits) / float64(snapshot.TotalCalls)
	}

	sort.Slice(snapshot.Providers, func(i, j int) bool {
		if snapshot.Providers[i].TotalCalls != snapshot.Providers[j].TotalCalls {
			return snapshot.Providers[i].TotalCalls > snapshot.Providers[j].TotalCalls
		}

		return snapshot.Providers[i].Provider < snapshot.Providers[j].Provider
	})

	return snapshot
}

// Reset clears all counters and restarts the accounting window.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.providers = make(map[string]*providerCounters)
	m.since = m.now()
}
