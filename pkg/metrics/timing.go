// Package metrics provides performance instrumentation for rv.
//
// Timing metrics cover the hot paths of the browser engine: network fetches,
// payload decoding, tree expansion and content rendering. Cache counters
// track the sqlite response cache. Everything is collected in-memory with
// atomic operations. Collection can be disabled via RV_METRICS=0.
//
// Usage:
//
//	func fetch() {
//	    defer metrics.Timer(metrics.Fetch)()
//	    // ...
//	}
package metrics

import (
	"os"
	"sync/atomic"
	"time"
)

var enabled atomic.Bool

func init() {
	enabled.Store(os.Getenv("RV_METRICS") != "0")
}

// Enabled returns whether metrics collection is enabled.
func Enabled() bool {
	return enabled.Load()
}

// SetEnabled allows programmatic control of metrics collection.
func SetEnabled(e bool) {
	enabled.Store(e)
}

// TimingMetric tracks timing statistics for a named operation.
type TimingMetric struct {
	name    string
	count   atomic.Int64
	totalNs atomic.Int64
	maxNs   atomic.Int64
	minNs   atomic.Int64 // 0 means not set
}

func newTimingMetric(name string) *TimingMetric {
	return &TimingMetric{name: name}
}

// Record records a single measurement.
func (m *TimingMetric) Record(d time.Duration) {
	if !Enabled() {
		return
	}
	ns := d.Nanoseconds()
	m.count.Add(1)
	m.totalNs.Add(ns)

	for {
		old := m.maxNs.Load()
		if ns <= old || m.maxNs.CompareAndSwap(old, ns) {
			break
		}
	}
	for {
		old := m.minNs.Load()
		if old != 0 && ns >= old {
			break
		}
		if m.minNs.CompareAndSwap(old, ns) {
			break
		}
	}
}

// Name returns the metric name.
func (m *TimingMetric) Name() string {
	return m.name
}

// Count returns the number of recorded measurements.
func (m *TimingMetric) Count() int64 {
	return m.count.Load()
}

// Stats returns a snapshot of the statistics.
func (m *TimingMetric) Stats() TimingStats {
	count := m.count.Load()
	total := m.totalNs.Load()
	var avg int64
	if count > 0 {
		avg = total / count
	}
	return TimingStats{
		Name:    m.name,
		Count:   count,
		TotalMs: float64(total) / 1e6,
		AvgMs:   float64(avg) / 1e6,
		MaxMs:   float64(m.maxNs.Load()) / 1e6,
		MinMs:   float64(m.minNs.Load()) / 1e6,
	}
}

// Reset clears all recorded measurements.
func (m *TimingMetric) Reset() {
	m.count.Store(0)
	m.totalNs.Store(0)
	m.maxNs.Store(0)
	m.minNs.Store(0)
}

// TimingStats holds a snapshot of timing statistics.
type TimingStats struct {
	Name    string  `json:"name"`
	Count   int64   `json:"count"`
	TotalMs float64 `json:"total_ms"`
	AvgMs   float64 `json:"avg_ms"`
	MaxMs   float64 `json:"max_ms"`
	MinMs   float64 `json:"min_ms,omitempty"`
}

// Timer returns a function that records the elapsed time when called.
//
//	defer metrics.Timer(metrics.Expand)()
func Timer(m *TimingMetric) func() {
	if !Enabled() || m == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		m.Record(time.Since(start))
	}
}

// CacheMetric counts hits and misses of a cache.
type CacheMetric struct {
	name   string
	hits   atomic.Int64
	misses atomic.Int64
}

func newCacheMetric(name string) *CacheMetric {
	return &CacheMetric{name: name}
}

// Hit records a cache hit.
func (c *CacheMetric) Hit() {
	if Enabled() {
		c.hits.Add(1)
	}
}

// Miss records a cache miss.
func (c *CacheMetric) Miss() {
	if Enabled() {
		c.misses.Add(1)
	}
}

// Stats returns a snapshot of the counters.
func (c *CacheMetric) Stats() CacheStats {
	hits, misses := c.hits.Load(), c.misses.Load()
	var ratio float64
	if hits+misses > 0 {
		ratio = float64(hits) / float64(hits+misses)
	}
	return CacheStats{Name: c.name, Hits: hits, Misses: misses, HitRatio: ratio}
}

// Reset clears the counters.
func (c *CacheMetric) Reset() {
	c.hits.Store(0)
	c.misses.Store(0)
}

// CacheStats holds a snapshot of cache counters.
type CacheStats struct {
	Name     string  `json:"name"`
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	HitRatio float64 `json:"hit_ratio"`
}

// Global metrics.
var (
	Fetch    = newTimingMetric("fetch")
	Decode   = newTimingMetric("decode")
	Expand   = newTimingMetric("tree_expand")
	Collapse = newTimingMetric("tree_collapse")
	Render   = newTimingMetric("content_render")
	Crawl    = newTimingMetric("crawl")

	ResponseCache = newCacheMetric("response_cache")
)

// AllTimingMetrics returns all registered timing metrics.
func AllTimingMetrics() []*TimingMetric {
	return []*TimingMetric{Fetch, Decode, Expand, Collapse, Render, Crawl}
}

// AllCacheMetrics returns all registered cache metrics.
func AllCacheMetrics() []*CacheMetric {
	return []*CacheMetric{ResponseCache}
}

// ResetAll resets every metric.
func ResetAll() {
	for _, m := range AllTimingMetrics() {
		m.Reset()
	}
	for _, c := range AllCacheMetrics() {
		c.Reset()
	}
}

// Report is the robot-mode dump of all metrics.
type Report struct {
	Timings []TimingStats `json:"timings"`
	Caches  []CacheStats  `json:"caches"`
}

// Snapshot returns stats for every timing metric with data and every cache.
func Snapshot() Report {
	var r Report
	for _, m := range AllTimingMetrics() {
		if m.Count() > 0 {
			r.Timings = append(r.Timings, m.Stats())
		}
	}
	for _, c := range AllCacheMetrics() {
		r.Caches = append(r.Caches, c.Stats())
	}
	return r
}
