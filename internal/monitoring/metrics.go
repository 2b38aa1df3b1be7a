package monitoring

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds in-process counters. Nothing here refers to individual employees.
type Metrics struct {
	RequestCount        int64
	ErrorCount          int64
	AverageResponseTime int64 // in nanoseconds
	StartTime           time.Time

	// Enhanced metrics for percentiles and histograms
	ResponseTimes      []time.Duration
	ResponseTimesMutex sync.RWMutex

	// Status code tracking
	RequestCountByStatus map[int]int64
	StatusMutex          sync.RWMutex

	// Scoring pipeline metrics
	AnalysisRuns     int64
	AnalysisFailures int64
	RowsScored       int64
	FallbackRuns     int64
	EmptyRuns        int64
	Exports          int64
	CacheHits        int64
	CacheMisses      int64
	DefaultedColumns map[string]int64
	CategoryCounts   map[string]int64
	AnalysisMutex    sync.RWMutex

	// Access metrics
	AccessDenied int64

	// Rate limit metrics
	RateLimitIPBlocks       int64
	RateLimitRedisErrors    int64
	RateLimitFallbackCount  int64
	RateLimitEndpointBlocks map[string]int64
	RateLimitMutex          sync.RWMutex
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		StartTime:               time.Now(),
		ResponseTimes:           make([]time.Duration, 0, 1000),
		RequestCountByStatus:    make(map[int]int64),
		DefaultedColumns:        make(map[string]int64),
		CategoryCounts:          make(map[string]int64),
		RateLimitEndpointBlocks: make(map[string]int64),
	}
}

// IncrementRequest increments the request count
func (m *Metrics) IncrementRequest() {
	atomic.AddInt64(&m.RequestCount, 1)
}

// IncrementError increments the error count
func (m *Metrics) IncrementError() {
	atomic.AddInt64(&m.ErrorCount, 1)
}

// RecordResponseTime records response time for averaging and percentiles
func (m *Metrics) RecordResponseTime(duration time.Duration) {
	current := atomic.LoadInt64(&m.AverageResponseTime)
	newAverage := (current + duration.Nanoseconds()) / 2
	atomic.StoreInt64(&m.AverageResponseTime, newAverage)

	// keep the last 1000 samples
	m.ResponseTimesMutex.Lock()
	m.ResponseTimes = append(m.ResponseTimes, duration)
	if len(m.ResponseTimes) > 1000 {
		m.ResponseTimes = m.ResponseTimes[1:]
	}
	m.ResponseTimesMutex.Unlock()
}

// RecordRequestByStatus records request count by HTTP status code
func (m *Metrics) RecordRequestByStatus(statusCode int) {
	m.StatusMutex.Lock()
	defer m.StatusMutex.Unlock()
	m.RequestCountByStatus[statusCode]++
}

// RecordAnalysis records the aggregate outcome of one scoring run
func (m *Metrics) RecordAnalysis(rows int, modelKind string, defaulted []string, distribution map[string]int) {
	atomic.AddInt64(&m.AnalysisRuns, 1)
	atomic.AddInt64(&m.RowsScored, int64(rows))
	switch {
	case rows == 0:
		atomic.AddInt64(&m.EmptyRuns, 1)
	case modelKind == "fallback":
		atomic.AddInt64(&m.FallbackRuns, 1)
	}

	m.AnalysisMutex.Lock()
	defer m.AnalysisMutex.Unlock()
	for _, col := range defaulted {
		m.DefaultedColumns[col]++
	}
	for category, n := range distribution {
		m.CategoryCounts[category] += int64(n)
	}
}

// IncrementAnalysisFailure counts runs rejected for malformed input
func (m *Metrics) IncrementAnalysisFailure() {
	atomic.AddInt64(&m.AnalysisFailures, 1)
}

// IncrementExport counts CSV downloads
func (m *Metrics) IncrementExport() {
	atomic.AddInt64(&m.Exports, 1)
}

// IncrementCacheHit counts uploads answered from the result cache
func (m *Metrics) IncrementCacheHit() {
	atomic.AddInt64(&m.CacheHits, 1)
}

// IncrementCacheMiss counts uploads that had to be scored
func (m *Metrics) IncrementCacheMiss() {
	atomic.AddInt64(&m.CacheMisses, 1)
}

// IncrementAccessDenied counts license and plan rejections
func (m *Metrics) IncrementAccessDenied() {
	atomic.AddInt64(&m.AccessDenied, 1)
}

// GetPercentileResponseTime calculates percentile response time
func (m *Metrics) GetPercentileResponseTime(percentile float64) time.Duration {
	m.ResponseTimesMutex.RLock()
	defer m.ResponseTimesMutex.RUnlock()

	if len(m.ResponseTimes) == 0 {
		return 0
	}

	times := make([]time.Duration, len(m.ResponseTimes))
	copy(times, m.ResponseTimes)

	sort.Slice(times, func(i, j int) bool {
		return times[i] < times[j]
	})

	index := int(float64(len(times)-1) * percentile / 100.0)
	if index >= len(times) {
		index = len(times) - 1
	}

	return times[index]
}

// GetStatusCodeDistribution returns request count by status code
func (m *Metrics) GetStatusCodeDistribution() map[int]int64 {
	m.StatusMutex.RLock()
	defer m.StatusMutex.RUnlock()

	distribution := make(map[int]int64)
	for code, count := range m.RequestCountByStatus {
		distribution[code] = count
	}
	return distribution
}

// GetAnalysisStats returns scoring pipeline statistics
func (m *Metrics) GetAnalysisStats() map[string]interface{} {
	m.AnalysisMutex.RLock()
	defaulted := make(map[string]int64, len(m.DefaultedColumns))
	for k, v := range m.DefaultedColumns {
		defaulted[k] = v
	}
	categories := make(map[string]int64, len(m.CategoryCounts))
	for k, v := range m.CategoryCounts {
		categories[k] = v
	}
	m.AnalysisMutex.RUnlock()

	return map[string]interface{}{
		"runs":              atomic.LoadInt64(&m.AnalysisRuns),
		"failures":          atomic.LoadInt64(&m.AnalysisFailures),
		"rows_scored":       atomic.LoadInt64(&m.RowsScored),
		"fallback_runs":     atomic.LoadInt64(&m.FallbackRuns),
		"empty_runs":        atomic.LoadInt64(&m.EmptyRuns),
		"exports":           atomic.LoadInt64(&m.Exports),
		"cache_hits":        atomic.LoadInt64(&m.CacheHits),
		"cache_misses":      atomic.LoadInt64(&m.CacheMisses),
		"defaulted_columns": defaulted,
		"category_counts":   categories,
	}
}

// GetStats returns current metrics statistics
func (m *Metrics) GetStats() map[string]interface{} {
	requests := atomic.LoadInt64(&m.RequestCount)
	errors := atomic.LoadInt64(&m.ErrorCount)
	avgResponseTime := atomic.LoadInt64(&m.AverageResponseTime)

	errorRate := float64(0)
	if requests > 0 {
		errorRate = float64(errors) / float64(requests) * 100
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return map[string]interface{}{
		"uptime_seconds":       time.Since(m.StartTime).Seconds(),
		"total_requests":       requests,
		"error_count":          errors,
		"error_rate_percent":   errorRate,
		"avg_response_time_ms": float64(avgResponseTime) / 1000000,
		"start_time":           m.StartTime.Format(time.RFC3339),

		"p50_response_time_ms":     float64(m.GetPercentileResponseTime(50)) / 1000000,
		"p95_response_time_ms":     float64(m.GetPercentileResponseTime(95)) / 1000000,
		"p99_response_time_ms":     float64(m.GetPercentileResponseTime(99)) / 1000000,
		"status_code_distribution": m.GetStatusCodeDistribution(),

		"analysis":      m.GetAnalysisStats(),
		"access_denied": atomic.LoadInt64(&m.AccessDenied),
		"rate_limit":    m.GetRateLimitStats(),

		"go_gc_count":          mem.NumGC,
		"go_gc_pause_total_ns": mem.PauseTotalNs,
		"go_heap_alloc_bytes":  mem.HeapAlloc,
		"go_heap_sys_bytes":    mem.HeapSys,
		"go_goroutines":        runtime.NumGoroutine(),
	}
}

// Reset resets all metrics (useful for testing)
func (m *Metrics) Reset() {
	atomic.StoreInt64(&m.RequestCount, 0)
	atomic.StoreInt64(&m.ErrorCount, 0)
	atomic.StoreInt64(&m.AverageResponseTime, 0)
	atomic.StoreInt64(&m.AnalysisRuns, 0)
	atomic.StoreInt64(&m.AnalysisFailures, 0)
	atomic.StoreInt64(&m.RowsScored, 0)
	atomic.StoreInt64(&m.FallbackRuns, 0)
	atomic.StoreInt64(&m.EmptyRuns, 0)
	atomic.StoreInt64(&m.Exports, 0)
	atomic.StoreInt64(&m.CacheHits, 0)
	atomic.StoreInt64(&m.CacheMisses, 0)
	atomic.StoreInt64(&m.AccessDenied, 0)
	atomic.StoreInt64(&m.RateLimitIPBlocks, 0)
	atomic.StoreInt64(&m.RateLimitRedisErrors, 0)
	atomic.StoreInt64(&m.RateLimitFallbackCount, 0)

	m.ResponseTimesMutex.Lock()
	m.ResponseTimes = m.ResponseTimes[:0]
	m.ResponseTimesMutex.Unlock()

	m.StatusMutex.Lock()
	m.RequestCountByStatus = make(map[int]int64)
	m.StatusMutex.Unlock()

	m.AnalysisMutex.Lock()
	m.DefaultedColumns = make(map[string]int64)
	m.CategoryCounts = make(map[string]int64)
	m.AnalysisMutex.Unlock()

	m.RateLimitMutex.Lock()
	m.RateLimitEndpointBlocks = make(map[string]int64)
	m.RateLimitMutex.Unlock()

	m.StartTime = time.Now()
}

// IncrementRateLimitIPBlock increments IP-based rate limit blocks
func (m *Metrics) IncrementRateLimitIPBlock() {
	atomic.AddInt64(&m.RateLimitIPBlocks, 1)
}

// IncrementRateLimitRedisError increments Redis error count for rate limiting
func (m *Metrics) IncrementRateLimitRedisError() {
	atomic.AddInt64(&m.RateLimitRedisErrors, 1)
}

// IncrementRateLimitFallback increments fallback rate limiter usage count
func (m *Metrics) IncrementRateLimitFallback() {
	atomic.AddInt64(&m.RateLimitFallbackCount, 1)
}

// IncrementRateLimitEndpoint increments rate limit blocks for a specific endpoint
func (m *Metrics) IncrementRateLimitEndpoint(endpoint string) {
	m.RateLimitMutex.Lock()
	defer m.RateLimitMutex.Unlock()
	m.RateLimitEndpointBlocks[endpoint]++
}

// GetRateLimitStats returns rate limiting statistics
func (m *Metrics) GetRateLimitStats() map[string]interface{} {
	m.RateLimitMutex.RLock()
	endpointBlocksCopy := make(map[string]int64, len(m.RateLimitEndpointBlocks))
	for k, v := range m.RateLimitEndpointBlocks {
		endpointBlocksCopy[k] = v
	}
	m.RateLimitMutex.RUnlock()

	return map[string]interface{}{
		"ip_blocks":       atomic.LoadInt64(&m.RateLimitIPBlocks),
		"redis_errors":    atomic.LoadInt64(&m.RateLimitRedisErrors),
		"fallback_count":  atomic.LoadInt64(&m.RateLimitFallbackCount),
		"endpoint_blocks": endpointBlocksCopy,
	}
}
