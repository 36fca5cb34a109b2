// Package metrics provides in-process counters for one harvesting run.
package metrics

import (
	"sync"
	"time"
)

// Metrics holds the processing counters for a run. Safe for concurrent
// provider batches.
type Metrics struct {
	mu sync.Mutex

	processedCount   int64
	skippedCount     int64
	failedCount      int64
	rateLimitedWaits int64
	fetchSuccesses   int64
	fetchFailures    int64
	startTime        time.Time
	lastProcessedAt  time.Time
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	ProcessedCount   int64
	SkippedCount     int64
	FailedCount      int64
	RateLimitedWaits int64
	FetchSuccesses   int64
	FetchFailures    int64
	StartTime        time.Time
	LastProcessedAt  time.Time
}

// New creates a Metrics instance with the clock started.
func New() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// IncrProcessed records a successfully processed item.
func (m *Metrics) IncrProcessed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processedCount++
	m.lastProcessedAt = time.Now()
}

// IncrSkipped records a duplicate item skipped during fingerprinting.
func (m *Metrics) IncrSkipped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skippedCount++
}

// IncrFailed records a permanently failed item.
func (m *Metrics) IncrFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failedCount++
}

// IncrRateLimitedWait records a blocking token acquisition.
func (m *Metrics) IncrRateLimitedWait() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rateLimitedWaits++
}

// IncrFetchSuccess records a successful HTTP fetch.
func (m *Metrics) IncrFetchSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchSuccesses++
}

// IncrFetchFailure records a failed HTTP fetch.
func (m *Metrics) IncrFetchFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchFailures++
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		ProcessedCount:   m.processedCount,
		SkippedCount:     m.skippedCount,
		FailedCount:      m.failedCount,
		RateLimitedWaits: m.rateLimitedWaits,
		FetchSuccesses:   m.fetchSuccesses,
		FetchFailures:    m.fetchFailures,
		StartTime:        m.startTime,
		LastProcessedAt:  m.lastProcessedAt,
	}
}
