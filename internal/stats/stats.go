package stats

import (
	"sync"
	"time"

	"github.com/phishguard/phishguard/internal/core"
)

// Collector holds the session analysis counters. Counters reset only on
// process restart; the Prometheus mirrors in metrics.go are cumulative
// externally-scraped views of the same events.
type Collector struct {
	mu              sync.Mutex
	totalAnalyzed   uint64
	phishingBlocked uint64
	warningsShown   uint64
	sessionStart    time.Time
	lastError       *core.AnalysisError
}

// NewCollector creates a collector with the session clock started
func NewCollector() *Collector {
	return &Collector{
		sessionStart: time.Now(),
	}
}

// RecordAnalysis counts one genuine network classification (cache hits
// are not counted)
func (c *Collector) RecordAnalysis() {
	c.mu.Lock()
	c.totalAnalyzed++
	c.mu.Unlock()

	urlsAnalyzed.Inc()
}

// RecordBlock counts one blocked navigation
func (c *Collector) RecordBlock() {
	c.mu.Lock()
	c.phishingBlocked++
	c.mu.Unlock()

	phishingBlocked.Inc()
}

// RecordWarning counts one warning banner shown
func (c *Collector) RecordWarning() {
	c.mu.Lock()
	c.warningsShown++
	c.mu.Unlock()

	warningsShown.Inc()
}

// RecordError captures the most recent classification failure
func (c *Collector) RecordError(message, url string) {
	c.mu.Lock()
	c.lastError = &core.AnalysisError{
		Message: message,
		Time:    time.Now(),
		URL:     url,
	}
	c.mu.Unlock()

	classificationErrors.Inc()
}

// Snapshot returns a copy of the current counters
func (c *Collector) Snapshot() core.AnalysisStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := core.AnalysisStats{
		TotalAnalyzed:   c.totalAnalyzed,
		PhishingBlocked: c.phishingBlocked,
		WarningsShown:   c.warningsShown,
		SessionStart:    c.sessionStart,
	}
	if c.lastError != nil {
		errCopy := *c.lastError
		stats.LastError = &errCopy
	}
	return stats
}
