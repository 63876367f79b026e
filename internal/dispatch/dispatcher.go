package dispatch

import (
	"context"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/phishguard/phishguard/internal/core"
	"github.com/phishguard/phishguard/internal/stats"
	"go.uber.org/zap"
)

// Dispatcher executes the gate's decisions: it records blocks into the
// history, schedules warning banners, and tracks per-context badges.
// Warnings are applied after a short delay so instantaneous safe-redirect
// chains never flash a banner.
type Dispatcher struct {
	stats     *stats.Collector
	store     core.Store
	settings  core.SettingsProvider
	blockPage string
	warnDelay time.Duration
	logger    *zap.Logger

	mu      sync.Mutex
	badges  map[string]core.BadgeState
	banners map[string]*banner
}

type banner struct {
	result *core.ClassificationResult
	timer  *time.Timer
	shown  bool
}

// NewDispatcher creates a new action dispatcher
func NewDispatcher(
	collector *stats.Collector,
	store core.Store,
	settings core.SettingsProvider,
	blockPage string,
	warnDelay time.Duration,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		stats:     collector,
		store:     store,
		settings:  settings,
		blockPage: blockPage,
		warnDelay: warnDelay,
		logger:    logger,
		badges:    make(map[string]core.BadgeState),
		banners:   make(map[string]*banner),
	}
}

// Block records a blocked navigation and returns the block-page URL
// carrying the offending URL, confidence, risk level and domain. A block,
// once issued, is not revoked; the user's "proceed anyway" becomes a new
// temporary-allow grant instead.
func (d *Dispatcher) Block(ctx context.Context, ev core.NavigationEvent, result *core.ClassificationResult) string {
	d.stats.RecordBlock()

	domain := core.ExtractDomain(ev.URL)
	if d.settings.Snapshot().LogHistory {
		entry := &core.BlockedHistoryEntry{
			URL:        ev.URL,
			Domain:     domain,
			Timestamp:  time.Now(),
			Confidence: result.Confidence,
			RiskLevel:  result.RiskLevel,
		}
		if err := d.store.AppendHistory(ctx, entry); err != nil {
			d.logger.Error("Failed to record blocked navigation", zap.Error(err))
		}
	}

	d.mu.Lock()
	d.badges[ev.ContextID] = core.BadgeDanger
	d.mu.Unlock()

	d.logger.Info("Navigation blocked",
		zap.String("domain", domain),
		zap.String("risk_level", string(result.RiskLevel)),
		zap.Float64("confidence", result.Confidence))

	params := url.Values{}
	params.Set("url", ev.URL)
	params.Set("confidence", strconv.FormatFloat(result.Confidence, 'f', -1, 64))
	params.Set("risk", string(result.RiskLevel))
	params.Set("domain", domain)
	return d.blockPage + "?" + params.Encode()
}

// Warn schedules a warning banner for a context. A context with a banner
// already pending or shown is left alone.
func (d *Dispatcher) Warn(ev core.NavigationEvent, result *core.ClassificationResult) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.banners[ev.ContextID]; exists {
		return
	}

	b := &banner{result: result}
	b.timer = time.AfterFunc(d.warnDelay, func() {
		d.showWarning(ev, b)
	})
	d.banners[ev.ContextID] = b
}

// showWarning is the deferred application of a scheduled banner
func (d *Dispatcher) showWarning(ev core.NavigationEvent, b *banner) {
	d.mu.Lock()
	current, ok := d.banners[ev.ContextID]
	if !ok || current != b {
		// Context navigated away before the delay elapsed
		d.mu.Unlock()
		return
	}
	b.shown = true
	d.mu.Unlock()

	d.stats.RecordWarning()
	d.logger.Info("Warning shown",
		zap.String("domain", core.ExtractDomain(ev.URL)),
		zap.String("risk_level", string(b.result.RiskLevel)))
}

// ActiveWarning reports the banner currently shown for a context, if any
func (d *Dispatcher) ActiveWarning(contextID string) (*core.ClassificationResult, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.banners[contextID]
	if !ok || !b.shown {
		return nil, false
	}
	return b.result, true
}

// UpdateBadge sets the three-state indicator for a context
func (d *Dispatcher) UpdateBadge(contextID string, result *core.ClassificationResult) {
	d.mu.Lock()
	d.badges[contextID] = core.BadgeFor(result)
	d.mu.Unlock()
}

// Badge returns the current indicator for a context
func (d *Dispatcher) Badge(contextID string) core.BadgeState {
	d.mu.Lock()
	defer d.mu.Unlock()

	if badge, ok := d.badges[contextID]; ok {
		return badge
	}
	return core.BadgeNone
}

// ClearContext drops banner and badge state when a context navigates away,
// cancelling a not-yet-shown banner
func (d *Dispatcher) ClearContext(contextID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if b, ok := d.banners[contextID]; ok {
		b.timer.Stop()
		delete(d.banners, contextID)
	}
	delete(d.badges, contextID)
}

// Stop cancels all pending banner timers
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for id, b := range d.banners {
		b.timer.Stop()
		delete(d.banners, id)
	}
}
