package allowlist

import (
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
)

type grant struct {
	origin    string
	expiresAt time.Time
	timer     *time.Timer
}

// TemporaryAllowList is the short-lived bypass set consulted by the gate
// when the user explicitly proceeds past a block. Each grant schedules its
// own deletion; an entry is gone from the set by its deadline even if
// nothing ever looks it up again.
type TemporaryAllowList struct {
	grants map[string]*grant
	mu     sync.Mutex
	ttl    time.Duration
	logger *zap.Logger
}

// New creates a new temporary allow-list with the given grant lifetime
func New(ttl time.Duration, logger *zap.Logger) *TemporaryAllowList {
	return &TemporaryAllowList{
		grants: make(map[string]*grant),
		ttl:    ttl,
		logger: logger,
	}
}

// Grant records a bypass for a URL. Granting the same URL again resets
// its expiry.
func (l *TemporaryAllowList) Grant(rawURL string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.grants[rawURL]; ok {
		existing.timer.Stop()
	}

	g := &grant{
		origin:    originOf(rawURL),
		expiresAt: time.Now().Add(l.ttl),
	}
	g.timer = time.AfterFunc(l.ttl, func() {
		l.expire(rawURL)
	})
	l.grants[rawURL] = g

	l.logger.Info("Temporary allow granted",
		zap.String("url", rawURL),
		zap.Duration("ttl", l.ttl))
}

// Allowed reports whether a URL matches an unexpired grant, by exact URL
// or by origin equality to tolerate query and fragment variation.
func (l *TemporaryAllowList) Allowed(rawURL string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if g, ok := l.grants[rawURL]; ok && now.Before(g.expiresAt) {
		return true
	}

	origin := originOf(rawURL)
	if origin == "" {
		return false
	}
	for _, g := range l.grants {
		if g.origin == origin && now.Before(g.expiresAt) {
			return true
		}
	}
	return false
}

// Remove cancels a grant before it expires
func (l *TemporaryAllowList) Remove(rawURL string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if g, ok := l.grants[rawURL]; ok {
		g.timer.Stop()
		delete(l.grants, rawURL)
	}
}

// Len reports the number of live grants
func (l *TemporaryAllowList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.grants)
}

// Stop cancels all pending expiry timers
func (l *TemporaryAllowList) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, g := range l.grants {
		g.timer.Stop()
		delete(l.grants, key)
	}
}

// expire is the scheduled deletion for one grant
func (l *TemporaryAllowList) expire(rawURL string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.grants, rawURL)
	l.logger.Debug("Temporary allow expired", zap.String("url", rawURL))
}

// originOf returns the scheme+host+port origin of a URL, or "" when the
// URL cannot be parsed
func originOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
