package core

import (
	"context"
	"errors"
)

// ErrSettingsNotFound is returned by a Store when no settings have been persisted yet
var ErrSettingsNotFound = errors.New("no persisted settings found")

// Classifier defines the interface for the remote classification service
type Classifier interface {
	// Classify resolves a risk assessment for a URL, from cache or the network
	Classify(ctx context.Context, url string) (*ClassificationResult, error)

	// Explain asks the service for human-readable reasoning about a URL
	Explain(ctx context.Context, url string) (*Explanation, error)

	// Health probes the service's health endpoint
	Health(ctx context.Context) (*HealthStatus, error)

	// BaseURL reports the currently effective API base URL
	BaseURL() string
}

// ResultCache defines the interface for the time-bounded result cache
type ResultCache interface {
	// Get returns a result if present and still within its validity window
	Get(url string) (*ClassificationResult, bool)

	// Put inserts or overwrites a result
	Put(url string, result *ClassificationResult)

	// Clear empties the cache
	Clear()

	// Len reports the number of entries, including not-yet-swept expired ones
	Len() int
}

// AllowList defines the interface for the temporary user bypass set
type AllowList interface {
	// Grant records a short-lived bypass for a URL
	Grant(url string)

	// Allowed reports whether a URL is covered by an unexpired grant,
	// matching by exact URL or by origin
	Allowed(url string) bool

	// Remove cancels a grant before it expires
	Remove(url string)
}

// SettingsProvider exposes a consistent read of the current settings
type SettingsProvider interface {
	Snapshot() Settings
}

// WhitelistChecker reports whether a hostname is exempt from analysis
type WhitelistChecker interface {
	IsWhitelisted(hostname string) bool
}

// Dispatcher executes gate decisions and their side effects
type Dispatcher interface {
	// Block records a blocked navigation and returns the block-page URL
	Block(ctx context.Context, ev NavigationEvent, result *ClassificationResult) string

	// Warn schedules a warning banner for a context after the warn delay
	Warn(ev NavigationEvent, result *ClassificationResult)

	// UpdateBadge sets the visual indicator for a context
	UpdateBadge(contextID string, result *ClassificationResult)

	// ClearContext drops banner and badge state when a context navigates away
	ClearContext(contextID string)
}

// Store defines the interface for persisted settings and blocked history
type Store interface {
	// LoadSettings returns the persisted settings, or ErrSettingsNotFound
	LoadSettings(ctx context.Context) (*Settings, error)

	// SaveSettings persists the full settings object
	SaveSettings(ctx context.Context, settings Settings) error

	// AppendHistory prepends a blocked-history entry, dropping the oldest
	// beyond the configured cap
	AppendHistory(ctx context.Context, entry *BlockedHistoryEntry) error

	// History returns blocked entries, newest first
	History(ctx context.Context) ([]*BlockedHistoryEntry, error)

	// ClearHistory removes all blocked entries
	ClearHistory(ctx context.Context) error

	// Close releases any underlying resources
	Close() error
}
