package whitelist

import (
	"strings"

	"github.com/phishguard/phishguard/internal/core"
	"go.uber.org/zap"
)

// Checker provides functionality to check if hostnames are whitelisted.
// The whitelist lives in the mutable settings, so the checker reads a
// fresh snapshot on every call rather than holding a fixed list.
type Checker struct {
	settings core.SettingsProvider
	logger   *zap.Logger
}

// NewChecker creates a new whitelist checker
func NewChecker(settings core.SettingsProvider, logger *zap.Logger) *Checker {
	return &Checker{
		settings: settings,
		logger:   logger,
	}
}

// IsWhitelisted checks if a hostname equals, or is a subdomain of, any
// whitelisted domain. Matching is case-insensitive.
func (c *Checker) IsWhitelisted(hostname string) bool {
	domains := c.settings.Snapshot().Whitelist
	if len(domains) == 0 {
		return false
	}

	host := strings.ToLower(strings.TrimSpace(hostname))

	for _, whitelisted := range domains {
		wl := strings.ToLower(strings.TrimSpace(whitelisted))
		if wl == "" {
			continue
		}
		if host == wl || strings.HasSuffix(host, "."+wl) {
			if c.logger != nil {
				c.logger.Debug("Hostname is whitelisted",
					zap.String("hostname", host),
					zap.String("domain", wl))
			}
			return true
		}
	}

	return false
}
