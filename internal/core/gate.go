package core

import (
	"context"
	"net/url"
	"regexp"

	"go.uber.org/zap"
)

// Browser-internal pages, extension pages, local files and non-navigable
// schemes are never analyzed.
var internalSchemePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^chrome://`),
	regexp.MustCompile(`^chrome-extension://`),
	regexp.MustCompile(`^moz-extension://`),
	regexp.MustCompile(`^edge://`),
	regexp.MustCompile(`^about:`),
	regexp.MustCompile(`^file://`),
	regexp.MustCompile(`^data:`),
	regexp.MustCompile(`^javascript:`),
	regexp.MustCompile(`^blob:`),
}

// NavigationGate is the decision engine mapping a navigating URL to one of
// skip/allow/warn/block. It is invoked twice per navigation: before the
// navigation commits (blocking pass) and after the page loads (badge pass).
type NavigationGate struct {
	classifier Classifier
	allowList  AllowList
	settings   SettingsProvider
	whitelist  WhitelistChecker
	dispatcher Dispatcher
	logger     *zap.Logger
}

// NewNavigationGate creates a new navigation gate
func NewNavigationGate(
	classifier Classifier,
	allowList AllowList,
	settings SettingsProvider,
	whitelist WhitelistChecker,
	dispatcher Dispatcher,
	logger *zap.Logger,
) *NavigationGate {
	return &NavigationGate{
		classifier: classifier,
		allowList:  allowList,
		settings:   settings,
		whitelist:  whitelist,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// shouldSkip reports whether a URL is excluded from analysis entirely:
// unparsable input, an unexpired temporary allow grant, an internal scheme,
// or a whitelisted domain.
func (g *NavigationGate) shouldSkip(rawURL string) bool {
	if rawURL == "" {
		return true
	}

	if g.allowList.Allowed(rawURL) {
		g.logger.Debug("Skipping temporarily allowed URL", zap.String("url", rawURL))
		return true
	}

	for _, pattern := range internalSchemePatterns {
		if pattern.MatchString(rawURL) {
			return true
		}
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		// Invalid input is an exclusion, not an error
		return true
	}

	return g.whitelist.IsWhitelisted(u.Hostname())
}

// EvaluateBeforeNavigate runs the blocking pass for a navigation event.
// A failed classification yields an allow verdict: the backend being
// unreachable must never trap the user on a blocked pipeline.
func (g *NavigationGate) EvaluateBeforeNavigate(ctx context.Context, ev NavigationEvent) *Verdict {
	settings := g.settings.Snapshot()
	if ev.FrameID != 0 || !settings.Enabled {
		return &Verdict{Decision: DecisionSkip}
	}
	if g.shouldSkip(ev.URL) {
		return &Verdict{Decision: DecisionSkip}
	}

	// A fresh main-frame navigation invalidates any banner or badge shown
	// for the context's previous page.
	g.dispatcher.ClearContext(ev.ContextID)

	g.logger.Debug("Checking navigation",
		zap.String("domain", ExtractDomain(ev.URL)),
		zap.String("context_id", ev.ContextID))

	result, err := g.classifier.Classify(ctx, ev.URL)
	if err != nil {
		g.logger.Warn("Classification failed, allowing navigation",
			zap.String("url", ev.URL),
			zap.Error(err))
		return &Verdict{Decision: DecisionAllow}
	}

	return g.decide(ctx, ev, result)
}

// EvaluateOnLoad runs the badge-only pass after a page finishes loading.
// It shares the blocking pass's exclusions and classification (normally a
// cache hit by this point) but its only side effect is the indicator.
func (g *NavigationGate) EvaluateOnLoad(ctx context.Context, ev NavigationEvent) (BadgeState, *ClassificationResult) {
	settings := g.settings.Snapshot()
	if ev.FrameID != 0 || !settings.Enabled {
		return BadgeNone, nil
	}
	if g.shouldSkip(ev.URL) {
		return BadgeNone, nil
	}

	result, err := g.classifier.Classify(ctx, ev.URL)
	if err != nil {
		return BadgeNone, nil
	}

	g.dispatcher.UpdateBadge(ev.ContextID, result)
	return BadgeFor(result), result
}

// decide maps a classification result to a verdict and dispatches its
// side effects. Evaluated in order: auto-block for phishing, delayed warn
// for suspicious-but-not-phishing, silent allow otherwise.
func (g *NavigationGate) decide(ctx context.Context, ev NavigationEvent, result *ClassificationResult) *Verdict {
	settings := g.settings.Snapshot()

	if result.IsPhishing && settings.AutoBlock {
		redirect := g.dispatcher.Block(ctx, ev, result)
		return &Verdict{
			Decision:    DecisionBlock,
			Result:      result,
			RedirectURL: redirect,
		}
	}

	if !result.IsPhishing && (result.RiskLevel == RiskMedium || result.RiskLevel == RiskHigh) {
		g.dispatcher.Warn(ev, result)
		return &Verdict{Decision: DecisionWarn, Result: result}
	}

	return &Verdict{Decision: DecisionAllow, Result: result}
}
