package core

import (
	"net/url"
	"strings"
	"time"
)

// RiskLevel is the coarse severity label returned by the classification API.
// It is normalized to lower case exactly once, when a response is decoded;
// everything downstream compares against the constants below.
type RiskLevel string

const (
	RiskSafe     RiskLevel = "safe"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// ParseRiskLevel normalizes a wire-format risk level. Unknown values collapse
// to medium, matching the API's own coercion of out-of-vocabulary labels.
func ParseRiskLevel(s string) RiskLevel {
	switch RiskLevel(strings.ToLower(strings.TrimSpace(s))) {
	case RiskSafe:
		return RiskSafe
	case RiskLow:
		return RiskLow
	case RiskMedium:
		return RiskMedium
	case RiskHigh:
		return RiskHigh
	case RiskCritical:
		return RiskCritical
	default:
		return RiskMedium
	}
}

// ClassificationResult represents the outcome of analyzing one URL.
// RiskLevel and IsPhishing are set independently by the remote service and
// may disagree; the gate handles both signals explicitly.
type ClassificationResult struct {
	IsPhishing      bool      `json:"is_phishing"`
	Confidence      float64   `json:"confidence"`
	RiskLevel       RiskLevel `json:"risk_level"`
	IsPopularDomain bool      `json:"is_popular_domain"`
	Recommendation  string    `json:"recommendation"`
}

// Explanation is the human-readable reasoning for a classification
type Explanation struct {
	Reasoning string `json:"reasoning"`
}

// HealthStatus represents the classification API's health response
type HealthStatus struct {
	Status       string `json:"status"`
	ModelVersion string `json:"model_version,omitempty"`
}

// Decision is the gate's verdict for one navigation event
type Decision string

const (
	DecisionSkip  Decision = "skip"
	DecisionAllow Decision = "allow"
	DecisionWarn  Decision = "warn"
	DecisionBlock Decision = "block"
)

// BadgeState is the three-state visual indicator for a browsing context
type BadgeState string

const (
	BadgeNone    BadgeState = "none"
	BadgeSafe    BadgeState = "safe"
	BadgeCaution BadgeState = "caution"
	BadgeDanger  BadgeState = "danger"
)

// BadgeFor maps a classification result to a badge state
func BadgeFor(result *ClassificationResult) BadgeState {
	switch {
	case result == nil:
		return BadgeNone
	case result.IsPhishing:
		return BadgeDanger
	case result.RiskLevel == RiskMedium || result.RiskLevel == RiskHigh:
		return BadgeCaution
	default:
		return BadgeSafe
	}
}

// NavigationEvent describes one navigation of a browsing context.
// FrameID zero is the main frame; sub-frame navigations are never gated.
type NavigationEvent struct {
	URL       string `json:"url"`
	ContextID string `json:"context_id"`
	FrameID   int    `json:"frame_id"`
}

// Verdict is the gate's decision for a navigation, plus what the caller
// needs to execute it
type Verdict struct {
	Decision    Decision              `json:"decision"`
	Result      *ClassificationResult `json:"result,omitempty"`
	RedirectURL string                `json:"redirect_url,omitempty"`
}

// Settings is the process-wide configuration persisted across restarts
type Settings struct {
	Enabled    bool     `json:"enabled"`
	AutoBlock  bool     `json:"autoBlock"`
	Whitelist  []string `json:"whitelist"`
	APIURL     string   `json:"apiUrl"`
	DevMode    bool     `json:"devMode"`
	StrictMode bool     `json:"strictMode"`
	LogHistory bool     `json:"logHistory"`
}

// DefaultSettings returns the settings used before any user configuration
func DefaultSettings() Settings {
	return Settings{
		Enabled:    true,
		AutoBlock:  true,
		Whitelist:  []string{},
		APIURL:     "",
		DevMode:    false,
		StrictMode: false,
		LogHistory: true,
	}
}

// SettingsPatch is a partial settings update. Nil fields are left unchanged;
// provided fields win last-write-wins.
type SettingsPatch struct {
	Enabled    *bool     `json:"enabled,omitempty"`
	AutoBlock  *bool     `json:"autoBlock,omitempty"`
	Whitelist  *[]string `json:"whitelist,omitempty"`
	APIURL     *string   `json:"apiUrl,omitempty"`
	DevMode    *bool     `json:"devMode,omitempty"`
	StrictMode *bool     `json:"strictMode,omitempty"`
	LogHistory *bool     `json:"logHistory,omitempty"`
}

// AnalysisError records the most recent classification failure
type AnalysisError struct {
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
	URL     string    `json:"url"`
}

// AnalysisStats are session counters, reset only on process restart
type AnalysisStats struct {
	TotalAnalyzed   uint64         `json:"totalAnalyzed"`
	PhishingBlocked uint64         `json:"phishingBlocked"`
	WarningsShown   uint64         `json:"warningsShown"`
	SessionStart    time.Time      `json:"sessionStart"`
	LastError       *AnalysisError `json:"lastError"`
}

// BlockedHistoryEntry records one blocked navigation
type BlockedHistoryEntry struct {
	URL        string    `json:"url"`
	Domain     string    `json:"domain"`
	Timestamp  time.Time `json:"timestamp"`
	Confidence float64   `json:"confidence"`
	RiskLevel  RiskLevel `json:"riskLevel"`
}

// ExtractDomain returns the hostname of a URL for display, or the raw input
// when it cannot be parsed
func ExtractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return rawURL
	}
	return u.Hostname()
}
