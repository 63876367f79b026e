package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/phishguard/phishguard/internal/core"
)

// Action is the closed set of control-plane message actions. The dispatch
// switch below matches every constant; an out-of-vocabulary action is the
// only runtime default, kept at the wire boundary.
type Action string

const (
	ActionGetStats            Action = "getStats"
	ActionGetSettings         Action = "getSettings"
	ActionUpdateSettings      Action = "updateSettings"
	ActionAnalyzeCurrentTab   Action = "analyzeCurrentTab"
	ActionAddToWhitelist      Action = "addToWhitelist"
	ActionRemoveFromWhitelist Action = "removeFromWhitelist"
	ActionGetHistory          Action = "getHistory"
	ActionClearHistory        Action = "clearHistory"
	ActionClearCache          Action = "clearCache"
	ActionTestAPI             Action = "testApi"
	ActionTemporarilyAllow    Action = "temporarilyAllow"
	ActionExplainURL          Action = "explainUrl"
	ActionGetAPIURL           Action = "getApiUrl"
)

// ErrUnknownAction is returned for actions outside the closed set
var ErrUnknownAction = errors.New("unknown action")

// Message is one action-keyed request from a presentation layer. Each
// message produces exactly one response.
type Message struct {
	Action   Action              `json:"action"`
	URL      string              `json:"url,omitempty"`
	Domain   string              `json:"domain,omitempty"`
	Settings *core.SettingsPatch `json:"settings,omitempty"`
}

// dispatchMessage executes one message and builds its response payload.
// testApi and explainUrl report collaborator failures in-band so the
// popup can render them; only a malformed message is an error.
func (s *Server) dispatchMessage(ctx context.Context, msg Message) (any, error) {
	switch msg.Action {
	case ActionGetStats:
		snapshot := s.stats.Snapshot()
		return gin.H{
			"totalAnalyzed":   snapshot.TotalAnalyzed,
			"phishingBlocked": snapshot.PhishingBlocked,
			"warningsShown":   snapshot.WarningsShown,
			"sessionStart":    snapshot.SessionStart,
			"lastError":       snapshot.LastError,
			"cacheSize":       s.cache.Len(),
			"enabled":         s.settings.Snapshot().Enabled,
		}, nil

	case ActionGetSettings:
		return s.settings.Snapshot(), nil

	case ActionUpdateSettings:
		if msg.Settings == nil {
			return nil, fmt.Errorf("updateSettings requires a settings payload")
		}
		s.settings.Update(ctx, *msg.Settings)
		return gin.H{"success": true}, nil

	case ActionAnalyzeCurrentTab:
		if msg.URL == "" {
			// No active tab URL supplied by the caller
			return nil, nil
		}
		result, err := s.classifier.Classify(ctx, msg.URL)
		if err != nil {
			return nil, nil
		}
		return result, nil

	case ActionAddToWhitelist:
		s.settings.AddToWhitelist(ctx, msg.Domain)
		return gin.H{"success": true}, nil

	case ActionRemoveFromWhitelist:
		s.settings.RemoveFromWhitelist(ctx, msg.Domain)
		return gin.H{"success": true}, nil

	case ActionGetHistory:
		entries, err := s.store.History(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read history: %w", err)
		}
		if entries == nil {
			entries = []*core.BlockedHistoryEntry{}
		}
		return entries, nil

	case ActionClearHistory:
		if err := s.store.ClearHistory(ctx); err != nil {
			return nil, fmt.Errorf("failed to clear history: %w", err)
		}
		return gin.H{"success": true}, nil

	case ActionClearCache:
		s.cache.Clear()
		return gin.H{"success": true, "message": "Cache cleared"}, nil

	case ActionTestAPI:
		status, err := s.classifier.Health(ctx)
		if err != nil {
			return gin.H{"success": false, "error": err.Error()}, nil
		}
		return gin.H{"success": true, "data": status}, nil

	case ActionTemporarilyAllow:
		if msg.URL == "" {
			return nil, fmt.Errorf("temporarilyAllow requires a url")
		}
		s.allowList.Grant(msg.URL)
		return gin.H{"success": true}, nil

	case ActionExplainURL:
		explanation, err := s.classifier.Explain(ctx, msg.URL)
		if err != nil {
			return gin.H{"error": err.Error()}, nil
		}
		return explanation, nil

	case ActionGetAPIURL:
		return gin.H{"url": s.classifier.BaseURL()}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, msg.Action)
	}
}
