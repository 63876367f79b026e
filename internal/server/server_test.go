package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/phishguard/phishguard/internal/adapters/cache"
	"github.com/phishguard/phishguard/internal/adapters/storage"
	"github.com/phishguard/phishguard/internal/allowlist"
	"github.com/phishguard/phishguard/internal/core"
	"github.com/phishguard/phishguard/internal/dispatch"
	"github.com/phishguard/phishguard/internal/settings"
	"github.com/phishguard/phishguard/internal/stats"
	"github.com/phishguard/phishguard/internal/whitelist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// scriptedClassifier serves canned results per URL, recording call counts
type scriptedClassifier struct {
	results map[string]*core.ClassificationResult
	calls   int
}

func (c *scriptedClassifier) Classify(ctx context.Context, url string) (*core.ClassificationResult, error) {
	c.calls++
	if result, ok := c.results[url]; ok {
		return result, nil
	}
	return nil, errors.New("classification unavailable")
}

func (c *scriptedClassifier) Explain(ctx context.Context, url string) (*core.Explanation, error) {
	return &core.Explanation{Reasoning: "scripted"}, nil
}

func (c *scriptedClassifier) Health(ctx context.Context) (*core.HealthStatus, error) {
	return &core.HealthStatus{Status: "healthy"}, nil
}

func (c *scriptedClassifier) BaseURL() string { return "https://api.example" }

type serverFixture struct {
	server     *Server
	classifier *scriptedClassifier
	store      *storage.MemoryStore
	stats      *stats.Collector
	allowList  *allowlist.TemporaryAllowList
	cache      *cache.MemoryCache
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	logger := zap.NewNop()
	store := storage.NewMemoryStore(100)
	settingsMgr := settings.NewManager(store, logger)
	require.NoError(t, settingsMgr.Load(context.Background()))

	collector := stats.NewCollector()
	resultCache := cache.NewMemoryCache(logger, 5*time.Minute, time.Hour, 1000)
	t.Cleanup(resultCache.Stop)
	allowList := allowlist.New(30*time.Second, logger)
	t.Cleanup(allowList.Stop)

	dispatcher := dispatch.NewDispatcher(collector, store, settingsMgr, "/blocked", time.Millisecond, logger)
	t.Cleanup(dispatcher.Stop)

	classifier := &scriptedClassifier{results: map[string]*core.ClassificationResult{}}
	gate := core.NewNavigationGate(
		classifier,
		allowList,
		settingsMgr,
		whitelist.NewChecker(settingsMgr, logger),
		dispatcher,
		logger,
	)

	srv := New(gate, classifier, resultCache, allowList, settingsMgr, collector, store, dispatcher, "127.0.0.1:0", logger)
	return &serverFixture{
		server:     srv,
		classifier: classifier,
		store:      store,
		stats:      collector,
		allowList:  allowList,
		cache:      resultCache,
	}
}

func (fx *serverFixture) post(t *testing.T, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	fx.server.Router().ServeHTTP(rec, req)
	return rec
}

func (fx *serverFixture) message(t *testing.T, msg Message) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := fx.post(t, "/v1/message", msg)
	var decoded map[string]any
	if rec.Body.Len() > 0 && rec.Body.String() != "null" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestBeforeNavigate_BlocksPhishing(t *testing.T) {
	fx := newServerFixture(t)
	fx.classifier.results["https://bank-login-verify.xyz/secure"] = &core.ClassificationResult{
		IsPhishing: true,
		Confidence: 0.91,
		RiskLevel:  core.RiskCritical,
	}

	rec := fx.post(t, "/v1/navigation/before", core.NavigationEvent{
		URL:       "https://bank-login-verify.xyz/secure",
		ContextID: "tab-1",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var verdict core.Verdict
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &verdict))
	assert.Equal(t, core.DecisionBlock, verdict.Decision)
	assert.Contains(t, verdict.RedirectURL, "/blocked?")
	assert.Contains(t, verdict.RedirectURL, "risk=critical")

	// A history entry was appended and the counter moved
	entries, err := fx.store.History(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, uint64(1), fx.stats.Snapshot().PhishingBlocked)
}

func TestBeforeNavigate_FailsOpenOnClassifierError(t *testing.T) {
	fx := newServerFixture(t)

	rec := fx.post(t, "/v1/navigation/before", core.NavigationEvent{
		URL:       "https://unknown.example/",
		ContextID: "tab-1",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var verdict core.Verdict
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &verdict))
	assert.Equal(t, core.DecisionAllow, verdict.Decision)
}

func TestBeforeNavigate_TemporaryAllowBypassesGate(t *testing.T) {
	fx := newServerFixture(t)
	fx.classifier.results["https://bad.example/page"] = &core.ClassificationResult{
		IsPhishing: true,
		RiskLevel:  core.RiskCritical,
	}

	rec, _ := fx.message(t, Message{Action: ActionTemporarilyAllow, URL: "https://bad.example/page"})
	require.Equal(t, http.StatusOK, rec.Code)

	// Same origin, different query: still bypassed, no API call, no re-block
	rec = fx.post(t, "/v1/navigation/before", core.NavigationEvent{
		URL:       "https://bad.example/page?retry=1",
		ContextID: "tab-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var verdict core.Verdict
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &verdict))
	assert.Equal(t, core.DecisionSkip, verdict.Decision)
	assert.Zero(t, fx.classifier.calls)
}

func TestNavigationComplete_ReportsBadge(t *testing.T) {
	fx := newServerFixture(t)
	fx.classifier.results["https://news.example.com/"] = &core.ClassificationResult{
		IsPhishing: false,
		Confidence: 0.2,
		RiskLevel:  core.RiskLow,
	}

	rec := fx.post(t, "/v1/navigation/complete", core.NavigationEvent{
		URL:       "https://news.example.com/",
		ContextID: "tab-1",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Badge core.BadgeState `json:"badge"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, core.BadgeSafe, resp.Badge)

	// Safe navigations leave no history
	entries, err := fx.store.History(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestContextBadge_RefreshesFromCache(t *testing.T) {
	fx := newServerFixture(t)
	fx.cache.Put("https://odd.example/", &core.ClassificationResult{RiskLevel: core.RiskHigh})

	req := httptest.NewRequest(http.MethodGet, "/v1/contexts/tab-9/badge?url=https%3A%2F%2Fodd.example%2F", nil)
	rec := httptest.NewRecorder()
	fx.server.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Badge core.BadgeState `json:"badge"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, core.BadgeCaution, resp.Badge)
}

func TestMessage_UnknownActionRejected(t *testing.T) {
	fx := newServerFixture(t)

	rec, decoded := fx.message(t, Message{Action: "selfDestruct"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decoded["error"], "unknown action")
}

func TestMessage_GetStatsShape(t *testing.T) {
	fx := newServerFixture(t)
	fx.cache.Put("https://a.example/", &core.ClassificationResult{RiskLevel: core.RiskSafe})

	rec, decoded := fx.message(t, Message{Action: ActionGetStats})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decoded["totalAnalyzed"])
	assert.Equal(t, float64(1), decoded["cacheSize"])
	assert.Equal(t, true, decoded["enabled"])
	assert.Contains(t, decoded, "lastError")
}

func TestMessage_WhitelistLifecycle(t *testing.T) {
	fx := newServerFixture(t)

	rec, _ := fx.message(t, Message{Action: ActionAddToWhitelist, Domain: "example.com"})
	require.Equal(t, http.StatusOK, rec.Code)

	// Whitelisted navigations skip the classifier
	navRec := fx.post(t, "/v1/navigation/before", core.NavigationEvent{
		URL: "https://sub.example.com/", ContextID: "tab-1",
	})
	var verdict core.Verdict
	require.NoError(t, json.Unmarshal(navRec.Body.Bytes(), &verdict))
	assert.Equal(t, core.DecisionSkip, verdict.Decision)
	assert.Zero(t, fx.classifier.calls)

	rec, decoded := fx.message(t, Message{Action: ActionGetSettings})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"example.com"}, decoded["whitelist"])

	rec, _ = fx.message(t, Message{Action: ActionRemoveFromWhitelist, Domain: "example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	_, decoded = fx.message(t, Message{Action: ActionGetSettings})
	assert.Empty(t, decoded["whitelist"])
}

func TestMessage_UpdateSettingsPersists(t *testing.T) {
	fx := newServerFixture(t)

	enabled := false
	rec, decoded := fx.message(t, Message{
		Action:   ActionUpdateSettings,
		Settings: &core.SettingsPatch{Enabled: &enabled},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decoded["success"])

	persisted, err := fx.store.LoadSettings(context.Background())
	require.NoError(t, err)
	assert.False(t, persisted.Enabled)
}

func TestMessage_ClearCache(t *testing.T) {
	fx := newServerFixture(t)
	fx.cache.Put("https://a.example/", &core.ClassificationResult{RiskLevel: core.RiskSafe})

	rec, decoded := fx.message(t, Message{Action: ActionClearCache})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decoded["success"])
	assert.Equal(t, 0, fx.cache.Len())
}

func TestMessage_HistoryLifecycle(t *testing.T) {
	fx := newServerFixture(t)
	require.NoError(t, fx.store.AppendHistory(context.Background(), &core.BlockedHistoryEntry{
		URL: "https://bad.example/", Domain: "bad.example", Timestamp: time.Now(), RiskLevel: core.RiskHigh,
	}))

	rec := fx.post(t, "/v1/message", Message{Action: ActionGetHistory})
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []core.BlockedHistoryEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "bad.example", entries[0].Domain)

	rec, _ = fx.message(t, Message{Action: ActionClearHistory})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = fx.post(t, "/v1/message", Message{Action: ActionGetHistory})
	entries = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.Empty(t, entries)
}

func TestMessage_AnalyzeCurrentTab(t *testing.T) {
	fx := newServerFixture(t)
	fx.classifier.results["https://current.example/"] = &core.ClassificationResult{
		IsPhishing: false,
		RiskLevel:  core.RiskLow,
	}

	rec, decoded := fx.message(t, Message{Action: ActionAnalyzeCurrentTab, URL: "https://current.example/"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "low", decoded["risk_level"])

	// No URL supplied: null response, matching the no-active-tab case
	rec, decoded = fx.message(t, Message{Action: ActionAnalyzeCurrentTab})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decoded)
}

func TestMessage_TestAPIAndGetAPIURL(t *testing.T) {
	fx := newServerFixture(t)

	rec, decoded := fx.message(t, Message{Action: ActionTestAPI})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decoded["success"])

	rec, decoded = fx.message(t, Message{Action: ActionGetAPIURL})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://api.example", decoded["url"])
}
