package phishapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/phishguard/phishguard/internal/adapters/cache"
	"github.com/phishguard/phishguard/internal/config"
	"github.com/phishguard/phishguard/internal/core"
	"github.com/phishguard/phishguard/internal/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testSettings struct {
	settings core.Settings
}

func (s *testSettings) Snapshot() core.Settings { return s.settings }

type clientFixture struct {
	client   *Client
	cache    *cache.MemoryCache
	stats    *stats.Collector
	settings *testSettings
}

func newClientFixture(t *testing.T, baseURL string, timeout time.Duration) *clientFixture {
	t.Helper()
	resultCache := cache.NewMemoryCache(zap.NewNop(), 5*time.Minute, time.Hour, 1000)
	t.Cleanup(resultCache.Stop)

	collector := stats.NewCollector()
	provider := &testSettings{settings: core.DefaultSettings()}

	client := NewClient(config.APIConfig{
		DevURL:         "http://localhost:8000",
		ProdURL:        baseURL,
		RequestTimeout: timeout,
	}, resultCache, provider, collector, zap.NewNop())

	return &clientFixture{
		client:   client,
		cache:    resultCache,
		stats:    collector,
		settings: provider,
	}
}

func TestClassify_FetchesAndCaches(t *testing.T) {
	requests := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/predict", r.URL.Path)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var payload map[string]string
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.Equal(t, "https://bank-login-verify.xyz/secure", payload["url"])

		w.Header().Set("Content-Type", "application/json")
		// Mixed-case risk level must be normalized at the boundary
		io.WriteString(w, `{"is_phishing":true,"confidence":0.91,"risk_level":"CRITICAL","is_popular_domain":false,"recommendation":"Potential phishing threat detected."}`)
	}))
	defer ts.Close()

	fx := newClientFixture(t, ts.URL, 5*time.Second)

	result, err := fx.client.Classify(context.Background(), "https://bank-login-verify.xyz/secure")
	require.NoError(t, err)
	assert.True(t, result.IsPhishing)
	assert.Equal(t, core.RiskCritical, result.RiskLevel)
	assert.InDelta(t, 0.91, result.Confidence, 1e-9)

	// Second lookup within the validity window is a cache hit: no network
	// call, no second totalAnalyzed increment
	again, err := fx.client.Classify(context.Background(), "https://bank-login-verify.xyz/secure")
	require.NoError(t, err)
	assert.Equal(t, result, again)
	assert.Equal(t, 1, requests)
	assert.Equal(t, uint64(1), fx.stats.Snapshot().TotalAnalyzed)
}

func TestClassify_NonOKStatusIsError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, "model not initialized")
	}))
	defer ts.Close()

	fx := newClientFixture(t, ts.URL, 5*time.Second)

	_, err := fx.client.Classify(context.Background(), "https://a.example/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "model not initialized")

	lastError := fx.stats.Snapshot().LastError
	require.NotNil(t, lastError)
	assert.Equal(t, "https://a.example/", lastError.URL)
	assert.Equal(t, uint64(0), fx.stats.Snapshot().TotalAnalyzed)
}

func TestClassify_TimeoutIsDistinct(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer ts.Close()

	fx := newClientFixture(t, ts.URL, 20*time.Millisecond)

	_, err := fx.client.Classify(context.Background(), "https://slow.example/")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequestTimeout)
}

func TestClassify_MalformedBodyIsError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "not json")
	}))
	defer ts.Close()

	fx := newClientFixture(t, ts.URL, 5*time.Second)

	_, err := fx.client.Classify(context.Background(), "https://a.example/")
	require.Error(t, err)
	assert.NotNil(t, fx.stats.Snapshot().LastError)
}

func TestBaseURL_Resolution(t *testing.T) {
	fx := newClientFixture(t, "https://prod.example", 5*time.Second)

	// Default: production fallback
	assert.Equal(t, "https://prod.example", fx.client.BaseURL())

	// Explicit override wins over production
	fx.settings.settings.APIURL = "https://override.example"
	assert.Equal(t, "https://override.example", fx.client.BaseURL())

	// Dev mode always wins
	fx.settings.settings.DevMode = true
	assert.Equal(t, "http://localhost:8000", fx.client.BaseURL())
}

func TestEndpoint_TrimsTrailingSlash(t *testing.T) {
	fx := newClientFixture(t, "https://prod.example/", 5*time.Second)

	assert.Equal(t, "https://prod.example/predict", fx.client.endpoint("/predict"))
}

func TestExplain(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict/explain", r.URL.Path)
		io.WriteString(w, `{"reasoning":"suspicious hyphenated brand name"}`)
	}))
	defer ts.Close()

	fx := newClientFixture(t, ts.URL, 5*time.Second)

	explanation, err := fx.client.Explain(context.Background(), "https://bank-login-verify.xyz/")
	require.NoError(t, err)
	assert.Equal(t, "suspicious hyphenated brand name", explanation.Reasoning)
}

func TestExplain_InBandError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"error":"model unavailable"}`)
	}))
	defer ts.Close()

	fx := newClientFixture(t, ts.URL, 5*time.Second)

	_, err := fx.client.Explain(context.Background(), "https://a.example/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model unavailable")
}

func TestHealth(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/health", r.URL.Path)
		io.WriteString(w, `{"status":"healthy","model_version":"1.0.0"}`)
	}))
	defer ts.Close()

	fx := newClientFixture(t, ts.URL, 5*time.Second)

	status, err := fx.client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "1.0.0", status.ModelVersion)
}
