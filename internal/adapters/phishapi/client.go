package phishapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/phishguard/phishguard/internal/config"
	"github.com/phishguard/phishguard/internal/core"
	"github.com/phishguard/phishguard/internal/stats"
	"go.uber.org/zap"
)

// ErrRequestTimeout is returned when a classification request exceeds the
// configured deadline
var ErrRequestTimeout = errors.New("classification request timed out")

// maxErrorBodyBytes caps how much of a failed response is kept for diagnostics
const maxErrorBodyBytes = 4096

// Client is an implementation of the Classifier interface against the
// phishing classification REST API. Results are served from the cache when
// fresh; only genuine network fetches increment the analyzed counter.
type Client struct {
	httpClient *http.Client
	cache      core.ResultCache
	settings   core.SettingsProvider
	stats      *stats.Collector
	devURL     string
	prodURL    string
	timeout    time.Duration
	logger     *zap.Logger
}

// predictionResponse is the wire format of POST /predict
type predictionResponse struct {
	IsPhishing      bool    `json:"is_phishing"`
	Confidence      float64 `json:"confidence"`
	RiskLevel       string  `json:"risk_level"`
	IsPopularDomain bool    `json:"is_popular_domain"`
	Recommendation  string  `json:"recommendation"`
}

// explainResponse is the wire format of POST /predict/explain
type explainResponse struct {
	Reasoning string `json:"reasoning"`
	Error     string `json:"error"`
}

// NewClient creates a new classification API client
func NewClient(
	apiCfg config.APIConfig,
	cache core.ResultCache,
	settings core.SettingsProvider,
	collector *stats.Collector,
	logger *zap.Logger,
) *Client {
	return &Client{
		httpClient: &http.Client{},
		cache:      cache,
		settings:   settings,
		stats:      collector,
		devURL:     apiCfg.DevURL,
		prodURL:    apiCfg.ProdURL,
		timeout:    apiCfg.RequestTimeout,
		logger:     logger,
	}
}

// BaseURL resolves the effective API base URL by priority: dev mode always
// wins, then the user-configured override, then the built-in production
// default (which may be empty, making requests relative).
func (c *Client) BaseURL() string {
	settings := c.settings.Snapshot()
	switch {
	case settings.DevMode:
		return c.devURL
	case settings.APIURL != "":
		return settings.APIURL
	default:
		return c.prodURL
	}
}

// endpoint joins the effective base URL with a path
func (c *Client) endpoint(path string) string {
	base := strings.TrimRight(c.BaseURL(), "/")
	return base + path
}

// Classify resolves a risk assessment for a URL. Cache first; on a miss,
// one bounded-timeout request with no retry. Failures are recorded in the
// session stats and surfaced to the caller, who is expected to fail open.
func (c *Client) Classify(ctx context.Context, rawURL string) (*core.ClassificationResult, error) {
	if cached, ok := c.cache.Get(rawURL); ok {
		c.logger.Debug("Cache hit", zap.String("domain", core.ExtractDomain(rawURL)))
		return cached, nil
	}

	result, err := c.fetchPrediction(ctx, rawURL)
	if err != nil {
		c.stats.RecordError(err.Error(), rawURL)
		c.logger.Error("Classification failed",
			zap.String("url", rawURL),
			zap.Error(err))
		return nil, err
	}

	c.cache.Put(rawURL, result)
	c.stats.RecordAnalysis()

	c.logger.Info("URL analyzed",
		zap.String("domain", core.ExtractDomain(rawURL)),
		zap.String("risk_level", string(result.RiskLevel)),
		zap.Float64("confidence", result.Confidence))

	return result, nil
}

// fetchPrediction issues the actual network call
func (c *Client) fetchPrediction(ctx context.Context, rawURL string) (*core.ClassificationResult, error) {
	body, err := c.post(ctx, "/predict", rawURL)
	if err != nil {
		return nil, err
	}

	var resp predictionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse prediction response: %w", err)
	}

	// Risk level is normalized here, at the wire boundary, and nowhere else
	return &core.ClassificationResult{
		IsPhishing:      resp.IsPhishing,
		Confidence:      resp.Confidence,
		RiskLevel:       core.ParseRiskLevel(resp.RiskLevel),
		IsPopularDomain: resp.IsPopularDomain,
		Recommendation:  resp.Recommendation,
	}, nil
}

// Explain asks the service for human-readable reasoning about a URL
func (c *Client) Explain(ctx context.Context, rawURL string) (*core.Explanation, error) {
	body, err := c.post(ctx, "/predict/explain", rawURL)
	if err != nil {
		return nil, err
	}

	var resp explainResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse explain response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("explain request rejected: %s", resp.Error)
	}

	return &core.Explanation{Reasoning: resp.Reasoning}, nil
}

// Health probes the service's health endpoint
func (c *Client) Health(ctx context.Context) (*core.HealthStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/health"), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build health request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.normalizeTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("health check failed: %s", resp.Status)
	}

	var status core.HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to parse health response: %w", err)
	}

	return &status, nil
}

// post issues a JSON POST {"url": ...} to an API path and returns the
// response body on 2xx
func (c *Client) post(ctx context.Context, path, rawURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(map[string]string{"url": rawURL})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.normalizeTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Keep a bounded slice of the body for diagnostics
		text, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		if readErr != nil {
			text = []byte(fmt.Sprintf("<could not read response: %v>", readErr))
		}
		return nil, fmt.Errorf("api error: %s - %s", resp.Status, strings.TrimSpace(string(text)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

// normalizeTransportError folds deadline and net-level timeouts into the
// distinct timed-out condition
func (c *Client) normalizeTransportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w after %s", ErrRequestTimeout, c.timeout)
	}
	return fmt.Errorf("request failed: %w", err)
}
