// Package promql executes PromQL queries against a remote Prometheus
// compatible store (Amazon Managed Prometheus in production) and reduces
// the responses to a compact summary block.
package promql

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// DefaultStep is the range-query resolution used when none is configured.
const DefaultStep = "15s"

// Client executes signed queries against one Prometheus workspace.
type Client struct {
	baseURL    string
	httpClient *http.Client
	signer     RequestSigner
	logger     *zap.Logger
}

// ClientConfig configures a Client.
type ClientConfig struct {
	// Region and WorkspaceID locate an Amazon Managed Prometheus
	// workspace; ignored when BaseURL is set.
	Region      string
	WorkspaceID string

	// BaseURL overrides the workspace URL, e.g. for a self-hosted
	// Prometheus or a test server. Must not include the /api/v1 suffix.
	BaseURL string

	// Signer authenticates requests; defaults to NopSigner.
	Signer RequestSigner

	// Timeout for each query; defaults to 30s.
	Timeout time.Duration

	Logger *zap.Logger
}

// NewClient creates a Prometheus query client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://aps-workspaces.%s.amazonaws.com/workspaces/%s", cfg.Region, cfg.WorkspaceID)
	}

	signer := cfg.Signer
	if signer == nil {
		signer = NopSigner{}
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		signer:     signer,
		logger:     logger,
	}
}

// QueryRange executes a range query over the trailing window described by
// timeRange (e.g. "1h", "30m") ending now, at the given step resolution.
func (c *Client) QueryRange(ctx context.Context, query, timeRange, step string) (*Stats, error) {
	if step == "" {
		step = DefaultStep
	}

	end := time.Now().UTC()
	start := end.Add(-ParseTimeRange(timeRange))

	params := url.Values{}
	params.Set("query", query)
	params.Set("start", strconv.FormatInt(start.Unix(), 10))
	params.Set("end", strconv.FormatInt(end.Unix(), 10))
	params.Set("step", step)

	body, err := c.get(ctx, "/api/v1/query_range", params)
	if err != nil {
		return nil, err
	}

	return parseRangeResponse(body)
}

// Query executes an instant query. A zero time means "now".
func (c *Client) Query(ctx context.Context, query string, at time.Time) (*Stats, error) {
	params := url.Values{}
	params.Set("query", query)
	if !at.IsZero() {
		params.Set("time", strconv.FormatInt(at.Unix(), 10))
	}

	body, err := c.get(ctx, "/api/v1/query", params)
	if err != nil {
		return nil, err
	}

	return parseInstantResponse(body)
}

// DiscoverMetrics lists the metric names known to the store.
func (c *Client) DiscoverMetrics(ctx context.Context) ([]string, error) {
	body, err := c.get(ctx, "/api/v1/label/__name__/values", nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Status string   `json:"status"`
		Data   []string `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode metric names: %w", err)
	}

	return resp.Data, nil
}

// get issues a signed GET and returns the body of a 2xx response.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	if err := c.signer.Sign(ctx, req); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("prometheus query rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("path", path))
		return nil, fmt.Errorf("query failed: HTTP %d", resp.StatusCode)
	}

	return body, nil
}
