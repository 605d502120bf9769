package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/eks-aiops/eks-devops-agent/internal/workflow"
)

// InsightGateway calls the metrics query gateway's natural-language API.
// It implements workflow.MetricsQuerier.
type InsightGateway struct {
	baseURL     string
	clusterName string
	httpClient  *http.Client
	logger      *zap.Logger
}

func NewInsightGateway(baseURL, clusterName string, timeout time.Duration, logger *zap.Logger) *InsightGateway {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InsightGateway{
		baseURL:     baseURL,
		clusterName: clusterName,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

type gatewayQueryRequest struct {
	Query   string            `json:"query"`
	Context map[string]string `json:"context,omitempty"`
}

type gatewayQueryResponse struct {
	Success     bool   `json:"success"`
	PromQLQuery string `json:"promql_query"`
	Data        *struct {
		Current         float64  `json:"current_value"`
		Min             float64  `json:"min_value"`
		Max             float64  `json:"max_value"`
		Average         float64  `json:"average_value"`
		Trend           string   `json:"trend"`
		ThrottlingRatio float64  `json:"throttling_ratio"`
		Anomalies       []string `json:"anomalies"`
	} `json:"data"`
	Insights []string `json:"insights"`
	Error    string   `json:"error"`
}

// QueryMetrics asks the gateway a natural-language question. Transport
// errors are retried once; if the gateway stays unreachable a fallback
// summary is returned so investigations degrade instead of aborting.
func (g *InsightGateway) QueryMetrics(ctx context.Context, query string) (*workflow.MetricsSummary, error) {
	resp, err := g.post(ctx, query)
	if err != nil {
		g.logger.Warn("gateway query failed, retrying once",
			zap.String("query", query), zap.Error(err))
		if resp, err = g.post(ctx, query); err != nil {
			g.logger.Warn("gateway unreachable, using fallback summary", zap.Error(err))
			return fallbackSummary(), nil
		}
	}

	summary := &workflow.MetricsSummary{
		Success:  resp.Success,
		PromQL:   resp.PromQLQuery,
		Insights: resp.Insights,
		Trend:    "unknown",
	}
	if !resp.Success {
		g.logger.Info("gateway could not translate query",
			zap.String("query", query), zap.String("error", resp.Error))
		return summary, nil
	}
	if resp.Data != nil {
		summary.Current = resp.Data.Current
		summary.Min = resp.Data.Min
		summary.Max = resp.Data.Max
		summary.Average = resp.Data.Average
		summary.Trend = resp.Data.Trend
		summary.ThrottlingRatio = resp.Data.ThrottlingRatio
		summary.Anomalies = resp.Data.Anomalies
	}
	return summary, nil
}

// PodMetrics summarizes one resource metric ("memory", "cpu") for a pod
// over the trailing hour.
func (g *InsightGateway) PodMetrics(ctx context.Context, pod, metric string) (*workflow.MetricsSummary, error) {
	return g.QueryMetrics(ctx, fmt.Sprintf("%s usage for pod %s over the last hour", metric, pod))
}

// ServiceMetrics summarizes the request rate for a service.
func (g *InsightGateway) ServiceMetrics(ctx context.Context, service string) (*workflow.MetricsSummary, error) {
	return g.QueryMetrics(ctx, fmt.Sprintf("request rate for service %s", service))
}

// NodeMetrics summarizes CPU usage for a node over the trailing hour.
func (g *InsightGateway) NodeMetrics(ctx context.Context, node string) (*workflow.MetricsSummary, error) {
	return g.QueryMetrics(ctx, fmt.Sprintf("cpu usage for node %s over the last hour", node))
}

func (g *InsightGateway) post(ctx context.Context, query string) (*gatewayQueryResponse, error) {
	payload, err := json.Marshal(gatewayQueryRequest{
		Query:   query,
		Context: map[string]string{"cluster_name": g.clusterName},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+"/api/v1/query", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 500 {
		return nil, fmt.Errorf("gateway returned HTTP %d", httpResp.StatusCode)
	}

	var resp gatewayQueryResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}
	return &resp, nil
}

// fallbackSummary is what steps see when the gateway is down: a marked
// failure with no data, which keeps the workflow running.
func fallbackSummary() *workflow.MetricsSummary {
	return &workflow.MetricsSummary{
		Success:  false,
		Trend:    "unknown",
		Insights: []string{"Unable to generate insights"},
	}
}
