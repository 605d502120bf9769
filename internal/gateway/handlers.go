package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/eks-aiops/eks-devops-agent/pkg/promql"
)

const discoveryCacheKey = "metrics:discover"

// Context carries caller hints such as cluster_name. Translation is
// purely template based, so it is logged for traceability only.
type queryRequest struct {
	Query     string            `json:"query"`
	Context   map[string]string `json:"context,omitempty"`
	TimeRange string            `json:"time_range,omitempty"`
}

type queryResponse struct {
	Success     bool          `json:"success"`
	Query       string        `json:"query,omitempty"`
	PromQLQuery string        `json:"promql_query,omitempty"`
	TimeRange   string        `json:"time_range,omitempty"`
	Data        *promql.Stats `json:"data,omitempty"`
	Insights    []string      `json:"insights,omitempty"`
	Suggestions []string      `json:"suggestions,omitempty"`
	Error       string        `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleQuery translates a natural-language query, runs it against the
// workspace and attaches insights. A query the translator cannot handle is
// not an HTTP error: the response carries success=false with suggestions.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, queryResponse{Success: false, Error: "invalid request body"})
		return
	}
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, queryResponse{Success: false, Error: "query is required"})
		return
	}

	if len(req.Context) > 0 {
		s.logger.Debug("query context", zap.Any("context", req.Context))
	}

	translation := s.translator.Translate(req.Query)
	if !translation.Success {
		s.logger.Info("query translation failed", zap.String("query", req.Query))
		writeJSON(w, http.StatusOK, queryResponse{
			Success:     false,
			Query:       req.Query,
			Error:       translation.Error,
			Suggestions: s.translator.Suggest(req.Query),
		})
		return
	}

	timeRange := translation.TimeRange
	if req.TimeRange != "" {
		timeRange = req.TimeRange
	}

	stats, err := s.executor.QueryRange(r.Context(), translation.PromQL, timeRange, s.config.QueryStep)
	if err != nil {
		s.logger.Error("query execution failed",
			zap.String("promql", translation.PromQL), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, queryResponse{
			Success:     false,
			Query:       req.Query,
			PromQLQuery: translation.PromQL,
			Error:       fmt.Sprintf("query execution failed: %v", err),
		})
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{
		Success:     true,
		Query:       req.Query,
		PromQLQuery: translation.PromQL,
		TimeRange:   timeRange,
		Data:        stats,
		Insights:    s.insights.Generate(req.Query, translation.PromQL, stats),
	})
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	templates := s.translator.ListTemplates()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"templates": templates,
		"count":     len(templates),
	})
}

// handleDiscover lists metric names in the workspace. The label values call
// is expensive, so results are cached for the configured TTL.
func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	names, err := s.cache.GetOrSet(r.Context(), discoveryCacheKey, func() (interface{}, error) {
		return s.executor.DiscoverMetrics(r.Context())
	})
	if err != nil {
		s.logger.Error("metric discovery failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": fmt.Sprintf("metric discovery failed: %v", err),
		})
		return
	}

	metrics, _ := names.([]string)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"metrics": metrics,
		"count":   len(metrics),
	})
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	suggestions := s.translator.Suggest(req.Query)
	if suggestions == nil {
		suggestions = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"query":       req.Query,
		"suggestions": suggestions,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
