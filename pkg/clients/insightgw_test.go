package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsightGateway_QueryMetrics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/query", r.URL.Path)

		var req gatewayQueryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "memory usage for pod foo over the last hour", req.Query)
		assert.Equal(t, "PetAdoptions-EKS", req.Context["cluster_name"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"success": true,
			"promql_query": "container_memory_usage_bytes{pod=\"foo\"}",
			"data": {
				"current_value": 91.5,
				"min_value": 60,
				"max_value": 92,
				"average_value": 80,
				"trend": "increasing"
			},
			"insights": ["Current value: 91.50"]
		}`))
	}))
	defer server.Close()

	gw := NewInsightGateway(server.URL, "PetAdoptions-EKS", time.Second, nil)

	summary, err := gw.QueryMetrics(context.Background(), "memory usage for pod foo over the last hour")
	require.NoError(t, err)
	assert.True(t, summary.Success)
	assert.Equal(t, 91.5, summary.Current)
	assert.Equal(t, "increasing", summary.Trend)
	assert.Equal(t, `container_memory_usage_bytes{pod="foo"}`, summary.PromQL)
	assert.Equal(t, []string{"Current value: 91.50"}, summary.Insights)
}

func TestInsightGateway_Helpers(t *testing.T) {
	var queries []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req gatewayQueryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		queries = append(queries, req.Query)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success": true, "data": {"current_value": 1, "trend": "stable"}}`))
	}))
	defer server.Close()

	gw := NewInsightGateway(server.URL, "test", time.Second, nil)

	_, err := gw.PodMetrics(context.Background(), "foo", "memory")
	require.NoError(t, err)
	_, err = gw.ServiceMetrics(context.Background(), "payments-api")
	require.NoError(t, err)
	_, err = gw.NodeMetrics(context.Background(), "node-1")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"memory usage for pod foo over the last hour",
		"request rate for service payments-api",
		"cpu usage for node node-1 over the last hour",
	}, queries)
}

func TestInsightGateway_TranslationFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success": false, "error": "Could not translate query. Please provide more specific information."}`))
	}))
	defer server.Close()

	gw := NewInsightGateway(server.URL, "test", time.Second, nil)

	summary, err := gw.QueryMetrics(context.Background(), "what's up")
	require.NoError(t, err)
	assert.False(t, summary.Success)
	assert.Equal(t, "unknown", summary.Trend)
}

func TestInsightGateway_RetriesOnceThenFallsBack(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	gw := NewInsightGateway(server.URL, "test", time.Second, nil)

	summary, err := gw.QueryMetrics(context.Background(), "memory usage for pod foo")
	require.NoError(t, err)
	assert.False(t, summary.Success)
	assert.Equal(t, []string{"Unable to generate insights"}, summary.Insights)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestInsightGateway_RecoversOnRetry(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success": true, "data": {"current_value": 5, "trend": "stable"}}`))
	}))
	defer server.Close()

	gw := NewInsightGateway(server.URL, "test", time.Second, nil)

	summary, err := gw.QueryMetrics(context.Background(), "memory usage for pod foo")
	require.NoError(t, err)
	assert.True(t, summary.Success)
	assert.Equal(t, 5.0, summary.Current)
}
