package promql

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_QueryRange(t *testing.T) {
	var gotPath string
	var gotQuery map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = map[string]string{
			"query": r.URL.Query().Get("query"),
			"start": r.URL.Query().Get("start"),
			"end":   r.URL.Query().Get("end"),
			"step":  r.URL.Query().Get("step"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "success",
			"data": {"resultType": "matrix", "result": [
				{"metric": {"pod": "foo"}, "values": [[1, "1"], [2, "2"]]}
			]}
		}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL})

	stats, err := client.QueryRange(context.Background(), `container_memory_usage_bytes{pod="foo"}`, "1h", "")
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/query_range", gotPath)
	assert.Equal(t, `container_memory_usage_bytes{pod="foo"}`, gotQuery["query"])
	assert.Equal(t, DefaultStep, gotQuery["step"])

	// The window must be exactly end - 1h (within clock granularity).
	start, err := strconv.ParseInt(gotQuery["start"], 10, 64)
	require.NoError(t, err)
	end, err := strconv.ParseInt(gotQuery["end"], 10, 64)
	require.NoError(t, err)
	assert.Equal(t, int64(3600), end-start)
	assert.WithinDuration(t, time.Now(), time.Unix(end, 0), 5*time.Second)

	assert.Equal(t, 2.0, stats.Current)
	assert.Equal(t, 2, len(stats.Values[0].Values))
}

func TestClient_QueryRange_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL})

	_, err := client.QueryRange(context.Background(), "up", "1h", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 403")
}

func TestClient_Query(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/query", r.URL.Path)
		assert.Equal(t, "up", r.URL.Query().Get("query"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "success",
			"data": {"resultType": "vector", "result": [
				{"metric": {"job": "node"}, "value": [1700000000, "1"]}
			]}
		}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL})

	stats, err := client.Query(context.Background(), "up", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, stats.Current)
	assert.Equal(t, 1, stats.SeriesCount)
}

func TestClient_DiscoverMetrics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/label/__name__/values", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "success", "data": ["up", "container_memory_usage_bytes"]}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL})

	names, err := client.DiscoverMetrics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"up", "container_memory_usage_bytes"}, names)
}

type headerSigner struct{}

func (headerSigner) Sign(ctx context.Context, req *http.Request) error {
	req.Header.Set("Authorization", "AWS4-HMAC-SHA256 test")
	return nil
}

func TestClient_SignerApplied(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"status": "success", "data": {"resultType": "matrix", "result": []}}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, Signer: headerSigner{}})

	_, err := client.QueryRange(context.Background(), "up", "5m", "30s")
	require.NoError(t, err)
	assert.Equal(t, "AWS4-HMAC-SHA256 test", gotAuth)
}
