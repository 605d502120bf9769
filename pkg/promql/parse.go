package promql

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Stats is the reduced form every query result is parsed into.
// Range (matrix) responses flatten all series into one value list; instant
// (vector) responses take the first series as the current value.
type Stats struct {
	Current     float64  `json:"current_value"`
	Max         float64  `json:"max_value"`
	Min         float64  `json:"min_value"`
	Average     float64  `json:"average_value"`
	Trend       string   `json:"trend"`
	Values      []Series `json:"values"`
	SeriesCount int      `json:"series_count"`
	Anomalies   []string `json:"anomalies,omitempty"`
}

// Series is one time series from a matrix response.
type Series struct {
	Metric     map[string]string `json:"metric"`
	Values     []float64         `json:"values"`
	Timestamps []float64         `json:"timestamps"`
}

// Trend classifications.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
	TrendUnknown    = "unknown"
)

// apiResponse is the Prometheus HTTP API envelope.
type apiResponse struct {
	Status string  `json:"status"`
	Data   apiData `json:"data"`
	Error  string  `json:"error"`
}

type apiData struct {
	ResultType string      `json:"resultType"`
	Result     []apiSeries `json:"result"`
}

type apiSeries struct {
	Metric map[string]string `json:"metric"`
	Value  []json.RawMessage `json:"value"`  // instant vector: [ts, "value"]
	Values [][2]json.RawMessage `json:"values"` // range matrix: [[ts, "value"], ...]
}

// parseRangeResponse reduces a query_range (matrix) body to Stats.
func parseRangeResponse(body []byte) (*Stats, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode range response: %w", err)
	}
	if resp.Status == "error" {
		return nil, fmt.Errorf("prometheus error: %s", resp.Error)
	}

	stats := &Stats{Trend: TrendUnknown}
	if len(resp.Data.Result) == 0 {
		return stats, nil
	}

	var all []float64
	for _, series := range resp.Data.Result {
		s := Series{Metric: series.Metric}
		for _, pair := range series.Values {
			ts, value, err := decodeSample(pair[0], pair[1])
			if err != nil {
				return nil, err
			}
			s.Timestamps = append(s.Timestamps, ts)
			s.Values = append(s.Values, value)
			all = append(all, value)
		}
		stats.Values = append(stats.Values, s)
	}

	stats.SeriesCount = len(stats.Values)
	if len(all) > 0 {
		stats.Current = all[len(all)-1]
		stats.Min, stats.Max = minMax(all)
		stats.Average = mean(all)
		stats.Trend = calculateTrend(all)
	}

	return stats, nil
}

// parseInstantResponse reduces an instant (vector) body to Stats. The
// current value is the first series; min/max/average cover all series.
func parseInstantResponse(body []byte) (*Stats, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode instant response: %w", err)
	}
	if resp.Status == "error" {
		return nil, fmt.Errorf("prometheus error: %s", resp.Error)
	}

	stats := &Stats{Trend: TrendUnknown}
	if resp.Data.ResultType != "vector" || len(resp.Data.Result) == 0 {
		return stats, nil
	}

	var all []float64
	for _, series := range resp.Data.Result {
		if len(series.Value) < 2 {
			continue
		}
		ts, value, err := decodeSample(series.Value[0], series.Value[1])
		if err != nil {
			return nil, err
		}
		stats.Values = append(stats.Values, Series{
			Metric:     series.Metric,
			Values:     []float64{value},
			Timestamps: []float64{ts},
		})
		all = append(all, value)
	}

	stats.SeriesCount = len(stats.Values)
	if len(all) > 0 {
		stats.Current = all[0]
		stats.Min, stats.Max = minMax(all)
		stats.Average = mean(all)
	}

	return stats, nil
}

// decodeSample decodes the [timestamp, "value"] pair format Prometheus
// uses for samples: numeric timestamp, string-encoded float value.
func decodeSample(rawTS, rawValue json.RawMessage) (float64, float64, error) {
	var ts float64
	if err := json.Unmarshal(rawTS, &ts); err != nil {
		return 0, 0, fmt.Errorf("invalid sample timestamp: %w", err)
	}

	var str string
	if err := json.Unmarshal(rawValue, &str); err != nil {
		return 0, 0, fmt.Errorf("invalid sample value: %w", err)
	}
	value, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid sample value %q: %w", str, err)
	}

	return ts, value, nil
}

// calculateTrend compares the mean of the first half of the samples to the
// mean of the second half: >1.1x increasing, <0.9x decreasing, else stable.
func calculateTrend(values []float64) string {
	if len(values) < 2 {
		return TrendUnknown
	}

	half := len(values) / 2
	first := mean(values[:half])
	second := mean(values[half:])

	switch {
	case second > first*1.1:
		return TrendIncreasing
	case second < first*0.9:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

// ParseTimeRange converts a compact range string (5m, 1h, 1d, 7d, 2w) into
// a duration. Malformed input falls back to one hour, matching the lenient
// behavior callers rely on for user-supplied ranges.
func ParseTimeRange(timeRange string) time.Duration {
	if len(timeRange) < 2 {
		return time.Hour
	}

	value, err := strconv.Atoi(timeRange[:len(timeRange)-1])
	if err != nil || value < 0 {
		return time.Hour
	}

	switch timeRange[len(timeRange)-1] {
	case 'm':
		return time.Duration(value) * time.Minute
	case 'h':
		return time.Duration(value) * time.Hour
	case 'd':
		return time.Duration(value) * 24 * time.Hour
	case 'w':
		return time.Duration(value) * 7 * 24 * time.Hour
	default:
		return time.Hour
	}
}

func minMax(values []float64) (float64, float64) {
	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
