// Package insight turns query statistics into short human-readable
// observations: current value, trend, metric-specific thresholds,
// anomaly and cardinality notes.
package insight

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/eks-aiops/eks-devops-agent/pkg/promql"
)

// Generator produces insight lines for query results.
type Generator struct {
	logger *zap.Logger
}

func NewGenerator(logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{logger: logger}
}

// Generate builds the insight list for a query result. The original query
// text selects which threshold family applies. The PromQL line is always
// appended last so the reader can rerun the query by hand.
func (g *Generator) Generate(query, promqlText string, stats *promql.Stats) []string {
	if stats == nil {
		return []string{"Unable to generate insights"}
	}

	var insights []string

	if stats.Current > 0 {
		insights = append(insights, fmt.Sprintf("Current value: %.2f", stats.Current))
	}

	switch stats.Trend {
	case promql.TrendIncreasing:
		insights = append(insights, "⚠️ Metric is increasing over time - monitor closely")
	case promql.TrendDecreasing:
		insights = append(insights, "✅ Metric is decreasing - situation improving")
	case promql.TrendStable:
		insights = append(insights, "ℹ️ Metric is stable")
	}

	if stats.Max > 0 && stats.Min >= 0 {
		variation := (stats.Max - stats.Min) / stats.Max * 100
		if variation > 50 {
			insights = append(insights,
				fmt.Sprintf("High variability detected: %.1f%% variation between min and max", variation))
		}
	}

	insights = append(insights, thresholdInsights(strings.ToLower(query), stats.Current)...)

	if n := len(stats.Anomalies); n > 0 {
		insights = append(insights, fmt.Sprintf("🔍 %d anomalies detected", n))
	}

	if stats.SeriesCount > 10 {
		insights = append(insights, fmt.Sprintf("High cardinality: %d time series returned", stats.SeriesCount))
	}

	insights = append(insights, fmt.Sprintf("PromQL: `%s`", promqlText))

	return insights
}

// thresholdInsights applies the per-metric-family thresholds. Every
// family whose keyword appears in the query contributes a line, so a
// query mentioning both memory and cpu gets both warnings.
func thresholdInsights(lowered string, current float64) []string {
	var lines []string

	if strings.Contains(lowered, "memory") {
		switch {
		case current > 90:
			lines = append(lines, "🔴 CRITICAL: Memory usage > 90% - OOMKill risk")
		case current > 80:
			lines = append(lines, "🟠 WARNING: Memory usage > 80%")
		case current > 70:
			lines = append(lines, "🟡 CAUTION: Memory usage > 70%")
		}
	}
	if strings.Contains(lowered, "cpu") {
		switch {
		case current > 85:
			lines = append(lines, "🔴 CRITICAL: CPU usage > 85% - throttling likely")
		case current > 70:
			lines = append(lines, "🟠 WARNING: CPU usage > 70%")
		}
	}
	if strings.Contains(lowered, "latency") || strings.Contains(lowered, "duration") {
		switch {
		case current > 3000:
			lines = append(lines, "🔴 CRITICAL: Latency > 3s - user experience severely impacted")
		case current > 1000:
			lines = append(lines, "🟠 WARNING: Latency > 1s - user experience degraded")
		case current > 500:
			lines = append(lines, "🟡 CAUTION: Latency > 500ms")
		}
	}
	if strings.Contains(lowered, "error") {
		switch {
		case current > 5:
			lines = append(lines, "🔴 CRITICAL: Error rate > 5%")
		case current > 1:
			lines = append(lines, "🟠 WARNING: Error rate > 1%")
		}
	}

	return lines
}
