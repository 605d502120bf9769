package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Settings tunes step behavior. Fallback identifiers are used when the
// alarm detail carries no target; thresholds drive the detection flags.
type Settings struct {
	FallbackPod       string
	FallbackNamespace string
	FallbackService   string
	FallbackNode      string

	MemoryLimitFloorBytes int64         // limits below this are flagged
	RestartCountLimit     int           // restarts above this are frequent
	ThrottleRatioLimit    float64       // CPU throttling ratio threshold
	TraceSlowThreshold    time.Duration // traces slower than this are slow
}

func (s Settings) withDefaults() Settings {
	if s.FallbackPod == "" {
		s.FallbackPod = "petadoptionshistory-py"
	}
	if s.FallbackNamespace == "" {
		s.FallbackNamespace = "default"
	}
	if s.FallbackService == "" {
		s.FallbackService = "payforadoption-go"
	}
	if s.FallbackNode == "" {
		s.FallbackNode = "ip-10-0-1-100.ec2.internal"
	}
	if s.MemoryLimitFloorBytes == 0 {
		s.MemoryLimitFloorBytes = 128 * 1024 * 1024
	}
	if s.RestartCountLimit == 0 {
		s.RestartCountLimit = 5
	}
	if s.ThrottleRatioLimit == 0 {
		s.ThrottleRatioLimit = 0.10
	}
	if s.TraceSlowThreshold == 0 {
		s.TraceSlowThreshold = time.Second
	}
	return s
}

func (e *Engine) buildHandlerTable() map[string]StepFunc {
	return map[string]StepFunc{
		"identify_pod":      e.identifyPod,
		"identify_service":  e.identifyService,
		"identify_node":     e.identifyNode,
		"identify_resource": e.identifyResource,

		"collect_memory_metrics":  e.collectMemoryMetrics,
		"collect_cpu_metrics":     e.collectCPUMetrics,
		"collect_latency_metrics": e.collectLatencyMetrics,
		"collect_node_metrics":    e.collectNodeMetrics,
		"collect_pod_events":      e.collectPodEvents,
		"collect_metrics":         e.collectMetrics,

		"check_oom_events":         e.checkOOMEvents,
		"check_cpu_throttling":     e.checkCPUThrottling,
		"check_restart_count":      e.checkRestartCount,
		"check_dependencies":       e.checkDependencies,
		"check_resource_usage":     e.checkResourceUsage,
		"analyze_memory_trend":     e.analyzeMemoryTrend,
		"analyze_request_patterns": e.analyzeRequestPatterns,
		"analyze_traces":           e.analyzeTraces,
		"analyze_evictions":        e.analyzeEvictions,
		"analyze_logs":             e.analyzeLogs,
		"analyze_patterns":         e.analyzePatterns,
		"correlate_with_resources": e.correlateWithResources,

		"list_pods_on_node":      e.listPodsOnNode,
		"review_recent_changes":  e.reviewRecentChanges,
		"review_resource_limits": e.reviewResourceLimits,

		"recommend_remediation": e.recommendRemediation,
		"recommend_actions":     e.recommendActions,
	}
}

// extractTarget reads the first non-empty string among the given alarm
// detail keys.
func extractTarget(alarm Alarm, keys ...string) string {
	for _, key := range keys {
		if v, ok := alarm.Detail[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// Target identification

func (e *Engine) identifyPod(_ context.Context, wc *Context) StepResult {
	pod := extractTarget(wc.Alarm, "podName", "pod_name", "pod")
	if pod == "" {
		pod = e.settings.FallbackPod
	}
	namespace := extractTarget(wc.Alarm, "namespace")
	if namespace == "" {
		namespace = e.settings.FallbackNamespace
	}

	wc.Scratch["pod_name"] = pod
	wc.Scratch["namespace"] = namespace
	return success(map[string]interface{}{
		"pod_name":  pod,
		"namespace": namespace,
	})
}

func (e *Engine) identifyService(_ context.Context, wc *Context) StepResult {
	service := extractTarget(wc.Alarm, "serviceName", "service_name", "service")
	if service == "" {
		service = e.settings.FallbackService
	}
	namespace := extractTarget(wc.Alarm, "namespace")
	if namespace == "" {
		namespace = e.settings.FallbackNamespace
	}

	wc.Scratch["service_name"] = service
	wc.Scratch["namespace"] = namespace
	return success(map[string]interface{}{
		"service_name": service,
		"namespace":    namespace,
	})
}

func (e *Engine) identifyNode(_ context.Context, wc *Context) StepResult {
	node := extractTarget(wc.Alarm, "nodeName", "node_name", "node")
	if node == "" {
		node = e.settings.FallbackNode
	}

	wc.Scratch["node_name"] = node
	return success(map[string]interface{}{"node_name": node})
}

func (e *Engine) identifyResource(ctx context.Context, wc *Context) StepResult {
	if extractTarget(wc.Alarm, "serviceName", "service_name", "service") != "" {
		return e.identifyService(ctx, wc)
	}
	// Pod identification also covers the no-target case via its fallback.
	return e.identifyPod(ctx, wc)
}

// Metric collection

func (e *Engine) queryMetricBlock(ctx context.Context, wc *Context, category, query string) StepResult {
	if e.deps.Metrics == nil {
		return failure(fmt.Errorf("metrics capability unavailable"))
	}

	summary, err := e.deps.Metrics.QueryMetrics(ctx, query)
	if err != nil {
		return failure(fmt.Errorf("failed to collect %s metrics: %w", category, err))
	}

	block := map[string]interface{}{
		"current": summary.Current,
		"min":     summary.Min,
		"max":     summary.Max,
		"average": summary.Average,
		"trend":   summary.Trend,
	}
	wc.Metrics[category] = block
	wc.Scratch["metrics_"+category] = summary

	return success(map[string]interface{}{
		"category": category,
		"current":  summary.Current,
		"trend":    summary.Trend,
	})
}

func (e *Engine) collectMemoryMetrics(ctx context.Context, wc *Context) StepResult {
	pod := wc.scratchString("pod_name")
	query := fmt.Sprintf("memory usage for pod %s over the last hour", pod)
	return e.queryMetricBlock(ctx, wc, "memory", query)
}

func (e *Engine) collectCPUMetrics(ctx context.Context, wc *Context) StepResult {
	pod := wc.scratchString("pod_name")
	query := fmt.Sprintf("cpu usage for pod %s over the last hour", pod)
	return e.queryMetricBlock(ctx, wc, "cpu", query)
}

func (e *Engine) collectLatencyMetrics(ctx context.Context, wc *Context) StepResult {
	service := wc.scratchString("service_name")
	query := fmt.Sprintf("latency for service %s over the last hour", service)
	result := e.queryMetricBlock(ctx, wc, "latency", query)
	if !result.Success {
		return result
	}

	// Service-level stats complement the PromQL view when available.
	if e.deps.ServiceMetrics != nil {
		if stats, err := e.deps.ServiceMetrics.ServiceLatency(ctx, service, time.Hour); err == nil {
			result.Details["p50_ms"] = stats.P50
			result.Details["p99_ms"] = stats.P99
			wc.Scratch["latency_stats"] = stats
		}
	}
	return result
}

func (e *Engine) collectNodeMetrics(ctx context.Context, wc *Context) StepResult {
	node := wc.scratchString("node_name")
	query := fmt.Sprintf("resource usage on node %s over the last hour", node)
	result := e.queryMetricBlock(ctx, wc, "node", query)

	if e.deps.Cluster != nil {
		if info, err := e.deps.Cluster.NodeInfo(ctx, node); err == nil {
			wc.Scratch["node_info"] = info
			if result.Details == nil {
				result.Details = map[string]interface{}{}
			}
			result.Details["conditions"] = info.Conditions
		}
	}
	return result
}

func (e *Engine) collectMetrics(ctx context.Context, wc *Context) StepResult {
	pod := wc.scratchString("pod_name")
	memory := e.queryMetricBlock(ctx, wc, "memory", fmt.Sprintf("memory usage for pod %s over the last hour", pod))
	cpu := e.queryMetricBlock(ctx, wc, "cpu", fmt.Sprintf("cpu usage for pod %s over the last hour", pod))

	return StepResult{
		Success: memory.Success || cpu.Success,
		Details: map[string]interface{}{
			"memory_collected": memory.Success,
			"cpu_collected":    cpu.Success,
		},
	}
}

// Event and log analysis

func (e *Engine) collectPodEvents(ctx context.Context, wc *Context) StepResult {
	if e.deps.Cluster == nil {
		return failure(fmt.Errorf("cluster capability unavailable"))
	}

	events, err := e.deps.Cluster.PodEvents(ctx, wc.scratchString("namespace"), wc.scratchString("pod_name"))
	if err != nil {
		return failure(fmt.Errorf("failed to collect pod events: %w", err))
	}

	wc.Scratch["pod_events"] = events
	reasons := make([]string, 0, len(events))
	for _, ev := range events {
		reasons = append(reasons, ev.Reason)
	}
	return success(map[string]interface{}{
		"event_count": len(events),
		"reasons":     reasons,
	})
}

func (e *Engine) checkOOMEvents(ctx context.Context, wc *Context) StepResult {
	if e.deps.Cluster == nil {
		return failure(fmt.Errorf("cluster capability unavailable"))
	}

	events, err := e.deps.Cluster.PodEvents(ctx, wc.scratchString("namespace"), wc.scratchString("pod_name"))
	if err != nil {
		return failure(fmt.Errorf("failed to fetch pod events: %w", err))
	}

	var oomEvents []PodEvent
	for _, ev := range events {
		if strings.Contains(ev.Reason, "OOMKill") {
			oomEvents = append(oomEvents, ev)
		}
	}

	wc.Scratch["oom_events"] = oomEvents
	return success(map[string]interface{}{
		"oom_kill_detected": len(oomEvents) > 0,
		"oom_count":         len(oomEvents),
	})
}

func (e *Engine) analyzeLogs(ctx context.Context, wc *Context) StepResult {
	if e.deps.Cluster == nil {
		return failure(fmt.Errorf("cluster capability unavailable"))
	}

	lines, err := e.deps.Cluster.PodLogs(ctx, wc.scratchString("namespace"), wc.scratchString("pod_name"), 100)
	if err != nil {
		return failure(fmt.Errorf("failed to fetch pod logs: %w", err))
	}

	var errorLines []string
	for _, line := range lines {
		lowered := strings.ToLower(line)
		if strings.Contains(lowered, "error") || strings.Contains(lowered, "exception") {
			errorLines = append(errorLines, line)
		}
	}

	wc.Logs = errorLines
	wc.Scratch["error_logs"] = errorLines

	sample := errorLines
	if len(sample) > 5 {
		sample = sample[:5]
	}
	return success(map[string]interface{}{
		"error_count": len(errorLines),
		"error_logs":  sample,
	})
}

func (e *Engine) checkRestartCount(ctx context.Context, wc *Context) StepResult {
	if e.deps.Cluster == nil {
		return failure(fmt.Errorf("cluster capability unavailable"))
	}

	count, err := e.deps.Cluster.RestartCount(ctx, wc.scratchString("namespace"), wc.scratchString("pod_name"))
	if err != nil {
		return failure(fmt.Errorf("failed to read restart count: %w", err))
	}

	return success(map[string]interface{}{
		"restart_count":     count,
		"frequent_restarts": count > e.settings.RestartCountLimit,
	})
}

// Metric-derived checks

func (e *Engine) checkCPUThrottling(_ context.Context, wc *Context) StepResult {
	summary, _ := wc.Scratch["metrics_cpu"].(*MetricsSummary)
	if summary == nil {
		return failure(fmt.Errorf("cpu metrics not collected"))
	}

	return success(map[string]interface{}{
		"throttling_ratio":    summary.ThrottlingRatio,
		"throttling_detected": summary.ThrottlingRatio > e.settings.ThrottleRatioLimit,
	})
}

func (e *Engine) analyzeMemoryTrend(_ context.Context, wc *Context) StepResult {
	summary, _ := wc.Scratch["metrics_memory"].(*MetricsSummary)
	if summary == nil {
		return failure(fmt.Errorf("memory metrics not collected"))
	}

	return success(map[string]interface{}{
		"trend":              summary.Trend,
		"memory_leak_likely": summary.Trend == "increasing",
	})
}

func (e *Engine) analyzeRequestPatterns(ctx context.Context, wc *Context) StepResult {
	service := wc.scratchString("service_name")
	if service == "" {
		service = e.settings.FallbackService
	}
	query := fmt.Sprintf("request rate for service %s over the last hour", service)
	return e.queryMetricBlock(ctx, wc, "requests", query)
}

func (e *Engine) analyzePatterns(_ context.Context, wc *Context) StepResult {
	var observations []string
	for category, block := range wc.Metrics {
		if m, ok := block.(map[string]interface{}); ok {
			if trend, ok := m["trend"].(string); ok {
				observations = append(observations, fmt.Sprintf("%s trend: %s", category, trend))
			}
		}
	}
	return success(map[string]interface{}{"observations": observations})
}

// Trace analysis

func (e *Engine) analyzeTraces(ctx context.Context, wc *Context) StepResult {
	if e.deps.Traces == nil {
		return failure(fmt.Errorf("trace capability unavailable"))
	}

	service := wc.scratchString("service_name")
	traces, err := e.deps.Traces.SlowTraces(ctx, service, e.settings.TraceSlowThreshold, 10)
	if err != nil {
		return failure(fmt.Errorf("failed to fetch traces: %w", err))
	}

	wc.Scratch["traces"] = traces

	details := map[string]interface{}{"trace_count": len(traces)}
	if bottleneck, duration := findBottleneck(traces); bottleneck != "" {
		details["bottleneck"] = bottleneck
		details["bottleneck_duration_ms"] = float64(duration.Milliseconds())
	}
	return success(details)
}

// findBottleneck picks the segment with the maximum duration across all
// traces.
func findBottleneck(traces []Trace) (string, time.Duration) {
	var name string
	var max time.Duration
	for _, trace := range traces {
		for _, segment := range trace.Segments {
			if segment.Duration > max {
				name = segment.Name
				max = segment.Duration
			}
		}
	}
	return name, max
}

func (e *Engine) checkDependencies(ctx context.Context, wc *Context) StepResult {
	if e.deps.Traces == nil {
		return failure(fmt.Errorf("trace capability unavailable"))
	}

	serviceMap, err := e.deps.Traces.ServiceMap(ctx)
	if err != nil {
		return failure(fmt.Errorf("failed to fetch service map: %w", err))
	}

	wc.Scratch["service_map"] = serviceMap
	service := wc.scratchString("service_name")
	return success(map[string]interface{}{
		"service_count": len(serviceMap.Services),
		"dependencies":  serviceMap.Edges[service],
	})
}

func (e *Engine) correlateWithResources(ctx context.Context, wc *Context) StepResult {
	if e.deps.Metrics == nil {
		return failure(fmt.Errorf("metrics capability unavailable"))
	}

	namespace := wc.scratchString("namespace")
	cpu, cpuErr := e.deps.Metrics.QueryMetrics(ctx, fmt.Sprintf("cpu usage for namespace %s", namespace))
	memory, memErr := e.deps.Metrics.QueryMetrics(ctx, fmt.Sprintf("memory usage for namespace %s", namespace))
	if cpuErr != nil && memErr != nil {
		return failure(fmt.Errorf("failed to correlate resources: %w", cpuErr))
	}

	constrained := false
	details := map[string]interface{}{}
	if cpuErr == nil {
		details["cpu_current"] = cpu.Current
		constrained = constrained || cpu.Current > 70
	}
	if memErr == nil {
		details["memory_current"] = memory.Current
		constrained = constrained || memory.Current > 80
	}
	details["resource_constrained"] = constrained
	return success(details)
}

// Node analysis

func (e *Engine) listPodsOnNode(ctx context.Context, wc *Context) StepResult {
	if e.deps.Cluster == nil {
		return failure(fmt.Errorf("cluster capability unavailable"))
	}

	pods, err := e.deps.Cluster.PodsOnNode(ctx, wc.scratchString("node_name"))
	if err != nil {
		return failure(fmt.Errorf("failed to list pods on node: %w", err))
	}

	wc.Scratch["pods_on_node"] = pods
	return success(map[string]interface{}{"pod_count": len(pods)})
}

func (e *Engine) checkResourceUsage(_ context.Context, wc *Context) StepResult {
	pods, _ := wc.Scratch["pods_on_node"].([]PodInfo)
	if pods == nil {
		return failure(fmt.Errorf("pods on node not collected"))
	}

	var totalCPU, totalMemory int64
	var top string
	var topMemory int64
	for _, pod := range pods {
		totalCPU += pod.CPUMillis
		totalMemory += pod.MemoryBytes
		if pod.MemoryBytes > topMemory {
			top = pod.Name
			topMemory = pod.MemoryBytes
		}
	}

	return success(map[string]interface{}{
		"total_cpu_millis":   totalCPU,
		"total_memory_bytes": totalMemory,
		"top_consumer":       top,
	})
}

func (e *Engine) analyzeEvictions(ctx context.Context, wc *Context) StepResult {
	if e.deps.Cluster == nil {
		return failure(fmt.Errorf("cluster capability unavailable"))
	}

	evictions, err := e.deps.Cluster.EvictionEvents(ctx, wc.scratchString("node_name"))
	if err != nil {
		return failure(fmt.Errorf("failed to fetch eviction events: %w", err))
	}

	evicted := make([]string, 0, len(evictions))
	for _, ev := range evictions {
		evicted = append(evicted, ev.Pod)
	}
	return success(map[string]interface{}{
		"eviction_count": len(evictions),
		"evicted_pods":   evicted,
	})
}

// Change and limit review

func (e *Engine) reviewRecentChanges(ctx context.Context, wc *Context) StepResult {
	if e.deps.Cluster == nil {
		return failure(fmt.Errorf("cluster capability unavailable"))
	}

	changes, err := e.deps.Cluster.RecentChanges(ctx, wc.scratchString("namespace"), 24*time.Hour)
	if err != nil {
		return failure(fmt.Errorf("failed to list recent changes: %w", err))
	}

	names := make([]string, 0, len(changes))
	for _, change := range changes {
		names = append(names, change.Kind+"/"+change.Name)
	}
	return success(map[string]interface{}{
		"change_count": len(changes),
		"changes":      names,
	})
}

func (e *Engine) reviewResourceLimits(ctx context.Context, wc *Context) StepResult {
	if e.deps.Cluster == nil {
		return failure(fmt.Errorf("cluster capability unavailable"))
	}

	limits, err := e.deps.Cluster.ResourceLimits(ctx, wc.scratchString("namespace"), wc.scratchString("pod_name"))
	if err != nil {
		return failure(fmt.Errorf("failed to read resource limits: %w", err))
	}

	wc.Scratch["resource_limits"] = limits
	return success(map[string]interface{}{
		"memory_limit_bytes": limits.MemoryLimitBytes,
		"cpu_limit_millis":   limits.CPULimitMillis,
		"limits_appropriate": limits.MemoryLimitBytes > e.settings.MemoryLimitFloorBytes,
	})
}

// Finalizers. The diagnosis itself runs after the last step; these record
// that the workflow reached its end.

func (e *Engine) recommendRemediation(_ context.Context, wc *Context) StepResult {
	rootCause, recommendations := Diagnose(wc.WorkflowName, wc.Findings)
	return success(map[string]interface{}{
		"root_cause":      rootCause,
		"recommendations": recommendations,
	})
}

func (e *Engine) recommendActions(_ context.Context, wc *Context) StepResult {
	return success(map[string]interface{}{
		"actions": []string{"Review metrics", "Check logs", "Consult runbook"},
	})
}
