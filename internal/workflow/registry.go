package workflow

import "strings"

// Workflow names.
const (
	MemoryLeakInvestigation   = "memory_leak_investigation"
	HighCPUInvestigation      = "high_cpu_investigation"
	HighLatencyInvestigation  = "high_latency_investigation"
	NodePressureInvestigation = "node_pressure_investigation"
	PodCrashInvestigation     = "pod_crash_investigation"
	GenericInvestigation      = "generic_investigation"
)

// workflows maps each workflow name to its ordered step sequence. The
// finalizer step is always last. The table is static; it is loaded once
// and never mutated.
var workflows = map[string][]string{
	MemoryLeakInvestigation: {
		"identify_pod",
		"collect_memory_metrics",
		"check_oom_events",
		"analyze_memory_trend",
		"review_recent_changes",
		"recommend_remediation",
	},
	HighCPUInvestigation: {
		"identify_pod",
		"collect_cpu_metrics",
		"check_cpu_throttling",
		"analyze_request_patterns",
		"review_resource_limits",
		"recommend_remediation",
	},
	HighLatencyInvestigation: {
		"identify_service",
		"collect_latency_metrics",
		"analyze_traces",
		"check_dependencies",
		"correlate_with_resources",
		"recommend_remediation",
	},
	NodePressureInvestigation: {
		"identify_node",
		"collect_node_metrics",
		"list_pods_on_node",
		"check_resource_usage",
		"analyze_evictions",
		"recommend_remediation",
	},
	PodCrashInvestigation: {
		"identify_pod",
		"collect_pod_events",
		"analyze_logs",
		"check_restart_count",
		"review_resource_limits",
		"recommend_remediation",
	},
	GenericInvestigation: {
		"identify_resource",
		"collect_metrics",
		"analyze_patterns",
		"recommend_actions",
	},
}

// Steps returns the ordered step list for a workflow.
func Steps(name string) ([]string, bool) {
	steps, ok := workflows[name]
	return steps, ok
}

// SelectWorkflow picks an investigation from the alarm name. Matching is a
// lowercased substring scan, first hit wins, so selection is idempotent.
func SelectWorkflow(alarmName string) string {
	lowered := strings.ToLower(alarmName)
	switch {
	case strings.Contains(lowered, "memory") || strings.Contains(lowered, "oom"):
		return MemoryLeakInvestigation
	case strings.Contains(lowered, "cpu") || strings.Contains(lowered, "throttl"):
		return HighCPUInvestigation
	case strings.Contains(lowered, "latency") || strings.Contains(lowered, "response"):
		return HighLatencyInvestigation
	case strings.Contains(lowered, "node") || strings.Contains(lowered, "pressure"):
		return NodePressureInvestigation
	case strings.Contains(lowered, "restart") || strings.Contains(lowered, "crash"):
		return PodCrashInvestigation
	default:
		return GenericInvestigation
	}
}
