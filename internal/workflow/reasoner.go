package workflow

// Diagnose derives a root cause and remediation list from the recorded
// findings. The rules are fixed and deterministic per workflow; the exact
// strings feed chat notifications and must stay stable.
func Diagnose(workflowName string, findings []Finding) (string, []string) {
	switch workflowName {
	case MemoryLeakInvestigation:
		return diagnoseMemoryLeak(findings), []string{
			"Restart pod to clear memory",
			"Increase memory limit to 512Mi",
			"Review application code for memory leaks",
			"Enable memory profiling",
		}
	case HighCPUInvestigation:
		return diagnoseHighCPU(findings), []string{
			"Increase CPU limit to 500m",
			"Enable HPA for automatic scaling",
			"Review code for CPU-intensive operations",
		}
	case HighLatencyInvestigation:
		return diagnoseHighLatency(findings), []string{
			"Scale service horizontally",
			"Optimize slow queries",
			"Enable connection pooling",
			"Review timeout configurations",
		}
	case NodePressureInvestigation:
		return "Node under resource pressure", []string{
			"Cordon node to prevent new scheduling",
			"Drain pods to other nodes",
			"Add new nodes to cluster",
		}
	case PodCrashInvestigation:
		return "Pod experiencing frequent crashes", []string{
			"Review application logs for errors",
			"Check resource limits",
			"Roll back to previous version if recent deployment",
		}
	default:
		return "Investigation completed", []string{
			"Review metrics and logs",
			"Consult runbook documentation",
		}
	}
}

func diagnoseMemoryLeak(findings []Finding) string {
	switch {
	case detailTrue(findings, "oom_kill_detected"):
		return "Memory leak causing OOMKill events"
	case detailTrue(findings, "memory_leak_likely"):
		return "Increasing memory usage pattern detected"
	default:
		return "Memory pressure observed"
	}
}

func diagnoseHighCPU(findings []Finding) string {
	if detailTrue(findings, "throttling_detected") {
		return "CPU throttling due to insufficient limits"
	}
	return "High CPU utilization"
}

func diagnoseHighLatency(findings []Finding) string {
	switch {
	case detailTrue(findings, "resource_constrained"):
		return "Latency caused by resource constraints"
	case detailPresent(findings, "bottleneck"):
		return "Bottleneck in downstream service"
	default:
		return "Elevated response times"
	}
}

// detailTrue reports whether any finding carries key = true.
func detailTrue(findings []Finding, key string) bool {
	for _, f := range findings {
		if v, ok := f.Result.Details[key].(bool); ok && v {
			return true
		}
	}
	return false
}

// detailPresent reports whether any finding carries key with a non-empty
// value.
func detailPresent(findings []Finding, key string) bool {
	for _, f := range findings {
		v, ok := f.Result.Details[key]
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString && s == "" {
			continue
		}
		return true
	}
	return false
}
