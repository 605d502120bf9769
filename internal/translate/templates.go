package translate

import "regexp"

// Template maps a natural-language pattern to a PromQL query. The single
// capture group fills the named placeholder in the PromQL text. Matching is
// first-hit-wins, so order here is significant.
type Template struct {
	Pattern     *regexp.Regexp
	PromQL      string // contains a {param} placeholder
	Param       string // parameter name the capture group binds to
	Description string
	Category    string
}

// Query categories.
const (
	CategoryMemory   = "memory"
	CategoryCPU      = "cpu"
	CategoryRequests = "requests"
	CategoryErrors   = "errors"
	CategoryLatency  = "latency"
	CategoryNode     = "node"
	CategoryPods     = "pods"
	CategoryRestarts = "restarts"
	CategoryGeneric  = "generic"
)

// loadTemplates builds the canonical template table. Queries are matched
// against the lowercased input.
func loadTemplates() []Template {
	return []Template{
		{
			Pattern:     regexp.MustCompile(`memory usage.*pod\s+(\S+)`),
			PromQL:      `container_memory_usage_bytes{pod="{pod_name}"}`,
			Param:       "pod_name",
			Description: "Memory usage for a specific pod",
			Category:    CategoryMemory,
		},
		{
			Pattern:     regexp.MustCompile(`cpu usage.*pod\s+(\S+)`),
			PromQL:      `rate(container_cpu_usage_seconds_total{pod="{pod_name}"}[5m])`,
			Param:       "pod_name",
			Description: "CPU usage for a specific pod",
			Category:    CategoryCPU,
		},
		{
			Pattern:     regexp.MustCompile(`memory usage.*namespace\s+(\S+)`),
			PromQL:      `sum(container_memory_usage_bytes{namespace="{namespace}"}) by (pod)`,
			Param:       "namespace",
			Description: "Memory usage by pod in namespace",
			Category:    CategoryMemory,
		},
		{
			Pattern:     regexp.MustCompile(`cpu usage.*namespace\s+(\S+)`),
			PromQL:      `sum(rate(container_cpu_usage_seconds_total{namespace="{namespace}"}[5m])) by (pod)`,
			Param:       "namespace",
			Description: "CPU usage by pod in namespace",
			Category:    CategoryCPU,
		},
		{
			Pattern:     regexp.MustCompile(`request rate.*service\s+(\S+)`),
			PromQL:      `rate(http_requests_total{service="{service_name}"}[5m])`,
			Param:       "service_name",
			Description: "Request rate for a service",
			Category:    CategoryRequests,
		},
		{
			Pattern:     regexp.MustCompile(`error rate.*service\s+(\S+)`),
			PromQL:      `rate(http_requests_total{service="{service_name}",status=~"5.."}[5m])`,
			Param:       "service_name",
			Description: "Error rate for a service",
			Category:    CategoryErrors,
		},
		{
			Pattern:     regexp.MustCompile(`latency.*service\s+(\S+)`),
			PromQL:      `histogram_quantile(0.99, rate(http_request_duration_seconds_bucket{service="{service_name}"}[5m]))`,
			Param:       "service_name",
			Description: "P99 latency for a service",
			Category:    CategoryLatency,
		},
		{
			Pattern:     regexp.MustCompile(`resource usage.*node\s+(\S+)`),
			PromQL:      `node_memory_MemAvailable_bytes{node="{node_name}"} / node_memory_MemTotal_bytes{node="{node_name}"}`,
			Param:       "node_name",
			Description: "Memory availability on a node",
			Category:    CategoryNode,
		},
		{
			Pattern:     regexp.MustCompile(`pod count.*namespace\s+(\S+)`),
			PromQL:      `count(kube_pod_info{namespace="{namespace}"}) by (namespace)`,
			Param:       "namespace",
			Description: "Count of pods in namespace",
			Category:    CategoryPods,
		},
		{
			Pattern:     regexp.MustCompile(`restart count.*pod\s+(\S+)`),
			PromQL:      `kube_pod_container_status_restarts_total{pod="{pod_name}"}`,
			Param:       "pod_name",
			Description: "Container restart count for pod",
			Category:    CategoryRestarts,
		},
	}
}
