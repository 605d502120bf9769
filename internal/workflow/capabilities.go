package workflow

import (
	"context"
	"time"
)

// Alarm is the monitoring event an investigation starts from. Detail holds
// the raw alarm payload fields; steps read target identifiers out of it.
type Alarm struct {
	Name   string
	State  string
	Detail map[string]interface{}
}

// MetricsQuerier answers natural-language metric questions. Satisfied by
// the metrics query gateway client.
type MetricsQuerier interface {
	QueryMetrics(ctx context.Context, query string) (*MetricsSummary, error)
}

// MetricsSummary is the reduced metric block steps store in the incident
// context.
type MetricsSummary struct {
	Success         bool     `json:"success"`
	Current         float64  `json:"current_value"`
	Min             float64  `json:"min_value"`
	Max             float64  `json:"max_value"`
	Average         float64  `json:"average_value"`
	Trend           string   `json:"trend"`
	ThrottlingRatio float64  `json:"throttling_ratio,omitempty"`
	PromQL          string   `json:"promql_query,omitempty"`
	Insights        []string `json:"insights,omitempty"`
	Anomalies       []string `json:"anomalies,omitempty"`
}

// ClusterClient is the Kubernetes surface the step handlers need.
type ClusterClient interface {
	PodEvents(ctx context.Context, namespace, pod string) ([]PodEvent, error)
	PodLogs(ctx context.Context, namespace, pod string, tailLines int64) ([]string, error)
	RestartCount(ctx context.Context, namespace, pod string) (int, error)
	ResourceLimits(ctx context.Context, namespace, pod string) (*ResourceLimits, error)
	RecentChanges(ctx context.Context, namespace string, window time.Duration) ([]ChangeInfo, error)
	NodeInfo(ctx context.Context, node string) (*NodeInfo, error)
	PodsOnNode(ctx context.Context, node string) ([]PodInfo, error)
	EvictionEvents(ctx context.Context, node string) ([]EvictionEvent, error)
}

// TraceClient exposes distributed-trace lookups.
type TraceClient interface {
	SlowTraces(ctx context.Context, service string, threshold time.Duration, limit int) ([]Trace, error)
	ServiceMap(ctx context.Context) (*ServiceMap, error)
}

// ServiceMetricsClient reports service-level latency statistics.
type ServiceMetricsClient interface {
	ServiceLatency(ctx context.Context, service string, window time.Duration) (*LatencyStats, error)
}

// PodEvent is one Kubernetes event attached to a pod.
type PodEvent struct {
	Reason    string    `json:"reason"`
	Message   string    `json:"message"`
	Count     int32     `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// ResourceLimits sums container requests and limits for a pod.
type ResourceLimits struct {
	CPURequestMillis   int64 `json:"cpu_request_millis"`
	CPULimitMillis     int64 `json:"cpu_limit_millis"`
	MemoryRequestBytes int64 `json:"memory_request_bytes"`
	MemoryLimitBytes   int64 `json:"memory_limit_bytes"`
}

// ChangeInfo describes a recently created workload.
type ChangeInfo struct {
	Kind      string    `json:"kind"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// NodeInfo is a node's identity and condition summary.
type NodeInfo struct {
	Name              string            `json:"name"`
	Conditions        map[string]string `json:"conditions"`
	AllocatableCPU    int64             `json:"allocatable_cpu_millis"`
	AllocatableMemory int64             `json:"allocatable_memory_bytes"`
}

// PodInfo is a pod with its summed resource requests.
type PodInfo struct {
	Name        string `json:"name"`
	Namespace   string `json:"namespace"`
	CPUMillis   int64  `json:"cpu_millis"`
	MemoryBytes int64  `json:"memory_bytes"`
}

// EvictionEvent is one pod eviction recorded on a node.
type EvictionEvent struct {
	Pod       string    `json:"pod"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Trace is one distributed trace with its per-service segments.
type Trace struct {
	ID       string         `json:"id"`
	Duration time.Duration  `json:"duration"`
	Segments []TraceSegment `json:"segments"`
}

// TraceSegment is one service's portion of a trace.
type TraceSegment struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
}

// ServiceMap is the service dependency graph.
type ServiceMap struct {
	Services []string            `json:"services"`
	Edges    map[string][]string `json:"edges"`
}

// LatencyStats summarizes service latency over a window, in milliseconds.
type LatencyStats struct {
	Current float64 `json:"current"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	P50     float64 `json:"p50"`
	P99     float64 `json:"p99"`
}
