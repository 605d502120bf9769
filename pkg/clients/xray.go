package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/xray"
	"go.uber.org/zap"

	"github.com/eks-aiops/eks-devops-agent/internal/workflow"
)

// batchGetTracesLimit is the X-Ray API maximum per BatchGetTraces call.
const batchGetTracesLimit = 5

// XRayAPI is the X-Ray surface the client uses.
type XRayAPI interface {
	GetTraceSummaries(ctx context.Context, params *xray.GetTraceSummariesInput, optFns ...func(*xray.Options)) (*xray.GetTraceSummariesOutput, error)
	BatchGetTraces(ctx context.Context, params *xray.BatchGetTracesInput, optFns ...func(*xray.Options)) (*xray.BatchGetTracesOutput, error)
	GetServiceGraph(ctx context.Context, params *xray.GetServiceGraphInput, optFns ...func(*xray.Options)) (*xray.GetServiceGraphOutput, error)
}

// XRayClient looks up distributed traces. It implements
// workflow.TraceClient.
type XRayClient struct {
	api    XRayAPI
	logger *zap.Logger
}

func NewXRayClient(ctx context.Context, region string, logger *zap.Logger) (*XRayClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewXRayClientWithAPI(xray.NewFromConfig(cfg), logger), nil
}

// NewXRayClientWithAPI wraps an existing API client. Tests use this.
func NewXRayClientWithAPI(api XRayAPI, logger *zap.Logger) *XRayClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &XRayClient{api: api, logger: logger}
}

// SlowTraces returns up to limit traces slower than threshold from the
// last hour, most recent window first.
func (c *XRayClient) SlowTraces(ctx context.Context, service string, threshold time.Duration, limit int) ([]workflow.Trace, error) {
	filter := fmt.Sprintf("duration >= %.1f", threshold.Seconds())
	if service != "" {
		filter = fmt.Sprintf(`service("%s") AND %s`, service, filter)
	}

	end := time.Now().UTC()
	start := end.Add(-time.Hour)
	summaries, err := c.api.GetTraceSummaries(ctx, &xray.GetTraceSummariesInput{
		StartTime:        &start,
		EndTime:          &end,
		FilterExpression: &filter,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trace summaries: %w", err)
	}

	ids := make([]string, 0, limit)
	for _, summary := range summaries.TraceSummaries {
		if summary.Id == nil {
			continue
		}
		ids = append(ids, *summary.Id)
		if len(ids) == limit {
			break
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var traces []workflow.Trace
	for offset := 0; offset < len(ids); offset += batchGetTracesLimit {
		chunkEnd := offset + batchGetTracesLimit
		if chunkEnd > len(ids) {
			chunkEnd = len(ids)
		}

		batch, err := c.api.BatchGetTraces(ctx, &xray.BatchGetTracesInput{
			TraceIds: ids[offset:chunkEnd],
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch traces: %w", err)
		}

		for _, raw := range batch.Traces {
			trace := workflow.Trace{}
			if raw.Id != nil {
				trace.ID = *raw.Id
			}
			if raw.Duration != nil {
				trace.Duration = time.Duration(*raw.Duration * float64(time.Second))
			}
			for _, segment := range raw.Segments {
				if segment.Document == nil {
					continue
				}
				if parsed, ok := parseSegmentDocument(*segment.Document); ok {
					trace.Segments = append(trace.Segments, parsed)
				}
			}
			traces = append(traces, trace)
		}
	}
	return traces, nil
}

// segmentDocument is the subset of the X-Ray segment JSON the client
// reads.
type segmentDocument struct {
	Name      string  `json:"name"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

func parseSegmentDocument(document string) (workflow.TraceSegment, bool) {
	var doc segmentDocument
	if err := json.Unmarshal([]byte(document), &doc); err != nil || doc.Name == "" {
		return workflow.TraceSegment{}, false
	}
	return workflow.TraceSegment{
		Name:     doc.Name,
		Duration: time.Duration((doc.EndTime - doc.StartTime) * float64(time.Second)),
	}, true
}

// ServiceMap builds the service dependency graph from the last hour.
func (c *XRayClient) ServiceMap(ctx context.Context) (*workflow.ServiceMap, error) {
	end := time.Now().UTC()
	start := end.Add(-time.Hour)
	graph, err := c.api.GetServiceGraph(ctx, &xray.GetServiceGraphInput{
		StartTime: &start,
		EndTime:   &end,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch service graph: %w", err)
	}

	names := make(map[int32]string)
	for _, service := range graph.Services {
		if service.ReferenceId != nil && service.Name != nil {
			names[*service.ReferenceId] = *service.Name
		}
	}

	serviceMap := &workflow.ServiceMap{Edges: make(map[string][]string)}
	for _, service := range graph.Services {
		if service.Name == nil {
			continue
		}
		serviceMap.Services = append(serviceMap.Services, *service.Name)
		for _, edge := range service.Edges {
			if edge.ReferenceId == nil {
				continue
			}
			if target, ok := names[*edge.ReferenceId]; ok {
				serviceMap.Edges[*service.Name] = append(serviceMap.Edges[*service.Name], target)
			}
		}
	}
	return serviceMap, nil
}

// ErrorTraces returns up to limit traces that recorded an error in the
// last hour.
func (c *XRayClient) ErrorTraces(ctx context.Context, service string, limit int) ([]string, error) {
	filter := "error = true"
	if service != "" {
		filter = fmt.Sprintf(`service("%s") AND %s`, service, filter)
	}

	end := time.Now().UTC()
	start := end.Add(-time.Hour)
	summaries, err := c.api.GetTraceSummaries(ctx, &xray.GetTraceSummariesInput{
		StartTime:        &start,
		EndTime:          &end,
		FilterExpression: &filter,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch error traces: %w", err)
	}

	var ids []string
	for _, summary := range summaries.TraceSummaries {
		if summary.Id == nil {
			continue
		}
		ids = append(ids, *summary.Id)
		if len(ids) == limit {
			break
		}
	}
	return ids, nil
}

// TraceAnalytics summarizes trace volume and duration for a service over
// the last hour.
type TraceAnalytics struct {
	TraceCount      int     `json:"trace_count"`
	AverageDuration float64 `json:"average_duration_seconds"`
	MaxDuration     float64 `json:"max_duration_seconds"`
}

func (c *XRayClient) Analytics(ctx context.Context, service string) (*TraceAnalytics, error) {
	filter := fmt.Sprintf(`service("%s")`, service)
	end := time.Now().UTC()
	start := end.Add(-time.Hour)

	summaries, err := c.api.GetTraceSummaries(ctx, &xray.GetTraceSummariesInput{
		StartTime:        &start,
		EndTime:          &end,
		FilterExpression: &filter,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trace analytics: %w", err)
	}

	analytics := &TraceAnalytics{TraceCount: len(summaries.TraceSummaries)}
	var total float64
	for _, summary := range summaries.TraceSummaries {
		if summary.Duration == nil {
			continue
		}
		total += *summary.Duration
		if *summary.Duration > analytics.MaxDuration {
			analytics.MaxDuration = *summary.Duration
		}
	}
	if analytics.TraceCount > 0 {
		analytics.AverageDuration = total / float64(analytics.TraceCount)
	}
	return analytics, nil
}
