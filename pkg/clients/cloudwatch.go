package clients

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/eks-aiops/eks-devops-agent/internal/workflow"
)

const (
	latencyNamespace  = "AWS/EKS"
	latencyMetricName = "ServiceLatency"
	latencyPeriod     = 300 // seconds
)

// CloudWatchAPI is the CloudWatch surface the client uses.
type CloudWatchAPI interface {
	GetMetricStatistics(ctx context.Context, params *cloudwatch.GetMetricStatisticsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error)
}

// CloudWatchClient reads service-level latency statistics. It implements
// workflow.ServiceMetricsClient.
type CloudWatchClient struct {
	api         CloudWatchAPI
	clusterName string
}

func NewCloudWatchClient(ctx context.Context, region, clusterName string) (*CloudWatchClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewCloudWatchClientWithAPI(cloudwatch.NewFromConfig(cfg), clusterName), nil
}

// NewCloudWatchClientWithAPI wraps an existing API client. Tests use this.
func NewCloudWatchClientWithAPI(api CloudWatchAPI, clusterName string) *CloudWatchClient {
	return &CloudWatchClient{api: api, clusterName: clusterName}
}

// ServiceLatency reports latency statistics for a service over the given
// window, in milliseconds. Current is the most recent datapoint's
// average.
func (c *CloudWatchClient) ServiceLatency(ctx context.Context, service string, window time.Duration) (*workflow.LatencyStats, error) {
	end := time.Now().UTC()
	start := end.Add(-window)
	dimensions := []types.Dimension{
		{Name: aws.String("ClusterName"), Value: aws.String(c.clusterName)},
		{Name: aws.String("ServiceName"), Value: aws.String(service)},
	}

	basic, err := c.api.GetMetricStatistics(ctx, &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String(latencyNamespace),
		MetricName: aws.String(latencyMetricName),
		Dimensions: dimensions,
		StartTime:  &start,
		EndTime:    &end,
		Period:     aws.Int32(latencyPeriod),
		Statistics: []types.Statistic{types.StatisticAverage, types.StatisticMinimum, types.StatisticMaximum},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latency statistics for %s: %w", service, err)
	}

	points := basic.Datapoints
	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.Before(*points[j].Timestamp)
	})

	stats := &workflow.LatencyStats{}
	for i, point := range points {
		if point.Average != nil {
			stats.Current = *point.Average
		}
		if point.Minimum != nil && (i == 0 || *point.Minimum < stats.Min) {
			stats.Min = *point.Minimum
		}
		if point.Maximum != nil && *point.Maximum > stats.Max {
			stats.Max = *point.Maximum
		}
	}

	// Percentiles need a separate call: the API rejects mixed basic and
	// extended statistics.
	extended, err := c.api.GetMetricStatistics(ctx, &cloudwatch.GetMetricStatisticsInput{
		Namespace:          aws.String(latencyNamespace),
		MetricName:         aws.String(latencyMetricName),
		Dimensions:         dimensions,
		StartTime:          &start,
		EndTime:            &end,
		Period:             aws.Int32(latencyPeriod),
		ExtendedStatistics: []string{"p50", "p99"},
	})
	if err == nil {
		points := extended.Datapoints
		sort.Slice(points, func(i, j int) bool {
			return points[i].Timestamp.Before(*points[j].Timestamp)
		})
		for _, point := range points {
			if p50, ok := point.ExtendedStatistics["p50"]; ok {
				stats.P50 = p50
			}
			if p99, ok := point.ExtendedStatistics["p99"]; ok {
				stats.P99 = p99
			}
		}
	}

	return stats, nil
}
