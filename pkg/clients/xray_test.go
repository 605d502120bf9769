package clients

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/xray"
	xraytypes "github.com/aws/aws-sdk-go-v2/service/xray/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeXRayAPI struct {
	summaries   []xraytypes.TraceSummary
	traces      []xraytypes.Trace
	services    []xraytypes.Service
	lastFilter  string
	batchCalls  int
	lastTraceID []string
}

func (f *fakeXRayAPI) GetTraceSummaries(_ context.Context, params *xray.GetTraceSummariesInput, _ ...func(*xray.Options)) (*xray.GetTraceSummariesOutput, error) {
	if params.FilterExpression != nil {
		f.lastFilter = *params.FilterExpression
	}
	return &xray.GetTraceSummariesOutput{TraceSummaries: f.summaries}, nil
}

func (f *fakeXRayAPI) BatchGetTraces(_ context.Context, params *xray.BatchGetTracesInput, _ ...func(*xray.Options)) (*xray.BatchGetTracesOutput, error) {
	f.batchCalls++
	f.lastTraceID = params.TraceIds
	return &xray.BatchGetTracesOutput{Traces: f.traces}, nil
}

func (f *fakeXRayAPI) GetServiceGraph(context.Context, *xray.GetServiceGraphInput, ...func(*xray.Options)) (*xray.GetServiceGraphOutput, error) {
	return &xray.GetServiceGraphOutput{Services: f.services}, nil
}

func TestXRayClient_SlowTraces(t *testing.T) {
	api := &fakeXRayAPI{
		summaries: []xraytypes.TraceSummary{
			{Id: aws.String("1-abc"), Duration: aws.Float64(2.5)},
		},
		traces: []xraytypes.Trace{{
			Id:       aws.String("1-abc"),
			Duration: aws.Float64(2.5),
			Segments: []xraytypes.Segment{
				{Document: aws.String(`{"name": "payments-db", "start_time": 100.0, "end_time": 102.0}`)},
				{Document: aws.String(`{"name": "payments-api", "start_time": 100.0, "end_time": 100.5}`)},
			},
		}},
	}
	client := NewXRayClientWithAPI(api, nil)

	traces, err := client.SlowTraces(context.Background(), "payments-api", time.Second, 10)
	require.NoError(t, err)
	require.Len(t, traces, 1)

	assert.Equal(t, `service("payments-api") AND duration >= 1.0`, api.lastFilter)
	assert.Equal(t, "1-abc", traces[0].ID)
	assert.Equal(t, 2500*time.Millisecond, traces[0].Duration)
	require.Len(t, traces[0].Segments, 2)
	assert.Equal(t, "payments-db", traces[0].Segments[0].Name)
	assert.Equal(t, 2*time.Second, traces[0].Segments[0].Duration)
}

func TestXRayClient_SlowTraces_LimitAndChunking(t *testing.T) {
	var summaries []xraytypes.TraceSummary
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		summaries = append(summaries, xraytypes.TraceSummary{Id: aws.String(id)})
	}
	api := &fakeXRayAPI{summaries: summaries}
	client := NewXRayClientWithAPI(api, nil)

	_, err := client.SlowTraces(context.Background(), "", time.Second, 6)
	require.NoError(t, err)

	// Six ids means two BatchGetTraces calls of at most five each.
	assert.Equal(t, 2, api.batchCalls)
	assert.Equal(t, []string{"f"}, api.lastTraceID)
	assert.Equal(t, "duration >= 1.0", api.lastFilter)
}

func TestXRayClient_SlowTraces_Empty(t *testing.T) {
	client := NewXRayClientWithAPI(&fakeXRayAPI{}, nil)

	traces, err := client.SlowTraces(context.Background(), "svc", time.Second, 10)
	require.NoError(t, err)
	assert.Empty(t, traces)
}

func TestXRayClient_ServiceMap(t *testing.T) {
	api := &fakeXRayAPI{
		services: []xraytypes.Service{
			{
				Name:        aws.String("payments-api"),
				ReferenceId: aws.Int32(1),
				Edges:       []xraytypes.Edge{{ReferenceId: aws.Int32(2)}},
			},
			{Name: aws.String("payments-db"), ReferenceId: aws.Int32(2)},
		},
	}
	client := NewXRayClientWithAPI(api, nil)

	serviceMap, err := client.ServiceMap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"payments-api", "payments-db"}, serviceMap.Services)
	assert.Equal(t, []string{"payments-db"}, serviceMap.Edges["payments-api"])
}

func TestXRayClient_ErrorTraces(t *testing.T) {
	api := &fakeXRayAPI{
		summaries: []xraytypes.TraceSummary{
			{Id: aws.String("1-err")},
			{Id: aws.String("2-err")},
		},
	}
	client := NewXRayClientWithAPI(api, nil)

	ids, err := client.ErrorTraces(context.Background(), "payments-api", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"1-err"}, ids)
	assert.Equal(t, `service("payments-api") AND error = true`, api.lastFilter)
}

func TestXRayClient_Analytics(t *testing.T) {
	api := &fakeXRayAPI{
		summaries: []xraytypes.TraceSummary{
			{Id: aws.String("a"), Duration: aws.Float64(1.0)},
			{Id: aws.String("b"), Duration: aws.Float64(3.0)},
		},
	}
	client := NewXRayClientWithAPI(api, nil)

	analytics, err := client.Analytics(context.Background(), "payments-api")
	require.NoError(t, err)
	assert.Equal(t, 2, analytics.TraceCount)
	assert.Equal(t, 2.0, analytics.AverageDuration)
	assert.Equal(t, 3.0, analytics.MaxDuration)
}

func TestParseSegmentDocument_Invalid(t *testing.T) {
	_, ok := parseSegmentDocument("{not json")
	assert.False(t, ok)

	_, ok = parseSegmentDocument(`{"start_time": 1, "end_time": 2}`)
	assert.False(t, ok)
}
