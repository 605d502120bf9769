package events

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Producer feeds alarm payloads into the intake. Implementations block in
// Run until the context is canceled.
type Producer interface {
	Run(ctx context.Context, submit func(map[string]interface{}) (*Event, error)) error
}

// SimulatedProducer emits synthetic alarms on a fixed interval. It stands
// in for an EventBridge or SQS consumer in demo environments.
type SimulatedProducer struct {
	interval time.Duration
	logger   *zap.Logger
}

func NewSimulatedProducer(interval time.Duration, logger *zap.Logger) *SimulatedProducer {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SimulatedProducer{interval: interval, logger: logger}
}

func (p *SimulatedProducer) Run(ctx context.Context, submit func(map[string]interface{}) (*Event, error)) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			payload := SamplePayload()
			if _, err := submit(payload); err != nil {
				p.logger.Warn("failed to submit simulated event", zap.Error(err))
			}
		}
	}
}

var sampleAlarms = []struct {
	name  string
	state string
}{
	{"pod-memory-high-critical", "ALARM"},
	{"pod-oom-detected", "ALARM"},
	{"api-cpu-throttling", "ALARM"},
	{"svc-latency-high", "ALARM"},
	{"node-memory-pressure", "ALARM"},
	{"pod-restart-loop", "ALARM"},
	{"disk-usage-warning", "OK"},
}

// SamplePayload builds one synthetic alarm payload.
func SamplePayload() map[string]interface{} {
	alarm := sampleAlarms[rand.Intn(len(sampleAlarms))]
	return map[string]interface{}{
		"id": uuid.NewString(),
		"detail": map[string]interface{}{
			"alarmName": alarm.name,
			"state":     map[string]interface{}{"value": alarm.state},
		},
	}
}
