package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eks-aiops/eks-devops-agent/internal/workflow"
)

// Investigator runs one incident investigation. Satisfied by
// *workflow.Engine.
type Investigator interface {
	Execute(ctx context.Context, incidentID string, alarm workflow.Alarm) *workflow.Result
}

// Notifier posts incident lifecycle messages to the chat channel. A nil
// Notifier disables notifications.
type Notifier interface {
	SendNotification(ctx context.Context, message, severity string) (string, error)
	SendInvestigationSummary(ctx context.Context, incidentID string, result *workflow.Result) (string, error)
	SendRemediationApproval(ctx context.Context, incidentID, action string, details map[string]string) (string, error)
}

// Dispatcher drains the queue with bounded concurrency: a handler slot is
// acquired before an event is popped, so at most maxConcurrent incidents
// run at once and the highest-priority queued event starts as soon as a
// slot frees.
type Dispatcher struct {
	queue    *Queue
	engine   Investigator
	notifier Notifier
	sem      chan struct{}
	logger   *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	handled sync.WaitGroup
}

func NewDispatcher(engine Investigator, notifier Notifier, maxConcurrent int, logger *zap.Logger) *Dispatcher {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		queue:    NewQueue(),
		engine:   engine,
		notifier: notifier,
		sem:      make(chan struct{}, maxConcurrent),
		logger:   logger,
	}
}

// Submit admits an alarm payload and returns the queued event.
func (d *Dispatcher) Submit(payload map[string]interface{}) (*Event, error) {
	if payload == nil {
		return nil, fmt.Errorf("empty event payload")
	}

	event := NewEvent(payload)
	d.queue.Push(event)
	d.logger.Info("event queued",
		zap.String("incident_id", event.IncidentID()),
		zap.String("alarm", event.Alarm.Name),
		zap.String("priority", event.Priority.String()),
		zap.Int("queue_depth", d.queue.Len()))
	return event, nil
}

// QueueDepth reports how many events are waiting.
func (d *Dispatcher) QueueDepth() int {
	return d.queue.Len()
}

// Start launches the dispatch loop.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.done = make(chan struct{})
	go d.loop(ctx)
}

// Stop cancels the loop and waits for in-flight incidents to finish, up
// to the context deadline.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel = nil
	d.mu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()
	<-done

	finished := make(chan struct{})
	go func() {
		d.handled.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out with incidents in flight: %w", ctx.Err())
	}
}

func (d *Dispatcher) loop(ctx context.Context) {
	defer close(d.done)

	for {
		// Acquire a slot first so the pop below never strands an event
		// while all handlers are busy.
		select {
		case <-ctx.Done():
			return
		case d.sem <- struct{}{}:
		}

		event, ok := d.queue.Pop(ctx, time.Second)
		if !ok {
			<-d.sem
			if ctx.Err() != nil {
				return
			}
			continue
		}

		d.handled.Add(1)
		go d.handle(ctx, event)
	}
}

func (d *Dispatcher) handle(ctx context.Context, event *Event) {
	defer d.handled.Done()
	defer func() { <-d.sem }()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("incident handler panicked",
				zap.String("incident_id", event.IncidentID()),
				zap.Any("panic", r))
			d.notify(ctx, fmt.Sprintf("Incident %s failed: internal error", event.IncidentID()), "critical")
		}
	}()

	incidentID := event.IncidentID()
	d.notify(ctx, fmt.Sprintf("Investigating alarm *%s* (incident %s)", event.Alarm.Name, incidentID),
		event.Priority.String())

	result := d.engine.Execute(ctx, incidentID, event.Alarm)
	if !result.Success {
		d.logger.Warn("investigation failed",
			zap.String("incident_id", incidentID), zap.String("error", result.Error))
		d.notify(ctx, fmt.Sprintf("Investigation %s failed: %s", incidentID, result.Error), "warning")
		return
	}

	if d.notifier != nil {
		if _, err := d.notifier.SendInvestigationSummary(ctx, incidentID, result); err != nil {
			d.logger.Warn("failed to send investigation summary",
				zap.String("incident_id", incidentID), zap.Error(err))
		}

		// Critical incidents get a human in the loop before remediation.
		if event.Priority == PriorityCritical && len(result.Recommendations) > 0 {
			details := map[string]string{
				"alarm":      event.Alarm.Name,
				"root_cause": result.RootCause,
			}
			if _, err := d.notifier.SendRemediationApproval(ctx, incidentID, result.Recommendations[0], details); err != nil {
				d.logger.Warn("failed to request remediation approval",
					zap.String("incident_id", incidentID), zap.Error(err))
			}
		}
	}
}

func (d *Dispatcher) notify(ctx context.Context, message, severity string) {
	if d.notifier == nil {
		return
	}
	if _, err := d.notifier.SendNotification(ctx, message, severity); err != nil {
		d.logger.Warn("notification failed", zap.Error(err))
	}
}
