// Package workflow runs declarative multi-step incident investigations
// against metrics, cluster, trace and service-level capabilities and
// distills findings into a root cause with recommendations.
package workflow

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// StepFunc executes one investigation step.
type StepFunc func(ctx context.Context, wc *Context) StepResult

// Dependencies are the external capabilities the step handlers call. Any
// of them may be nil; the affected steps record a failure finding instead
// of aborting the incident.
type Dependencies struct {
	Metrics        MetricsQuerier
	Cluster        ClusterClient
	Traces         TraceClient
	ServiceMetrics ServiceMetricsClient
}

// Engine executes workflows step by step.
type Engine struct {
	deps     Dependencies
	settings Settings
	handlers map[string]StepFunc
	logger   *zap.Logger
}

// NewEngine builds the engine and its step handler table.
func NewEngine(deps Dependencies, settings Settings, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		deps:     deps,
		settings: settings.withDefaults(),
		logger:   logger,
	}
	e.handlers = e.buildHandlerTable()
	return e
}

// Result is the outcome of one investigation.
type Result struct {
	Success         bool          `json:"success"`
	IncidentID      string        `json:"incident_id"`
	Workflow        string        `json:"workflow"`
	RootCause       string        `json:"root_cause,omitempty"`
	Recommendations []string      `json:"recommendations,omitempty"`
	Duration        time.Duration `json:"duration"`
	Findings        []Finding     `json:"findings"`
	Error           string        `json:"error,omitempty"`
}

// Execute runs the workflow selected for the alarm. Steps run strictly
// sequentially; a halting step skips the rest but the diagnosis still
// runs. A panicking step marks the incident failed without diagnosis.
func (e *Engine) Execute(ctx context.Context, incidentID string, alarm Alarm) *Result {
	workflowName := SelectWorkflow(alarm.Name)
	steps, _ := Steps(workflowName)

	wc := newContext(incidentID, workflowName, alarm)
	e.logger.Info("investigation started",
		zap.String("incident_id", incidentID),
		zap.String("workflow", workflowName),
		zap.String("alarm", alarm.Name))

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return e.failed(wc, fmt.Errorf("investigation canceled: %w", err))
		}

		handler, ok := e.handlers[step]
		if !ok {
			e.logger.Warn("unknown step",
				zap.String("incident_id", incidentID), zap.String("step", step))
			e.record(wc, step, StepResult{Success: false, Error: "unknown step: " + step})
			continue
		}

		result, panicErr := e.runStep(ctx, handler, wc)
		if panicErr != nil {
			e.logger.Error("step panicked",
				zap.String("incident_id", incidentID),
				zap.String("step", step),
				zap.Error(panicErr))
			e.record(wc, step, failure(panicErr))
			return e.failed(wc, fmt.Errorf("step %s: %w", step, panicErr))
		}

		e.record(wc, step, result)
		if result.Halt {
			e.logger.Info("workflow halted early",
				zap.String("incident_id", incidentID), zap.String("step", step))
			break
		}
	}

	wc.RootCause, wc.Recommendations = Diagnose(workflowName, wc.Findings)
	wc.EndTime = time.Now().UTC()

	e.logger.Info("investigation finished",
		zap.String("incident_id", incidentID),
		zap.String("root_cause", wc.RootCause),
		zap.Duration("duration", wc.EndTime.Sub(wc.StartTime)))

	return &Result{
		Success:         true,
		IncidentID:      wc.IncidentID,
		Workflow:        wc.WorkflowName,
		RootCause:       wc.RootCause,
		Recommendations: wc.Recommendations,
		Duration:        wc.EndTime.Sub(wc.StartTime),
		Findings:        wc.Findings,
	}
}

func (e *Engine) runStep(ctx context.Context, handler StepFunc, wc *Context) (result StepResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return handler(ctx, wc), nil
}

func (e *Engine) record(wc *Context, step string, result StepResult) {
	wc.Findings = append(wc.Findings, Finding{
		Step:      step,
		Result:    result,
		Timestamp: time.Now().UTC(),
	})
}

func (e *Engine) failed(wc *Context, err error) *Result {
	wc.EndTime = time.Now().UTC()
	return &Result{
		Success:    false,
		IncidentID: wc.IncidentID,
		Workflow:   wc.WorkflowName,
		Duration:   wc.EndTime.Sub(wc.StartTime),
		Findings:   wc.Findings,
		Error:      err.Error(),
	}
}
