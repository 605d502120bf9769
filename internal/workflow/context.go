package workflow

import "time"

// Context accumulates the state of one incident investigation. Steps read
// scratch values written by earlier steps and append findings in execution
// order.
type Context struct {
	IncidentID   string
	WorkflowName string
	Alarm        Alarm
	StartTime    time.Time
	EndTime      time.Time

	Findings        []Finding
	Metrics         map[string]interface{}
	Logs            []string
	RootCause       string
	Recommendations []string

	// Scratch holds intermediate values steps hand to each other
	// (pod_name, namespace, traces, pods_on_node, ...).
	Scratch map[string]interface{}
}

func newContext(incidentID, workflowName string, alarm Alarm) *Context {
	return &Context{
		IncidentID:   incidentID,
		WorkflowName: workflowName,
		Alarm:        alarm,
		StartTime:    time.Now().UTC(),
		Metrics:      make(map[string]interface{}),
		Scratch:      make(map[string]interface{}),
	}
}

// Finding is one step's recorded outcome.
type Finding struct {
	Step      string     `json:"step"`
	Result    StepResult `json:"result"`
	Timestamp time.Time  `json:"timestamp"`
}

// StepResult is what a step handler returns. Halt stops the remaining
// steps but the diagnosis still runs.
type StepResult struct {
	Success bool                   `json:"success"`
	Halt    bool                   `json:"halt,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func success(details map[string]interface{}) StepResult {
	return StepResult{Success: true, Details: details}
}

func failure(err error) StepResult {
	return StepResult{Success: false, Error: err.Error()}
}

// scratchString reads a string scratch value, empty if absent.
func (c *Context) scratchString(key string) string {
	if v, ok := c.Scratch[key].(string); ok {
		return v
	}
	return ""
}
