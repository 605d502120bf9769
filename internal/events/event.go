// Package events implements the incident intake: alarm payloads become
// prioritized events, a priority queue orders them and a bounded
// dispatcher hands them to the investigation engine.
package events

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eks-aiops/eks-devops-agent/internal/workflow"
)

// Priority orders events; lower values are handled first.
type Priority int

const (
	PriorityCritical Priority = 1
	PriorityHigh     Priority = 2
	PriorityMedium   Priority = 3
	PriorityLow      Priority = 4
)

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// Event is one alarm admitted to the intake.
type Event struct {
	ID         string
	Alarm      workflow.Alarm
	Priority   Priority
	ReceivedAt time.Time
}

// NewEvent builds an Event from a raw alarm payload. Missing ids get a
// generated UUID so every incident is addressable.
func NewEvent(payload map[string]interface{}) *Event {
	id, _ := payload["id"].(string)
	if id == "" {
		id = uuid.NewString()
	}

	detail, _ := payload["detail"].(map[string]interface{})
	alarmName, _ := detail["alarmName"].(string)

	var stateValue string
	if state, ok := detail["state"].(map[string]interface{}); ok {
		stateValue, _ = state["value"].(string)
	}

	alarm := workflow.Alarm{
		Name:   alarmName,
		State:  stateValue,
		Detail: detail,
	}

	return &Event{
		ID:         id,
		Alarm:      alarm,
		Priority:   derivePriority(alarm),
		ReceivedAt: time.Now().UTC(),
	}
}

// IncidentID derives the short incident identifier used in notifications.
func (e *Event) IncidentID() string {
	id := e.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return "INC-" + id
}

// derivePriority is a pure function of the alarm content: ALARM state plus
// a critical-looking name is critical, any other ALARM is high, everything
// else is medium. Low is reserved for future demotion rules.
func derivePriority(alarm workflow.Alarm) Priority {
	if alarm.State != "ALARM" {
		return PriorityMedium
	}

	lowered := strings.ToLower(alarm.Name)
	for _, marker := range []string{"critical", "oom", "node", "down"} {
		if strings.Contains(lowered, marker) {
			return PriorityCritical
		}
	}
	return PriorityHigh
}
