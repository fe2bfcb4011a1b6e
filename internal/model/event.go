// internal/model/event.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	EventPowerChanged       EventType = "POWER_CHANGED"
	EventConnectionState    EventType = "CONNECTION_STATE"
	EventOperationStarted   EventType = "OPERATION_STARTED"
	EventOperationCompleted EventType = "OPERATION_COMPLETED"
	EventOperationFailed    EventType = "OPERATION_FAILED"
	EventStatusUpdate       EventType = "STATUS_UPDATE"
)

// Severity levels
const (
	SeverityInfo    = "INFO"
	SeverityWarning = "WARNING"
	SeverityError   = "ERROR"
)

// ProjectorEvent represents an event in the system
type ProjectorEvent struct {
	ID        uuid.UUID  `json:"id"`
	EventType EventType  `json:"event_type"`
	Data      JSONObject `json:"data"`
	Timestamp time.Time  `json:"timestamp"`
	Source    string     `json:"source"`
	Severity  string     `json:"severity"`
}

// NewProjectorEvent creates an event stamped now
func NewProjectorEvent(eventType EventType, source, severity string, data JSONObject) ProjectorEvent {
	return ProjectorEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Data:      data,
		Timestamp: time.Now(),
		Source:    source,
		Severity:  severity,
	}
}

// OperationEventData represents operation-related events
type OperationEventData struct {
	OperationID   uuid.UUID       `json:"operation_id"`
	OperationType OperationType   `json:"operation_type"`
	Status        OperationStatus `json:"status"`
	Duration      *int            `json:"duration_ms,omitempty"`
	ErrorMessage  *string         `json:"error_message,omitempty"`
}

// ToJSON flattens the event data into an event payload
func (d OperationEventData) ToJSON() JSONObject {
	data := JSONObject{
		"operation_id":   d.OperationID.String(),
		"operation_type": string(d.OperationType),
		"status":         string(d.Status),
	}
	if d.Duration != nil {
		data["duration_ms"] = *d.Duration
	}
	if d.ErrorMessage != nil {
		data["error_message"] = *d.ErrorMessage
	}
	return data
}
