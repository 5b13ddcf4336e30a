package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each event represents something significant that
// happened in the domain; handlers react to keep derived state fresh.
const (
	// Attempt events
	EventAttemptRecorded EventType = "attempt.recorded"

	// Assessment events
	EventAssessmentCreated EventType = "assessment.created"

	// Schema events
	EventOptionUpdated EventType = "schema.option_updated"

	// Snapshot events
	EventReportGenerated   EventType = "report.generated"
	EventProgressGenerated EventType = "progress.generated"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// EventPublisher publishes domain events to whoever subscribed.
type EventPublisher interface {
	Publish(event Event) error
}

// EventHandler processes a single event. Handlers must be safe for
// concurrent invocation.
type EventHandler interface {
	Handle(event Event) error
	Name() string
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
}

// EventType returns the type of the event.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt returns when the event occurred.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID returns the ID of the aggregate that produced this event.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates the shared portion of an event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
	}
}

// AttemptRecordedEvent is published after an attempt has been durably
// appended to an assessment's ledger.
type AttemptRecordedEvent struct {
	BaseEvent
	AttemptID     ID        `json:"attempt_id"`
	AssessmentID  ID        `json:"assessment_id"`
	SchemaID      ID        `json:"schema_id"`
	StudentID     ID        `json:"student_id"`
	NodeID        ID        `json:"node_id"`
	AttemptNumber int       `json:"attempt_number"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// NewAttemptRecordedEvent creates an AttemptRecordedEvent.
func NewAttemptRecordedEvent(attemptID, assessmentID, schemaID, studentID, nodeID ID, attemptNumber int, recordedAt time.Time) *AttemptRecordedEvent {
	return &AttemptRecordedEvent{
		BaseEvent:     NewBaseEvent(EventAttemptRecorded, assessmentID.String()),
		AttemptID:     attemptID,
		AssessmentID:  assessmentID,
		SchemaID:      schemaID,
		StudentID:     studentID,
		NodeID:        nodeID,
		AttemptNumber: attemptNumber,
		RecordedAt:    recordedAt,
	}
}

// Payload returns the event data as a map for serialization.
func (e *AttemptRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"attempt_id":     e.AttemptID.String(),
		"assessment_id":  e.AssessmentID.String(),
		"schema_id":      e.SchemaID.String(),
		"student_id":     e.StudentID.String(),
		"node_id":        e.NodeID.String(),
		"attempt_number": e.AttemptNumber,
		"recorded_at":    e.RecordedAt,
	}
}

// AssessmentCreatedEvent is published when a new (schema, student, node)
// assessment comes into existence.
type AssessmentCreatedEvent struct {
	BaseEvent
	AssessmentID ID `json:"assessment_id"`
	SchemaID     ID `json:"schema_id"`
	StudentID    ID `json:"student_id"`
	NodeID       ID `json:"node_id"`
}

// NewAssessmentCreatedEvent creates an AssessmentCreatedEvent.
func NewAssessmentCreatedEvent(assessmentID, schemaID, studentID, nodeID ID) *AssessmentCreatedEvent {
	return &AssessmentCreatedEvent{
		BaseEvent:    NewBaseEvent(EventAssessmentCreated, assessmentID.String()),
		AssessmentID: assessmentID,
		SchemaID:     schemaID,
		StudentID:    studentID,
		NodeID:       nodeID,
	}
}

// Payload returns the event data as a map for serialization.
func (e *AssessmentCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"assessment_id": e.AssessmentID.String(),
		"schema_id":     e.SchemaID.String(),
		"student_id":    e.StudentID.String(),
		"node_id":       e.NodeID.String(),
	}
}

// OptionUpdatedEvent is published when a schema option row changes.
type OptionUpdatedEvent struct {
	BaseEvent
	SchemaID ID     `json:"schema_id"`
	NodeID   *ID    `json:"node_id,omitempty"`
	Option   string `json:"option"`
}

// NewOptionUpdatedEvent creates an OptionUpdatedEvent.
func NewOptionUpdatedEvent(schemaID ID, nodeID *ID, option string) *OptionUpdatedEvent {
	return &OptionUpdatedEvent{
		BaseEvent: NewBaseEvent(EventOptionUpdated, schemaID.String()),
		SchemaID:  schemaID,
		NodeID:    nodeID,
		Option:    option,
	}
}

// Payload returns the event data as a map for serialization.
func (e *OptionUpdatedEvent) Payload() map[string]interface{} {
	payload := map[string]interface{}{
		"schema_id": e.SchemaID.String(),
		"option":    e.Option,
	}
	if e.NodeID != nil {
		payload["node_id"] = e.NodeID.String()
	}
	return payload
}
