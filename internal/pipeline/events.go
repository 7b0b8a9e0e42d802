package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/examforge/harvester/pkg/question"
)

// EventType identifies a run progress event
type EventType string

const (
	EventUnitStarted          EventType = "unit.started"
	EventUnitCompleted        EventType = "unit.completed"
	EventUnitFailed           EventType = "unit.failed"
	EventPDFCompleted         EventType = "pdf.completed"
	EventAggregationCompleted EventType = "aggregation.completed"
	EventRunCompleted         EventType = "run.completed"
)

// RunEvent is emitted as a harvest run progresses. Subscribers get
// progress without coupling to orchestrator internals.
type RunEvent struct {
	ID        string           `json:"id"`
	Type      EventType        `json:"type"`
	RunID     string           `json:"run_id"`
	Timestamp time.Time        `json:"timestamp"`
	Source    string           `json:"source,omitempty"`
	Subject   question.Subject `json:"subject,omitempty"`
	Questions int              `json:"questions,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// NewRunEvent creates a run event stamped with a fresh ID
func NewRunEvent(eventType EventType, runID string) *RunEvent {
	return &RunEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		RunID:     runID,
		Timestamp: time.Now().UTC(),
	}
}
