package domain

import "time"

// EventType represents the type of view event
type EventType string

const (
	EventStateUpdated    EventType = "STATE_UPDATED"
	EventReelUpdated     EventType = "REEL_UPDATED"
	EventRecordsSynced   EventType = "RECORDS_SYNCED"
	EventSubmitted       EventType = "SUBMITTED"
	EventScrollToRecords EventType = "SCROLL_TO_RECORDS"
	EventResetCompleted  EventType = "RESET_COMPLETED"
	EventResetRejected   EventType = "RESET_REJECTED"
)

// ViewEvent is something that happened on a view and must reach its clients
type ViewEvent struct {
	Type      EventType   `json:"type"`
	ViewID    string      `json:"viewId"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEvent creates a new view event
func NewEvent(eventType EventType, viewID string, payload interface{}) *ViewEvent {
	return &ViewEvent{
		Type:      eventType,
		ViewID:    viewID,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// Payload types for different events

// ReelUpdatePayload is sent on every spinner tick and when a spin starts or stops
type ReelUpdatePayload struct {
	Reel ReelState `json:"reel"`
}

// RecordsPayload is sent when the feed delivers a new snapshot
type RecordsPayload struct {
	Records Snapshot `json:"records"`
}

// SubmittedPayload is sent after a record was written
type SubmittedPayload struct {
	Record RecordEntry `json:"record"`
	State  BoardState  `json:"state"`
}

// ResetPayload is sent once a reset finished
type ResetPayload struct {
	Deleted int `json:"deleted"`
}

// AlertPayload carries a blocking notice for the user
type AlertPayload struct {
	Message string `json:"message"`
}
