package events

import "time"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "TURN_COMPLETED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent carries the common fields shared by concrete events.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewTurnCompletedEvent records one finished conversational turn for
// downstream analytics consumers.
func NewTurnCompletedEvent(sessionID string, questionLen, answerLen, citationCount int) Event {
	return BaseEvent{
		Type: "TURN_COMPLETED",
		Data: map[string]interface{}{
			"session_id":     sessionID,
			"question_len":   questionLen,
			"answer_len":     answerLen,
			"citation_count": citationCount,
		},
		OccurredAt: time.Now(),
	}
}

// NewDocumentIngestedEvent records a document whose chunks reached the
// corpus index.
func NewDocumentIngestedEvent(fileName string, chunkCount int) Event {
	return BaseEvent{
		Type: "DOCUMENT_INGESTED",
		Data: map[string]interface{}{
			"file_name":   fileName,
			"chunk_count": chunkCount,
		},
		OccurredAt: time.Now(),
	}
}
