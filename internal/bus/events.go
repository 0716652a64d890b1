// Package bus provides the event distribution system for Parvis.
// Wake activations, conversation-turn lifecycle, and timer lifecycle all flow
// through the bus, so any component (and external monitors via the observer)
// can watch the pipeline without being wired into it.
package bus

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies the kind of event flowing through the bus.
type EventType string

const (
	// EventActivation fires when the wake gate accepts an activation signal.
	EventActivation EventType = "activation"
	// EventActivationDropped fires when an activation arrives mid-turn and
	// is ignored by the single-turn discipline.
	EventActivationDropped EventType = "activation_dropped"

	// Turn lifecycle events.
	EventTurnStarted   EventType = "turn_started"
	EventTurnStage     EventType = "turn_stage"
	EventTurnCompleted EventType = "turn_completed"

	// Timer lifecycle events. EventTimerFired re-enters the wake gate as an
	// activation-equivalent signal so the completion announcement is spoken
	// as its own turn.
	EventTimerCreated   EventType = "timer_created"
	EventTimerFired     EventType = "timer_fired"
	EventTimerCancelled EventType = "timer_cancelled"

	// EventCollaboratorError fires when an external collaborator
	// (transcription, generation, vision, synthesis) fails or times out.
	EventCollaboratorError EventType = "collaborator_error"
)

// Event is a single occurrence in the Parvis pipeline.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`

	// TurnID links the event to a conversation turn, when applicable.
	TurnID string `json:"turn_id,omitempty"`
	// Stage is the orchestrator state the event refers to
	// (capturing, classifying, executing, speaking).
	Stage string `json:"stage,omitempty"`
	// Mode is the operating mode of the turn (live, simulated, text).
	Mode string `json:"mode,omitempty"`

	// TimerID links the event to an active timer, when applicable.
	TimerID string `json:"timer_id,omitempty"`

	// Content carries event text: an utterance, a response, an announcement.
	Content string `json:"content,omitempty"`
	// Confidence is the classification confidence for turn events.
	Confidence float64 `json:"confidence,omitempty"`
	// DurationMs is the elapsed time of the stage or turn.
	DurationMs int64 `json:"duration_ms,omitempty"`

	// Collaborator names the failing external service for error events.
	Collaborator string `json:"collaborator,omitempty"`
	// Error holds the failure detail for error events.
	Error string `json:"error,omitempty"`
}

// NewEvent creates an event of the given type with a fresh ID and timestamp.
func NewEvent(eventType EventType) Event {
	return Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      eventType,
	}
}

// NewTurnEvent creates a turn lifecycle event bound to a turn.
func NewTurnEvent(eventType EventType, turnID, mode string) Event {
	e := NewEvent(eventType)
	e.TurnID = turnID
	e.Mode = mode
	return e
}

// NewTimerEvent creates a timer lifecycle event bound to a timer.
func NewTimerEvent(eventType EventType, timerID, content string) Event {
	e := NewEvent(eventType)
	e.TimerID = timerID
	e.Content = content
	return e
}

// NewCollaboratorError creates an error event for a failed external service.
func NewCollaboratorError(collaborator, turnID string, err error) Event {
	e := NewEvent(EventCollaboratorError)
	e.Collaborator = collaborator
	e.TurnID = turnID
	if err != nil {
		e.Error = err.Error()
	}
	return e
}
