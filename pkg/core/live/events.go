package live

import (
	"github.com/sergiialekseev/mypitch-saas-sub000/pkg/core/types"
)

// Event is the interface for all events emitted to the session consumer.
type Event interface {
	// EventType returns the event type string for serialization.
	EventType() string
}

// StatusChangedEvent is emitted whenever the session status transitions.
type StatusChangedEvent struct {
	From Status `json:"from"`
	To   Status `json:"to"`

	// Message carries the user-facing description for terminal errors.
	Message string `json:"message,omitempty"`
}

func (e *StatusChangedEvent) EventType() string { return "status.changed" }

// UserSpeakingEvent reports the speech-activity indicator for the candidate.
type UserSpeakingEvent struct {
	Speaking bool `json:"speaking"`
}

func (e *UserSpeakingEvent) EventType() string { return "user.speaking" }

// AISpeakingEvent flips when scheduled playback starts and drains.
type AISpeakingEvent struct {
	Speaking bool `json:"speaking"`
}

func (e *AISpeakingEvent) EventType() string { return "ai.speaking" }

// MutedEvent reports the microphone mute flag after a toggle.
type MutedEvent struct {
	Muted bool `json:"muted"`
}

func (e *MutedEvent) EventType() string { return "mic.muted" }

// TranscriptDeltaEvent streams partial transcript text for live captioning.
type TranscriptDeltaEvent struct {
	Speaker types.Speaker `json:"speaker"`
	Text    string        `json:"text"`
}

func (e *TranscriptDeltaEvent) EventType() string { return "transcript.delta" }

// TimerTickEvent reports the remaining budget once per counted second.
type TimerTickEvent struct {
	RemainingSeconds int `json:"remaining_seconds"`
}

func (e *TimerTickEvent) EventType() string { return "timer.tick" }

// TimeWarningEvent fires once per configured threshold.
type TimeWarningEvent struct {
	RemainingSeconds int    `json:"remaining_seconds"`
	Message          string `json:"message"`
}

func (e *TimeWarningEvent) EventType() string { return "timer.warning" }

// TimeWarningDismissedEvent follows a TimeWarningEvent after the display window.
type TimeWarningDismissedEvent struct{}

func (e *TimeWarningDismissedEvent) EventType() string { return "timer.warning_dismissed" }

// ReportReadyEvent is emitted once report generation succeeds; navigation to
// the results view is the caller's concern.
type ReportReadyEvent struct {
	SessionID string `json:"session_id"`
}

func (e *ReportReadyEvent) EventType() string { return "report.ready" }

// SessionErrorEvent accompanies the terminal error status with a short
// human-readable message.
type SessionErrorEvent struct {
	Message string `json:"message"`
}

func (e *SessionErrorEvent) EventType() string { return "session.error" }
