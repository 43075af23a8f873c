// Package types defines the wire and domain types shared between the live
// interview core, the backend SDK, and the gateway service.
package types

import (
	"time"
)

// Speaker identifies which side of the interview produced a transcript turn.
type Speaker string

const (
	SpeakerUser Speaker = "user"
	SpeakerAI   Speaker = "ai"
)

// Valid reports whether s is a known speaker value.
func (s Speaker) Valid() bool {
	return s == SpeakerUser || s == SpeakerAI
}

// Topic describes the role the candidate interviews for and the persona the
// voice model assumes for it.
type Topic struct {
	// Title is the role title shown to the candidate (e.g. "Backend Engineer").
	Title string `json:"title"`

	// Description is the free-form job description.
	Description string `json:"description,omitempty"`

	// Persona is the system instruction text driving the interviewer persona.
	Persona string `json:"persona"`

	// OpeningPrompt, when set, is sent as a synthetic first user turn right
	// after the connection opens so the interviewer greets the candidate
	// without the candidate having to speak first.
	OpeningPrompt string `json:"opening_prompt,omitempty"`

	// Voice optionally names the synthesis voice. Empty selects the default.
	Voice string `json:"voice,omitempty"`
}

// Session identifies one interview attempt. It is created by the backend when
// a candidate accepts an invite and is read-only for the live controller.
type Session struct {
	ID            string    `json:"id"`
	Topic         Topic     `json:"topic"`
	CandidateName string    `json:"candidate_name"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
}

// Credential is a single-use token scoped to one interview session, plus the
// model the client should connect to. Model may be empty, in which case the
// client falls back to its default model.
type Credential struct {
	Token string `json:"token"`
	Model string `json:"model,omitempty"`
}

// TranscriptTurn is one completed turn of accumulated transcript text for a
// single speaker.
type TranscriptTurn struct {
	SessionID string    `json:"session_id"`
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// QuestionScore is the per-question breakdown inside a report.
type QuestionScore struct {
	Question string `json:"question"`
	Answer   string `json:"answer,omitempty"`
	Score    int    `json:"score"`
	Feedback string `json:"feedback,omitempty"`
}

// Report is the scored outcome of an interview, produced by the backend from
// the persisted transcript.
type Report struct {
	SessionID    string          `json:"session_id"`
	OverallScore int             `json:"overall_score"`
	Summary      string          `json:"summary"`
	Questions    []QuestionScore `json:"questions,omitempty"`
	CreatedAt    time.Time       `json:"created_at,omitempty"`
}
