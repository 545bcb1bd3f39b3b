// Package domain contains core domain types for the Carelane application.
package domain

import (
	"time"
)

// CallState represents the lifecycle state of an outbound call session.
type CallState string

const (
	// CallStateConnecting means the call has been requested but the provider
	// has not accepted it yet.
	CallStateConnecting CallState = "connecting"
	// CallStateActive means the provider accepted the call and the agent is
	// speaking with the clinic.
	CallStateActive CallState = "active"
	// CallStateOnHold means the agent paused the conversation while waiting
	// for a patient decision.
	CallStateOnHold CallState = "on_hold"
	// CallStateEnded is terminal.
	CallStateEnded CallState = "ended"
)

// Speaker identifies who produced a transcript line.
type Speaker string

const (
	SpeakerAgent        Speaker = "agent"
	SpeakerReceptionist Speaker = "receptionist"
	SpeakerUnknown      Speaker = "unknown"
)

// TranscriptLine is a single utterance in the call transcript.
type TranscriptLine struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// CallSession represents one outbound call attempt. It is owned exclusively
// by the relay orchestrator; everyone else sees snapshots.
type CallSession struct {
	ID                     string           `json:"id"`
	UserID                 string           `json:"user_id,omitempty"`
	SessionID              string           `json:"session_id,omitempty"`
	ProviderConversationID string           `json:"provider_conversation_id,omitempty"`
	State                  CallState        `json:"state"`
	Phone                  string           `json:"phone"`
	ClinicName             string           `json:"clinic_name"`
	Reason                 string           `json:"reason"`
	Transcript             []TranscriptLine `json:"transcript"`
	PendingUserResponse    bool             `json:"pending_user_response"`
	StartedAt              time.Time        `json:"started_at"`
	EndedAt                time.Time        `json:"ended_at,omitzero"`
}

// Ended returns true once the session reached its terminal state.
func (s *CallSession) Ended() bool {
	return s.State == CallStateEnded
}

// AdmitsTranscript reports whether transcript lines may still be appended.
// Only active and on-hold calls receive speech.
func (s *CallSession) AdmitsTranscript() bool {
	return s.State == CallStateActive || s.State == CallStateOnHold
}

// Clone returns a deep copy safe to hand out to readers.
func (s *CallSession) Clone() *CallSession {
	if s == nil {
		return nil
	}
	c := *s
	c.Transcript = make([]TranscriptLine, len(s.Transcript))
	copy(c.Transcript, s.Transcript)
	return &c
}
