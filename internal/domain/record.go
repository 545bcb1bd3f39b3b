package domain

import (
	"time"
)

// CallRecord is a finished call persisted for the history view. Durability is
// process-lifetime only; the record exists so a reloaded dashboard can show
// what happened.
type CallRecord struct {
	ID         string           `json:"id"`
	UserID     string           `json:"user_id,omitempty"`
	SessionID  string           `json:"session_id,omitempty"`
	ClinicName string           `json:"clinic_name"`
	Reason     string           `json:"reason"`
	Phone      string           `json:"phone"`
	FinalState CallState        `json:"final_state"`
	Transcript []TranscriptLine `json:"transcript"`
	StartedAt  time.Time        `json:"started_at"`
	EndedAt    time.Time        `json:"ended_at"`
}
