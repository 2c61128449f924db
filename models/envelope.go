package models

import (
	"encoding/json"
	"time"
)

const (
	// UnknownPrediction is used when the backend did not return a usable prediction.
	UnknownPrediction = "UNKNOWN"
)

// DiabetesResult is the normalized diabetes risk prediction
type DiabetesResult struct {
	Success           bool            `json:"success"`
	DiabetesRisk      string          `json:"diabetes_risk"`
	Confidence        float64         `json:"confidence"`
	Saved             bool            `json:"saved"`
	ParticipantID     *int64          `json:"participant_id,omitempty"`
	ResultID          *int64          `json:"result_id,omitempty"`
	ProcessingResults json.RawMessage `json:"processing_results,omitempty"`
}

// BloodGroupResult is the normalized blood group classification
type BloodGroupResult struct {
	Success             bool               `json:"success"`
	PredictedBloodGroup *string            `json:"predicted_blood_group,omitempty"`
	Confidence          float64            `json:"confidence"`
	AllProbabilities    map[string]float64 `json:"all_probabilities,omitempty"`
	Saved               bool               `json:"saved"`
	ParticipantID       *int64             `json:"participant_id,omitempty"`
	ProcessingResults   json.RawMessage    `json:"processing_results,omitempty"`
}

// ResultEnvelope is the canonical record stored under a session token and
// handed to the results view.
type ResultEnvelope struct {
	DiabetesResult   DiabetesResult   `json:"diabetesResult"`
	BloodGroupResult BloodGroupResult `json:"bloodGroupResult"`
	ParticipantData  json.RawMessage  `json:"participantData"`
	BackendResponse  json.RawMessage  `json:"backendResponse"`
	Timestamp        time.Time        `json:"timestamp"`
	SessionID        string           `json:"sessionId"`
	// Pending marks a placeholder synthesized on the kiosk after polling timed out.
	Pending bool `json:"pending,omitempty"`
}

// StoreEntry wraps an envelope with its expiry. A zero ExpiresAt never expires.
type StoreEntry struct {
	Envelope  *ResultEnvelope
	ExpiresAt time.Time
}

// IsExpired reports whether the entry is past its expiry at the given instant
func (e *StoreEntry) IsExpired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}
