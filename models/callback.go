package models

import "encoding/json"

// CallbackPayload is the raw body the ML backend posts once an analysis finishes.
// Sub-objects are kept raw so that one malformed prediction does not fail the
// whole callback.
type CallbackPayload struct {
	SessionID        string          `json:"session_id,omitempty"`
	SessionIDCamel   string          `json:"sessionId,omitempty"`
	RawProcessing    json.RawMessage `json:"processing_results,omitempty"`
	ParticipantSaved json.RawMessage `json:"participant_saved,omitempty"`
	ParticipantID    json.RawMessage `json:"participant_id,omitempty"`
	FingerprintSaved json.RawMessage `json:"fingerprint_saved,omitempty"`
	ParticipantData  json.RawMessage `json:"participant_data,omitempty"`
}

// ProcessingResult holds the per-model sections of processing_results
type ProcessingResult struct {
	DiabetesPrediction       json.RawMessage `json:"diabetes_prediction,omitempty"`
	BloodGroupClassification json.RawMessage `json:"blood_group_classification,omitempty"`
}

// DiabetesPrediction is the backend's diabetes_prediction section
type DiabetesPrediction struct {
	Risk       *string         `json:"risk"`
	Confidence *float64        `json:"confidence"`
	ResultID   json.RawMessage `json:"result_id"`
	Error      json.RawMessage `json:"error"`
}

// BloodGroupClassification is the backend's blood_group_classification section
type BloodGroupClassification struct {
	PredictedBloodGroup *string            `json:"predicted_blood_group"`
	Confidence          *float64           `json:"confidence"`
	AllProbabilities    map[string]float64 `json:"all_probabilities"`
	Error               json.RawMessage    `json:"error"`
}
