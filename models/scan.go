package models

import "encoding/json"

const (
	// ProcessingStatusSentToBackend is reported by the scanner when the capture
	// was forwarded to the ML backend.
	ProcessingStatusSentToBackend = "sent_to_backend"

	// CallbackURLHeader carries the kiosk's callback address to the scanner
	CallbackURLHeader = "X-Frontend-Callback-URL"
)

// CaptureRequest is sent to the scanner's capture endpoint
type CaptureRequest struct {
	FingerName      FingerName      `json:"finger_name"`
	ParticipantData json.RawMessage `json:"participant_data,omitempty"`
	SessionID       string          `json:"session_id,omitempty"`
}

// CaptureResponse is the scanner's reply
type CaptureResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Data    *CaptureData `json:"data,omitempty"`
}

// CaptureData holds the captured image and the forwarding status
type CaptureData struct {
	ImageData        string          `json:"image_data"`
	ProcessingStatus string          `json:"processing_status,omitempty"`
	BackendError     json.RawMessage `json:"backend_error,omitempty"`
}

// CapturedFile is the decoded image tagged with its finger
type CapturedFile struct {
	FingerName  FingerName `json:"finger_name"`
	FileName    string     `json:"file_name"`
	ContentType string     `json:"content_type"`
	Content     []byte     `json:"-"`
}

// CaptureResult is what a dispatch returns to the caller. Capture success and
// result availability are independent: Waiting only says a poll session was armed.
type CaptureResult struct {
	File      CapturedFile `json:"file"`
	SessionID string       `json:"session_id,omitempty"`
	Waiting   bool         `json:"waiting"`
}

// PollState is the lifecycle state of a result polling session
type PollState string

const (
	PollWaiting   PollState = "waiting"
	PollFound     PollState = "found"
	PollTimeout   PollState = "timeout"
	PollCancelled PollState = "cancelled"
)

// IsTerminal reports whether polling has stopped
func (s PollState) IsTerminal() bool {
	return s != PollWaiting
}
