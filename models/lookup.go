package models

// LookupResponse is the body of GET /api/check-results
type LookupResponse struct {
	Success             bool            `json:"success"`
	HasResults          bool            `json:"hasResults"`
	Results             *ResultEnvelope `json:"results,omitempty"`
	ShouldStoreInClient bool            `json:"shouldStoreInClient,omitempty"`
	Message             string          `json:"message,omitempty"`
	Error               string          `json:"error,omitempty"`
}
