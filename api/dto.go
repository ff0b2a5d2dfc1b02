/*
dto.go - Request and response bodies for the HTTP API

NAMING CONVENTION:
  - *Request: request body types from clients
  - *Response: response bodies

  Leave submission and recording decode straight into timeoff.SubmitInput
  and timeoff.RecordInput; their struct tags are the validation rules.

SEE ALSO:
  - handlers.go: uses these types
*/
package api

import (
	"time"

	"github.com/warp/workfacts/facts"
	"github.com/warp/workfacts/timeoff"
)

// =============================================================================
// EXTRACTION
// =============================================================================

// CallbackRequest is what the extraction service posts after analysing a
// conversation.
type CallbackRequest struct {
	UserID        string         `json:"user_id"`
	ExtractedData map[string]any `json:"extracted_data"`
}

type CallbackResponse struct {
	UserID       string                `json:"user_id"`
	UpdatedCount int                   `json:"updated_count"`
	CurrentData  map[string]facts.View `json:"current_data"`
	Timestamp    time.Time             `json:"timestamp"`
}

// ExtractRequest asks the server to run extraction itself.
type ExtractRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

type ExtractResponse struct {
	CallbackResponse
	ExtractedData map[string]any `json:"extracted_data"`
}

// =============================================================================
// READS
// =============================================================================

// DataResponse carries either one View (type=...) or a map of them, or the
// simple projection of either.
type DataResponse struct {
	UserID    string    `json:"user_id"`
	Format    string    `json:"format"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// =============================================================================
// LEAVE
// =============================================================================

type SubmitResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

// ResolveRequest is the body of POST /api/leave/requests/{id}/resolve.
// Approved is a pointer so a missing decision is rejected.
type ResolveRequest struct {
	Approved *bool  `json:"approved"`
	Approver string `json:"approver"`
}

type RejectedResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

type PendingResponse struct {
	Requests []timeoff.LeaveRequest `json:"requests"`
	Count    int                    `json:"count"`
}

// =============================================================================
// MISC
// =============================================================================

type HealthResponse struct {
	Status          string    `json:"status"`
	Store           string    `json:"store"`
	PendingRequests int       `json:"pending_requests"`
	Extraction      bool      `json:"extraction_enabled"`
	Timestamp       time.Time `json:"timestamp"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
