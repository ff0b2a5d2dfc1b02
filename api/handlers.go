/*
handlers.go - HTTP API handlers

PURPOSE:
  Exposes the fact service and the leave workflow over JSON/HTTP. Handles
  request decoding and response encoding; every rule lives in facts or
  timeoff.

ENDPOINTS:
  Extraction:
    POST   /api/llm/callback                    Ingest an extracted field batch
    POST   /api/llm/extract                     Extract from text, then ingest

  Front-end reads:
    GET    /api/frontend/users/{id}/data        Facts (?type=, ?format=simple|detailed)
    GET    /api/frontend/users/{id}/summary     Fixed-shape summary

  Leave:
    POST   /api/leave/requests                  Submit (201, pending)
    GET    /api/leave/requests/pending          List pending (?user_id=)
    POST   /api/leave/requests/{id}/resolve     Approve or reject
    POST   /api/leave/record                    Apply an already approved leave

  GET /health

ERROR HANDLING:
  Errors are returned as JSON {error, details} with status:
  - 400: validation errors, malformed JSON
  - 404: unknown user, data type or request id
  - 503: storage unavailable (retryable), extraction not configured
  - 502: extraction provider failed
  - 500: anything else

SECURITY NOTE:
  No authentication or authorization. Deploy behind a trusted gateway.

SEE ALSO:
  - dto.go: request/response bodies
  - server.go: router and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/workfacts/facts"
	"github.com/warp/workfacts/timeoff"
	"go.uber.org/zap"
)

// Extractor turns free text into an extracted field batch.
type Extractor interface {
	Extract(ctx context.Context, text string) (map[string]any, error)
}

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Facts *facts.Service
	Leave *timeoff.Workflow

	// Extractor is optional; /api/llm/extract answers 503 without it.
	Extractor Extractor

	log *zap.Logger
	now func() time.Time
}

// NewHandler creates a new handler.
func NewHandler(svc *facts.Service, wf *timeoff.Workflow, ext Extractor, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Facts:     svc,
		Leave:     wf,
		Extractor: ext,
		log:       log,
		now:       time.Now,
	}
}

// =============================================================================
// EXTRACTION HANDLERS
// =============================================================================

// Callback ingests a batch sent by the extraction service.
// POST /api/llm/callback
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	var req CallbackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.UserID) == "" || req.ExtractedData == nil {
		writeError(w, http.StatusBadRequest, "Required: user_id, extracted_data", nil)
		return
	}

	resp, err := h.ingest(r.Context(), req.UserID, req.ExtractedData)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Extract runs the configured extractor on text and ingests the result.
// POST /api/llm/extract
func (h *Handler) Extract(w http.ResponseWriter, r *http.Request) {
	if h.Extractor == nil {
		writeError(w, http.StatusServiceUnavailable, "Extraction is not configured", nil)
		return
	}

	var req ExtractRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "Required: user_id, text", nil)
		return
	}

	fields, err := h.Extractor.Extract(r.Context(), req.Text)
	if err != nil {
		if facts.IsClientError(err) {
			writeError(w, http.StatusBadRequest, "Invalid input", err)
			return
		}
		h.log.Error("extraction failed", zap.String("user_id", req.UserID), zap.Error(err))
		writeError(w, http.StatusBadGateway, "Extraction failed", err)
		return
	}

	resp, err := h.ingest(r.Context(), req.UserID, fields)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ExtractResponse{CallbackResponse: resp, ExtractedData: fields})
}

func (h *Handler) ingest(ctx context.Context, userID string, fields map[string]any) (CallbackResponse, error) {
	n, err := h.Facts.Ingest(ctx, userID, fields)
	if err != nil {
		return CallbackResponse{}, err
	}
	recs, err := h.Facts.All(ctx, userID)
	if err != nil {
		return CallbackResponse{}, err
	}
	h.log.Info("extracted data ingested", zap.String("user_id", userID), zap.Int("updated", n))
	return CallbackResponse{
		UserID:       userID,
		UpdatedCount: n,
		CurrentData:  facts.Views(recs),
		Timestamp:    h.now().UTC(),
	}, nil
}

// =============================================================================
// FRONT-END HANDLERS
// =============================================================================

// GetUserData returns a user's facts.
// GET /api/frontend/users/{id}/data?type=leave&format=simple
func (h *Handler) GetUserData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "id")

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "detailed"
	}
	if format != "detailed" && format != "simple" {
		writeError(w, http.StatusBadRequest, "format must be simple or detailed", nil)
		return
	}

	resp := DataResponse{UserID: userID, Format: format, Timestamp: h.now().UTC()}

	if dataType := r.URL.Query().Get("type"); dataType != "" {
		rec, err := h.Facts.Latest(ctx, userID, normalizeDataType(dataType))
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		if format == "simple" {
			resp.Data = rec.Value.Any()
		} else {
			resp.Data = rec.View()
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	recs, err := h.Facts.All(ctx, userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if len(recs) == 0 {
		writeError(w, http.StatusNotFound, "No data found for this user", nil)
		return
	}
	if format == "simple" {
		resp.Data = facts.Simple(recs)
	} else {
		resp.Data = facts.Views(recs)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetUserSummary returns the fixed-shape summary.
// GET /api/frontend/users/{id}/summary
func (h *Handler) GetUserSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.Facts.Summary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// normalizeDataType accepts either the internal data type ("leave") or the
// external key ("leave_days").
func normalizeDataType(s string) string {
	if def, ok := facts.Resolve(s); ok {
		return def.DataType
	}
	return s
}

// =============================================================================
// LEAVE HANDLERS
// =============================================================================

// SubmitLeave opens a pending leave request.
// POST /api/leave/requests
func (h *Handler) SubmitLeave(w http.ResponseWriter, r *http.Request) {
	var in timeoff.SubmitInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	req, err := h.Leave.Submit(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, SubmitResponse{RequestID: req.ID, Status: string(req.Status)})
}

// ListPendingLeave lists pending requests, optionally for one user.
// GET /api/leave/requests/pending?user_id=u1
func (h *Handler) ListPendingLeave(w http.ResponseWriter, r *http.Request) {
	reqs := h.Leave.ListPending(r.URL.Query().Get("user_id"))
	writeJSON(w, http.StatusOK, PendingResponse{Requests: reqs, Count: len(reqs)})
}

// ResolveLeave approves or rejects a pending request.
// POST /api/leave/requests/{id}/resolve
func (h *Handler) ResolveLeave(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Approved == nil {
		writeError(w, http.StatusBadRequest, "Required: approved", nil)
		return
	}

	res, err := h.Leave.Resolve(r.Context(), chi.URLParam(r, "id"), *req.Approved, req.Approver)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if res.Status == timeoff.StatusRejected {
		writeJSON(w, http.StatusOK, RejectedResponse{RequestID: res.RequestID, Status: string(res.Status)})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// RecordLeave applies a leave the front-end already confirmed.
// POST /api/leave/record
func (h *Handler) RecordLeave(w http.ResponseWriter, r *http.Request) {
	var in timeoff.RecordInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	res, err := h.Leave.Record(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports store connectivity and workflow state.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:          "healthy",
		Store:           "ok",
		PendingRequests: h.Leave.PendingCount(),
		Extraction:      h.Extractor != nil,
		Timestamp:       h.now().UTC(),
	}
	status := http.StatusOK
	if err := h.Facts.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Store = err.Error()
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// =============================================================================
// HELPERS
// =============================================================================

// decodeJSON decodes the body keeping numbers as json.Number so ingest can
// parse them without float rounding surprises.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}

// writeServiceError maps the facts error taxonomy onto HTTP status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case facts.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid input", err)
	case facts.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case facts.IsRetryable(err):
		h.log.Error("storage failure", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "Storage unavailable", err)
	default:
		h.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
