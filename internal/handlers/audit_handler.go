// -----------------------------------------------------------------------
// Audit handler - the REST surface of the audit lifecycle
// -----------------------------------------------------------------------

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/percipio/internal/interfaces"
	"github.com/ternarybob/percipio/internal/models"
	"github.com/ternarybob/percipio/internal/services/audit"
)

// CreateAuditRequest is the POST /api/audits body.
type CreateAuditRequest struct {
	URL              string `json:"url" validate:"required,url"`
	Plan             string `json:"plan" validate:"omitempty,oneof=basic pro enterprise"`
	MaxPages         int    `json:"max_pages" validate:"omitempty,min=1,max=30"`
	UserID           string `json:"user_id"`
	PaymentSessionID string `json:"payment_session_id"`
}

// AuditHandler handles HTTP requests for audit jobs
type AuditHandler struct {
	auditService *audit.Service
	validate     *validator.Validate
	logger       arbor.ILogger
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(auditService *audit.Service, logger arbor.ILogger) *AuditHandler {
	return &AuditHandler{
		auditService: auditService,
		validate:     validator.New(),
		logger:       logger,
	}
}

// CreateAuditHandler handles POST /api/audits
func (h *AuditHandler) CreateAuditHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req CreateAuditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.auditService.CreateAudit(r.Context(), &audit.CreateRequest{
		URL:              req.URL,
		Plan:             models.PlanTier(req.Plan),
		MaxPages:         req.MaxPages,
		SubmitterID:      req.UserID,
		PaymentSessionID: req.PaymentSessionID,
	})
	if err != nil {
		h.logger.Warn().Err(err).Str("url", req.URL).Msg("Audit submission rejected")
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	WriteJSON(w, http.StatusAccepted, job)
}

// GetAuditHandler handles GET /api/audits/{id}
func (h *AuditHandler) GetAuditHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	job, err := h.auditService.GetJob(r.Context(), jobID)
	if err != nil {
		h.writeLookupError(w, jobID, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// GetResultsHandler handles GET /api/audits/{id}/results. Partial results
// are served while the job runs; the report appears once completed.
func (h *AuditHandler) GetResultsHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	results, err := h.auditService.GetResults(r.Context(), jobID)
	if err != nil {
		h.writeLookupError(w, jobID, err)
		return
	}
	WriteJSON(w, http.StatusOK, results)
}

// CancelAuditHandler handles POST /api/audits/{id}/cancel
func (h *AuditHandler) CancelAuditHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	err := h.auditService.Cancel(r.Context(), jobID)
	switch {
	case err == nil:
		WriteSuccess(w, "Cancellation requested")
	case errors.Is(err, models.ErrNotFound):
		WriteError(w, http.StatusNotFound, "Audit not found")
	case errors.Is(err, models.ErrIllegalState):
		WriteError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Cancel failed")
		WriteError(w, http.StatusInternalServerError, "Failed to cancel audit")
	}
}

// ListAuditsHandler handles GET /api/audits
func (h *AuditHandler) ListAuditsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	limit, offset := GetPaginationParams(r)
	opts := &interfaces.JobListOptions{
		Status:      models.JobStatus(r.URL.Query().Get("status")),
		SubmitterID: r.URL.Query().Get("user_id"),
		Limit:       limit,
		Offset:      offset,
	}

	jobs, err := h.auditService.ListJobs(r.Context(), opts)
	if err != nil {
		h.logger.Error().Err(err).Msg("Job listing failed")
		WriteError(w, http.StatusInternalServerError, "Failed to list audits")
		return
	}
	if jobs == nil {
		jobs = []*models.AuditJob{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"audits": jobs,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *AuditHandler) writeLookupError(w http.ResponseWriter, jobID string, err error) {
	if errors.Is(err, models.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "Audit not found")
		return
	}
	h.logger.Error().Err(err).Str("job_id", jobID).Msg("Audit lookup failed")
	WriteError(w, http.StatusInternalServerError, "Failed to load audit")
}
