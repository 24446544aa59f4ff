package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/percipio/internal/common"
	"github.com/ternarybob/percipio/internal/interfaces"
	"github.com/ternarybob/percipio/internal/models"
	"github.com/ternarybob/percipio/internal/services/audit"
)

// StatusHandler handles HTTP requests for application status
type StatusHandler struct {
	auditService *audit.Service
	storage      interfaces.StorageManager
	logger       arbor.ILogger
	startedAt    time.Time
}

// NewStatusHandler creates a new StatusHandler
func NewStatusHandler(auditService *audit.Service, storage interfaces.StorageManager, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		auditService: auditService,
		storage:      storage,
		logger:       logger,
		startedAt:    time.Now(),
	}
}

// GetStatusHandler handles GET /api/status
func (h *StatusHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	counts := make(map[string]int)
	for _, status := range []models.JobStatus{
		models.JobStatusPending,
		models.JobStatusRunning,
		models.JobStatusCompleted,
		models.JobStatusFailed,
		models.JobStatusCancelled,
	} {
		n, err := h.storage.JobStorage().CountJobs(r.Context(), &interfaces.JobListOptions{Status: status})
		if err != nil {
			h.logger.Warn().Err(err).Str("status", string(status)).Msg("Job count failed")
			continue
		}
		counts[string(status)] = n
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"version":   common.GetVersion(),
		"uptime":    time.Since(h.startedAt).Round(time.Second).String(),
		"live_jobs": h.auditService.LiveJobCount(),
		"jobs":      counts,
	})
}
