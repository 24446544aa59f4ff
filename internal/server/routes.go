package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Audits
	mux.HandleFunc("/api/audits", s.handleAuditsRoute) // GET (list), POST (create)
	mux.HandleFunc("/api/audits/", s.handleAuditRoutes)

	// API routes - System
	mux.HandleFunc("/api/status", s.app.StatusHandler.GetStatusHandler)
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleAuditsRoute dispatches the audit collection endpoint by method
func (s *Server) handleAuditsRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "POST":
		s.app.AuditHandler.CreateAuditHandler(w, r)
	case "GET":
		s.app.AuditHandler.ListAuditsHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleAuditRoutes routes /api/audits/{id} and its subpaths
func (s *Server) handleAuditRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/audits/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	jobID := parts[0]

	switch {
	case len(parts) == 1:
		// GET /api/audits/{id}
		s.app.AuditHandler.GetAuditHandler(w, r, jobID)
	case len(parts) == 2 && parts[1] == "results":
		// GET /api/audits/{id}/results
		s.app.AuditHandler.GetResultsHandler(w, r, jobID)
	case len(parts) == 2 && parts[1] == "cancel":
		// POST /api/audits/{id}/cancel
		s.app.AuditHandler.CancelAuditHandler(w, r, jobID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}
