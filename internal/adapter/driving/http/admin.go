package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/orchestrix/orchestrix-alerts/internal/core/port"
	"github.com/orchestrix/orchestrix-alerts/pkg/apperror"
)

// AdminHandler exposes operational endpoints
type AdminHandler struct {
	rebuilder port.ProjectionRebuilder
	errors    *apperror.Handler
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(rebuilder port.ProjectionRebuilder, errHandler *apperror.Handler) *AdminHandler {
	return &AdminHandler{rebuilder: rebuilder, errors: errHandler}
}

// Routes registers admin routes
func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/projections/alerts/reset", h.ResetAlerts)
	return r
}

// RebuildResponse describes a rebuild request outcome
type RebuildResponse struct {
	Mode           string `json:"mode"`
	WorkflowID     string `json:"workflowId,omitempty"`
	RunID          string `json:"runId,omitempty"`
	EventsReplayed int64  `json:"eventsReplayed"`
}

// ResetAlerts rebuilds the alert read model. An inline rebuild has finished
// when the response is written; a workflow rebuild has only been started.
func (h *AdminHandler) ResetAlerts(w http.ResponseWriter, r *http.Request) {
	result, err := h.rebuilder.RebuildAlerts(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	status := http.StatusOK
	if result.Mode == port.RebuildModeWorkflow {
		status = http.StatusAccepted
	}
	respondJSON(w, status, RebuildResponse{
		Mode:           result.Mode,
		WorkflowID:     result.WorkflowID,
		RunID:          result.RunID,
		EventsReplayed: result.EventsReplayed,
	})
}
