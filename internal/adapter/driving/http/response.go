package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/orchestrix/orchestrix-alerts/internal/core/domain"
	"github.com/orchestrix/orchestrix-alerts/internal/core/port"
	"github.com/orchestrix/orchestrix-alerts/internal/projection"
)

// PaginatedResponse represents a paginated response
type PaginatedResponse struct {
	Data  any   `json:"data"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

// DataResponse represents a single data response
type DataResponse struct {
	Data any `json:"data"`
}

// CommandResponse is returned by every alert command. Data is the
// write-side state after the command, rendered like a read-model document.
type CommandResponse struct {
	Data     domain.AlertDocument `json:"data"`
	Changed  bool                 `json:"changed"`
	Warnings []string             `json:"warnings,omitempty"`
}

func commandResponse(result *port.CommandResult) CommandResponse {
	return CommandResponse{
		Data:     projection.ToDocument(*result.Alert),
		Changed:  result.Changed,
		Warnings: result.Warnings,
	}
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// parsePagination reads ?page and ?limit; bounds are applied by the query
// service
func parsePagination(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	return page, limit
}
