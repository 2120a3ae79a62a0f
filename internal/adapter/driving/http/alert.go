package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/orchestrix/orchestrix-alerts/internal/core/domain"
	"github.com/orchestrix/orchestrix-alerts/internal/core/port"
	"github.com/orchestrix/orchestrix-alerts/pkg/apperror"
	"github.com/orchestrix/orchestrix-alerts/pkg/validation"
)

// ActorHeader names the caller when a request body leaves the actor blank
const ActorHeader = "X-Actor"

// AlertHandler handles alert HTTP requests
type AlertHandler struct {
	commands port.AlertCommandService
	queries  port.AlertQueryService
	errors   *apperror.Handler
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(commands port.AlertCommandService, queries port.AlertQueryService, errHandler *apperror.Handler) *AlertHandler {
	return &AlertHandler{commands: commands, queries: queries, errors: errHandler}
}

// Routes registers alert routes
func (h *AlertHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/state", h.State)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/acknowledge", h.Acknowledge)
	r.Post("/{id}/resolve", h.Resolve)
	r.Post("/{id}/close", h.Close)
	r.Post("/{id}/notes", h.AddNote)
	r.Post("/{id}/assign", h.Assign)

	return r
}

// List returns read-model documents filtered by ?status, ?from, ?to and ?q
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, limit := parsePagination(r)
	query := domain.AlertQuery{Keyword: q.Get("q"), Page: page, Limit: limit}

	err := validation.Validate(func(v *validation.Validator) {
		if s := q.Get("status"); s != "" {
			status, ok := domain.ParseStatus(s)
			v.Custom("status", ok, "status must be a known alert status")
			query.Status = status
		}
		query.From = parseTime(v, "from", q.Get("from"))
		query.To = parseTime(v, "to", q.Get("to"))
		v.Ordered("from", query.From, query.To)
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	result, err := h.queries.Search(r.Context(), query)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, PaginatedResponse{
		Data:  result.Alerts,
		Total: result.Total,
		Page:  result.Page,
		Limit: result.Limit,
	})
}

// Get returns the read-model document of one alert
func (h *AlertHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.alertID(w, r)
	if !ok {
		return
	}

	doc, err := h.queries.GetByID(r.Context(), id.String())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, DataResponse{Data: doc})
}

// State returns the alert rebuilt from its events, bypassing the read model
func (h *AlertHandler) State(w http.ResponseWriter, r *http.Request) {
	id, ok := h.alertID(w, r)
	if !ok {
		return
	}

	alert, err := h.commands.Get(r.Context(), id)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, commandResponse(&port.CommandResult{Alert: alert}))
}

// Create creates a new alert
func (h *AlertHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateAlertRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	severity, _ := domain.ParseSeverity(req.Severity)
	result, err := h.commands.Create(r.Context(), port.CreateAlertInput{
		AlertID:        req.AlertID,
		Severity:       severity,
		Description:    req.Description,
		Source:         req.Source,
		Details:        req.Details,
		EventTimestamp: req.EventTimestamp,
		InitiatedBy:    actor(r, req.InitiatedBy),
	})
	h.respond(w, r, http.StatusCreated, result, err)
}

// Update changes severity, description or details
func (h *AlertHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.alertID(w, r)
	if !ok {
		return
	}
	var req UpdateAlertRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	input := port.UpdateAlertInput{
		Description: req.Description,
		Details:     req.Details,
		UpdatedBy:   actor(r, req.UpdatedBy),
	}
	if req.Severity != nil {
		severity, _ := domain.ParseSeverity(*req.Severity)
		input.Severity = &severity
	}

	result, err := h.commands.Update(r.Context(), id, input)
	h.respond(w, r, http.StatusOK, result, err)
}

// Acknowledge acknowledges an alert
func (h *AlertHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	id, ok := h.alertID(w, r)
	if !ok {
		return
	}
	var req AcknowledgeAlertRequest
	if !h.decode(w, r, &req, true) {
		return
	}

	result, err := h.commands.Acknowledge(r.Context(), id, port.AcknowledgeAlertInput{
		AcknowledgedBy: actor(r, req.AcknowledgedBy),
		Notes:          req.Notes,
	})
	h.respond(w, r, http.StatusOK, result, err)
}

// Resolve resolves an alert
func (h *AlertHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, ok := h.alertID(w, r)
	if !ok {
		return
	}
	var req ResolveAlertRequest
	if !h.decode(w, r, &req, true) {
		return
	}

	result, err := h.commands.Resolve(r.Context(), id, port.ResolveAlertInput{
		ResolvedBy:        actor(r, req.ResolvedBy),
		ResolutionDetails: req.ResolutionDetails,
	})
	h.respond(w, r, http.StatusOK, result, err)
}

// Close closes an alert
func (h *AlertHandler) Close(w http.ResponseWriter, r *http.Request) {
	id, ok := h.alertID(w, r)
	if !ok {
		return
	}
	var req CloseAlertRequest
	if !h.decode(w, r, &req, true) {
		return
	}

	result, err := h.commands.Close(r.Context(), id, port.CloseAlertInput{
		ClosedBy: actor(r, req.ClosedBy),
		Reason:   req.Reason,
	})
	h.respond(w, r, http.StatusOK, result, err)
}

// AddNote attaches a note to an alert
func (h *AlertHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	id, ok := h.alertID(w, r)
	if !ok {
		return
	}
	var req AddNoteRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	result, err := h.commands.AddNote(r.Context(), id, port.AddNoteInput{
		Text:   req.Text,
		Author: actor(r, req.Author),
	})
	h.respond(w, r, http.StatusCreated, result, err)
}

// Assign assigns an alert to someone
func (h *AlertHandler) Assign(w http.ResponseWriter, r *http.Request) {
	id, ok := h.alertID(w, r)
	if !ok {
		return
	}
	var req AssignAlertRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	result, err := h.commands.Assign(r.Context(), id, port.AssignAlertInput{
		Assignee:   req.Assignee,
		AssignedBy: actor(r, req.AssignedBy),
	})
	h.respond(w, r, http.StatusOK, result, err)
}

// Delete soft-deletes an alert. The body is optional.
func (h *AlertHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.alertID(w, r)
	if !ok {
		return
	}
	var req DeleteAlertRequest
	if !h.decode(w, r, &req, true) {
		return
	}

	result, err := h.commands.Delete(r.Context(), id, port.DeleteAlertInput{
		DeletedBy: actor(r, req.DeletedBy),
		Reason:    req.Reason,
	})
	h.respond(w, r, http.StatusOK, result, err)
}

// respond writes a command result. Accepted no-ops are reported with 200
// regardless of created.
func (h *AlertHandler) respond(w http.ResponseWriter, r *http.Request, created int, result *port.CommandResult, err error) {
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	status := http.StatusOK
	if result.Changed {
		status = created
	}
	respondJSON(w, status, commandResponse(result))
}

func (h *AlertHandler) alertID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.errors.Handle(w, r, apperror.BadRequest("invalid alert id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *AlertHandler) decode(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	h.errors.Handle(w, r, apperror.BadRequest("invalid request body"))
	return false
}

func actor(r *http.Request, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return r.Header.Get(ActorHeader)
}

func parseTime(v *validation.Validator, field, value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		v.AddError(field, field+" must be an RFC 3339 timestamp")
		return nil
	}
	return &t
}

// Request types

type CreateAlertRequest struct {
	AlertID        *uuid.UUID     `json:"alertId"`
	Severity       string         `json:"severity"`
	Description    string         `json:"description"`
	Source         *string        `json:"source"`
	Details        map[string]any `json:"details"`
	EventTimestamp *time.Time     `json:"eventTimestamp"`
	InitiatedBy    string         `json:"initiatedBy"`
}

type UpdateAlertRequest struct {
	Severity    *string        `json:"severity"`
	Description *string        `json:"description"`
	Details     map[string]any `json:"details"`
	UpdatedBy   string         `json:"updatedBy"`
}

type AcknowledgeAlertRequest struct {
	AcknowledgedBy string `json:"acknowledgedBy"`
	Notes          string `json:"notes"`
}

type ResolveAlertRequest struct {
	ResolvedBy        string `json:"resolvedBy"`
	ResolutionDetails string `json:"resolutionDetails"`
}

type CloseAlertRequest struct {
	ClosedBy string `json:"closedBy"`
	Reason   string `json:"reason"`
}

type AddNoteRequest struct {
	Text   string `json:"text"`
	Author string `json:"author"`
}

type AssignAlertRequest struct {
	Assignee   string `json:"assignee"`
	AssignedBy string `json:"assignedBy"`
}

type DeleteAlertRequest struct {
	DeletedBy string `json:"deletedBy"`
	Reason    string `json:"reason"`
}
