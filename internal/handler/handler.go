// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/event-reg-waitlist/internal/logging"
	"github.com/Shivanand-hulikatti/event-reg-waitlist/internal/model"
	"github.com/Shivanand-hulikatti/event-reg-waitlist/internal/service"
)

// EventHandler holds all HTTP handlers for the registration API.
type EventHandler struct {
	svc *service.EventService
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(svc *service.EventService) *EventHandler {
	return &EventHandler{svc: svc}
}

// Routes mounts the API on r.
func (h *EventHandler) Routes(r chi.Router) {
	r.Route("/events", func(r chi.Router) {
		r.Post("/", h.CreateEvent)
		r.Get("/", h.ListEvents)
		r.Get("/{id}", h.GetEvent)
		r.Post("/{id}/complete", h.CompleteEvent)
		r.Post("/{id}/register", h.Register)
		r.Post("/{id}/cancel", h.Cancel)
		r.Post("/{id}/groups", h.RegisterGroup)
		r.Delete("/{id}/groups/{groupID}", h.CancelGroup)
		r.Get("/{id}/registrations", h.ListRegistrations)
	})
	r.Get("/users/{userID}/registrations", h.ListUserRegistrations)
	r.Get("/registrations/{id}", h.GetRegistration)
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeServiceError maps a service error to a status code by kind.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	kind := service.KindOf(err)
	status := http.StatusInternalServerError
	msg := "internal error"

	switch kind {
	case service.KindValidation:
		status = http.StatusBadRequest
		if errors.Is(err, service.ErrEventNotFound) ||
			errors.Is(err, service.ErrRegistrationNotFound) ||
			errors.Is(err, service.ErrUserNotFound) {
			status = http.StatusNotFound
		}
		msg = err.Error()
	case service.KindConflict:
		status = http.StatusConflict
		msg = err.Error()
	case service.KindContention:
		status = http.StatusServiceUnavailable
		msg = service.ErrContention.Error()
		w.Header().Set("Retry-After", "1")
	default:
		if l := logging.FromContext(r.Context()); l != nil {
			l.Error("request failed", "error", err)
		}
	}
	writeJSON(w, status, model.ErrorResponse{Error: msg, Kind: kind.String()})
}

// ─── Events ───────────────────────────────────────────────────────────────────

// CreateEvent handles POST /events
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	event, err := h.svc.CreateEvent(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

// ListEvents handles GET /events
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.ListEvents(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if events == nil {
		events = []model.Event{}
	}

	writeJSON(w, http.StatusOK, events)
}

// GetEvent handles GET /events/{id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.svc.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// CompleteEvent handles POST /events/{id}/complete
// Called by the event lifecycle once the event has ended.
func (h *EventHandler) CompleteEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.svc.CompleteEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// ─── Registrations ────────────────────────────────────────────────────────────

// Register handles POST /events/{id}/register
// Responds 201 with the registration, which is CONFIRMED or WAITLISTED.
func (h *EventHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	reg, err := h.svc.RegisterForEvent(r.Context(), req.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, reg)
}

// Cancel handles POST /events/{id}/cancel
// Safe to retry: a second cancel returns the same record.
func (h *EventHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req model.CancelRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	reg, err := h.svc.CancelRegistration(r.Context(), req.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, reg)
}

// RegisterGroup handles POST /events/{id}/groups
func (h *EventHandler) RegisterGroup(w http.ResponseWriter, r *http.Request) {
	var req model.GroupRegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	regs, err := h.svc.RegisterGroup(r.Context(), req.PrimaryUserID, chi.URLParam(r, "id"), req.MemberUserIDs)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, regs)
}

// CancelGroup handles DELETE /events/{id}/groups/{groupID}
func (h *EventHandler) CancelGroup(w http.ResponseWriter, r *http.Request) {
	regs, err := h.svc.CancelGroup(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "groupID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, regs)
}

// ListRegistrations handles GET /events/{id}/registrations
func (h *EventHandler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := h.svc.ListEventRegistrations(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if regs == nil {
		regs = []model.Registration{}
	}

	writeJSON(w, http.StatusOK, regs)
}

// ListUserRegistrations handles GET /users/{userID}/registrations
func (h *EventHandler) ListUserRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := h.svc.GetUserRegistrations(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if regs == nil {
		regs = []model.Registration{}
	}

	writeJSON(w, http.StatusOK, regs)
}

// GetRegistration handles GET /registrations/{id}
func (h *EventHandler) GetRegistration(w http.ResponseWriter, r *http.Request) {
	reg, err := h.svc.GetRegistrationByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, reg)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
