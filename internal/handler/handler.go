// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nordbay-events/sponsorreg/internal/allocator"
	"github.com/nordbay-events/sponsorreg/internal/model"
	"github.com/nordbay-events/sponsorreg/internal/repository"
	"github.com/nordbay-events/sponsorreg/internal/resilient"
	"github.com/nordbay-events/sponsorreg/internal/service"
)

// RegistrationHandler holds all HTTP handlers for the sponsorship API.
type RegistrationHandler struct {
	svc *service.RegistrationService
}

// NewRegistrationHandler constructs a RegistrationHandler.
func NewRegistrationHandler(svc *service.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{svc: svc}
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

func writeViolations(w http.ResponseWriter, violations []string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string][]string{"violations": violations})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeServiceError maps service/allocator/executor errors to HTTP
// statuses. Toggle rejections become 409 warnings; executor terminal
// errors keep only their sanitized category message.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "registration session not found")
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, allocator.ErrUnknownPlan),
		errors.Is(err, allocator.ErrUnknownEvent),
		errors.Is(err, allocator.ErrUnknownDate):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, allocator.ErrNoPlan),
		errors.Is(err, allocator.ErrDateClaimed),
		errors.Is(err, allocator.ErrLimitReached),
		errors.Is(err, allocator.ErrAboveMaxUnits):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, resilient.ErrDatabaseIdle):
		writeError(w, http.StatusServiceUnavailable, resilient.ErrDatabaseIdle.Error())
	case errors.Is(err, resilient.ErrUnableToConnect):
		writeError(w, http.StatusServiceUnavailable, resilient.ErrUnableToConnect.Error())
	case errors.Is(err, service.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// ─── Catalog ──────────────────────────────────────────────────────────────────

// Catalog handles GET /api/catalog
// Returns the current events, their dates, and the static plan list.
func (h *RegistrationHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.svc.Catalog(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, catalog)
}

// ─── Wizard sessions ──────────────────────────────────────────────────────────

type startSessionRequest struct {
	PlanID string `json:"plan_id"`
}

type sessionResponse struct {
	SessionID  string                   `json:"session_id,omitempty"`
	State      allocator.SelectionState `json:"state"`
	Violations []string                 `json:"violations,omitempty"`
}

// StartSession handles POST /api/sessions
// Opens a wizard session, optionally pre-selecting a sponsorship plan.
func (h *RegistrationHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	id, state, err := h.svc.StartSession(r.Context(), req.PlanID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{SessionID: id, State: state})
}

// GetSession handles GET /api/sessions/{id}
// Returns the selection state plus any outstanding step violations.
func (h *RegistrationHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	state, violations, err := h.svc.SessionState(chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{State: state, Violations: violations})
}

// SelectPlan handles POST /api/sessions/{id}/plan
// Re-selects the plan, resetting all selections.
func (h *RegistrationHandler) SelectPlan(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	state, err := h.svc.SelectPlan(chi.URLParam(r, "id"), req.PlanID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{State: state})
}

type toggleRequest struct {
	EventID string `json:"event_id"`
	Date    string `json:"date"`
}

// TogglePlanDate handles POST /api/sessions/{id}/plan/toggle
func (h *RegistrationHandler) TogglePlanDate(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	state, err := h.svc.TogglePlanDate(chi.URLParam(r, "id"), req.EventID, req.Date)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{State: state})
}

type limitRequest struct {
	EventID string      `json:"event_id"`
	Limit   model.Limit `json:"limit"`
}

// SetSupplementalLimit handles POST /api/sessions/{id}/supplemental/limit
// The limit is a number or the string "ALL".
func (h *RegistrationHandler) SetSupplementalLimit(w http.ResponseWriter, r *http.Request) {
	var req limitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	state, err := h.svc.SetSupplementalLimit(chi.URLParam(r, "id"), req.EventID, req.Limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{State: state})
}

// ToggleSupplementalDate handles POST /api/sessions/{id}/supplemental/toggle
func (h *RegistrationHandler) ToggleSupplementalDate(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	state, err := h.svc.ToggleSupplementalDate(chi.URLParam(r, "id"), req.EventID, req.Date)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{State: state})
}

// Submit handles POST /api/sessions/{id}/submit
// Persists the registration; validation problems come back as 422.
func (h *RegistrationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var contact service.Contact
	if err := decodeJSON(r, &contact); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	reg, violations, err := h.svc.Submit(r.Context(), chi.URLParam(r, "id"), contact)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if len(violations) > 0 {
		writeViolations(w, violations)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

// ─── Admin: manual post-registration additions ────────────────────────────────

// GetRegistration handles GET /api/admin/registrations/{id}
func (h *RegistrationHandler) GetRegistration(w http.ResponseWriter, r *http.Request) {
	reg, dates, err := h.svc.Registration(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if dates == nil {
		dates = []model.RegistrationDate{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"registration": reg, "dates": dates})
}

// AvailableDates handles GET /api/admin/registrations/{id}/available-dates?year=2026
// Lists the dates a registration could still be extended with.
func (h *RegistrationHandler) AvailableDates(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		year = time.Now().Year()
	}

	dates, err := h.svc.AvailableDates(r.Context(), chi.URLParam(r, "id"), year)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if dates == nil {
		dates = []model.EventDate{}
	}
	writeJSON(w, http.StatusOK, dates)
}

type manualAddRequest struct {
	Entries []service.ManualEntry `json:"entries"`
	Notes   string                `json:"notes"`
}

// AddManualDates handles POST /api/admin/registrations/{id}/dates
// Appends admin-justified rows; never edits existing ones.
func (h *RegistrationHandler) AddManualDates(w http.ResponseWriter, r *http.Request) {
	var req manualAddRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	violations, err := h.svc.AddManualDates(r.Context(), AdminID(r.Context()),
		chi.URLParam(r, "id"), req.Entries, req.Notes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if len(violations) > 0 {
		writeViolations(w, violations)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
