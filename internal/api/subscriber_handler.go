package api

import (
	"context"
	"net/http"
	"strconv"

	"snapletter/internal/api/shared"
	"snapletter/internal/app"
	"snapletter/internal/domain/preference"

	"github.com/go-chi/chi/v5"
)

// SubscriptionService is what the subscriber endpoints need from the app layer.
type SubscriptionService interface {
	SavePreferences(ctx context.Context, subscriberID string, u preference.Update) (*app.SaveResult, error)
	GetPreferences(ctx context.Context, subscriberID string) (*preference.Record, error)
	SetActivation(ctx context.Context, subscriberID string, active bool) (*app.ActivationResult, error)
	Preflight(ctx context.Context, subscriberID string, version int64) (*app.PreflightDecision, error)
	GetRunStatus(ctx context.Context, correlationID string) (*app.RunReport, error)
}

// SubscriberHandler handles subscriber preference and activation requests.
type SubscriberHandler struct {
	svc SubscriptionService
}

func NewSubscriberHandler(svc SubscriptionService) *SubscriberHandler {
	return &SubscriberHandler{svc: svc}
}

// SavePreferences handles PUT /api/subscribers/{subscriberID}/preferences
func (h *SubscriberHandler) SavePreferences(w http.ResponseWriter, r *http.Request) {
	var req PreferencesRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	res, err := h.svc.SavePreferences(r.Context(), chi.URLParam(r, "subscriberID"), preference.Update{
		Topics:         req.Topics,
		Cadence:        preference.Cadence(req.Cadence),
		ContactAddress: req.ContactAddress,
	})
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, SaveResponse{
		Success:     true,
		Message:     saveMessage("Preferences", res.Scheduling),
		Warning:     res.Scheduling.Warning,
		Preferences: preferencesToResponse(res.Preferences),
		Scheduling:  schedulingToResponse(res.Scheduling),
	})
}

// GetPreferences handles GET /api/subscribers/{subscriberID}/preferences
func (h *SubscriberHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.GetPreferences(r.Context(), chi.URLParam(r, "subscriberID"))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, preferencesToResponse(rec))
}

// SetActivation handles PATCH /api/subscribers/{subscriberID}/activation
func (h *SubscriberHandler) SetActivation(w http.ResponseWriter, r *http.Request) {
	var req ActivationRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: active is required")
		return
	}

	res, err := h.svc.SetActivation(r.Context(), chi.URLParam(r, "subscriberID"), *req.Active)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	subject := "Deactivation"
	if *req.Active {
		subject = "Activation"
	}
	resp := SaveResponse{
		Success:     true,
		Message:     saveMessage(subject, res.Scheduling),
		Preferences: preferencesToResponse(res.Preferences),
		Scheduling:  schedulingToResponse(res.Scheduling),
	}
	if res.Scheduling != nil {
		resp.Warning = res.Scheduling.Warning
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// Preflight handles GET /api/subscribers/{subscriberID}/preflight?version=N
func (h *SubscriberHandler) Preflight(w http.ResponseWriter, r *http.Request) {
	version, err := strconv.ParseInt(r.URL.Query().Get("version"), 10, 64)
	if err != nil || version <= 0 {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Query parameter version must be a positive integer")
		return
	}

	decision, err := h.svc.Preflight(r.Context(), chi.URLParam(r, "subscriberID"), version)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, decision)
}

// GetRunStatus handles GET /api/runs/{correlationID} and the legacy
// GET /api/newsletter/status?runId=... form.
func (h *SubscriberHandler) GetRunStatus(w http.ResponseWriter, r *http.Request) {
	correlationID := chi.URLParam(r, "correlationID")
	if correlationID == "" {
		correlationID = r.URL.Query().Get("runId")
	}

	report, err := h.svc.GetRunStatus(r.Context(), correlationID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, report)
}
