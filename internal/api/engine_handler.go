package api

import (
	"net/http"
	"time"

	"snapletter/internal/api/shared"
	"snapletter/internal/domain/delivery"
	"snapletter/internal/infra/config"

	"github.com/google/uuid"
)

const testEventName = "test.event"

// EngineHandler exposes the execution engine probe and test endpoints.
type EngineHandler struct {
	engine      delivery.Engine
	cfg         config.EngineConfig
	environment string
}

func NewEngineHandler(e delivery.Engine, cfg config.EngineConfig, environment string) *EngineHandler {
	return &EngineHandler{engine: e, cfg: cfg, environment: environment}
}

// Info handles GET /api/engine
func (h *EngineHandler) Info(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, EngineInfoResponse{
		EngineConfigured:  h.cfg.Configured(),
		SigningKeyPresent: h.cfg.SigningKey != "",
		EventKeyPresent:   h.cfg.EventKey != "",
		EventName:         h.cfg.EventName,
		Environment:       h.environment,
	})
}

// SendTest handles POST /api/engine/test by sending a throwaway event.
func (h *EngineHandler) SendTest(w http.ResponseWriter, r *http.Request) {
	if !h.cfg.Configured() {
		shared.RespondWithJSON(w, r, http.StatusServiceUnavailable, shared.ErrorResponse{
			Error:   "Execution engine not configured",
			Message: "ENGINE_EVENT_KEY and ENGINE_SIGNING_KEY must both be set",
		})
		return
	}

	eventID, err := h.engine.Submit(r.Context(), delivery.Event{
		ID:   uuid.NewString(),
		Name: testEventName,
		Data: map[string]string{
			"message":   "This is a test event",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		status := MapErrorToStatusCode(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		shared.RespondWithErrorAndLog(w, r, status, "Failed to send test event", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, EngineTestResponse{
		Success:          true,
		Message:          "Test event sent successfully",
		EventID:          eventID,
		EngineConfigured: true,
	})
}
