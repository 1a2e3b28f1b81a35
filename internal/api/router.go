package api

import (
	"context"
	"net/http"
	"time"

	apimiddleware "snapletter/internal/api/middleware"
	"snapletter/internal/api/shared"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

const requestTimeout = 30 * time.Second

// Pinger reports whether the preference store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RouterDeps holds everything the HTTP surface is built from.
type RouterDeps struct {
	Subscribers *SubscriberHandler
	Engine      *EngineHandler
	DB          Pinger
	Logger      *logrus.Entry
}

// NewRouter wires middleware and routes.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(apimiddleware.RequestLogger(deps.Logger))
	r.Use(shared.LoggerMiddleware(deps.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(requestTimeout))

	r.Get("/health", healthHandler(deps.DB))

	r.Route("/api", func(r chi.Router) {
		r.Route("/subscribers/{subscriberID}", func(r chi.Router) {
			r.Put("/preferences", deps.Subscribers.SavePreferences)
			r.Get("/preferences", deps.Subscribers.GetPreferences)
			r.Patch("/activation", deps.Subscribers.SetActivation)
			r.Get("/preflight", deps.Subscribers.Preflight)
		})
		r.Get("/runs/{correlationID}", deps.Subscribers.GetRunStatus)
		r.Get("/newsletter/status", deps.Subscribers.GetRunStatus)

		r.Get("/engine", deps.Engine.Info)
		r.Post("/engine/test", deps.Engine.SendTest)
	})

	return r
}

func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				shared.RespondWithErrorAndLog(w, r, http.StatusServiceUnavailable, "Database unavailable", err)
				return
			}
		}
		shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	}
}
