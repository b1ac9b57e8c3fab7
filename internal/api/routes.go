package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/af-corp/prediction-orchestrator/internal/auth"
	"github.com/af-corp/prediction-orchestrator/internal/httputil"
)

// NewRouter mounts the handler behind API key auth. Worker routes need the
// predict scope, admin routes the admin scope.
func NewRouter(h *Handler, keys auth.KeyStore, version string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestID)

	// Unauthenticated routes
	r.Get("/healthz", healthHandler(version))

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(keys))

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireScope(auth.ScopePredict))
			r.Post("/v1/predictions", h.PredictMatch)
			r.Get("/v1/models", h.ListModels)
		})

		r.Route("/admin/v1", func(r chi.Router) {
			r.Use(auth.RequireScope(auth.ScopeAdmin))
			r.Get("/fallback-stats", h.FallbackStats)
			r.Get("/spend", h.DailySpend)
			r.Post("/models/{id}/reenable", h.ReenableModel)
		})
	})

	return r
}

func healthHandler(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{
			"status":  "healthy",
			"version": version,
		})
	}
}

// RequestID propagates X-Request-ID, generating one when the caller sent none.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = generateRequestID()
		}
		w.Header().Set("X-Request-ID", reqID)
		ctx := context.WithValue(r.Context(), requestIDKey, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type contextKey string

const requestIDKey contextKey = "request_id"

func generateRequestID() string {
	now := time.Now()
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("req_%d_%s", now.UnixMilli(), hex.EncodeToString(b))
}
