package main

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/officekit/mailroom/pkg/middleware"
)

// newRouter assembles the HTTP routing tree and middleware chain.
func newRouter(deps *Dependencies) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	deps.StatementsHandler.Register(api)
	deps.InvoicesHandler.Register(api)

	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.AdminAuth(deps.Config.Admin.Token, deps.Config.Admin.TokenHash))
	admin.HandleFunc("/storage-stats", storageStatsHandler(deps)).Methods(http.MethodGet)
	admin.HandleFunc("/sweep", sweepHandler(deps)).Methods(http.MethodPost)

	var handler http.Handler = r
	handler = deps.RateLimiter.Middleware(handler)
	handler = middleware.MaxBytes(deps.Config.Server.MaxUploadBytes)(handler)
	handler = middleware.SecurityHeaders(handler)
	handler = middleware.RequestLogger(deps.Logger)(handler)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{deps.Config.Server.BaseURL},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	return c.Handler(handler)
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// storageStatsHandler reports per-directory usage and the last sweep.
func storageStatsHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(deps.Scheduler.Report())
	}
}

// sweepHandler triggers an immediate retention sweep.
func sweepHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		deps.Scheduler.RunNow()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "sweep started"})
	}
}
