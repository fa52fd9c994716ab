package handlers

import (
	"context"
	"net/http"
	"time"

	"studioAPI/middleware"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterConfig struct {
	Sessions *SessionHandler
	Projects *ProjectHandler
	Catalog  *CatalogHandler
	Limiter  *middleware.RateLimiter

	// Health pings the backing stores.
	Health func(ctx context.Context) error

	MetricsUser string
	MetricsPass string
}

func NewRouter(cfg RouterConfig) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/v1/sessions/ws/{sessionID}", cfg.Sessions.JoinSession)

	standardRouter := r.PathPrefix("/").Subrouter()
	if cfg.Limiter != nil {
		standardRouter.Use(cfg.Limiter.Middleware)
	}
	standardRouter.Use(middleware.MonitorMiddleware)

	standardRouter.Handle("/metrics", middleware.BasicAuthMiddleware(cfg.MetricsUser, cfg.MetricsPass)(promhttp.Handler()))

	standardRouter.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if cfg.Health != nil {
			if err := cfg.Health(ctx); err != nil {
				respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"error":  "database connection failed",
				})
				return
			}
		}
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "studio-api"})
	}).Methods("GET")

	api := standardRouter.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/asset-types", cfg.Catalog.GetAssetTypes).Methods("GET")
	api.HandleFunc("/templates", cfg.Catalog.GetTemplates).Methods("GET")

	s := cfg.Sessions
	api.HandleFunc("/sessions", s.CreateSession).Methods("POST")
	api.HandleFunc("/sessions/{sessionID}", s.GetSession).Methods("GET")
	api.HandleFunc("/sessions/{sessionID}", s.DeleteSession).Methods("DELETE")
	api.HandleFunc("/sessions/{sessionID}/layers", s.AddLayer).Methods("POST")
	api.HandleFunc("/sessions/{sessionID}/layers/{layerID}", s.UpdateLayer).Methods("PATCH")
	api.HandleFunc("/sessions/{sessionID}/layers/{layerID}", s.RemoveLayer).Methods("DELETE")
	api.HandleFunc("/sessions/{sessionID}/layers/{layerID}/duplicate", s.DuplicateLayer).Methods("POST")
	api.HandleFunc("/sessions/{sessionID}/layers/{layerID}/move", s.MoveLayer).Methods("POST")
	api.HandleFunc("/sessions/{sessionID}/layers/{layerID}/drag", s.DragLayer).Methods("POST")
	api.HandleFunc("/sessions/{sessionID}/optional-layers", s.AddOptionalLayer).Methods("POST")
	api.HandleFunc("/sessions/{sessionID}/meta", s.SetMeta).Methods("PUT")
	api.HandleFunc("/sessions/{sessionID}/asset-type", s.SetAssetType).Methods("PUT")
	api.HandleFunc("/sessions/{sessionID}/template", s.ApplyTemplate).Methods("POST")
	api.HandleFunc("/sessions/{sessionID}/undo", s.Undo).Methods("POST")
	api.HandleFunc("/sessions/{sessionID}/redo", s.Redo).Methods("POST")
	api.HandleFunc("/sessions/{sessionID}/images", s.InsertImage).Methods("POST")
	api.HandleFunc("/sessions/{sessionID}/export/json", s.ExportJSON).Methods("GET")
	api.HandleFunc("/sessions/{sessionID}/export/image", s.ExportImage).Methods("GET")
	api.HandleFunc("/sessions/{sessionID}/export/batch", s.ExportBatch).Methods("POST")
	api.HandleFunc("/sessions/{sessionID}/import", s.Import).Methods("POST")
	api.HandleFunc("/sessions/{sessionID}/load/{projectID}", s.LoadProject).Methods("POST")

	p := cfg.Projects
	api.HandleFunc("/projects", p.ListLocal).Methods("GET")
	api.HandleFunc("/projects", p.SaveLocal).Methods("POST")
	api.HandleFunc("/projects/{projectID}", p.GetLocal).Methods("GET")
	api.HandleFunc("/projects/{projectID}", p.DeleteLocal).Methods("DELETE")
	api.HandleFunc("/shared/{projectID}", p.GetShared).Methods("GET")
	api.HandleFunc("/shared/{projectID}/qr", p.GetSharedQR).Methods("GET")

	protected := api.PathPrefix("/cloud").Subrouter()
	protected.Use(middleware.ClerkAuthMiddleware)

	protected.HandleFunc("/projects", p.ListCloud).Methods("GET")
	protected.HandleFunc("/projects", p.SaveCloud).Methods("POST")
	protected.HandleFunc("/projects/{projectID}", p.GetCloud).Methods("GET")
	protected.HandleFunc("/projects/{projectID}", p.DeleteCloud).Methods("DELETE")
	protected.HandleFunc("/projects/{projectID}/public", p.SetPublic).Methods("PUT")

	return r
}
