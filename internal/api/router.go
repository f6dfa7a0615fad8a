package api

import (
	"github.com/gorilla/mux"

	"github.com/kmicac/matchsync/internal/config"
	"github.com/kmicac/matchsync/internal/scheduler"
	"github.com/kmicac/matchsync/internal/syncer"
)

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, sched *scheduler.Scheduler, s *syncer.Syncer) *mux.Router {
	router := mux.NewRouter()

	// Create handler instance
	handler := NewHandler(cfg, sched, s)

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()

	// Health & Status
	api.HandleFunc("/health", handler.HealthCheck).Methods("GET")
	api.HandleFunc("/status", handler.GetStatus).Methods("GET")

	// Manual sync triggers
	api.HandleFunc("/sync/{kind}", handler.TriggerSync).Methods("POST")
	api.HandleFunc("/maintenance/dedupe-videos", handler.DedupeVideos).Methods("POST")

	// Data retrieval
	api.HandleFunc("/fixtures/{competition}", handler.GetFixtures).Methods("GET")
	api.HandleFunc("/stats/{code}", handler.GetStats).Methods("GET")
	api.HandleFunc("/teams/{code}", handler.GetTeams).Methods("GET")
	api.HandleFunc("/highlights", handler.GetHighlights).Methods("GET")

	// Schedule configuration
	api.HandleFunc("/schedule/config", handler.GetScheduleConfig).Methods("GET")
	api.HandleFunc("/schedule/config", handler.UpdateScheduleConfig).Methods("PUT")

	// Jobs history
	api.HandleFunc("/jobs", handler.GetJobs).Methods("GET")
	api.HandleFunc("/jobs/{id}", handler.GetJobByID).Methods("GET")

	// Middleware
	router.Use(loggingMiddleware)
	router.Use(corsMiddleware)

	return router
}
