package api

import (
	"net/http"

	"github.com/garnizeh/wildspot/internal/blob"
	"github.com/garnizeh/wildspot/internal/config"
	"github.com/garnizeh/wildspot/internal/intake"
	"github.com/garnizeh/wildspot/internal/metrics"
	"github.com/garnizeh/wildspot/internal/tasks"
	"github.com/garnizeh/wildspot/pkg/repository"
	"github.com/gorilla/mux"
)

// Deps are the services the router hands requests to.
type Deps struct {
	Store    repository.GameStore
	Blobs    blob.Store
	Tasks    *tasks.Service
	Intake   *intake.Service
	Metrics  *metrics.Metrics
	DB       Pinger
	Provider HealthChecker
}

func SetupRoutes(cfg *config.Config, version, buildTime string, d Deps) *mux.Router {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(LoggingMiddleware)
	r.Use(MetricsMiddleware(d.Metrics))
	r.Use(CORSMiddleware)
	r.Use(RecoveryMiddleware)

	systemHandler := &SystemHandler{DB: d.DB, Provider: d.Provider}
	tasksHandler := NewTasksHandler(d.Tasks)
	recognizeHandler := NewRecognizeHandler(d.Intake, cfg.MaxUploadBytes)
	spottingsHandler := NewSpottingsHandler(d.Store, d.Blobs, cfg.PublicBaseURL)

	r.HandleFunc("/version", systemHandler.VersionHandler(version, buildTime)).Methods(http.MethodGet)
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods(http.MethodGet)
	r.Handle("/metrics", d.Metrics.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/share/{token}", spottingsHandler.Share).Methods(http.MethodGet)
	r.HandleFunc("/uploads/{name}", spottingsHandler.Upload).Methods(http.MethodGet)

	apiR := r.PathPrefix("/api").Subrouter()
	apiR.HandleFunc("/tasks", tasksHandler.CreateTasks).Methods(http.MethodPost, http.MethodOptions)
	apiR.HandleFunc("/tasks/current", tasksHandler.CurrentTasks).Methods(http.MethodGet)
	apiR.HandleFunc("/recognize", recognizeHandler.Recognize).Methods(http.MethodPost, http.MethodOptions)
	apiR.HandleFunc("/badges", spottingsHandler.Badges).Methods(http.MethodGet)
	apiR.HandleFunc("/spottings/recent", spottingsHandler.Recent).Methods(http.MethodGet)

	return r
}
