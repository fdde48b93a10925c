package api

import (
	"net/http"

	"github.com/dvloznov/fraud-scoring/internal/api/handlers"
	"github.com/dvloznov/fraud-scoring/internal/api/middleware"
	"github.com/dvloznov/fraud-scoring/internal/domain"
	"github.com/dvloznov/fraud-scoring/internal/jobs"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Deps are the services behind the HTTP API. Publisher, JobStore, History
// and Categories are optional; routes that need a missing one are not
// registered or answer 503.
type Deps struct {
	Scorer     handlers.Scorer
	Publisher  jobs.Publisher
	JobStore   jobs.JobStore
	History    domain.FraudHistoryReader
	Categories domain.CategoryLookup
	Model      handlers.ModelInfo
	Ledger     handlers.Pinger
}

// NewRouter registers every route and wraps them in the middleware chain.
func NewRouter(deps Deps, log zerolog.Logger) http.Handler {
	r := mux.NewRouter()

	fraud := handlers.NewFraudHandler(deps.Scorer, deps.Publisher, deps.History, log)
	r.HandleFunc("/api/fraud/score", fraud.Score).Methods(http.MethodPost)
	r.HandleFunc("/api/fraud/score/async", fraud.ScoreAsync).Methods(http.MethodPost)
	r.HandleFunc("/api/fraud/history", fraud.History).Methods(http.MethodGet)

	if deps.JobStore != nil {
		jobsHandler := handlers.NewJobsHandler(deps.JobStore, log)
		r.HandleFunc("/api/jobs", jobsHandler.ListJobs).Methods(http.MethodGet)
		r.HandleFunc("/api/jobs/{id}", jobsHandler.GetJob).Methods(http.MethodGet)
	}

	if deps.Categories != nil {
		categories := handlers.NewCategoriesHandler(deps.Categories, log)
		r.HandleFunc("/api/categories", categories.ListCategories).Methods(http.MethodGet)
	}

	health := handlers.NewHealthHandler(deps.Model, deps.Ledger)
	r.HandleFunc("/health", health.Health).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return middleware.Chain(r,
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.Logger(log),
		middleware.CORS,
	)
}
