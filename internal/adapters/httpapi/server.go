// Package httpapi is the HTTP shell over the core service: JSON endpoints for
// networks, queries, annotations, omics, experiments, comparisons, and
// reports, plus the Prometheus metrics endpoint.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"biograph/internal/core"
)

// Server holds the handler dependencies.
type Server struct {
	service *core.Service
	logger  *slog.Logger
}

// NewServer constructs the HTTP server shell.
func NewServer(service *core.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{service: service, logger: logger}
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/users", s.handleCreateUser)
		r.Get("/users/{id}", s.handleGetUser)

		r.Post("/projects", s.handleCreateProject)
		r.Get("/projects/{id}", s.handleGetProject)

		r.Get("/networks", s.handleListNetworks)
		r.Post("/networks", s.handleInsertNetwork)
		r.Get("/networks/{id}", s.handleGetNetwork)
		r.Delete("/networks/{id}", s.handleDropNetwork)
		r.Get("/networks/{id}/edges", s.handleListNetworkEdges)

		r.Post("/edges/{id}/votes", s.handleVote)
		r.Get("/edges/{id}/votes", s.handleListVotes)
		r.Post("/edges/{id}/comments", s.handleComment)
		r.Get("/edges/{id}/comments", s.handleListComments)

		r.Get("/queries", s.handleListQueries)
		r.Post("/queries", s.handleCreateQuery)
		r.Get("/queries/{id}", s.handleGetQuery)
		r.Delete("/queries/{id}", s.handleDeleteQuery)
		r.Get("/queries/{id}/run", s.handleRunQuery)
		r.Post("/queries/{id}/fork/step", s.handleForkStep)
		r.Post("/queries/{id}/fork/neighbors", s.handleForkNeighbors)

		r.Get("/omics", s.handleListOmics)
		r.Post("/omics", s.handleCreateOmic)
		r.Get("/omics/{id}", s.handleGetOmic)
		r.Delete("/omics/{id}", s.handleDropOmic)

		r.Get("/experiments", s.handleListExperiments)
		r.Post("/experiments", s.handleCreateExperiment)
		r.Get("/experiments/comparison", s.handleComparison)
		r.Get("/experiments/{id}", s.handleGetExperiment)
		r.Delete("/experiments/{id}", s.handleDropExperiment)

		r.Get("/reports", s.handleListReports)
		r.Post("/reports", s.handleCreateReport)
		r.Get("/reports/{id}", s.handleGetReport)
	})
	return r
}
