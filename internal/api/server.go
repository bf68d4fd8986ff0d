package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/edvin/paas/internal/api/handler"
	mw "github.com/edvin/paas/internal/api/middleware"
	"github.com/edvin/paas/internal/core"
	"github.com/edvin/paas/internal/events"
)

// Check reports whether a dependency is ready to serve.
type Check func(ctx context.Context) error

type Deps struct {
	Services *core.Services
	Hub      *events.Hub
	// Checks run on /readyz, keyed by the name reported in the response.
	Checks map[string]Check
	// MCP is mounted at /mcp when set.
	MCP http.Handler
}

type Server struct {
	router   chi.Router
	logger   zerolog.Logger
	services *core.Services
	hub      *events.Hub
	checks   map[string]Check
	mcp      http.Handler
}

func NewServer(logger zerolog.Logger, d Deps) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		logger:   logger.With().Str("component", "api").Logger(),
		services: d.Services,
		hub:      d.Hub,
		checks:   d.Checks,
		mcp:      d.MCP,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	if s.mcp != nil {
		s.router.Handle("/mcp", s.mcp)
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		// Servers
		server := handler.NewServer(s.services.Server, s.services.Deployment)
		r.Get("/servers", server.List)
		r.Post("/servers", server.Create)
		r.Get("/servers/{id}", server.Get)
		r.Post("/servers/{id}/plugins/sync", server.SyncPlugins)
		r.Post("/servers/{id}/databases", server.CreateDatabase)

		// Queues
		q := handler.NewQueue(s.services.Queue)
		r.Get("/servers/{id}/queues", q.List)
		r.Get("/servers/{id}/queues/stats", q.Stats)
		r.Delete("/queues/{name}", q.Flush)
		r.Get("/queues/{name}/jobs/{id}", q.GetJob)

		// Projects and templates
		project := handler.NewProject(s.services.Project, s.services.Deployment)
		r.Post("/projects", project.Create)
		r.Get("/projects/{id}", project.Get)
		r.Get("/projects/{id}/services", project.Services)
		r.Post("/projects/{id}/template-deployments", project.TemplateDeployment)
		r.Post("/projects/{id}/templates/{name}", project.DeployCatalogTemplate)
		r.Get("/templates", project.Templates)

		// Services
		service := handler.NewService(s.services.Service, s.services.Deployment)
		r.Post("/services", service.Create)
		r.Get("/services/{id}", service.Get)
		r.Delete("/services/{id}", service.Destroy)
		r.Post("/services/{id}/deployments", service.Deploy)
		r.Put("/services/{id}/variables", service.Variables)
		r.Put("/services/{id}/volumes", service.Volumes)
		r.Put("/services/{id}/ports", service.Ports)
		r.Post("/services/{id}/backups", service.Backup)
		r.Get("/backups/{backupID}", service.GetBackup)

		// Deployments
		deployment := handler.NewDeployment(s.services.Deployment)
		r.Get("/deployments/{id}", deployment.Get)
		r.Get("/deployments/{id}/logs", deployment.Logs)

		// Live events
		if s.hub != nil {
			r.Get("/events/{channel}", handler.NewEvents(s.hub).Stream)
		}
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
