// Package server builds the chi router wiring C13's transport layer over a
// Services aggregate: middleware chain, unauthenticated health/auth routes,
// and the authenticated /v1 route tree.
package server

import (
	"net/http"

	"github.com/cloo-solutions/kbcore/internal/api/handlers"
	"github.com/cloo-solutions/kbcore/internal/api/middleware"
	"github.com/cloo-solutions/kbcore/internal/services"
	"github.com/go-chi/chi/v5"
)

// NewRouter assembles the full HTTP surface from a constructed Services
// aggregate.
func NewRouter(svc *services.Services) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recover)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(svc.Config.AllowedOrigins))
	r.Use(middleware.RateLimit(svc.Config.RateLimitPerSecond, svc.Config.RateLimitBurst))
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.Trace(svc.Traces))
	r.Use(middleware.MaxBodyBytes(svc.Config.MaxRequestBytes))

	r.Get("/healthz", handlers.Healthz)
	r.Get("/readyz", handlers.Readyz)

	authHandler := handlers.NewAuthHandler(svc.AuthGate, true, svc.Config.APIKey != "")
	r.Post("/v1/auth/token", authHandler.IssueToken)
	r.Get("/v1/auth/modes", authHandler.Modes)

	projectHandler := handlers.NewProjectHandler(svc.ContentAPI, svc.Storage)
	faqHandler := handlers.NewFAQHandler(svc.ContentAPI, svc.Storage)
	kbHandler := handlers.NewKBHandler(svc.ContentAPI, svc.Storage)
	indexHandler := handlers.NewIndexHandler(svc.IndexManager)
	queryHandler := handlers.NewQueryHandler(svc.Orchestrator)
	toolsHandler := handlers.NewToolsHandler(svc.Tools)
	traceHandler := handlers.NewTraceHandler(svc.Traces)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(svc.AuthGate))

		r.Route("/v1/projects", func(r chi.Router) {
			r.Get("/", projectHandler.List)
			r.Post("/", projectHandler.CreateOrUpdate)

			r.Route("/{pid}", func(r chi.Router) {
				r.Delete("/", projectHandler.Deactivate)

				r.Route("/faqs", func(r chi.Router) {
					r.Get("/", faqHandler.List)
					r.Post("/", faqHandler.Add)
					r.Delete("/{id}", faqHandler.Delete)
				})

				r.Route("/kb", func(r chi.Router) {
					r.Get("/", kbHandler.List)
					r.Post("/", kbHandler.Add)
					r.Get("/{id}", kbHandler.Get)
					r.Delete("/{id}", kbHandler.Delete)
				})

				r.Post("/documents", kbHandler.Upload)
				r.Post("/rebuild-indexes", indexHandler.Rebuild)
				r.Get("/build-status", indexHandler.Status)
			})
		})

		r.Post("/v1/query", queryHandler.Answer)

		r.Route("/v1/tools", func(r chi.Router) {
			r.Get("/", toolsHandler.List)
			r.Post("/{name}", toolsHandler.Invoke)
		})

		r.Route("/v1/traces", func(r chi.Router) {
			r.Get("/", traceHandler.List)
			r.Get("/{id}", traceHandler.Get)
		})
	})

	return r
}
