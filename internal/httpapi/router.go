package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/picahq/pica-gateway/internal/auth"
	"github.com/picahq/pica-gateway/internal/entities"
)

// Routes builds the gateway's full chi router: unauthenticated health and
// public-webhook routes, then the secured catalog/passthrough/unified
// surface behind auth.Middleware and s.RateLimitMiddleware.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(CorrelationMiddleware)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   s.Config.CorsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", s.Config.AuthHeader, s.Config.ConnectionKeyHeader, s.Config.PassthroughActionIdHeader, s.Config.ShowAllEnvironmentsHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)

	r.NotFound(s.NotFound)

	r.Get("/healthz", s.Healthz)

	r.Route("/v1/public", func(r chi.Router) {
		r.Get("/connection-definitions", s.PublicConnectionDefinitions)
		r.Post("/event-callbacks/database-connection-lost/{connectionId}", s.DatabaseConnectionLost)
	})
	r.Post("/v1/event-callbacks/*", s.EventCallback)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(s.Config.EventAccessPassword, s.Config.AuthHeader, s.Catalog))
		r.Use(s.RateLimitMiddleware)

		mountCRUD(r, s, "/connections", s.ConnectionStore, entities.IdPrefixConnection)
		mountCRUD(r, s, "/event-access", s.EventAccessStore, entities.IdPrefixEventAccess)
		mountCRUD(r, s, "/events", s.EventStore, entities.IdPrefixEvent)
		mountCRUD(r, s, "/knowledge", s.KnowledgeStore, entities.IdPrefixKnowledge)
		mountCRUD(r, s, "/tasks", s.TaskStore, entities.IdPrefixTask)
		mountCRUD(r, s, "/metrics", s.MetricStore, entities.IdPrefixMetric)
		mountCRUD(r, s, "/secrets", s.SecretStore, entities.IdPrefixSecret)
		mountCRUD(r, s, "/vault/connections", s.ConnectionStore, entities.IdPrefixConnection)

		r.Post("/oauth/{platform}", s.OAuthInit)

		r.Get("/connection-model-definitions/test/{id}", s.ConnectionModelDefinitionTest)
		r.Get("/connection-model-schema", s.ConnectionModelSchema)
		r.Get("/available-connectors", s.AvailableConnectors)
		r.Get("/available-actions/{platform}", s.AvailableActions)

		r.Group(func(r chi.Router) {
			r.Use(auth.ConnectionMiddleware(s.Config.ConnectionKeyHeader, s.Catalog))

			r.Handle("/passthrough/*", http.HandlerFunc(s.Passthrough))
			r.Handle("/unified/*", http.HandlerFunc(s.Unified))
		})
	})

	return r
}
