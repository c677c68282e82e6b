// Package httpapi wires every dependency the gateway's HTTP surface needs
// into a Server and builds its chi router: passthrough/unified dispatch,
// OAuth provisioning, the admin CRUD catalog, rate limiting, and
// correlation-id tracing.
package httpapi

import (
	"github.com/picahq/pica-gateway/internal/cache"
	"github.com/picahq/pica-gateway/internal/config"
	"github.com/picahq/pica-gateway/internal/dispatch"
	"github.com/picahq/pica-gateway/internal/entities"
	"github.com/picahq/pica-gateway/internal/metrics"
	"github.com/picahq/pica-gateway/internal/oauth"
	"github.com/picahq/pica-gateway/internal/ratelimit"
	"github.com/picahq/pica-gateway/internal/store"
)

// Server holds every dependency a handler might need. It has no behavior
// of its own beyond Routes(); each handler file implements one or more
// methods on *Server.
type Server struct {
	Config     *config.Config
	Catalog    *cache.Catalog
	Limiter    *ratelimit.Limiter
	Dispatcher *dispatch.Dispatcher
	OAuth      *oauth.Handler
	Metrics    *metrics.Pipeline

	// Admin CRUD stores, one per catalog collection spec.md §6 exposes.
	EventAccessStore        *store.CRUDStore[entities.EventAccess]
	ConnectionStore         *store.CRUDStore[entities.Connection]
	ConnectionDefStore      *store.CRUDStore[entities.ConnectionDefinition]
	ConnectionModelDefStore *store.CRUDStore[entities.ConnectionModelDefinition]
	ConnectionOAuthDefStore *store.CRUDStore[entities.ConnectionOAuthDefinition]
	SettingsStore           *store.CRUDStore[entities.Settings]
	EventStore              *store.CRUDStore[entities.Event]
	MetricStore             *store.CRUDStore[entities.MetricDocument]
	TaskStore               *store.CRUDStore[entities.Task]
	KnowledgeStore          *store.CRUDStore[entities.Knowledge]
	SecretStore             *store.CRUDStore[entities.Secret]

	// Catalog-read-only stores backing /connection-model-definitions,
	// /connection-model-schema, /available-connectors, /available-actions.
	SchemaStore *store.CRUDStore[entities.ConnectionModelSchema]
}
